// Package render writes the sectioned, ANSI-colored text report for a
// slice of diff.Diff records, per SPEC_FULL.md §4.6 (C9): grouped by
// status, sorted by name within a section, with a character-level diff
// of the version strings that actually changed.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/nix-community/nix-closure-diff/internal/diff"
	"github.com/nix-community/nix-closure-diff/internal/pairing"
	"github.com/nix-community/nix-closure-diff/internal/version"
)

var (
	headerStyle = color.New(color.Bold)

	statusUpgradeDowngrade = color.New(color.FgYellow, color.Bold)
	statusUpgraded         = color.New(color.FgHiCyan, color.Bold)
	statusDowngraded       = color.New(color.FgMagenta, color.Bold)
	statusAdded            = color.New(color.FgGreen, color.Bold)
	statusRemoved          = color.New(color.FgRed, color.Bold)

	oldColor    = color.New(color.FgRed)
	newColor    = color.New(color.FgGreen)
	sameColor   = color.New(color.FgYellow)
	othersColor = color.New(color.FgBlue, color.Italic)
)

// Render writes every section (CHANGED, ADDED, REMOVED, in that order)
// of diffs to w and reports whether anything was written, so the caller
// knows whether to print a trailing blank line before the size summary.
func Render(w io.Writer, diffs []diff.Diff) bool {
	if len(diffs) == 0 {
		return false
	}

	maxWidth := 0
	for _, d := range diffs {
		if len(d.Name) > maxWidth {
			maxWidth = len(d.Name)
		}
	}

	lastRank := -1
	for _, d := range diffs {
		rank := sectionRank(d.Status.Kind)
		if rank != lastRank {
			if lastRank != -1 {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, headerStyle.Sprint(sectionTitle(d.Status.Kind)))
			lastRank = rank
		}
		writeRecord(w, d, maxWidth)
	}

	return true
}

// RenderSizeSummary writes the two-line SIZE/DIFF footer.
func RenderSizeSummary(w io.Writer, oldSize, newSize int64) {
	fmt.Fprintf(w, "SIZE: %s -> %s\n", oldColor.Sprintf("%d", oldSize), newColor.Sprintf("%d", newSize))

	delta := newSize - oldSize
	deltaStyle := newColor
	if delta < 0 {
		deltaStyle = oldColor
	}
	fmt.Fprintf(w, "DIFF: %s\n", deltaStyle.Sprintf("%+d", delta))
}

func sectionRank(k diff.StatusKind) int {
	switch k {
	case diff.StatusChanged:
		return 0
	case diff.StatusAdded:
		return 1
	case diff.StatusRemoved:
		return 2
	default:
		return 3
	}
}

func sectionTitle(k diff.StatusKind) string {
	switch k {
	case diff.StatusChanged:
		return "CHANGED"
	case diff.StatusAdded:
		return "ADDED"
	case diff.StatusRemoved:
		return "REMOVED"
	default:
		return ""
	}
}

func statusGlyph(s diff.Status) (string, *color.Color) {
	switch s.Kind {
	case diff.StatusAdded:
		return "A", statusAdded
	case diff.StatusRemoved:
		return "R", statusRemoved
	case diff.StatusChanged:
		switch s.Change {
		case diff.Upgraded:
			return "U", statusUpgraded
		case diff.Downgraded:
			return "D", statusDowngraded
		default:
			return "C", statusUpgradeDowngrade
		}
	default:
		return "?", color.New()
	}
}

func writeRecord(w io.Writer, d diff.Diff, maxWidth int) {
	glyph, style := statusGlyph(d.Status)

	pad := maxWidth + 1 - len(d.Name)
	if pad < 1 {
		pad = 1
	}

	oldStr, newStr := renderVersions(d)

	arrow := ""
	if oldStr != "" && newStr != "" {
		arrow = " -> "
	}

	fmt.Fprintf(w, "[%s%c] %s%s%s%s%s\n",
		style.Sprint(glyph), d.Selection.Char(), style.Sprint(d.Name), strings.Repeat(" ", pad), oldStr, arrow, newStr)
}

func renderVersions(d diff.Diff) (oldStr, newStr string) {
	oldMult := multiplicityMap(d.Old)
	newMult := multiplicityMap(d.New)

	pairs := pairing.Match(versionStrings(d.Old), versionStrings(d.New))

	var oldParts, newParts []string
	for _, p := range pairs {
		switch p.Kind {
		case pairing.Left:
			oldParts = append(oldParts, renderUniqueVersion(p.Old, oldMult[p.Old], oldColor))
		case pairing.Right:
			newParts = append(newParts, renderUniqueVersion(p.New, newMult[p.New], newColor))
		case pairing.Both:
			if p.Old == p.New {
				continue
			}
			oldPart, newPart := renderDiffPair(p.Old, p.New, oldMult[p.Old], newMult[p.New])
			oldParts = append(oldParts, oldPart)
			newParts = append(newParts, newPart)
		}
	}

	oldStr = strings.Join(oldParts, ", ")
	newStr = strings.Join(newParts, ", ")

	if d.HasCommonVersions {
		others := othersColor.Sprint("<others>")
		oldStr = joinNonEmpty(oldStr, others)
		newStr = joinNonEmpty(newStr, others)
	}

	return oldStr, newStr
}

func joinNonEmpty(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + ", " + addition
}

func renderUniqueVersion(v string, mult int, c *color.Color) string {
	rendered := c.Sprint(v)
	if mult > 1 {
		rendered += c.Sprintf(" ×%d", mult)
	}
	return rendered
}

// renderDiffPair renders a differing (old, new) version pair: the
// longest common prefix and suffix of their piece sequences in yellow,
// and the differing middle run by character-level diff.
func renderDiffPair(oldV, newV string, oldMult, newMult int) (string, string) {
	oldPieces := version.Tokenize(oldV)
	newPieces := version.Tokenize(newV)

	prefixLen := commonPrefixLen(oldPieces, newPieces)
	suffixLen := commonSuffixLen(oldPieces[prefixLen:], newPieces[prefixLen:])

	oldMidEnd := len(oldPieces) - suffixLen
	newMidEnd := len(newPieces) - suffixLen

	var oldBuf, newBuf strings.Builder

	for _, p := range oldPieces[:prefixLen] {
		oldBuf.WriteString(sameColor.Sprint(p.Text))
	}
	for _, p := range newPieces[:prefixLen] {
		newBuf.WriteString(sameColor.Sprint(p.Text))
	}

	renderMiddle(oldPieces[prefixLen:oldMidEnd], newPieces[prefixLen:newMidEnd], &oldBuf, &newBuf)

	for _, p := range oldPieces[oldMidEnd:] {
		oldBuf.WriteString(sameColor.Sprint(p.Text))
	}
	for _, p := range newPieces[newMidEnd:] {
		newBuf.WriteString(sameColor.Sprint(p.Text))
	}

	oldStr := oldBuf.String() + multiplicitySuffix(oldMult, newMult, true)
	newStr := newBuf.String() + multiplicitySuffix(newMult, oldMult, false)

	return oldStr, newStr
}

func multiplicitySuffix(mine, other int, isOld bool) string {
	if mine <= 1 && other <= 1 {
		return ""
	}
	if mine == other {
		return sameColor.Sprintf(" ×%d", mine)
	}
	if mine <= 1 {
		return ""
	}
	c := newColor
	if isOld {
		c = oldColor
	}
	return c.Sprintf(" ×%d", mine)
}

func renderMiddle(oldMid, newMid []version.Piece, oldBuf, newBuf *strings.Builder) {
	n := len(oldMid)
	if len(newMid) < n {
		n = len(newMid)
	}

	for i := 0; i < n; i++ {
		renderComponentPair(oldMid[i], newMid[i], oldBuf, newBuf)
	}
	for _, p := range oldMid[n:] {
		oldBuf.WriteString(oldColor.Sprint(p.Text))
	}
	for _, p := range newMid[n:] {
		newBuf.WriteString(newColor.Sprint(p.Text))
	}
}

func renderComponentPair(oldP, newP version.Piece, oldBuf, newBuf *strings.Builder) {
	if oldP == newP {
		oldBuf.WriteString(sameColor.Sprint(oldP.Text))
		newBuf.WriteString(sameColor.Sprint(newP.Text))
		return
	}

	if oldP.Kind != version.PieceComponent || newP.Kind != version.PieceComponent {
		oldBuf.WriteString(oldColor.Sprint(oldP.Text))
		newBuf.WriteString(newColor.Sprint(newP.Text))
		return
	}

	if len(oldP.Text) > 20 && len(newP.Text) > 20 && everyPositionDiffers(oldP.Text, newP.Text) {
		oldBuf.WriteString(oldColor.Sprint(oldP.Text))
		newBuf.WriteString(newColor.Sprint(newP.Text))
		return
	}

	renderCharDiff(oldP.Text, newP.Text, oldBuf, newBuf)
}

func everyPositionDiffers(a, b string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			return false
		}
	}
	return true
}

type charOpKind byte

const (
	charBoth charOpKind = iota
	charLeft
	charRight
)

type charOp struct {
	kind charOpKind
	ch   byte
}

// charDiff computes an LCS-based alignment of two byte strings, the
// classic diff backtrack over the edit-distance table.
func charDiff(a, b string) []charOp {
	n, m := len(a), len(b)

	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				dp[i][j] = dp[i+1][j+1] + 1
			case dp[i+1][j] >= dp[i][j+1]:
				dp[i][j] = dp[i+1][j]
			default:
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	ops := make([]charOp, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, charOp{charBoth, a[i]})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			ops = append(ops, charOp{charLeft, a[i]})
			i++
		default:
			ops = append(ops, charOp{charRight, b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, charOp{charLeft, a[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, charOp{charRight, b[j]})
	}

	return ops
}

func renderCharDiff(a, b string, oldBuf, newBuf *strings.Builder) {
	diffActive := false
	for _, op := range charDiff(a, b) {
		switch op.kind {
		case charBoth:
			style := sameColor
			if diffActive {
				oldBuf.WriteString(oldColor.Sprint(string(op.ch)))
				newBuf.WriteString(newColor.Sprint(string(op.ch)))
				continue
			}
			oldBuf.WriteString(style.Sprint(string(op.ch)))
			newBuf.WriteString(style.Sprint(string(op.ch)))
		case charLeft:
			oldBuf.WriteString(oldColor.Sprint(string(op.ch)))
			diffActive = true
		case charRight:
			newBuf.WriteString(newColor.Sprint(string(op.ch)))
			diffActive = true
		}
	}
}

func commonPrefixLen(a, b []version.Piece) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffixLen(a, b []version.Piece) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}

func multiplicityMap(vs []version.Version) map[string]int {
	m := make(map[string]int, len(vs))
	for _, v := range vs {
		m[v.String] = v.Multiplicity
	}
	return m
}

func versionStrings(vs []version.Version) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String
	}
	return out
}
