// Package jsonreport serializes a diff.Build result to the wire format
// consumed by --json, per SPEC_FULL.md §4.10 (C13): {"diffs": [...],
// "size_old": N, "size_new": M}.
package jsonreport

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/nix-community/nix-closure-diff/internal/diff"
	"github.com/nix-community/nix-closure-diff/internal/version"
)

// Report is the top-level wire object.
type Report struct {
	Diffs   []Record `json:"diffs"`
	SizeOld int64    `json:"size_old"`
	SizeNew int64    `json:"size_new"`
}

// Record is one package's diff, shaped for JSON rather than display.
type Record struct {
	Name      string    `json:"name"`
	Old       []Version `json:"old"`
	New       []Version `json:"new"`
	Status    Status    `json:"status"`
	Selection string    `json:"selection"`
	Common    bool      `json:"has_common_versions"`
}

// Version mirrors version.Version's two fields.
type Version struct {
	String       string `json:"string"`
	Multiplicity int    `json:"multiplicity"`
}

// Status serializes diff.Status as "Added"/"Removed" or
// {"Changed":"Upgraded"} depending on its Kind.
type Status struct {
	kind   diff.StatusKind
	change diff.ChangeKind
}

func (s Status) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case diff.StatusAdded:
		return json.Marshal("Added")
	case diff.StatusRemoved:
		return json.Marshal("Removed")
	default:
		return json.Marshal(struct {
			Changed string `json:"Changed"`
		}{Changed: s.change.String()})
	}
}

// Build converts diffs and the two closure sizes into a Report ready to
// marshal.
func Build(diffs []diff.Diff, sizeOld, sizeNew int64) Report {
	records := make([]Record, len(diffs))
	for i, d := range diffs {
		records[i] = Record{
			Name:      d.Name,
			Old:       toVersions(d.Old),
			New:       toVersions(d.New),
			Status:    Status{kind: d.Status.Kind, change: d.Status.Change},
			Selection: selectionName(d.Selection),
			Common:    d.HasCommonVersions,
		}
	}
	return Report{Diffs: records, SizeOld: sizeOld, SizeNew: sizeNew}
}

func toVersions(vs []version.Version) []Version {
	out := make([]Version, len(vs))
	for i, v := range vs {
		out[i] = Version{String: v.String, Multiplicity: v.Multiplicity}
	}
	return out
}

func selectionName(s diff.Selection) string {
	switch s {
	case diff.Selected:
		return "Selected"
	case diff.NewlySelected:
		return "NewlySelected"
	case diff.NewlyUnselected:
		return "NewlyUnselected"
	default:
		return "Unselected"
	}
}

// Write marshals report as indented JSON to w.
func Write(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
