// Package diff builds Diff records from the store paths a closure query
// layer returns, per SPEC_FULL.md §4.5 (C8): bucket by package name,
// separate the versions common to both sides from the versions unique
// to one side, and classify each bucket as Added, Removed, or one of the
// three Changed variants.
package diff

import (
	"sort"

	"github.com/nix-community/nix-closure-diff/internal/logger"
	"github.com/nix-community/nix-closure-diff/internal/pairing"
	"github.com/nix-community/nix-closure-diff/internal/storepath"
	"github.com/nix-community/nix-closure-diff/internal/version"
)

// noVersion substitutes for a store path with no version suffix, so it
// still buckets and compares like any other version string.
const noVersion = "<none>"

// ChangeKind further distinguishes a Changed status.
type ChangeKind int

const (
	Upgraded ChangeKind = iota
	Downgraded
	UpgradeDowngrade
)

func (k ChangeKind) String() string {
	switch k {
	case Upgraded:
		return "Upgraded"
	case Downgraded:
		return "Downgraded"
	case UpgradeDowngrade:
		return "UpgradeDowngrade"
	default:
		return "Unknown"
	}
}

// StatusKind is the top-level DiffStatus discriminant.
type StatusKind int

const (
	StatusChanged StatusKind = iota
	StatusAdded
	StatusRemoved
)

// Status is the closed DiffStatus enum from SPEC_FULL.md §3: Added,
// Removed, or Changed with one of three sub-kinds. Change is only
// meaningful when Kind is StatusChanged.
type Status struct {
	Kind   StatusKind
	Change ChangeKind
}

func (s Status) String() string {
	switch s.Kind {
	case StatusAdded:
		return "Added"
	case StatusRemoved:
		return "Removed"
	case StatusChanged:
		return "Changed(" + s.Change.String() + ")"
	default:
		return "Unknown"
	}
}

// sectionRank groups every Changed(*) variant under one rank, so the
// three Changed sub-kinds land in a single CHANGED section ahead of
// Added and Removed, matching the renderer's section order.
func (s Status) sectionRank() int {
	switch s.Kind {
	case StatusChanged:
		return 0
	case StatusAdded:
		return 1
	case StatusRemoved:
		return 2
	default:
		return 3
	}
}

// Selection documents whether a package belongs to the user-selected
// "system packages" subset of each side being compared.
type Selection int

const (
	Selected Selection = iota
	NewlySelected
	NewlyUnselected
	Unselected
)

// Char renders the selection as the single marker character used in the
// report's status column.
func (s Selection) Char() byte {
	switch s {
	case Selected:
		return '*'
	case NewlySelected:
		return '+'
	case NewlyUnselected:
		return '-'
	default:
		return '.'
	}
}

// Diff is one record per package name with a difference between the old
// and new closures. Old and New list only the occurrences unique to that
// side (a multiset difference): occurrences matched on both sides are
// represented solely by HasCommonVersions, while a version that occurs
// more often on one side keeps its excess in that side's list.
type Diff struct {
	Name              string
	Old               []version.Version
	New               []version.Version
	Status            Status
	Selection         Selection
	HasCommonVersions bool
}

type bucket struct {
	oldRaw []string
	newRaw []string
}

// Build computes the ordered Diff records for two closures' dependent
// and system-derivation sets. Entries whose basename fails to parse are
// logged and skipped rather than aborting the whole comparison.
func Build(oldDependents, newDependents, oldSystemDerivations, newSystemDerivations []storepath.StorePath, log logger.Logger) []Diff {
	sysOld := packageNames(oldSystemDerivations, log)
	sysNew := packageNames(newSystemDerivations, log)

	buckets := make(map[string]*bucket)
	accumulate(oldDependents, buckets, log, true)
	accumulate(newDependents, buckets, log, false)

	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	diffs := make([]Diff, 0, len(names))
	for _, name := range names {
		b := buckets[name]
		d, ok := classify(name, b.oldRaw, b.newRaw)
		if !ok {
			continue
		}
		d.Selection = selectionFor(name, sysOld, sysNew)
		diffs = append(diffs, d)
	}

	sort.SliceStable(diffs, func(i, j int) bool {
		ri, rj := diffs[i].Status.sectionRank(), diffs[j].Status.sectionRank()
		if ri != rj {
			return ri < rj
		}
		return diffs[i].Name < diffs[j].Name
	})

	return diffs
}

func accumulate(deps []storepath.StorePath, buckets map[string]*bucket, log logger.Logger, isOld bool) {
	for _, sp := range deps {
		name, ver, err := sp.NameAndVersion()
		if err != nil {
			if log != nil {
				log.Debugf("skipping unparseable store path %q: %v", sp.String(), err)
			}
			continue
		}
		if ver == "" {
			ver = noVersion
		}

		b, ok := buckets[name]
		if !ok {
			b = &bucket{}
			buckets[name] = b
		}
		if isOld {
			b.oldRaw = append(b.oldRaw, ver)
		} else {
			b.newRaw = append(b.newRaw, ver)
		}
	}
}

func packageNames(derivations []storepath.StorePath, log logger.Logger) map[string]struct{} {
	set := make(map[string]struct{}, len(derivations))
	for _, sp := range derivations {
		name, _, err := sp.NameAndVersion()
		if err != nil {
			if log != nil {
				log.Debugf("skipping unparseable system derivation %q: %v", sp.String(), err)
			}
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

func selectionFor(name string, sysOld, sysNew map[string]struct{}) Selection {
	_, inOld := sysOld[name]
	_, inNew := sysNew[name]

	switch {
	case inOld && inNew:
		return Selected
	case inNew:
		return NewlySelected
	case inOld:
		return NewlyUnselected
	default:
		return Unselected
	}
}

// classify buckets the raw (possibly repeated) version occurrences of a
// single package name on both sides, per SPEC_FULL.md §4.5 step d.
// Pairing for the upgrade/downgrade signal operates on distinct version
// strings, not repeated occurrences: three old copies of the same
// version paired against one new version is a plain upgrade, not an
// upgrade-downgrade, because there is only one distinct old version to
// pair against.
func classify(name string, oldRaw, newRaw []string) (Diff, bool) {
	oldCount := countMultiset(oldRaw)
	newCount := countMultiset(newRaw)

	allVersions := make(map[string]struct{}, len(oldCount)+len(newCount))
	for v := range oldCount {
		allVersions[v] = struct{}{}
	}
	for v := range newCount {
		allVersions[v] = struct{}{}
	}

	distinct := make([]string, 0, len(allVersions))
	for v := range allVersions {
		distinct = append(distinct, v)
	}
	sort.Strings(distinct)

	var uniqueOld, uniqueNew []version.Version
	common := 0

	for _, v := range distinct {
		oc, nc := oldCount[v], newCount[v]
		c := min(oc, nc)
		common += c

		if leftover := oc - c; leftover > 0 {
			uniqueOld = append(uniqueOld, version.Version{String: v, Multiplicity: leftover})
		}
		if leftover := nc - c; leftover > 0 {
			uniqueNew = append(uniqueNew, version.Version{String: v, Multiplicity: leftover})
		}
	}

	if len(uniqueOld) == 0 && len(uniqueNew) == 0 {
		return Diff{}, false
	}

	hasCommon := common > 0

	var status Status
	switch {
	case common == 0 && len(uniqueOld) == 0:
		status = Status{Kind: StatusAdded}
	case common == 0 && len(uniqueNew) == 0:
		status = Status{Kind: StatusRemoved}
	case len(uniqueOld) == 0 || len(uniqueNew) == 0:
		status = Status{Kind: StatusChanged, Change: UpgradeDowngrade}
	default:
		change, ok := pairedChangeKind(versionStrings(uniqueOld), versionStrings(uniqueNew))
		if !ok {
			return Diff{}, false
		}
		status = Status{Kind: StatusChanged, Change: change}
	}

	return Diff{
		Name:              name,
		Old:               uniqueOld,
		New:               uniqueNew,
		Status:            status,
		HasCommonVersions: hasCommon,
	}, true
}

// pairedChangeKind runs the multiset pairing (C7) over the distinct
// unique version strings on each side and combines the per-pairing
// upgrade/downgrade signal per SPEC_FULL.md §4.5 step d.
func pairedChangeKind(oldVersions, newVersions []string) (ChangeKind, bool) {
	pairs := pairing.Match(oldVersions, newVersions)

	hasUpgrade := false
	hasDowngrade := false

	for _, p := range pairs {
		switch p.Kind {
		case pairing.Left:
			hasDowngrade = true
		case pairing.Right:
			hasUpgrade = true
		case pairing.Both:
			switch {
			case version.Compare(p.New, p.Old) > 0:
				hasUpgrade = true
			case version.Compare(p.New, p.Old) < 0:
				hasDowngrade = true
			}
		}
	}

	switch {
	case hasUpgrade && hasDowngrade:
		return UpgradeDowngrade, true
	case hasUpgrade:
		return Upgraded, true
	case hasDowngrade:
		return Downgraded, true
	default:
		return 0, false
	}
}

func countMultiset(raws []string) map[string]int {
	m := make(map[string]int, len(raws))
	for _, v := range raws {
		m[v]++
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
