package diff_test

import (
	"strings"
	"testing"

	"github.com/nix-community/nix-closure-diff/internal/diff"
	"github.com/nix-community/nix-closure-diff/internal/storepath"
)

func paths(t *testing.T, names ...string) []storepath.StorePath {
	t.Helper()
	hash := strings.Repeat("0", 32)
	out := make([]storepath.StorePath, len(names))
	for i, n := range names {
		sp, err := storepath.New("/nix/store/" + hash + "-" + n)
		if err != nil {
			t.Fatalf("building store path for %q: %v", n, err)
		}
		out[i] = sp
	}
	return out
}

func findByName(t *testing.T, diffs []diff.Diff, name string) diff.Diff {
	t.Helper()
	for _, d := range diffs {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no diff record for %q among %d records", name, len(diffs))
	return diff.Diff{}
}

func TestSingleUpgrade(t *testing.T) {
	old := paths(t, "foo-1.0")
	new_ := paths(t, "foo-1.1")

	diffs := diff.Build(old, new_, nil, nil, nil)
	if len(diffs) != 1 {
		t.Fatalf("expected 1 diff, got %d", len(diffs))
	}

	d := diffs[0]
	if d.Name != "foo" || d.Status.Kind != diff.StatusChanged || d.Status.Change != diff.Upgraded {
		t.Fatalf("unexpected diff: %+v", d)
	}
	if d.HasCommonVersions {
		t.Fatal("expected no common versions")
	}
	if len(d.Old) != 1 || d.Old[0].String != "1.0" {
		t.Fatalf("unexpected old versions: %+v", d.Old)
	}
	if len(d.New) != 1 || d.New[0].String != "1.1" {
		t.Fatalf("unexpected new versions: %+v", d.New)
	}
}

func TestPreReleaseDowngrade(t *testing.T) {
	old := paths(t, "foo-1.0.0")
	new_ := paths(t, "foo-1.0.0-pre")

	diffs := diff.Build(old, new_, nil, nil, nil)
	if len(diffs) != 1 {
		t.Fatalf("expected 1 diff, got %d", len(diffs))
	}
	if diffs[0].Status.Kind != diff.StatusChanged || diffs[0].Status.Change != diff.Downgraded {
		t.Fatalf("expected Changed(Downgraded), got %v", diffs[0].Status)
	}
}

func TestMixedUpgradeDowngrade(t *testing.T) {
	old := paths(t, "foo-1.0", "foo-5.0")
	new_ := paths(t, "foo-2.0", "foo-4.0")

	diffs := diff.Build(old, new_, nil, nil, nil)
	if len(diffs) != 1 {
		t.Fatalf("expected 1 diff, got %d", len(diffs))
	}
	if diffs[0].Status.Kind != diff.StatusChanged || diffs[0].Status.Change != diff.UpgradeDowngrade {
		t.Fatalf("expected Changed(UpgradeDowngrade), got %v", diffs[0].Status)
	}
}

func TestAddedAndRemoved(t *testing.T) {
	old := paths(t, "bar-1.0")
	new_ := paths(t, "baz-2.0")

	diffs := diff.Build(old, new_, nil, nil, nil)
	if len(diffs) != 2 {
		t.Fatalf("expected 2 diffs, got %d", len(diffs))
	}

	if diffs[0].Name != "baz" || diffs[0].Status.Kind != diff.StatusAdded {
		t.Fatalf("expected baz Added first, got %+v", diffs[0])
	}
	if diffs[1].Name != "bar" || diffs[1].Status.Kind != diff.StatusRemoved {
		t.Fatalf("expected bar Removed second, got %+v", diffs[1])
	}
}

func TestCommonWithDelta(t *testing.T) {
	old := paths(t, "foo-1.0", "foo-2.0")
	new_ := paths(t, "foo-2.0", "foo-3.0")

	diffs := diff.Build(old, new_, nil, nil, nil)
	if len(diffs) != 1 {
		t.Fatalf("expected 1 diff, got %d", len(diffs))
	}

	d := diffs[0]
	if d.Status.Kind != diff.StatusChanged || d.Status.Change != diff.Upgraded {
		t.Fatalf("expected Changed(Upgraded), got %v", d.Status)
	}
	if !d.HasCommonVersions {
		t.Fatal("expected has_common_versions")
	}
	if len(d.Old) != 1 || d.Old[0].String != "1.0" {
		t.Fatalf("unexpected old versions: %+v", d.Old)
	}
	if len(d.New) != 1 || d.New[0].String != "3.0" {
		t.Fatalf("unexpected new versions: %+v", d.New)
	}
}

func TestMultiplicity(t *testing.T) {
	old := paths(t, "foo-1.0", "foo-1.0", "foo-1.0")
	new_ := paths(t, "foo-2.0")

	diffs := diff.Build(old, new_, nil, nil, nil)
	if len(diffs) != 1 {
		t.Fatalf("expected 1 diff, got %d", len(diffs))
	}

	d := diffs[0]
	if d.Status.Kind != diff.StatusChanged || d.Status.Change != diff.Upgraded {
		t.Fatalf("expected Changed(Upgraded), got %v", d.Status)
	}
	if len(d.Old) != 1 || d.Old[0].String != "1.0" || d.Old[0].Multiplicity != 3 {
		t.Fatalf("unexpected old versions: %+v", d.Old)
	}
	if len(d.New) != 1 || d.New[0].String != "2.0" || d.New[0].Multiplicity != 1 {
		t.Fatalf("unexpected new versions: %+v", d.New)
	}
}

func TestEmptyOldEverythingAdded(t *testing.T) {
	new_ := paths(t, "foo-1.0", "bar-2.0")

	diffs := diff.Build(nil, new_, nil, nil, nil)
	if len(diffs) != 2 {
		t.Fatalf("expected 2 diffs, got %d", len(diffs))
	}
	for _, d := range diffs {
		if d.Status.Kind != diff.StatusAdded {
			t.Fatalf("expected all Added, got %+v", d)
		}
	}
}

func TestEmptyNewEverythingRemoved(t *testing.T) {
	old := paths(t, "foo-1.0", "bar-2.0")

	diffs := diff.Build(old, nil, nil, nil, nil)
	if len(diffs) != 2 {
		t.Fatalf("expected 2 diffs, got %d", len(diffs))
	}
	for _, d := range diffs {
		if d.Status.Kind != diff.StatusRemoved {
			t.Fatalf("expected all Removed, got %+v", d)
		}
	}
}

func TestIdenticalVersionProducesNoRecord(t *testing.T) {
	old := paths(t, "foo-1.0.0")
	new_ := paths(t, "foo-1.0.0")

	diffs := diff.Build(old, new_, nil, nil, nil)
	if len(diffs) != 0 {
		t.Fatalf("expected 0 diffs for an unchanged version, got %d: %+v", len(diffs), diffs)
	}
}

func TestSelectionStatus(t *testing.T) {
	oldDeps := paths(t, "foo-1.0", "bar-1.0")
	newDeps := paths(t, "foo-2.0", "bar-2.0")
	oldSys := paths(t, "foo-1.0")
	newSys := paths(t, "bar-2.0")

	diffs := diff.Build(oldDeps, newDeps, oldSys, newSys, nil)

	foo := findByName(t, diffs, "foo")
	if foo.Selection != diff.NewlyUnselected {
		t.Fatalf("expected foo to be NewlyUnselected, got %v", foo.Selection)
	}

	bar := findByName(t, diffs, "bar")
	if bar.Selection != diff.NewlySelected {
		t.Fatalf("expected bar to be NewlySelected, got %v", bar.Selection)
	}
}
