package pairing_test

import (
	"testing"

	"github.com/nix-community/nix-closure-diff/internal/pairing"
)

func TestLevenshteinKnownValues(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "hello", 5},
		{"12345", "12345", 0},
	}

	for _, tt := range tests {
		got := pairing.Levenshtein([]rune(tt.a), []rune(tt.b))
		if got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLevenshteinSymmetricReflexiveBounded(t *testing.T) {
	words := []string{"kitten", "sitting", "", "a", "nixos", "closure"}

	for _, a := range words {
		for _, b := range words {
			ab := pairing.Levenshtein([]rune(a), []rune(b))
			ba := pairing.Levenshtein([]rune(b), []rune(a))
			if ab != ba {
				t.Errorf("Levenshtein(%q,%q)=%d != Levenshtein(%q,%q)=%d", a, b, ab, b, a, ba)
			}

			maxLen := len(a)
			if len(b) > maxLen {
				maxLen = len(b)
			}
			if ab > maxLen {
				t.Errorf("Levenshtein(%q,%q)=%d exceeds max(len)=%d", a, b, ab, maxLen)
			}
		}

		if d := pairing.Levenshtein([]rune(a), []rune(a)); d != 0 {
			t.Errorf("Levenshtein(%q,%q) = %d, want 0", a, a, d)
		}
	}
}

func TestMatchPermutesInputs(t *testing.T) {
	old := []string{"1.0", "2.0", "3.0"}
	new := []string{"2.0", "4.0"}

	pairs := pairing.Match(old, new)

	var gotOld, gotNew []string
	for _, p := range pairs {
		switch p.Kind {
		case pairing.Left:
			gotOld = append(gotOld, p.Old)
		case pairing.Right:
			gotNew = append(gotNew, p.New)
		case pairing.Both:
			gotOld = append(gotOld, p.Old)
			gotNew = append(gotNew, p.New)
		}
	}

	assertSameMultiset(t, gotOld, old)
	assertSameMultiset(t, gotNew, new)
}

func TestMatchEmptySides(t *testing.T) {
	pairs := pairing.Match(nil, []string{"1.0", "2.0"})
	for _, p := range pairs {
		if p.Kind != pairing.Right {
			t.Errorf("expected all Right pairs for empty old side, got %v", p)
		}
	}

	pairs = pairing.Match([]string{"1.0"}, nil)
	for _, p := range pairs {
		if p.Kind != pairing.Left {
			t.Errorf("expected all Left pairs for empty new side, got %v", p)
		}
	}
}

func TestMatchPrefersShapePreservingPairing(t *testing.T) {
	// "1.2.0" should pair with "1.3.0" (one component differs) rather than
	// with "1.20" (character-level similarity but a different component
	// shape), because the cost unit is whole parsed components.
	pairs := pairing.Match([]string{"1.2.0", "1.20"}, []string{"1.3.0"})

	var matched string
	for _, p := range pairs {
		if p.Kind == pairing.Both {
			matched = p.Old
		}
	}

	if matched != "1.2.0" {
		t.Errorf("expected 1.2.0 to pair with 1.3.0, got match with %q", matched)
	}
}

func assertSameMultiset(t *testing.T, got, want []string) {
	t.Helper()

	gotCounts := map[string]int{}
	for _, s := range got {
		gotCounts[s]++
	}
	wantCounts := map[string]int{}
	for _, s := range want {
		wantCounts[s]++
	}

	for k, v := range wantCounts {
		if gotCounts[k] != v {
			t.Errorf("multiset mismatch for %q: got %d, want %d", k, gotCounts[k], v)
		}
	}
	for k, v := range gotCounts {
		if wantCounts[k] != v {
			t.Errorf("multiset mismatch for %q: got %d, want %d", k, v, wantCounts[k])
		}
	}
}
