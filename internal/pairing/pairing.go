// Package pairing matches two multisets of version strings by minimum
// total edit distance (SPEC_FULL.md §4.4, component C7).
package pairing

import (
	"sort"

	"github.com/nix-community/nix-closure-diff/internal/version"
)

// Kind discriminates a Pair.
type Kind int

const (
	Left Kind = iota
	Right
	Both
)

// Pair is one element of a pairing between two version multisets: an
// unmatched element from the old side (Left), an unmatched element from
// the new side (Right), or a matched pair (Both).
type Pair struct {
	Kind Kind
	Old  string
	New  string
}

// Match pairs every element of old with every element of new such that
// the total edit distance of the matched pairs is minimum, every input
// element appears in exactly one output Pair, and ties are broken
// deterministically. Edit distance is computed over each version's parsed
// components (not raw characters), so "1.2.0" and "1.3.0" are closer than
// their character-level similarity alone would suggest.
func Match(old, new []string) []Pair {
	if len(old) == 0 && len(new) == 0 {
		return nil
	}
	if len(old) == 0 {
		return rightOnly(new)
	}
	if len(new) == 0 {
		return leftOnly(old)
	}
	if len(old) == 1 && len(new) == 1 && old[0] == new[0] {
		return []Pair{{Kind: Both, Old: old[0], New: new[0]}}
	}

	swapped := false
	a, b := old, new
	if len(a) > len(b) {
		a, b = b, a
		swapped = true
	}

	componentsA := make([][]version.Piece, len(a))
	componentsB := make([][]version.Piece, len(b))
	for i, s := range a {
		componentsA[i] = version.Components(s)
	}
	for i, s := range b {
		componentsB[i] = version.Components(s)
	}

	cost := make([][]int, len(a))
	for i := range cost {
		cost[i] = make([]int, len(b))
		for j := range cost[i] {
			cost[i][j] = Levenshtein(componentsA[i], componentsB[j])
		}
	}

	assignment := Hungarian(cost)

	matchedB := make([]bool, len(b))
	pairs := make([]Pair, 0, len(b))
	for i, j := range assignment {
		matchedB[j] = true
		if swapped {
			pairs = append(pairs, Pair{Kind: Both, Old: b[j], New: a[i]})
		} else {
			pairs = append(pairs, Pair{Kind: Both, Old: a[i], New: b[j]})
		}
	}

	var leftover []string
	for j, matched := range matchedB {
		if !matched {
			leftover = append(leftover, b[j])
		}
	}
	sort.Strings(leftover)

	for _, s := range leftover {
		if swapped {
			pairs = append(pairs, Pair{Kind: Left, Old: s})
		} else {
			pairs = append(pairs, Pair{Kind: Right, New: s})
		}
	}

	return pairs
}

func leftOnly(old []string) []Pair {
	pairs := make([]Pair, len(old))
	for i, s := range old {
		pairs[i] = Pair{Kind: Left, Old: s}
	}
	return pairs
}

func rightOnly(new []string) []Pair {
	pairs := make([]Pair, len(new))
	for i, s := range new {
		pairs[i] = Pair{Kind: Right, New: s}
	}
	return pairs
}
