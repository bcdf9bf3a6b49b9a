// Package storepath validates Nix store paths and parses their basenames
// into a package name and an optional version, per SPEC_FULL.md §4.1.
package storepath

import (
	"fmt"
	"regexp"
)

const (
	storeDirPrefix = "/nix/store/"
	// hashAndDashLen is the fixed length of "/nix/store/" plus the 32
	// character content hash plus the separating dash: positions 0..11 are
	// the prefix, and position 43 is the dash.
	hashAndDashLen = 44
)

// StorePath is a validated absolute path under /nix/store. The zero value
// is not valid; construct one with New.
type StorePath struct {
	path string
}

// New validates that p begins with "/nix/store/" and is long enough to
// contain a 32-character hash, returning a StorePath that borrows nothing
// and is safe to copy freely.
func New(p string) (StorePath, error) {
	if len(p) < hashAndDashLen || p[:len(storeDirPrefix)] != storeDirPrefix {
		return StorePath{}, fmt.Errorf("path %q must start with %s", p, storeDirPrefix)
	}
	if p[hashAndDashLen-1] != '-' {
		return StorePath{}, fmt.Errorf("path %q does not have the expected Nix store path shape", p)
	}
	return StorePath{path: p}, nil
}

// String returns the full store path.
func (s StorePath) String() string {
	return s.path
}

var nameVersionRegex = regexp.MustCompile(`^(.+?)(-([0-9].*?))?$`)

// NameAndVersion splits the basename following the hash-and-dash prefix
// into (name, version). version is the empty string if the remainder has
// no "-<digit>..." split point. Pure function of the path bytes: no I/O.
func (s StorePath) NameAndVersion() (name string, version string, err error) {
	rest := s.path[hashAndDashLen:]

	matches := nameVersionRegex.FindStringSubmatch(rest)
	if matches == nil {
		return "", "", fmt.Errorf("path %q does not match the expected Nix store path format", s.path)
	}

	name = matches[1]
	if name == "" {
		return "", "", fmt.Errorf("failed to extract a package name from path %q", s.path)
	}

	version = matches[3]
	return name, version, nil
}
