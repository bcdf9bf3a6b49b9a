// Package build exposes compile-time version information injected via
// -ldflags, for the -V/--version flag.
package build

import (
	"github.com/nix-community/nix-closure-diff/internal/build/vars"
)

func Version() string {
	return vars.Version
}

func GitRevision() string {
	return vars.GitRevision
}
