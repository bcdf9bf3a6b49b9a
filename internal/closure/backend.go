// Package closure implements the read-only, fallback-chained accessor
// over Nix store metadata described in SPEC_FULL.md §4.3 (components
// C3-C6): the transitive reference set of a root path, the directly
// selected "system" package set, and the total NAR size of a closure.
package closure

import (
	"context"
	"errors"
	"fmt"

	"github.com/nix-community/nix-closure-diff/internal/storepath"
)

// Backend abstracts read-only queries over a Nix closure (C3). All
// operations are idempotent with respect to Connect/Close.
type Backend interface {
	Connect(ctx context.Context) error
	Connected() bool
	Close() error

	// QueryClosureSize returns the sum of narSize over the transitive
	// reference set of root.
	QueryClosureSize(ctx context.Context, root storepath.StorePath) (int64, error)

	// QueryDependents returns every store path reachable from root by the
	// Refs relation (root included).
	QueryDependents(ctx context.Context, root storepath.StorePath) ([]storepath.StorePath, error)

	// QuerySystemDerivations returns the packages directly selected into
	// root's system-path.
	QuerySystemDerivations(ctx context.Context, root storepath.StorePath) ([]storepath.StorePath, error)
}

// Error kinds from SPEC_FULL.md §7. DatabaseUnavailable and
// SubprocessFailure are equivalent for fallback purposes: the Combined
// backend (C6) treats either as "try the next backend".
var (
	ErrDatabaseUnavailable = errors.New("closure: database unavailable")
	ErrMalformedRow        = errors.New("closure: malformed row")
	ErrSubprocessFailure   = errors.New("closure: subprocess failure")
)

// wrapf annotates err with a message while preserving it for errors.Is /
// errors.As against the sentinels above.
func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}
