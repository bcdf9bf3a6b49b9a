package closure

import (
	"context"
	"errors"

	"github.com/nix-community/nix-closure-diff/internal/logger"
	"github.com/nix-community/nix-closure-diff/internal/storepath"
)

// CombinedBackend holds an ordered chain of backends and routes each
// query to the first healthy one, falling back to the next whenever a
// backend errors (C6). Errors are accumulated only when every backend in
// the chain fails.
type CombinedBackend struct {
	backends []Backend
	log      logger.Logger
}

// NewCombinedBackend builds the default chain described in SPEC_FULL.md
// §4.3 and §11: the primary read-only SQL handle, then an immutable-flag
// SQL handle (for when the primary reports "database is locked"), then
// the command-line fallback. forceCorrectness selects the eager SQL row
// discipline over the default lazy one.
func NewCombinedBackend(dbPath string, forceCorrectness bool, log logger.Logger) *CombinedBackend {
	return &CombinedBackend{
		backends: []Backend{
			NewSQLBackend(dbPath, forceCorrectness, log),
			NewSQLBackendImmutable(dbPath, forceCorrectness, log),
			NewCommandBackend(log),
		},
		log: log,
	}
}

// NewCombinedBackendWithOrder builds a chain from caller-supplied
// backends, in the given order, for tests and for a user-configured
// backend order (C11 BackendOrder setting).
func NewCombinedBackendWithOrder(backends []Backend, log logger.Logger) *CombinedBackend {
	return &CombinedBackend{backends: backends, log: log}
}

// Connect attempts every backend in order and succeeds if at least one
// connects. Errors from the rest are logged, not propagated, unless every
// backend fails to connect.
func (c *CombinedBackend) Connect(ctx context.Context) error {
	var errs []error
	ok := false

	for _, b := range c.backends {
		if err := b.Connect(ctx); err != nil {
			errs = append(errs, err)
			if c.log != nil {
				c.log.Debugf("backend failed to connect: %v", err)
			}
			continue
		}
		ok = true
	}

	if !ok {
		return wrapf(errors.Join(errs...), "no closure backend could connect")
	}
	return nil
}

func (c *CombinedBackend) Connected() bool {
	for _, b := range c.backends {
		if b.Connected() {
			return true
		}
	}
	return false
}

// Close is best-effort over every connected member.
func (c *CombinedBackend) Close() error {
	var errs []error
	for _, b := range c.backends {
		if !b.Connected() {
			continue
		}
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *CombinedBackend) QueryClosureSize(ctx context.Context, root storepath.StorePath) (int64, error) {
	var errs []error
	for _, b := range c.backends {
		if !b.Connected() {
			continue
		}
		size, err := b.QueryClosureSize(ctx, root)
		if err == nil {
			return size, nil
		}
		errs = append(errs, err)
		if c.log != nil {
			c.log.Debugf("backend failed to query closure size: %v", err)
		}
	}
	return 0, wrapf(errors.Join(errs...), "all closure backends failed to query closure size of %s", root.String())
}

func (c *CombinedBackend) QueryDependents(ctx context.Context, root storepath.StorePath) ([]storepath.StorePath, error) {
	var errs []error
	for _, b := range c.backends {
		if !b.Connected() {
			continue
		}
		paths, err := b.QueryDependents(ctx, root)
		if err == nil {
			return paths, nil
		}
		errs = append(errs, err)
		if c.log != nil {
			c.log.Debugf("backend failed to query dependents: %v", err)
		}
	}
	return nil, wrapf(errors.Join(errs...), "all closure backends failed to query dependents of %s", root.String())
}

func (c *CombinedBackend) QuerySystemDerivations(ctx context.Context, root storepath.StorePath) ([]storepath.StorePath, error) {
	var errs []error
	for _, b := range c.backends {
		if !b.Connected() {
			continue
		}
		paths, err := b.QuerySystemDerivations(ctx, root)
		if err == nil {
			return paths, nil
		}
		errs = append(errs, err)
		if c.log != nil {
			c.log.Debugf("backend failed to query system derivations: %v", err)
		}
	}
	return nil, wrapf(errors.Join(errs...), "all closure backends failed to query system derivations of %s", root.String())
}

var _ Backend = (*CombinedBackend)(nil)
