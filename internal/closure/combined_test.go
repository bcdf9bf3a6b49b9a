package closure_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nix-community/nix-closure-diff/internal/closure"
	"github.com/nix-community/nix-closure-diff/internal/logger"
	"github.com/nix-community/nix-closure-diff/internal/storepath"
)

type fakeBackend struct {
	connectErr error
	connected  bool
	sizeErr    error
	size       int64
	depsErr    error
	deps       []storepath.StorePath
}

func (f *fakeBackend) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeBackend) Connected() bool { return f.connected }
func (f *fakeBackend) Close() error    { return nil }

func (f *fakeBackend) QueryClosureSize(ctx context.Context, root storepath.StorePath) (int64, error) {
	if f.sizeErr != nil {
		return 0, f.sizeErr
	}
	return f.size, nil
}

func (f *fakeBackend) QueryDependents(ctx context.Context, root storepath.StorePath) ([]storepath.StorePath, error) {
	if f.depsErr != nil {
		return nil, f.depsErr
	}
	return f.deps, nil
}

func (f *fakeBackend) QuerySystemDerivations(ctx context.Context, root storepath.StorePath) ([]storepath.StorePath, error) {
	return f.deps, nil
}

var _ closure.Backend = (*fakeBackend)(nil)

func testRoot(t *testing.T) storepath.StorePath {
	t.Helper()
	sp, err := storepath.New("/nix/store/" + strings.Repeat("0", 32) + "-foo-1.0")
	if err != nil {
		t.Fatalf("building test root: %v", err)
	}
	return sp
}

func TestCombinedConnectSucceedsIfAnyBackendConnects(t *testing.T) {
	failing := &fakeBackend{connectErr: closure.ErrDatabaseUnavailable}
	working := &fakeBackend{}

	c := closure.NewCombinedBackendWithOrder([]closure.Backend{failing, working}, logger.NewNoOpLogger())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.Connected() {
		t.Fatal("expected Connected() to report true")
	}
}

func TestCombinedConnectFailsIfEveryBackendFails(t *testing.T) {
	a := &fakeBackend{connectErr: closure.ErrDatabaseUnavailable}
	b := &fakeBackend{connectErr: closure.ErrSubprocessFailure}

	c := closure.NewCombinedBackendWithOrder([]closure.Backend{a, b}, logger.NewNoOpLogger())
	err := c.Connect(context.Background())
	if err == nil {
		t.Fatal("expected Connect to fail when every backend fails")
	}
	if !errors.Is(err, closure.ErrDatabaseUnavailable) || !errors.Is(err, closure.ErrSubprocessFailure) {
		t.Fatalf("expected joined error to wrap both sentinels, got: %v", err)
	}
}

func TestCombinedQueryFallsBackToNextBackend(t *testing.T) {
	failing := &fakeBackend{sizeErr: closure.ErrDatabaseUnavailable}
	working := &fakeBackend{size: 4096}

	c := closure.NewCombinedBackendWithOrder([]closure.Backend{failing, working}, logger.NewNoOpLogger())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	size, err := c.QueryClosureSize(context.Background(), testRoot(t))
	if err != nil {
		t.Fatalf("QueryClosureSize: %v", err)
	}
	if size != 4096 {
		t.Fatalf("size = %d, want 4096", size)
	}
}

func TestCombinedQueryFailsWhenEveryConnectedBackendFails(t *testing.T) {
	a := &fakeBackend{sizeErr: closure.ErrDatabaseUnavailable}
	b := &fakeBackend{sizeErr: closure.ErrMalformedRow}

	c := closure.NewCombinedBackendWithOrder([]closure.Backend{a, b}, logger.NewNoOpLogger())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := c.QueryClosureSize(context.Background(), testRoot(t))
	if err == nil {
		t.Fatal("expected an error when every connected backend fails the query")
	}
}

func TestCombinedSkipsDisconnectedBackends(t *testing.T) {
	unreachable := &fakeBackend{connectErr: closure.ErrSubprocessFailure, size: 1}
	working := &fakeBackend{size: 2048}

	c := closure.NewCombinedBackendWithOrder([]closure.Backend{unreachable, working}, logger.NewNoOpLogger())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	size, err := c.QueryClosureSize(context.Background(), testRoot(t))
	if err != nil {
		t.Fatalf("QueryClosureSize: %v", err)
	}
	if size != 2048 {
		t.Fatalf("size = %d, want 2048 (from the only connected backend)", size)
	}
}
