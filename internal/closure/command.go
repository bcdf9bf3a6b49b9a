package closure

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/nix-community/nix-closure-diff/internal/logger"
	"github.com/nix-community/nix-closure-diff/internal/storepath"
	"github.com/nix-community/nix-closure-diff/internal/utils"
)

// CommandBackend is the pure fallback of last resort: it shells out to the
// Nix CLI instead of reading the SQLite database directly (C5). No
// streaming, significantly slower, but works whenever `nix` is on PATH
// regardless of database lock contention.
type CommandBackend struct {
	log       logger.Logger
	connected atomic.Bool
}

func NewCommandBackend(log logger.Logger) *CommandBackend {
	return &CommandBackend{log: log}
}

func (c *CommandBackend) Connect(ctx context.Context) error {
	if _, err := exec.LookPath("nix-store"); err != nil {
		return wrapf(ErrSubprocessFailure, "nix-store is not on PATH")
	}
	if _, err := exec.LookPath("nix"); err != nil {
		return wrapf(ErrSubprocessFailure, "nix is not on PATH")
	}
	c.connected.Store(true)
	return nil
}

func (c *CommandBackend) Connected() bool {
	return c.connected.Load()
}

func (c *CommandBackend) Close() error {
	c.connected.Store(false)
	return nil
}

func (c *CommandBackend) QueryDependents(ctx context.Context, root storepath.StorePath) ([]storepath.StorePath, error) {
	lines, err := c.run(ctx, "nix-store", "--query", "--requisites", root.String())
	if err != nil {
		return nil, err
	}
	return parseStorePathLines(lines)
}

func (c *CommandBackend) QuerySystemDerivations(ctx context.Context, root storepath.StorePath) ([]storepath.StorePath, error) {
	lines, err := c.run(ctx, "nix-store", "--query", "--references", root.String()+"/sw")
	if err != nil {
		return nil, err
	}
	return parseStorePathLines(lines)
}

func (c *CommandBackend) QueryClosureSize(ctx context.Context, root storepath.StorePath) (int64, error) {
	lines, err := c.run(ctx, "nix", "path-info", "--closure-size", root.String()+"/sw")
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, wrapf(ErrSubprocessFailure, "nix path-info produced no output for %s", root.String())
	}

	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) == 0 {
		return 0, wrapf(ErrSubprocessFailure, "nix path-info produced an unparseable line for %s", root.String())
	}

	size, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil {
		return 0, wrapf(ErrSubprocessFailure, "parsing closure size for %s", root.String())
	}

	return size, nil
}

func (c *CommandBackend) run(ctx context.Context, name string, args ...string) ([]string, error) {
	if c.log != nil {
		c.log.CmdArray(append([]string{name}, args...))
	}

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if c.log != nil {
			c.log.Debugf("%s failed: %v: %s", utils.EscapeAndJoinArgs(append([]string{name}, args...)), err, stderr.String())
		}
		return nil, wrapf(ErrSubprocessFailure, "running %s", name)
	}

	text := strings.TrimRight(stdout.String(), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func parseStorePathLines(lines []string) ([]storepath.StorePath, error) {
	paths := make([]storepath.StorePath, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sp, err := storepath.New(line)
		if err != nil {
			return nil, wrapf(ErrMalformedRow, "parsing store path %q", line)
		}
		paths = append(paths, sp)
	}
	return paths, nil
}
