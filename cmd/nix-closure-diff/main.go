// Command nix-closure-diff compares the transitive package closures of
// two Nix store paths or profile symlinks and reports which packages
// were added, removed, upgraded, or downgraded (C10).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/carapace-sh/carapace"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nix-community/nix-closure-diff/internal/build"
	"github.com/nix-community/nix-closure-diff/internal/closure"
	cmdUtils "github.com/nix-community/nix-closure-diff/internal/cmd/utils"
	"github.com/nix-community/nix-closure-diff/internal/diff"
	"github.com/nix-community/nix-closure-diff/internal/jsonreport"
	"github.com/nix-community/nix-closure-diff/internal/logger"
	"github.com/nix-community/nix-closure-diff/internal/render"
	"github.com/nix-community/nix-closure-diff/internal/settings"
	"github.com/nix-community/nix-closure-diff/internal/storepath"
)

const nixDatabasePath = "/nix/var/nix/db/db.sqlite"

type options struct {
	colorMode        string
	forceCorrectness bool
	backendOrder     []string
	jsonOutput       bool
	verbosity        int
	quiet            bool
	configValues     map[string]string
}

func buildBackendChain(cfg *settings.Settings, opts *options, log logger.Logger) *closure.CombinedBackend {
	order := cfg.BackendOrder
	if len(opts.backendOrder) > 0 {
		order = opts.backendOrder
	}

	forceCorrectness := opts.forceCorrectness || cfg.ForceCorrectness

	backends := make([]closure.Backend, 0, len(order))
	for _, name := range order {
		switch name {
		case settings.BackendSQL:
			backends = append(backends, closure.NewSQLBackend(nixDatabasePath, forceCorrectness, log))
		case settings.BackendSQLImmutable:
			backends = append(backends, closure.NewSQLBackendImmutable(nixDatabasePath, forceCorrectness, log))
		case settings.BackendCommand:
			backends = append(backends, closure.NewCommandBackend(log))
		}
	}
	if len(backends) == 0 {
		return closure.NewCombinedBackend(nixDatabasePath, forceCorrectness, log)
	}

	return closure.NewCombinedBackendWithOrder(backends, log)
}

func resolveClosureRoot(path string) (storepath.StorePath, error) {
	if _, err := os.Stat(path); err != nil {
		return storepath.StorePath{}, fmt.Errorf("path %q does not exist: %w", path, err)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return storepath.StorePath{}, fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	sp, err := storepath.New(resolved)
	if err != nil {
		return storepath.StorePath{}, fmt.Errorf("%q is not a Nix store path: %w", path, err)
	}
	return sp, nil
}

type sizeResult struct {
	old, new int64
	err      error
}

func computeSizes(ctx context.Context, cfg *settings.Settings, opts *options, log logger.Logger, oldRoot, newRoot storepath.StorePath) sizeResult {
	backend := buildBackendChain(cfg, opts, log)
	if err := backend.Connect(ctx); err != nil {
		return sizeResult{err: err}
	}
	defer backend.Close()

	oldSize, err := backend.QueryClosureSize(ctx, oldRoot)
	if err != nil {
		return sizeResult{err: fmt.Errorf("querying old closure size: %w", err)}
	}

	newSize, err := backend.QueryClosureSize(ctx, newRoot)
	if err != nil {
		return sizeResult{err: fmt.Errorf("querying new closure size: %w", err)}
	}

	return sizeResult{old: oldSize, new: newSize}
}

func run(cmd *cobra.Command, args []string, opts *options, log logger.Logger, cfg *settings.Settings) error {
	oldRoot, err := resolveClosureRoot(args[0])
	if err != nil {
		return err
	}
	newRoot, err := resolveClosureRoot(args[1])
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var sizes sizeResult
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sizes = computeSizes(ctx, cfg, opts, log, oldRoot, newRoot)
	}()

	backend := buildBackendChain(cfg, opts, log)
	if err := backend.Connect(ctx); err != nil {
		wg.Wait()
		return fmt.Errorf("connecting to closure backend: %w", err)
	}
	defer backend.Close()

	oldDependents, err := backend.QueryDependents(ctx, oldRoot)
	if err != nil {
		wg.Wait()
		return fmt.Errorf("querying dependents of %q: %w", args[0], err)
	}
	newDependents, err := backend.QueryDependents(ctx, newRoot)
	if err != nil {
		wg.Wait()
		return fmt.Errorf("querying dependents of %q: %w", args[1], err)
	}
	oldSystem, err := backend.QuerySystemDerivations(ctx, oldRoot)
	if err != nil {
		log.Debugf("failed to query system derivations of %q: %v", args[0], err)
	}
	newSystem, err := backend.QuerySystemDerivations(ctx, newRoot)
	if err != nil {
		log.Debugf("failed to query system derivations of %q: %v", args[1], err)
	}

	diffs := diff.Build(oldDependents, newDependents, oldSystem, newSystem, log)

	if opts.jsonOutput || cfg.JSON {
		wg.Wait()
		if sizes.err != nil {
			return fmt.Errorf("computing closure sizes: %w", sizes.err)
		}
		report := jsonreport.Build(diffs, sizes.old, sizes.new)
		return jsonreport.Write(os.Stdout, report)
	}

	boldArrows := color.New(color.Bold)
	fmt.Printf("%s %s\n", boldArrows.Sprint("<<<"), args[0])
	fmt.Printf("%s %s\n", boldArrows.Sprint(">>>"), args[1])
	fmt.Println()

	wroteAny := render.Render(os.Stdout, diffs)

	wg.Wait()
	if sizes.err != nil {
		return fmt.Errorf("computing closure sizes: %w", sizes.err)
	}

	if wroteAny {
		fmt.Println()
	}
	render.RenderSizeSummary(os.Stdout, sizes.old, sizes.new)

	return nil
}

// applyColorMode resolves the final color.NoColor setting. Precedence,
// highest first: the --color flag (or its config equivalent), then
// NO_COLOR (any value disables unconditionally), then CLICOLOR_FORCE (any
// non-zero value forces color on), then CLICOLOR=0 (disables), then
// whatever fatih/color already detected from the terminal.
func applyColorMode(opts *options, cfg *settings.Settings, log logger.Logger) {
	mode := cfg.Color
	if opts.colorMode != "" {
		mode = opts.colorMode
	}

	switch {
	case mode == settings.ColorAlways:
		color.NoColor = false
	case mode == settings.ColorNever:
		color.NoColor = true
	case os.Getenv("NO_COLOR") != "":
		color.NoColor = true
	case clicolorForced():
		color.NoColor = false
	case os.Getenv("CLICOLOR") == "0":
		color.NoColor = true
	}

	if cl, ok := log.(*logger.ConsoleLogger); ok {
		cl.RefreshColorPrefixes()
	}
}

// clicolorForced reports whether CLICOLOR_FORCE is set to a non-zero
// value, which forces color output even when stdout isn't a terminal.
func clicolorForced() bool {
	v := os.Getenv("CLICOLOR_FORCE")
	return v != "" && v != "0"
}

func verbosityLevel(opts *options) logger.LogLevel {
	if opts.quiet {
		return logger.LogLevelError
	}
	switch {
	case opts.verbosity >= 2:
		return logger.LogLevelDebug
	case opts.verbosity == 1:
		return logger.LogLevelInfo
	default:
		return logger.LogLevelWarn
	}
}

func mainCommand() *cobra.Command {
	opts := &options{}
	log := logger.NewConsoleLogger()

	cmd := &cobra.Command{
		Use:                        "nix-closure-diff <old_path> <new_path>",
		Short:                      "Diff the package closures of two Nix store paths",
		Version:                    fmt.Sprintf("%s (%s)", build.Version(), build.GitRevision()),
		Args:                       cobra.ExactArgs(2),
		SilenceUsage:               true,
		SuggestionsMinimumDistance: 1,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log.SetLogLevel(verbosityLevel(opts))

			configLocation := os.Getenv("NIX_CLOSURE_DIFF_CONFIG")
			if configLocation == "" {
				configLocation = settings.DefaultConfigPath()
			}

			cfg, err := settings.ParseSettings(configLocation)
			if err != nil {
				log.Debugf("no usable config at %q, using defaults: %v", configLocation, err)
				cfg = settings.NewSettings()
			}

			for key, value := range opts.configValues {
				if err := cfg.SetValue(key, value); err != nil {
					return fmt.Errorf("failed to set %v: %w", key, err)
				}
			}

			for _, verr := range cfg.Validate() {
				log.Warn(verr.Error())
			}

			applyColorMode(opts, cfg, log)

			if err := run(cmd, args, opts, log, cfg); err != nil {
				log.Error(err)
				return cmdUtils.CommandErrorHandler(err)
			}
			return nil
		},
	}

	cmd.SetContext(context.Background())

	boldRed := color.New(color.FgRed).Add(color.Bold)
	cmd.SetErrPrefix(boldRed.Sprint("error:"))

	cmd.Flags().StringVar(&opts.colorMode, "color", "", "When to color output: auto, always, never")
	cmd.Flags().BoolVar(&opts.forceCorrectness, "force-correctness", false, "Fail rather than skip malformed database rows")
	cmd.Flags().StringSliceVar(&opts.backendOrder, "backend-order", nil, "Order in which closure backends are tried")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Emit a JSON report instead of the colorized text report")
	cmd.Flags().CountVarP(&opts.verbosity, "verbose", "v", "Increase log verbosity (-v, -vv, -vvv)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only log errors")
	cmd.Flags().BoolP("version", "V", false, "Display version information")
	cmd.Flags().StringToStringVar(&opts.configValues, "set", map[string]string{}, "Override a configuration `key=value` for this run")

	cmd.ValidArgsFunction = cmdUtils.PathCompletions

	_ = cmd.RegisterFlagCompletionFunc("color", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return settings.ValidColorModes, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("backend-order", cmdUtils.BackendOrderCompletions)

	carapace.Gen(cmd)

	return cmd
}

func main() {
	if err := mainCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
