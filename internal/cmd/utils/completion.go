package cmdUtils

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nix-community/nix-closure-diff/internal/settings"
)

// PrepareCompletionSettings loads the same config file the running
// command would, since carapace invokes completion callbacks directly
// rather than through Cobra's normal PersistentPreRun.
func PrepareCompletionSettings() *settings.Settings {
	configLocation := os.Getenv("NIX_CLOSURE_DIFF_CONFIG")
	if configLocation == "" {
		configLocation = settings.DefaultConfigPath()
	}

	cfg, err := settings.ParseSettings(configLocation)
	if err != nil {
		return settings.NewSettings()
	}
	return cfg
}

// PathCompletions completes the two positional closure root arguments
// as ordinary filesystem paths: /nix/store paths, profile symlinks like
// /run/current-system, or arbitrary directories.
func PathCompletions(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) >= 2 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveDefault
}

// BackendOrderCompletions suggests the backend names not already listed
// in the in-progress --backend-order value, defaulting the suggestion
// order to the configured BackendOrder so the most relevant name tab
// completes first.
func BackendOrderCompletions(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg := PrepareCompletionSettings()

	already := make(map[string]struct{})
	prefix := ""
	if idx := strings.LastIndexByte(toComplete, ','); idx >= 0 {
		for _, b := range strings.Split(toComplete[:idx], ",") {
			already[b] = struct{}{}
		}
		prefix = toComplete[:idx+1]
	}

	order := cfg.BackendOrder
	if len(order) == 0 {
		order = settings.DefaultBackendOrder
	}

	var suggestions []string
	for _, b := range order {
		if _, used := already[b]; used {
			continue
		}
		suggestions = append(suggestions, prefix+b)
	}

	return suggestions, cobra.ShellCompDirectiveNoFileComp
}
