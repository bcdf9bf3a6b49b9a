// Command build generates the settings reference documentation for
// nix-closure-diff from the live Settings struct, so the docs can never
// drift from the fields koanf actually understands (C15).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/nix-community/nix-closure-diff/internal/settings"
)

func main() {
	var outputPath string

	rootCmd := &cobra.Command{
		Use:          "build",
		Short:        "Generate Markdown documentation for settings",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("generating settings documentation")
			return generateSettingsDocMarkdown(outputPath)
		},
	}
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", filepath.Join("doc", "settings.md"), "Where to write the generated Markdown")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func generateSettingsDocMarkdown(filename string) error {
	var sb strings.Builder

	defaults := *settings.NewSettings()

	sb.WriteString("# Settings\n\n")
	writeSettingsDoc(reflect.TypeFor[settings.Settings](), reflect.ValueOf(defaults), "", &sb)

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return os.WriteFile(filename, []byte(sb.String()), 0o644)
}

type configKey struct {
	key          string
	desc         string
	exampleValue any
	defaultValue any
}

func writeSettingsDoc(t reflect.Type, v reflect.Value, path string, sb *strings.Builder) {
	var items []configKey

	for i := range t.NumField() {
		field := t.Field(i)
		koanfKey := field.Tag.Get("koanf")
		if koanfKey == "" {
			continue
		}

		fullKey := path + koanfKey
		descriptions, exists := settings.SettingsDocs[fullKey]
		if !exists {
			panic("missing description for " + fullKey)
		}

		desc := descriptions.Long
		if desc == "" {
			desc = descriptions.Short
		}

		items = append(items, configKey{fullKey, desc, descriptions.Example, v.Field(i).Interface()})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })

	for _, item := range items {
		writeItem(sb, item)
	}
}

func writeItem(sb *strings.Builder, item configKey) {
	fmt.Fprintf(sb, "## `%s`\n\n%s\n\n", item.key, item.desc)

	if item.exampleValue != nil {
		exampleToml, err := toml.Marshal(item.exampleValue)
		if err != nil {
			panic(fmt.Sprintf("failed to marshal TOML example: %v", err))
		}
		fmt.Fprintf(sb, "**Example:** `%s`\n\n", strings.TrimSpace(string(exampleToml)))
	}

	defaultToml, err := toml.Marshal(item.defaultValue)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal TOML default: %v", err))
	}
	fmt.Fprintf(sb, "**Default:** `%s`\n\n", strings.TrimSpace(string(defaultToml)))
}
