// Package settings implements the layered TOML configuration for
// nix-closure-diff (C11), loaded through koanf the same way the teacher
// loads its own settings: a TOML parser over either a file or an
// in-memory byte slice, unmarshaled onto a struct of typed defaults.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// configDirName is the directory this program's settings live under,
// relative to the XDG config base.
const configDirName = "nix-closure-diff"

// DefaultConfigPath resolves $XDG_CONFIG_HOME/nix-closure-diff/config.toml,
// falling back to $HOME/.config when XDG_CONFIG_HOME is unset, per the XDG
// Base Directory spec. If the home directory can't be resolved either, it
// falls back to the fixed system path the teacher's own tool uses for its
// config.
func DefaultConfigPath() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, configDirName, "config.toml")
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", configDirName, "config.toml")
	}

	return filepath.Join("/etc", configDirName, "config.toml")
}

type Settings struct {
	Color            string   `koanf:"color"`
	ForceCorrectness bool     `koanf:"force_correctness"`
	BackendOrder     []string `koanf:"backend_order"`
	JSON             bool     `koanf:"json"`
}

const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

var ValidColorModes = []string{ColorAuto, ColorAlways, ColorNever}

const (
	BackendSQL          = "sql"
	BackendSQLImmutable = "sql-immutable"
	BackendCommand      = "command"
)

var ValidBackends = []string{BackendSQL, BackendSQLImmutable, BackendCommand}

// DefaultBackendOrder is the chain built by closure.NewCombinedBackend:
// the primary read-only SQL handle, the immutable-flag fallback for a
// locked database, then shelling out to the Nix CLI.
var DefaultBackendOrder = []string{BackendSQL, BackendSQLImmutable, BackendCommand}

type DescriptionEntry struct {
	Short   string
	Long    string
	Example any
}

var SettingsDocs = map[string]DescriptionEntry{
	"color": {
		Short: "When to use ANSI color in the report",
		Long:  "Controls colorized report output. `auto` colors only when stdout is a terminal and NO_COLOR is unset, `always` and `never` override that detection unconditionally.",
		Example: "auto",
	},
	"force_correctness": {
		Short: "Fail rather than skip malformed database rows",
		Long:  "When set, the SQL backends abort a query on the first malformed row instead of logging and skipping it. Slower, but guarantees the result reflects every row.",
	},
	"backend_order": {
		Short: "Order in which closure backends are tried",
		Long:  "List of `sql`, `sql-immutable`, and `command`. Each query goes to the first connected backend in this order and falls back to the next one on error. Unlisted backends are not tried.",
		Example: []string{"sql", "sql-immutable", "command"},
	},
	"json": {
		Short: "Emit the diff as a JSON report instead of the colorized text report",
	},
}

func NewSettings() *Settings {
	return &Settings{
		Color:            ColorAuto,
		ForceCorrectness: false,
		BackendOrder:     slices.Clone(DefaultBackendOrder),
		JSON:             false,
	}
}

func ParseSettings(location string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(location), toml.Parser()); err != nil {
		return nil, err
	}

	cfg := NewSettings()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func ParseSettingsFromString(input string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(input)), toml.Parser()); err != nil {
		return nil, err
	}

	cfg := NewSettings()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration and reports every error found; it
// does not mutate cfg, since unlike the teacher's aliases there is no
// obviously safe fallback value to substitute per field.
func (cfg *Settings) Validate() SettingsErrors {
	var errs []error

	if !slices.Contains(ValidColorModes, cfg.Color) {
		errs = append(errs, SettingsError{Field: "color", Message: fmt.Sprintf("must be one of %s", strings.Join(ValidColorModes, ", "))})
	}

	if len(cfg.BackendOrder) == 0 {
		errs = append(errs, SettingsError{Field: "backend_order", Message: "must list at least one backend"})
	}
	for _, b := range cfg.BackendOrder {
		if !slices.Contains(ValidBackends, b) {
			errs = append(errs, SettingsError{Field: "backend_order", Message: fmt.Sprintf("unknown backend %q, must be one of %s", b, strings.Join(ValidBackends, ", "))})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetValue applies a single dotted-key override, used by --set-style
// flags. Reused from the teacher's reflection-based field walk.
func (cfg *Settings) SetValue(key string, value string) error {
	fields := strings.Split(key, ".")
	current := reflect.ValueOf(cfg).Elem()

	for i, field := range fields {
		found := false
		for j := 0; j < current.Type().NumField(); j++ {
			fieldInfo := current.Type().Field(j)
			if fieldInfo.Tag.Get("koanf") == field {
				current = current.Field(j)
				found = true
				break
			}
		}

		if !found {
			return SettingsError{Field: field, Message: "setting not found"}
		}

		if i == len(fields)-1 {
			if !current.CanSet() {
				return SettingsError{Field: field, Message: "cannot change value of this setting dynamically"}
			}

			switch current.Kind() {
			case reflect.String:
				current.SetString(value)
			case reflect.Bool:
				boolVal, err := strconv.ParseBool(value)
				if err != nil {
					return SettingsError{Field: field, Message: fmt.Sprintf("invalid boolean value %q for field", value)}
				}
				current.SetBool(boolVal)
			case reflect.Slice:
				current.Set(reflect.ValueOf(strings.Split(value, ",")))
			default:
				return SettingsError{Field: field, Message: "unsupported field type"}
			}

			return nil
		}
	}

	return nil
}
