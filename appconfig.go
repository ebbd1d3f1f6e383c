package appframe

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/GoCodeAlone/appframe/feeders"
)

// Application modes. Modes cascade: development includes staging's and
// production's app lists in addition to its own, staging includes
// production's, and production stands alone.
const (
	ModeDevelopment = "development"
	ModeStaging     = "staging"
	ModeProduction  = "production"
	ModeCustom      = "custom"
)

// EnvPrefix is the prefix for environment variable overrides of the
// environment config map.
const EnvPrefix = "APPFRAME_"

// Project config file and settings/environment locations relative to the
// project base directory.
const (
	projectFileName  = "appframe.toml"
	settingsFileName = "settings.yaml"
	envDirName       = "env"
	configDirName    = "config"
)

// ProjectConfig is the project-level configuration read from
// appframe.toml.
type ProjectConfig struct {
	// Mode selects the app lists to activate. Defaults to development.
	Mode string `toml:"mode"`

	// CustomMode names the effective mode when Mode is "custom".
	CustomMode string `toml:"custom_mode"`

	// Apps maps a mode to the app names it activates.
	Apps map[string][]string `toml:"apps"`

	// Modules lists the module types every app contributes, in
	// initialization order of their hooks.
	Modules []string `toml:"modules"`

	// Dependencies maps a module type to the types it depends on.
	Dependencies map[string][]string `toml:"dependencies"`
}

// SettingsConfig is the settings-module configuration read from
// config/settings.yaml.
type SettingsConfig struct {
	// InstalledApps lists apps active in every mode, ahead of the
	// mode-selected lists.
	InstalledApps []string `yaml:"installed_apps"`

	// Extras maps a group name to component URIs
	// ("app.module.component") resolved after startup.
	Extras map[string][]string `yaml:"extras"`
}

// Config is the merged configuration the framework consumes: the project
// file, the settings module, and the per-mode environment map.
type Config struct {
	Project     ProjectConfig
	Settings    SettingsConfig
	Environment map[string]any

	// Mode is the effective mode after resolving "custom".
	Mode string
}

// Schema builds a Schema from the project config's modules and
// dependencies tables.
func (c *Config) Schema() *Schema {
	return &Schema{
		ModuleTypes:  slices.Clone(c.Project.Modules),
		Dependencies: c.Project.Dependencies,
	}
}

// LoadConfig loads the layered configuration for a project directory:
// the required project file, the optional settings file, and the optional
// per-mode environment file with APPFRAME_-prefixed variable overrides.
// An empty mode argument defers to the project file, which itself
// defaults to development.
func LoadConfig(baseDir, mode string) (*Config, error) {
	cfg := &Config{Environment: make(map[string]any)}

	projectPath := filepath.Join(baseDir, projectFileName)
	if err := feeders.NewTomlFeeder(projectPath).Feed(&cfg.Project); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProjectConfig, err)
	}

	if mode == "" {
		mode = cfg.Project.Mode
	}
	if mode == "" {
		mode = ModeDevelopment
	}
	effective, err := resolveMode(mode, cfg.Project.CustomMode)
	if err != nil {
		return nil, err
	}
	cfg.Mode = effective

	settingsPath := filepath.Join(baseDir, configDirName, settingsFileName)
	if _, err := os.Stat(settingsPath); err == nil {
		if err := feeders.NewYamlFeeder(settingsPath).Feed(&cfg.Settings); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}

	envPath := filepath.Join(baseDir, configDirName, envDirName, effective+".toml")
	if _, err := os.Stat(envPath); err == nil {
		if err := feeders.NewTomlFeeder(envPath).Feed(&cfg.Environment); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	if err := feeders.NewEnvFeeder(EnvPrefix).FeedMap(cfg.Environment); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return cfg, nil
}

// resolveMode validates the mode and resolves "custom" through the
// configured custom mode.
func resolveMode(mode, customMode string) (string, error) {
	if mode == ModeCustom {
		if customMode == "" {
			return "", ErrCustomModeUnset
		}
		mode = customMode
	}
	switch mode {
	case ModeDevelopment, ModeStaging, ModeProduction:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// InstalledApps combines the always-on app list with the mode-selected
// lists, de-duplicated while preserving the order of first appearance:
// always-on apps first, then mode lists from most specific to least
// specific (development, then staging, then production).
func (c *Config) InstalledApps() ([]string, error) {
	mode, err := resolveMode(orDefault(c.Mode, ModeDevelopment), c.Project.CustomMode)
	if err != nil {
		return nil, err
	}

	var modes []string
	switch mode {
	case ModeDevelopment:
		modes = []string{ModeDevelopment, ModeStaging, ModeProduction}
	case ModeStaging:
		modes = []string{ModeStaging, ModeProduction}
	case ModeProduction:
		modes = []string{ModeProduction}
	}

	seen := make(map[string]struct{})
	var apps []string
	appendApps := func(names []string) {
		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			apps = append(apps, name)
		}
	}

	appendApps(c.Settings.InstalledApps)
	for _, m := range modes {
		appendApps(c.Project.Apps[m])
	}
	return apps, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
