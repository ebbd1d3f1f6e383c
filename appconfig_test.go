package appframe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFiles(t *testing.T, baseDir, project, settings, envName, env string) {
	t.Helper()
	if project != "" {
		require.NoError(t, os.WriteFile(filepath.Join(baseDir, "appframe.toml"), []byte(project), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(baseDir, "config", "env"), 0o755))
	if settings != "" {
		require.NoError(t, os.WriteFile(filepath.Join(baseDir, "config", "settings.yaml"), []byte(settings), 0o644))
	}
	if env != "" {
		require.NoError(t, os.WriteFile(filepath.Join(baseDir, "config", "env", envName+".toml"), []byte(env), 0o644))
	}
}

const fullProject = `mode = "development"
modules = ["settings", "models", "views"]

[apps]
development = ["debugapp", "blog"]
staging = ["metrics"]
production = ["blog", "users"]

[dependencies]
models = ["settings"]
views = ["models"]
`

func TestLoadConfig(t *testing.T) {
	t.Run("loads all layers", func(t *testing.T) {
		baseDir := t.TempDir()
		writeConfigFiles(t, baseDir, fullProject,
			"installed_apps: [core]\n",
			"development", "debug = true\nworkers = 4\n")

		cfg, err := LoadConfig(baseDir, "")
		require.NoError(t, err)
		assert.Equal(t, ModeDevelopment, cfg.Mode)
		assert.Equal(t, []string{"settings", "models", "views"}, cfg.Project.Modules)
		assert.Equal(t, []string{"core"}, cfg.Settings.InstalledApps)
		assert.Equal(t, true, cfg.Environment["debug"])
		assert.Equal(t, int64(4), cfg.Environment["workers"])
	})

	t.Run("missing project file fails", func(t *testing.T) {
		baseDir := t.TempDir()
		_, err := LoadConfig(baseDir, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProjectConfig)
	})

	t.Run("settings and env files are optional", func(t *testing.T) {
		baseDir := t.TempDir()
		writeConfigFiles(t, baseDir, fullProject, "", "", "")
		cfg, err := LoadConfig(baseDir, "")
		require.NoError(t, err)
		assert.Empty(t, cfg.Settings.InstalledApps)
		assert.Empty(t, cfg.Environment)
	})

	t.Run("mode argument overrides project file", func(t *testing.T) {
		baseDir := t.TempDir()
		writeConfigFiles(t, baseDir, fullProject, "", "", "")
		cfg, err := LoadConfig(baseDir, ModeProduction)
		require.NoError(t, err)
		assert.Equal(t, ModeProduction, cfg.Mode)
	})

	t.Run("unknown mode fails", func(t *testing.T) {
		baseDir := t.TempDir()
		writeConfigFiles(t, baseDir, fullProject, "", "", "")
		_, err := LoadConfig(baseDir, "turbo")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownMode)
	})

	t.Run("custom mode resolves through custom_mode", func(t *testing.T) {
		baseDir := t.TempDir()
		project := "mode = \"custom\"\ncustom_mode = \"staging\"\nmodules = [\"models\"]\n"
		writeConfigFiles(t, baseDir, project, "", "", "")
		cfg, err := LoadConfig(baseDir, "")
		require.NoError(t, err)
		assert.Equal(t, ModeStaging, cfg.Mode)
	})

	t.Run("custom mode without custom_mode fails", func(t *testing.T) {
		baseDir := t.TempDir()
		project := "mode = \"custom\"\nmodules = [\"models\"]\n"
		writeConfigFiles(t, baseDir, project, "", "", "")
		_, err := LoadConfig(baseDir, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCustomModeUnset)
	})

	t.Run("environment variables override env file entries", func(t *testing.T) {
		baseDir := t.TempDir()
		writeConfigFiles(t, baseDir, fullProject, "", "development", "workers = 4\n")
		t.Setenv("APPFRAME_WORKERS", "16")

		cfg, err := LoadConfig(baseDir, "")
		require.NoError(t, err)
		assert.Equal(t, int64(16), cfg.Environment["workers"])
	})
}

func TestInstalledAppsCascade(t *testing.T) {
	baseConfig := func(mode string) *Config {
		return &Config{
			Project: ProjectConfig{
				Apps: map[string][]string{
					ModeDevelopment: {"debugapp", "blog"},
					ModeStaging:     {"metrics"},
					ModeProduction:  {"blog", "users"},
				},
			},
			Mode: mode,
		}
	}

	t.Run("development includes every layer", func(t *testing.T) {
		apps, err := baseConfig(ModeDevelopment).InstalledApps()
		require.NoError(t, err)
		assert.Equal(t, []string{"debugapp", "blog", "metrics", "users"}, apps)
	})

	t.Run("staging includes production", func(t *testing.T) {
		apps, err := baseConfig(ModeStaging).InstalledApps()
		require.NoError(t, err)
		assert.Equal(t, []string{"metrics", "blog", "users"}, apps)
	})

	t.Run("production stands alone", func(t *testing.T) {
		apps, err := baseConfig(ModeProduction).InstalledApps()
		require.NoError(t, err)
		assert.Equal(t, []string{"blog", "users"}, apps)
	})

	t.Run("always-on apps come first", func(t *testing.T) {
		cfg := baseConfig(ModeProduction)
		cfg.Settings.InstalledApps = []string{"core", "blog"}
		apps, err := cfg.InstalledApps()
		require.NoError(t, err)
		assert.Equal(t, []string{"core", "blog", "users"}, apps)
	})

	t.Run("empty mode defaults to development", func(t *testing.T) {
		apps, err := baseConfig("").InstalledApps()
		require.NoError(t, err)
		assert.Equal(t, []string{"debugapp", "blog", "metrics", "users"}, apps)
	})
}

func TestConfigSchema(t *testing.T) {
	cfg := &Config{
		Project: ProjectConfig{
			Modules:      []string{"models", "views"},
			Dependencies: map[string][]string{"views": {"models"}},
		},
	}
	schema := cfg.Schema()
	require.NoError(t, schema.Validate())
	assert.Equal(t, []string{"models", "views"}, schema.ModuleTypes)
	assert.Equal(t, []string{"models"}, schema.Dependencies["views"])
}
