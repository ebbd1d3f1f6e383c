package appframe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blogUsersSchema() *Schema {
	return &Schema{
		ModuleTypes:  []string{"models", "views"},
		Dependencies: map[string][]string{"views": {"models"}},
	}
}

// componentResolver builds modules for the given apps where each models
// module contributes one component named after the app.
func componentResolver(t *testing.T, apps ...string) MapResolver {
	t.Helper()
	resolver := MapResolver{}
	for _, app := range apps {
		models := NewAppModule(app + ".models")
		require.NoError(t, models.AddComponent(NewComponent("models", "Entry", app+"-entry")))
		resolver.Add(models)
		resolver.Add(NewAppModule(app + ".views"))
	}
	return resolver
}

func TestNewFramework(t *testing.T) {
	t.Run("requires a resolver", func(t *testing.T) {
		_, err := NewFramework(WithSchema(blogUsersSchema()))
		assert.ErrorIs(t, err, ErrResolverNil)
	})

	t.Run("requires a schema or config source", func(t *testing.T) {
		_, err := NewFramework(WithResolver(MapResolver{}))
		assert.ErrorIs(t, err, ErrSchemaNil)
	})

	t.Run("rejects invalid schema", func(t *testing.T) {
		_, err := NewFramework(
			WithResolver(MapResolver{}),
			WithSchema(&Schema{}),
		)
		assert.ErrorIs(t, err, ErrSchemaNoModuleTypes)
	})

	t.Run("rejects nil logger", func(t *testing.T) {
		_, err := NewFramework(
			WithResolver(MapResolver{}),
			WithSchema(blogUsersSchema()),
			WithLogger(nil),
		)
		assert.ErrorIs(t, err, ErrLoggerNil)
	})

	t.Run("new framework is created", func(t *testing.T) {
		fw, err := NewFramework(
			WithResolver(componentResolver(t, "blog")),
			WithSchema(blogUsersSchema()),
			WithApps("blog"),
			WithPatternHooks(NewPatternHookRegistry()),
		)
		require.NoError(t, err)
		assert.Equal(t, StateCreated, fw.State())
	})
}

func TestFrameworkLifecycle(t *testing.T) {
	newFramework := func(t *testing.T, apps ...string) *Framework {
		fw, err := NewFramework(
			WithResolver(componentResolver(t, apps...)),
			WithSchema(blogUsersSchema()),
			WithApps(apps...),
			WithPatternHooks(NewPatternHookRegistry()),
		)
		require.NoError(t, err)
		return fw
	}

	t.Run("startup reaches running", func(t *testing.T) {
		fw := newFramework(t, "blog", "users")
		require.NoError(t, fw.Startup())
		assert.Equal(t, StateRunning, fw.State())
		assert.Equal(t, []string{"blog", "users"}, fw.InstalledApps())
	})

	t.Run("startup twice fails", func(t *testing.T) {
		fw := newFramework(t, "blog")
		require.NoError(t, fw.Startup())
		err := fw.Startup()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFrameworkState)
	})

	t.Run("shutdown reaches stopped and is idempotent", func(t *testing.T) {
		fw := newFramework(t, "blog")
		require.NoError(t, fw.Startup())
		require.NoError(t, fw.Shutdown())
		assert.Equal(t, StateStopped, fw.State())
		assert.NoError(t, fw.Shutdown())
	})

	t.Run("shutdown before startup fails", func(t *testing.T) {
		fw := newFramework(t, "blog")
		err := fw.Shutdown()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFrameworkState)
	})

	t.Run("failed startup leaves framework stopped", func(t *testing.T) {
		resolver := componentResolver(t, "blog")
		boom := errors.New("boom")
		resolver["blog.models"].OnStartup = func() error { return boom }

		fw, err := NewFramework(
			WithResolver(resolver),
			WithSchema(blogUsersSchema()),
			WithApps("blog"),
			WithPatternHooks(NewPatternHookRegistry()),
		)
		require.NoError(t, err)

		err = fw.Startup()
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, StateStopped, fw.State())
	})
}

func TestFrameworkComponentIndex(t *testing.T) {
	fw, err := NewFramework(
		WithResolver(componentResolver(t, "blog", "users")),
		WithSchema(blogUsersSchema()),
		WithApps("blog", "users"),
		WithPatternHooks(NewPatternHookRegistry()),
	)
	require.NoError(t, err)
	require.NoError(t, fw.Startup())

	t.Run("indexed by type and qualified name", func(t *testing.T) {
		c, found := fw.GetComponent("models", "blog.Entry")
		require.True(t, found)
		assert.Equal(t, "blog-entry", c.Payload)

		c, found = fw.GetComponent("models", "users.Entry")
		require.True(t, found)
		assert.Equal(t, "users-entry", c.Payload)
	})

	t.Run("absence is a boolean, not an error", func(t *testing.T) {
		_, found := fw.GetComponent("models", "shop.Entry")
		assert.False(t, found)
		_, found = fw.GetComponent("widgets", "blog.Entry")
		assert.False(t, found)
	})
}

func TestFrameworkSkipsForeignTypeComponents(t *testing.T) {
	resolver := componentResolver(t, "blog")
	// A views-typed component attached to a models module is not indexed.
	require.NoError(t, resolver["blog.models"].AddComponent(NewComponent("views", "Stray", "stray")))

	fw, err := NewFramework(
		WithResolver(resolver),
		WithSchema(blogUsersSchema()),
		WithApps("blog"),
		WithPatternHooks(NewPatternHookRegistry()),
	)
	require.NoError(t, err)
	require.NoError(t, fw.Startup())

	_, found := fw.GetComponent("views", "blog.Stray")
	assert.False(t, found)
}

func TestFrameworkSchemaHooks(t *testing.T) {
	var startupComponents []Component
	var fired []string
	schema := blogUsersSchema()
	schema.Hooks = map[string]SchemaHooks{
		"models": {
			OnStartup: func(components []Component) error {
				startupComponents = components
				fired = append(fired, "start models")
				return nil
			},
			OnShutdown: func([]Component) error {
				fired = append(fired, "stop models")
				return nil
			},
		},
		"views": {
			OnStartup:  func([]Component) error { fired = append(fired, "start views"); return nil },
			OnShutdown: func([]Component) error { fired = append(fired, "stop views"); return nil },
		},
	}

	fw, err := NewFramework(
		WithResolver(componentResolver(t, "blog", "users")),
		WithSchema(schema),
		WithApps("blog", "users"),
		WithPatternHooks(NewPatternHookRegistry()),
	)
	require.NoError(t, err)
	require.NoError(t, fw.Startup())

	// Startup hooks in declaration order with aggregated components.
	assert.Equal(t, []string{"start models", "start views"}, fired)
	require.Len(t, startupComponents, 2)
	assert.Equal(t, "blog-entry", startupComponents[0].Payload)
	assert.Equal(t, "users-entry", startupComponents[1].Payload)

	fired = nil
	require.NoError(t, fw.Shutdown())
	assert.Equal(t, []string{"stop views", "stop models"}, fired)
}

func TestFrameworkShutdownAggregation(t *testing.T) {
	resolver := componentResolver(t, "blog")
	moduleBoom := errors.New("module boom")
	resolver["blog.views"].OnShutdown = func() error { return moduleBoom }

	hookBoom := errors.New("hook boom")
	schema := blogUsersSchema()
	schema.Hooks = map[string]SchemaHooks{
		"models": {OnShutdown: func([]Component) error { return hookBoom }},
	}

	fw, err := NewFramework(
		WithResolver(resolver),
		WithSchema(schema),
		WithApps("blog"),
		WithPatternHooks(NewPatternHookRegistry()),
	)
	require.NoError(t, err)
	require.NoError(t, fw.Startup())

	err = fw.Shutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShutdown)
	assert.ErrorIs(t, err, moduleBoom)
	assert.ErrorIs(t, err, hookBoom)
	assert.Equal(t, StateStopped, fw.State())
}

func TestFrameworkEvents(t *testing.T) {
	var types []string
	fw, err := NewFramework(
		WithResolver(componentResolver(t, "blog")),
		WithSchema(blogUsersSchema()),
		WithApps("blog"),
		WithPatternHooks(NewPatternHookRegistry()),
		WithObserver(func(_ context.Context, event cloudevents.Event) error {
			types = append(types, event.Type())
			return nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, fw.Startup())
	require.NoError(t, fw.Shutdown())

	assert.Contains(t, types, EventTypeModuleRegistered)
	assert.Contains(t, types, EventTypeModuleStarted)
	assert.Contains(t, types, EventTypeFrameworkStarted)
	assert.Contains(t, types, EventTypeFrameworkStopped)
	assert.Contains(t, types, EventTypeModuleStopped)
}

func TestFrameworkFromProjectConfig(t *testing.T) {
	baseDir := t.TempDir()
	writeProjectFixture(t, baseDir)

	fw, err := NewFramework(
		WithResolver(componentResolver(t, "blog", "users")),
		WithBaseDir(baseDir),
		WithPatternHooks(NewPatternHookRegistry()),
	)
	require.NoError(t, err)
	require.NoError(t, fw.Startup())

	assert.Equal(t, StateRunning, fw.State())
	assert.Equal(t, []string{"blog", "users"}, fw.InstalledApps())
	require.NotNil(t, fw.Config())
	assert.Equal(t, ModeDevelopment, fw.Config().Mode)

	_, found := fw.GetComponent("models", "blog.Entry")
	assert.True(t, found)
}

func TestFrameworkExtras(t *testing.T) {
	baseDir := t.TempDir()
	writeProjectFixture(t, baseDir)
	settings := "installed_apps: [blog]\nextras:\n  entries:\n    - blog.models.Entry\n    - blog.models.Missing\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(baseDir, "config", "settings.yaml"), []byte(settings), 0o644))

	fw, err := NewFramework(
		WithResolver(componentResolver(t, "blog", "users")),
		WithBaseDir(baseDir),
		WithPatternHooks(NewPatternHookRegistry()),
	)
	require.NoError(t, err)
	require.NoError(t, fw.Startup())

	// The resolvable extra is present; the unresolvable one is skipped.
	extras := fw.Extras()
	require.Len(t, extras["entries"], 1)
	assert.Equal(t, "blog-entry", extras["entries"][0])
}

// writeProjectFixture writes a minimal project config declaring the blog
// and users apps with the models/views schema.
func writeProjectFixture(t *testing.T, baseDir string) {
	t.Helper()
	project := `mode = "development"
modules = ["models", "views"]

[apps]
development = ["blog", "users"]

[dependencies]
views = ["models"]
`
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "appframe.toml"), []byte(project), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(baseDir, "config", "env"), 0o755))
}
