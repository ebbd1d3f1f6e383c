// Package appframe provides an application-composition framework for Go.
// It loads a set of named apps, each contributing one module per
// schema-declared module type, initializes those modules in dependency
// order, and tears them down in reverse.
//
// The building blocks are a generic DependencyGraph, a Loader that caches
// module records and orchestrates their lifecycle, a PatternHookRegistry
// for glob-matched lifecycle callbacks, a Schema describing the module
// types every app contributes, and a Framework tying them together with
// layered configuration and component indexing.
//
// Basic usage:
//
//	fw, err := appframe.NewFramework(
//		appframe.WithSchema(schema),
//		appframe.WithResolver(resolver),
//		appframe.WithLogger(logger),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := fw.Run(); err != nil {
//		log.Fatal(err)
//	}
package appframe

import (
	"fmt"
	"slices"
)

// AppModule is the handle for one loadable unit, identified as
// "<app>.<module-type>" (e.g. "blog.models"). Lifecycle callbacks are
// explicit optional fields supplied by whatever constructs the module;
// the framework never looks functions up by name.
type AppModule struct {
	// Name is the fully-qualified identifier of the module.
	Name string

	// OnStartup is invoked once when the module is initialized, after
	// all of its dependencies have been initialized. Optional.
	OnStartup func() error

	// OnShutdown is invoked once when the module is torn down, before
	// any of its dependencies are torn down. Optional.
	OnShutdown func() error

	components []Component
}

// NewAppModule creates a module handle with the given identifier.
func NewAppModule(name string) *AppModule {
	return &AppModule{Name: name}
}

// AddComponent attaches a tagged component to the module. A component is
// rejected if another component with the same type and name is already
// attached.
func (m *AppModule) AddComponent(c Component) error {
	if c.Type == "" || c.Name == "" {
		return fmt.Errorf("%w: type=%q name=%q", ErrInvalidComponent, c.Type, c.Name)
	}
	for _, existing := range m.components {
		if existing.Type == c.Type && existing.Name == c.Name {
			return fmt.Errorf("%w: %s/%s", ErrComponentExists, c.Type, c.Name)
		}
	}
	m.components = append(m.components, c)
	return nil
}

// Components returns the components attached to the module, in attachment
// order.
func (m *AppModule) Components() []Component {
	return slices.Clone(m.components)
}

// Component returns the attached component with the given name, if any.
func (m *AppModule) Component(name string) (Component, bool) {
	for _, c := range m.components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// ModuleResolver resolves a fully-qualified identifier to a module handle.
// It is the import mechanism the loader delegates to; implementations may
// build handles from registration tables, plugin registries or generated
// code. A failed resolution must wrap ErrModuleNotFound.
type ModuleResolver interface {
	Resolve(identifier string) (*AppModule, error)
}

// ResolverCache is optionally implemented by resolvers that maintain their
// own registry of modules. Loader.UnloadAll invalidates resolver entries
// through it.
type ResolverCache interface {
	Invalidate(identifier string)
}

// MapResolver resolves modules from an in-memory table. It is the standard
// resolver for applications that register their modules in code, and the
// usual choice in tests.
type MapResolver map[string]*AppModule

// Resolve returns the module registered under the identifier, or an
// ErrModuleNotFound wrap.
func (r MapResolver) Resolve(identifier string) (*AppModule, error) {
	module, exists := r[identifier]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, identifier)
	}
	return module, nil
}

// Add registers a module under its own name, replacing any previous entry.
func (r MapResolver) Add(module *AppModule) {
	r[module.Name] = module
}

// Invalidate removes the identifier from the table.
func (r MapResolver) Invalidate(identifier string) {
	delete(r, identifier)
}

// ModuleRecord wraps one loaded module: its identity, declared
// dependencies, and whether it is currently initialized. Records are
// created by the loader when an identifier is first loaded and mutated
// only by the loader during startup and shutdown.
type ModuleRecord struct {
	Identifier   string
	Module       *AppModule
	Dependencies []string

	initialized bool
}

// Initialized reports whether the module's startup hook has completed
// without a subsequent teardown.
func (r *ModuleRecord) Initialized() bool {
	return r.initialized
}

// RunStartupHook invokes the module's startup callback if present and the
// record is not already initialized. A record with no callback is marked
// initialized immediately. Idempotent.
func (r *ModuleRecord) RunStartupHook() error {
	if r.initialized {
		return nil
	}
	if r.Module != nil && r.Module.OnStartup != nil {
		if err := r.Module.OnStartup(); err != nil {
			return fmt.Errorf("%w: %w", ErrLifecycle, err)
		}
	}
	r.initialized = true
	return nil
}

// RunShutdownHook invokes the module's shutdown callback if present and
// the record is initialized. Calling it on a record that never started is
// a no-op, so teardown is always safe after a partially-failed startup.
func (r *ModuleRecord) RunShutdownHook() error {
	if !r.initialized {
		return nil
	}
	if r.Module != nil && r.Module.OnShutdown != nil {
		if err := r.Module.OnShutdown(); err != nil {
			return fmt.Errorf("%w: %w", ErrLifecycle, err)
		}
	}
	r.initialized = false
	return nil
}
