package appframe

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ResolutionMode controls how the loader treats identifiers that cannot
// be resolved.
type ResolutionMode int

const (
	// Strict treats a failed resolution as a hard error.
	Strict ResolutionMode = iota
	// Lenient treats a failed resolution as an absent module: Load
	// returns nil and the identifier is never registered.
	Lenient
)

func (m ResolutionMode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Lenient:
		return "lenient"
	default:
		return fmt.Sprintf("ResolutionMode(%d)", int(m))
	}
}

// Loader is the single source of truth for which modules exist, in what
// order they initialize, and whether each is currently initialized. It
// caches module records by identifier, builds the dependency graph from
// registrations, and runs the startup/shutdown sequences.
//
// One loader instance is shared by everything that loads modules;
// construct it once and pass it explicitly. The loader is strictly
// single-threaded: Startup and Shutdown are ordinary blocking calls and
// no internal locking exists. Callers that share a loader across
// goroutines must serialize access themselves.
type Loader struct {
	resolver ModuleResolver
	hooks    *PatternHookRegistry
	logger   Logger
	mode     ResolutionMode

	records map[string]*ModuleRecord
	order   []string // identifier registration order
	graph   *DependencyGraph[string]

	// startupOrder caches the order the last successful Startup used, so
	// Shutdown can walk the exact reverse.
	startupOrder []string
}

// LoaderOption configures a loader at construction time.
type LoaderOption func(*Loader)

// WithResolutionMode sets strict or lenient resolution. Default is Strict.
func WithResolutionMode(mode ResolutionMode) LoaderOption {
	return func(l *Loader) {
		l.mode = mode
	}
}

// WithHookRegistry sets the pattern hook registry the loader matches
// identifiers against. Default is the process-wide registry.
func WithHookRegistry(registry *PatternHookRegistry) LoaderOption {
	return func(l *Loader) {
		l.hooks = registry
	}
}

// WithLoaderLogger sets the loader's logger. Default is a NoopLogger.
func WithLoaderLogger(logger Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader that resolves modules through the given
// resolver.
func NewLoader(resolver ModuleResolver, opts ...LoaderOption) *Loader {
	l := &Loader{
		resolver: resolver,
		hooks:    DefaultHookRegistry(),
		logger:   NoopLogger{},
		mode:     Strict,
		records:  make(map[string]*ModuleRecord),
		graph:    NewDependencyGraph[string](),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Mode returns the loader's resolution mode.
func (l *Loader) Mode() ResolutionMode {
	return l.mode
}

// Load resolves and caches the module for the identifier. Repeated calls
// return the identical cached handle. In strict mode a failed resolution
// is returned as an error; in lenient mode it yields (nil, nil) and the
// identifier stays unregistered.
func (l *Loader) Load(identifier string) (*AppModule, error) {
	if record, cached := l.records[identifier]; cached {
		return record.Module, nil
	}
	if l.resolver == nil {
		return nil, ErrResolverNil
	}

	module, err := l.resolver.Resolve(identifier)
	if err != nil {
		if l.mode == Lenient {
			l.logger.Debug("Module not resolvable, treating as absent", "module", identifier, "error", err)
			return nil, nil
		}
		return nil, err
	}

	l.records[identifier] = &ModuleRecord{Identifier: identifier, Module: module}
	l.order = append(l.order, identifier)
	l.graph.AddNode(identifier)
	l.logger.Debug("Loaded module", "module", identifier)
	return module, nil
}

// Has reports whether the identifier is cached.
func (l *Loader) Has(identifier string) bool {
	_, cached := l.records[identifier]
	return cached
}

// Get returns the cached module handle, failing with ErrModuleNotCached
// if the identifier was never loaded. Calling Get for an unknown
// identifier is a programming error.
func (l *Loader) Get(identifier string) (*AppModule, error) {
	record, cached := l.records[identifier]
	if !cached {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotCached, identifier)
	}
	return record.Module, nil
}

// Record returns the cached record for the identifier, if any.
func (l *Loader) Record(identifier string) (*ModuleRecord, bool) {
	record, cached := l.records[identifier]
	return record, cached
}

// Keys returns the cached identifiers in registration order.
func (l *Loader) Keys() []string {
	return slices.Clone(l.order)
}

// Register loads the module if not cached, records its declared
// dependencies, and adds dep -> identifier edges to the dependency graph.
// Dependencies not yet cached are loaded as well. In lenient mode a
// module that fails to resolve is skipped: its edges remain in the graph
// but no record is created, so the lifecycle passes ignore it.
func (l *Loader) Register(identifier string, dependencies []string) error {
	module, err := l.Load(identifier)
	if err != nil {
		return err
	}
	if module == nil {
		// Lenient absence. Keep the vertex so dependents still order
		// correctly against it.
		l.graph.AddNode(identifier)
	}

	if record, cached := l.records[identifier]; cached {
		record.Dependencies = slices.Clone(dependencies)
	}

	for _, dep := range dependencies {
		if !l.Has(dep) {
			if _, err := l.Load(dep); err != nil {
				return err
			}
			l.logger.Debug("Loaded dependency", "module", identifier, "dependency", dep)
		}
		if err := l.graph.AddEdge(dep, identifier); err != nil {
			return err
		}
	}
	return nil
}

// Clear tears the module down if it is initialized and drops it from the
// loader's cache. The resolver's own registry is not touched.
func (l *Loader) Clear(identifier string) {
	record, cached := l.records[identifier]
	if !cached {
		return
	}
	if err := record.RunShutdownHook(); err != nil {
		l.logger.Error("Error tearing down module during clear", "module", identifier, "error", err)
	}
	delete(l.records, identifier)
	if at := slices.Index(l.order, identifier); at >= 0 {
		l.order = slices.Delete(l.order, at, at+1)
	}
}

// ClearAll drops every module from the loader's cache, tearing down
// initialized ones.
func (l *Loader) ClearAll() {
	for _, identifier := range slices.Clone(l.order) {
		l.Clear(identifier)
	}
}

// UnloadAll shuts everything down, clears the cache, resets the
// dependency graph, and invalidates the resolver's registry entries when
// the resolver supports it. Destructive; intended for test isolation.
// Callers must not hold module references expecting continued validity.
func (l *Loader) UnloadAll() error {
	err := l.Shutdown()

	cache, invalidatable := l.resolver.(ResolverCache)
	for _, identifier := range l.order {
		if invalidatable {
			cache.Invalidate(identifier)
		}
	}

	l.records = make(map[string]*ModuleRecord)
	l.order = nil
	l.graph = NewDependencyGraph[string]()
	l.startupOrder = nil
	return err
}

// Order computes the initialization order for the current graph without
// running any hooks.
func (l *Loader) Order() ([]string, error) {
	return l.graph.TopologicalSort()
}

// Startup initializes all registered modules in dependency order. The
// order is computed first: a circular dependency aborts before any hook
// runs. For each identifier in order, matching pattern hooks fire (each
// pattern at most once per pass, with the aggregate of matching modules),
// then the module's own startup hook. Any hook error halts the sequence
// immediately; already-initialized modules are not rolled back.
func (l *Loader) Startup() error {
	order, err := l.graph.TopologicalSort()
	if err != nil {
		return err
	}
	l.logger.Debug("Module initialization order", "order", order)

	fired := make(map[*PatternHook]bool)
	for _, identifier := range order {
		record, cached := l.records[identifier]
		if !cached {
			l.logger.Debug("Skipping unregistered module", "module", identifier)
			continue
		}
		if err := l.runPatternHooks(identifier, fired, true); err != nil {
			return fmt.Errorf("failed to start module '%s': %w", identifier, err)
		}
		if err := record.RunStartupHook(); err != nil {
			return fmt.Errorf("failed to start module '%s': %w", identifier, err)
		}
		l.logger.Info("Initialized module", "module", identifier)
	}

	l.startupOrder = order
	return nil
}

// Shutdown tears all initialized modules down in the exact reverse of the
// order the last successful Startup used; when no startup order is cached
// it falls back to a topological sort of the reversed graph. For each
// identifier, the module's shutdown hook runs (skipped silently if the
// module never initialized), then matching pattern shutdown hooks.
// Unlike startup, errors do not halt the pass: every module's teardown is
// attempted and the collected errors are reported together.
func (l *Loader) Shutdown() error {
	var order []string
	if l.startupOrder != nil {
		order = slices.Clone(l.startupOrder)
		slices.Reverse(order)
	} else {
		sorted, err := l.graph.Reversed().TopologicalSort()
		if err != nil {
			return err
		}
		order = sorted
	}

	var errs []error
	fired := make(map[*PatternHook]bool)
	for _, identifier := range order {
		record, cached := l.records[identifier]
		if !cached {
			continue
		}
		if err := record.RunShutdownHook(); err != nil {
			l.logger.Error("Error stopping module", "module", identifier, "error", err)
			errs = append(errs, fmt.Errorf("failed to stop module '%s': %w", identifier, err))
		}
		if err := l.runPatternHooks(identifier, fired, false); err != nil {
			l.logger.Error("Error running shutdown hooks", "module", identifier, "error", err)
			errs = append(errs, fmt.Errorf("failed to stop module '%s': %w", identifier, err))
		}
	}

	l.startupOrder = nil
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrShutdown, errors.Join(errs...))
	}
	return nil
}

// runPatternHooks fires the callbacks of every pattern matching the
// identifier that has not fired yet this pass. The payload is the
// aggregate of all cached modules matching the pattern at call time.
func (l *Loader) runPatternHooks(identifier string, fired map[*PatternHook]bool, startup bool) error {
	for _, entry := range l.hooks.Matching(identifier) {
		if fired[entry] {
			continue
		}
		fired[entry] = true

		fn := entry.OnShutdown
		if startup {
			fn = entry.OnStartup
		}
		if fn == nil {
			continue
		}

		if err := fn(l.matchingModules(entry)); err != nil {
			return fmt.Errorf("%w: pattern %q: %w", ErrLifecycle, entry.Pattern, err)
		}
	}
	return nil
}

// matchingModules returns the cached modules matching the pattern, in
// registration order.
func (l *Loader) matchingModules(entry *PatternHook) []*AppModule {
	var modules []*AppModule
	for _, identifier := range l.order {
		if entry.Matches(identifier) {
			modules = append(modules, l.records[identifier].Module)
		}
	}
	return modules
}

// LoadFromURI resolves a component payload from a full URI like
// "app.module.component": everything before the last dot names the
// module, the last segment names a component attached to it.
func (l *Loader) LoadFromURI(uri string) (any, error) {
	at := strings.LastIndex(uri, ".")
	if at <= 0 || at == len(uri)-1 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	identifier, name := uri[:at], uri[at+1:]

	module, err := l.Load(identifier)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, identifier)
	}

	component, found := module.Component(name)
	if !found {
		return nil, fmt.Errorf("%w: %q has no component %q", ErrComponentNotFound, identifier, name)
	}
	return component.Payload, nil
}
