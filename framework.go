package appframe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// FrameworkState tracks where a framework is in its lifecycle.
type FrameworkState int

const (
	StateCreated FrameworkState = iota
	StateConfiguring
	StateRegistering
	StateStarting
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s FrameworkState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfiguring:
		return "configuring"
	case StateRegistering:
		return "registering"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("FrameworkState(%d)", int(s))
	}
}

// Framework composes configuration loading, app-name collection, schema
// expansion, the module loader, and component indexing into a single
// startup/shutdown lifecycle. It is also a Subject: lifecycle transitions
// are emitted as CloudEvents to registered observers.
//
// Startup errors abort construction of a usable framework: a framework
// whose Startup failed is Stopped and stays that way.
type Framework struct {
	schema     *Schema
	resolver   ModuleResolver
	hooks      *PatternHookRegistry
	logger     Logger
	mode       string
	resolution ResolutionMode
	baseDir    string

	config *Config
	apps   []string
	loader *Loader
	state  FrameworkState

	// components indexes discovered component payloads by type and
	// qualified name "<app>.<name>".
	components map[string]map[string]Component

	// extras holds the resolved settings-declared extra objects by group.
	extras map[string][]any

	observers     map[string]*observerRegistration
	observerMutex sync.RWMutex
}

// Option configures a framework at construction time.
type Option func(*Framework) error

// WithSchema sets the schema describing module types, dependencies and
// type-level hooks. Required unless WithBaseDir points at a project
// whose config declares the modules.
func WithSchema(schema *Schema) Option {
	return func(f *Framework) error {
		f.schema = schema
		return nil
	}
}

// WithResolver sets the module resolver. Required.
func WithResolver(resolver ModuleResolver) Option {
	return func(f *Framework) error {
		f.resolver = resolver
		return nil
	}
}

// WithLogger sets the framework logger. Default is a NoopLogger.
func WithLogger(logger Logger) Option {
	return func(f *Framework) error {
		if logger == nil {
			return ErrLoggerNil
		}
		f.logger = logger
		return nil
	}
}

// WithMode sets the application mode (development, staging, production,
// or custom). Overrides the project config's mode.
func WithMode(mode string) Option {
	return func(f *Framework) error {
		f.mode = mode
		return nil
	}
}

// WithFrameworkResolution sets strict or lenient module resolution.
func WithFrameworkResolution(mode ResolutionMode) Option {
	return func(f *Framework) error {
		f.resolution = mode
		return nil
	}
}

// WithBaseDir sets the project directory configuration is loaded from
// during the Configuring phase.
func WithBaseDir(baseDir string) Option {
	return func(f *Framework) error {
		f.baseDir = baseDir
		return nil
	}
}

// WithConfig injects a pre-built configuration, skipping file discovery.
func WithConfig(config *Config) Option {
	return func(f *Framework) error {
		f.config = config
		return nil
	}
}

// WithApps sets the installed app list explicitly, skipping the
// config-driven mode cascade.
func WithApps(apps ...string) Option {
	return func(f *Framework) error {
		f.apps = slices.Clone(apps)
		return nil
	}
}

// WithPatternHooks sets the pattern hook registry. Default is the
// process-wide registry.
func WithPatternHooks(registry *PatternHookRegistry) Option {
	return func(f *Framework) error {
		f.hooks = registry
		return nil
	}
}

// WithObserver registers functional observers for all framework events.
func WithObserver(observers ...ObserverFunc) Option {
	return func(f *Framework) error {
		for i, handler := range observers {
			id := fmt.Sprintf("functional-observer-%d", i)
			if err := f.RegisterObserver(NewFunctionalObserver(id, handler)); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewFramework creates a framework from the given options. The returned
// framework is in the Created state; call Startup (or Run) to bring it
// up.
func NewFramework(opts ...Option) (*Framework, error) {
	f := &Framework{
		logger:     NoopLogger{},
		hooks:      DefaultHookRegistry(),
		state:      StateCreated,
		components: make(map[string]map[string]Component),
		extras:     make(map[string][]any),
		observers:  make(map[string]*observerRegistration),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}

	if f.resolver == nil {
		return nil, ErrResolverNil
	}
	if f.schema != nil {
		if err := f.schema.Validate(); err != nil {
			return nil, err
		}
	} else if f.baseDir == "" && f.config == nil {
		return nil, ErrSchemaNil
	}

	f.loader = NewLoader(f.resolver,
		WithResolutionMode(f.resolution),
		WithHookRegistry(f.hooks),
		WithLoaderLogger(f.logger),
	)
	return f, nil
}

// State returns the framework's current lifecycle state.
func (f *Framework) State() FrameworkState {
	return f.state
}

// Loader returns the framework's module loader.
func (f *Framework) Loader() *Loader {
	return f.loader
}

// Config returns the loaded configuration, or nil before Startup.
func (f *Framework) Config() *Config {
	return f.config
}

// InstalledApps returns the app names the framework loaded, in
// initialization order of first appearance.
func (f *Framework) InstalledApps() []string {
	return slices.Clone(f.apps)
}

// Extras returns the resolved extra objects declared in settings, by
// group.
func (f *Framework) Extras() map[string][]any {
	return f.extras
}

// Startup drives the framework from Created to Running: load
// configuration, collect installed apps, expand the schema through the
// loader, run the startup sequence and schema hooks, and index the
// discovered components. Any error aborts the sequence and leaves the
// framework Stopped.
func (f *Framework) Startup() error {
	if f.state != StateCreated {
		return fmt.Errorf("%w: cannot start from state %q", ErrFrameworkState, f.state)
	}

	if err := f.configure(); err != nil {
		return f.failStartup(err)
	}
	if err := f.register(); err != nil {
		return f.failStartup(err)
	}
	if err := f.start(); err != nil {
		return f.failStartup(err)
	}

	f.state = StateRunning
	f.logger.Info("Framework started", "apps", f.apps, "mode", f.mode)
	f.emitEvent(EventTypeFrameworkStarted, map[string]any{"apps": f.apps, "mode": f.mode})
	return nil
}

func (f *Framework) failStartup(err error) error {
	f.state = StateStopped
	f.logger.Error("Framework startup failed", "error", err)
	f.emitEvent(EventTypeFrameworkFailed, map[string]any{"error": err.Error()})
	return err
}

// configure loads configuration and collects the installed app list.
func (f *Framework) configure() error {
	f.state = StateConfiguring

	if f.config == nil && f.baseDir != "" {
		cfg, err := LoadConfig(f.baseDir, f.mode)
		if err != nil {
			return err
		}
		f.config = cfg
		f.emitEvent(EventTypeConfigLoaded, map[string]any{"mode": cfg.Mode})
	}
	if f.config != nil && f.mode == "" {
		f.mode = f.config.Mode
	}
	if f.mode == "" {
		f.mode = ModeDevelopment
	}

	if f.schema == nil {
		if f.config == nil {
			return ErrSchemaNil
		}
		f.schema = f.config.Schema()
		if err := f.schema.Validate(); err != nil {
			return err
		}
	}

	if f.apps == nil {
		if f.config == nil {
			return fmt.Errorf("%w: no apps configured", ErrConfiguration)
		}
		apps, err := f.config.InstalledApps()
		if err != nil {
			return err
		}
		f.apps = apps
	}

	f.logger.Debug("Collected installed apps", "apps", f.apps, "mode", f.mode)
	return nil
}

// register expands the schema into per-app module registrations.
func (f *Framework) register() error {
	f.state = StateRegistering

	if err := f.schema.Expand(f.apps, f.loader); err != nil {
		return err
	}
	for _, identifier := range f.loader.Keys() {
		f.emitEvent(EventTypeModuleRegistered, map[string]any{"module": identifier})
	}
	return nil
}

// start runs the loader startup sequence, the schema startup hooks, and
// component indexing.
func (f *Framework) start() error {
	f.state = StateStarting

	if err := f.loader.Startup(); err != nil {
		return err
	}
	f.indexComponents()
	if err := f.schema.RunStartupHooks(f.componentsOfType); err != nil {
		return err
	}
	f.resolveExtras()

	for _, identifier := range f.loader.Keys() {
		f.emitEvent(EventTypeModuleStarted, map[string]any{"module": identifier})
	}
	return nil
}

// Shutdown drives the framework from Running to Stopped: schema shutdown
// hooks fire in reverse module-type order, then the loader tears modules
// down in the exact reverse of startup order. Teardown is best-effort;
// errors are collected and reported together. Calling Shutdown on an
// already-stopped framework is a no-op.
func (f *Framework) Shutdown() error {
	if f.state == StateStopped {
		return nil
	}
	if f.state != StateRunning {
		return fmt.Errorf("%w: cannot shut down from state %q", ErrFrameworkState, f.state)
	}
	f.state = StateShuttingDown

	errs := f.schema.RunShutdownHooks(f.componentsOfType)
	if err := f.loader.Shutdown(); err != nil {
		errs = append(errs, err)
	}

	f.state = StateStopped
	f.logger.Info("Framework stopped")
	f.emitEvent(EventTypeFrameworkStopped, nil)
	for _, identifier := range f.loader.Keys() {
		f.emitEvent(EventTypeModuleStopped, map[string]any{"module": identifier})
	}

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if errors.Is(joined, ErrShutdown) {
			return joined
		}
		return fmt.Errorf("%w: %w", ErrShutdown, joined)
	}
	return nil
}

// Run starts the framework and blocks until a termination signal, then
// shuts it down.
func (f *Framework) Run() error {
	if err := f.Startup(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	f.logger.Info("Received signal, shutting down", "signal", sig)

	return f.Shutdown()
}

// indexComponents scans every loaded module for attached components and
// indexes the ones whose type matches their module's type. Components
// declaring a different type are ignored with a debug log, matching the
// discovery contract: a module only contributes components of its own
// kind.
func (f *Framework) indexComponents() {
	for _, identifier := range f.loader.Keys() {
		record, cached := f.loader.Record(identifier)
		if !cached {
			continue
		}
		app, moduleType := SplitIdentifier(identifier)
		for _, component := range record.Module.Components() {
			if component.Type != moduleType {
				f.logger.Debug("Skipping component of foreign type",
					"module", identifier, "component", component.Name, "type", component.Type)
				continue
			}
			if f.components[component.Type] == nil {
				f.components[component.Type] = make(map[string]Component)
			}
			qualified := app + "." + component.Name
			f.components[component.Type][qualified] = component
			f.logger.Debug("Indexed component", "type", component.Type, "name", qualified)
		}
	}
}

// componentsOfType returns the indexed components of one module type, in
// deterministic qualified-name order.
func (f *Framework) componentsOfType(moduleType string) []Component {
	byName := f.components[moduleType]
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	slices.Sort(names)

	components := make([]Component, 0, len(names))
	for _, name := range names {
		components = append(components, byName[name])
	}
	return components
}

// resolveExtras resolves the settings-declared extra URIs through the
// loader. Unresolvable entries are skipped with a warning.
func (f *Framework) resolveExtras() {
	if f.config == nil {
		return
	}
	for group, uris := range f.config.Settings.Extras {
		for _, uri := range uris {
			payload, err := f.loader.LoadFromURI(uri)
			if err != nil {
				f.logger.Warn("Skipping unresolvable extra", "group", group, "uri", uri, "error", err)
				continue
			}
			f.extras[group] = append(f.extras[group], payload)
		}
	}
}

// GetComponent looks up a component payload by type and qualified name
// ("<app>.<name>"). Absence is not an error: callers branch on the
// boolean.
func (f *Framework) GetComponent(componentType, qualifiedName string) (Component, bool) {
	component, found := f.components[componentType][qualifiedName]
	return component, found
}

// Components returns the full component index.
func (f *Framework) Components() map[string]map[string]Component {
	return f.components
}

// RegisterObserver adds an observer, optionally filtered by event types.
// An empty filter receives all events.
func (f *Framework) RegisterObserver(observer Observer, eventTypes ...string) error {
	f.observerMutex.Lock()
	defer f.observerMutex.Unlock()

	eventTypeMap := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}
	f.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}
	f.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer. Idempotent.
func (f *Framework) UnregisterObserver(observer Observer) error {
	f.observerMutex.Lock()
	defer f.observerMutex.Unlock()
	delete(f.observers, observer.ObserverID())
	return nil
}

// NotifyObservers delivers an event to every interested observer.
// Observer errors are logged and never abort delivery or the lifecycle.
func (f *Framework) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	f.observerMutex.RLock()
	registrations := make([]*observerRegistration, 0, len(f.observers))
	for _, registration := range f.observers {
		registrations = append(registrations, registration)
	}
	f.observerMutex.RUnlock()

	for _, registration := range registrations {
		if len(registration.eventTypes) > 0 && !registration.eventTypes[event.Type()] {
			continue
		}
		if err := registration.observer.OnEvent(ctx, event); err != nil {
			f.logger.Debug("Observer returned error",
				"observerID", registration.observer.ObserverID(),
				"eventType", event.Type(), "error", err)
		}
	}
	return nil
}

// GetObservers returns information about the registered observers.
func (f *Framework) GetObservers() []ObserverInfo {
	f.observerMutex.RLock()
	defer f.observerMutex.RUnlock()

	infos := make([]ObserverInfo, 0, len(f.observers))
	for _, registration := range f.observers {
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		slices.Sort(eventTypes)
		infos = append(infos, ObserverInfo{
			ID:           registration.observer.ObserverID(),
			EventTypes:   eventTypes,
			RegisteredAt: registration.registeredAt,
		})
	}
	slices.SortFunc(infos, func(a, b ObserverInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return infos
}

// emitEvent builds and delivers a framework lifecycle event.
func (f *Framework) emitEvent(eventType string, data map[string]any) {
	event := NewCloudEvent(eventType, "appframe/framework", data, nil)
	_ = f.NotifyObservers(context.Background(), event)
}
