package appframe

import (
	"fmt"
	"slices"
	"strings"
)

// SchemaHookFunc is a module-type-level lifecycle callback. Unlike
// pattern hooks, which receive raw module handles, schema hooks receive
// the aggregated component payloads discovered in every app's module of
// that type.
type SchemaHookFunc func(components []Component) error

// SchemaHooks pairs the startup and shutdown callbacks for one module
// type. Either may be nil.
type SchemaHooks struct {
	OnStartup  SchemaHookFunc
	OnShutdown SchemaHookFunc
}

// Schema declares the module types every app contributes, the
// dependencies between those types, and optional per-type lifecycle
// hooks. Dependencies are declared once per type and applied to every
// app: if "views" depends on "models", then for every app A, A.views
// depends on A.models. Dependencies never cross apps.
type Schema struct {
	// ModuleTypes lists the module types in declaration order. Schema
	// startup hooks fire in this order, shutdown hooks in reverse.
	ModuleTypes []string

	// Dependencies maps a module type to the types it depends on.
	Dependencies map[string][]string

	// Hooks maps a module type to its lifecycle hook pair.
	Hooks map[string]SchemaHooks
}

// Validate checks that the schema is internally consistent: at least one
// module type, no duplicates, and every dependency or hook reference
// naming a declared type. Cycles in Dependencies are not detected here;
// they surface at graph-sort time with a concrete per-app cycle path.
func (s *Schema) Validate() error {
	if len(s.ModuleTypes) == 0 {
		return ErrSchemaNoModuleTypes
	}

	declared := make(map[string]struct{}, len(s.ModuleTypes))
	for _, moduleType := range s.ModuleTypes {
		if _, dup := declared[moduleType]; dup {
			return fmt.Errorf("%w: %s", ErrSchemaDuplicateModuleType, moduleType)
		}
		declared[moduleType] = struct{}{}
	}

	for moduleType, deps := range s.Dependencies {
		if _, ok := declared[moduleType]; !ok {
			return fmt.Errorf("%w: dependencies declared for %q", ErrSchemaUnknownModuleType, moduleType)
		}
		for _, dep := range deps {
			if _, ok := declared[dep]; !ok {
				return fmt.Errorf("%w: %q depends on %q", ErrSchemaUnknownModuleType, moduleType, dep)
			}
		}
	}

	for moduleType := range s.Hooks {
		if _, ok := declared[moduleType]; !ok {
			return fmt.Errorf("%w: hooks declared for %q", ErrSchemaUnknownModuleType, moduleType)
		}
	}

	return nil
}

// Expand registers every (app, module type) pair with the loader,
// computing identifiers "<app>.<type>" and per-app dependency edges.
func (s *Schema) Expand(apps []string, loader *Loader) error {
	for _, app := range apps {
		for _, moduleType := range s.ModuleTypes {
			identifier := Identifier(app, moduleType)
			depTypes := s.Dependencies[moduleType]
			deps := make([]string, 0, len(depTypes))
			for _, depType := range depTypes {
				deps = append(deps, Identifier(app, depType))
			}
			if err := loader.Register(identifier, deps); err != nil {
				return fmt.Errorf("failed to register module '%s': %w", identifier, err)
			}
		}
	}
	return nil
}

// RunStartupHooks fires each module type's startup hook, in ModuleTypes
// order, with the components gathered by the provided function. Any
// error halts the sequence immediately.
func (s *Schema) RunStartupHooks(componentsOf func(moduleType string) []Component) error {
	for _, moduleType := range s.ModuleTypes {
		hooks, declared := s.Hooks[moduleType]
		if !declared || hooks.OnStartup == nil {
			continue
		}
		if err := hooks.OnStartup(componentsOf(moduleType)); err != nil {
			return fmt.Errorf("%w: schema startup hook for %q: %w", ErrLifecycle, moduleType, err)
		}
	}
	return nil
}

// RunShutdownHooks fires each module type's shutdown hook in reverse
// ModuleTypes order. Errors are collected, not fatal: every hook gets
// its chance to run.
func (s *Schema) RunShutdownHooks(componentsOf func(moduleType string) []Component) []error {
	var errs []error
	reversed := slices.Clone(s.ModuleTypes)
	slices.Reverse(reversed)
	for _, moduleType := range reversed {
		hooks, declared := s.Hooks[moduleType]
		if !declared || hooks.OnShutdown == nil {
			continue
		}
		if err := hooks.OnShutdown(componentsOf(moduleType)); err != nil {
			errs = append(errs, fmt.Errorf("%w: schema shutdown hook for %q: %w", ErrLifecycle, moduleType, err))
		}
	}
	return errs
}

// Identifier joins an app name and a module type into the fully-qualified
// module identifier.
func Identifier(app, moduleType string) string {
	return app + "." + moduleType
}

// SplitIdentifier splits a fully-qualified identifier into its app and
// module-type parts at the last dot. The second result is empty when the
// identifier has no dot.
func SplitIdentifier(identifier string) (app, moduleType string) {
	at := strings.LastIndex(identifier, ".")
	if at < 0 {
		return identifier, ""
	}
	return identifier[:at], identifier[at+1:]
}
