package appframe

import (
	"errors"
)

// Framework errors
var (
	// Dependency graph errors
	ErrSelfDependency     = errors.New("module cannot depend on itself")
	ErrCircularDependency = errors.New("circular dependency detected")

	// Loader errors
	ErrModuleNotFound  = errors.New("module could not be resolved")
	ErrModuleNotCached = errors.New("module is not cached")
	ErrResolverNil     = errors.New("module resolver is nil")

	// Lifecycle errors
	ErrLifecycle = errors.New("lifecycle hook failed")
	ErrShutdown  = errors.New("shutdown completed with errors")

	// Pattern hook errors
	ErrInvalidPattern = errors.New("invalid hook pattern")

	// Schema errors
	ErrSchemaNil                 = errors.New("schema is nil")
	ErrSchemaNoModuleTypes       = errors.New("schema declares no module types")
	ErrSchemaDuplicateModuleType = errors.New("schema declares duplicate module type")
	ErrSchemaUnknownModuleType   = errors.New("schema references undeclared module type")

	// Framework errors
	ErrFrameworkState = errors.New("framework is not in a valid state for this operation")
	ErrLoggerNil      = errors.New("logger is nil")

	// Configuration errors
	ErrConfiguration   = errors.New("configuration error")
	ErrProjectConfig   = errors.New("failed to load project config")
	ErrUnknownMode     = errors.New("unknown application mode")
	ErrCustomModeUnset = errors.New("custom mode selected but custom_mode is not set")

	// Component errors
	ErrComponentExists   = errors.New("component already registered")
	ErrComponentNotFound = errors.New("component not found in module")
	ErrInvalidComponent  = errors.New("component must have a type and a name")
	ErrInvalidURI        = errors.New("uri must be in the form app.module.component")

	// Worker errors
	ErrWorkersAlreadyStarted = errors.New("worker server is already started")
	ErrWorkersNotStarted     = errors.New("worker server is not started")
	ErrWorkersStopTimeout    = errors.New("timed out waiting for workers to stop")

	// Watcher errors
	ErrWatcherAlreadyStarted = errors.New("config watcher is already started")
	ErrWatcherNoPaths        = errors.New("config watcher requires at least one path")
)
