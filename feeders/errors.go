// Package feeders provides configuration feeders that populate targets
// from TOML files, YAML files, and environment variables.
package feeders

import "errors"

// Feeder errors
var (
	ErrTargetNil            = errors.New("target is nil")
	ErrTargetNotStructPtr   = errors.New("target must be a pointer to a struct")
	ErrFieldCannotBeSet     = errors.New("field cannot be set")
	ErrEnvInvalidConversion = errors.New("cannot convert environment value")
)
