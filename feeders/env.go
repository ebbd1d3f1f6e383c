package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/golobby/cast"
)

// EnvFeeder populates targets from environment variables, optionally
// restricted to a prefix. Struct fields opt in with an `env` tag naming
// the variable (without the prefix); values are converted to the field's
// type.
type EnvFeeder struct {
	Prefix string
}

// NewEnvFeeder creates an EnvFeeder with the given prefix, e.g.
// "APPFRAME_".
func NewEnvFeeder(prefix string) EnvFeeder {
	return EnvFeeder{Prefix: prefix}
}

// Feed fills the target struct's tagged fields from the environment.
// Fields whose variable is unset keep their current value.
func (e EnvFeeder) Feed(target any) error {
	if target == nil {
		return ErrTargetNil
	}
	value := reflect.ValueOf(target)
	if value.Kind() != reflect.Ptr || value.IsNil() || value.Elem().Kind() != reflect.Struct {
		return ErrTargetNotStructPtr
	}

	elem := value.Elem()
	for i := 0; i < elem.NumField(); i++ {
		tag := elem.Type().Field(i).Tag.Get("env")
		if tag == "" {
			continue
		}
		envValue, exists := os.LookupEnv(e.Prefix + tag)
		if !exists {
			continue
		}
		if err := setFieldValue(elem.Field(i), envValue); err != nil {
			return fmt.Errorf("env %s%s: %w", e.Prefix, tag, err)
		}
	}
	return nil
}

// FeedMap overrides entries of an existing map from the environment. For
// each key, the variable "<Prefix><KEY>" (upper-cased) is looked up; when
// set, the value is converted to the type of the entry's current value so
// typed entries stay typed.
func (e EnvFeeder) FeedMap(target map[string]any) error {
	for key, current := range target {
		envValue, exists := os.LookupEnv(e.Prefix + strings.ToUpper(key))
		if !exists {
			continue
		}
		if current == nil {
			target[key] = envValue
			continue
		}
		converted, err := cast.FromType(envValue, reflect.TypeOf(current))
		if err != nil {
			return fmt.Errorf("%w: key %q: %w", ErrEnvInvalidConversion, key, err)
		}
		target[key] = converted
	}
	return nil
}

// setFieldValue converts and sets a field value.
func setFieldValue(field reflect.Value, strValue string) error {
	converted, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return fmt.Errorf("%w to type %v: %w", ErrEnvInvalidConversion, field.Type(), err)
	}
	if !field.CanSet() {
		return ErrFieldCannotBeSet
	}
	field.Set(reflect.ValueOf(converted))
	return nil
}
