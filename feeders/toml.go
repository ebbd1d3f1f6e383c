package feeders

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TomlFeeder is a feeder that reads TOML files.
type TomlFeeder struct {
	Path string
}

// NewTomlFeeder creates a TomlFeeder that reads from the specified file.
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{Path: filePath}
}

// Feed reads the TOML file into the target.
func (t TomlFeeder) Feed(target any) error {
	if target == nil {
		return ErrTargetNil
	}
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return fmt.Errorf("failed to read toml file %s: %w", t.Path, err)
	}
	if err := toml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse toml file %s: %w", t.Path, err)
	}
	return nil
}

// FeedKey reads the TOML file and extracts a specific top-level key into
// the target. A missing key leaves the target untouched.
func (t TomlFeeder) FeedKey(key string, target any) error {
	var allData map[string]any
	if err := t.Feed(&allData); err != nil {
		return err
	}

	value, exists := allData[key]
	if !exists {
		return nil
	}

	// Remarshal and unmarshal to handle type conversions
	valueBytes, err := toml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err = toml.Unmarshal(valueBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal value to target: %w", err)
	}
	return nil
}
