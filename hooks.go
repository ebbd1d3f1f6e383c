package appframe

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternHookFunc is a lifecycle callback matched by identifier pattern.
// It receives the aggregate of all currently cached modules matching the
// pattern, not a single module: a hook registered for "*.models" sees
// every app's models module in one call.
type PatternHookFunc func(modules []*AppModule) error

// PatternHook pairs a glob pattern with startup and shutdown callbacks.
// Patterns use "*" for any run of characters and "?" for exactly one;
// every other character, including ".", matches literally. Matching is
// anchored at both ends.
type PatternHook struct {
	Pattern    string
	OnStartup  PatternHookFunc
	OnShutdown PatternHookFunc

	re *regexp.Regexp
}

// Matches reports whether the full identifier satisfies the pattern.
func (h *PatternHook) Matches(identifier string) bool {
	return h.re.MatchString(identifier)
}

// translateGlob converts a glob pattern into an anchored regular
// expression. Isolating the translation here keeps the rest of the
// framework free of regexp handling.
func translateGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}

// PatternHookRegistry is a table of pattern hooks matched against module
// identifiers during startup and shutdown passes. Registries are explicit
// objects passed to loaders and frameworks; the process-wide default
// exists so tests and plugins can register hooks before any loader is
// constructed.
type PatternHookRegistry struct {
	entries []*PatternHook
}

// NewPatternHookRegistry creates an empty registry.
func NewPatternHookRegistry() *PatternHookRegistry {
	return &PatternHookRegistry{}
}

// Register adds a pattern with its callback pair. Either callback may be
// nil. Registering the same pattern again replaces the previous entry.
func (r *PatternHookRegistry) Register(pattern string, onStartup, onShutdown PatternHookFunc) error {
	re, err := translateGlob(pattern)
	if err != nil {
		return err
	}
	entry := &PatternHook{
		Pattern:    pattern,
		OnStartup:  onStartup,
		OnShutdown: onShutdown,
		re:         re,
	}
	for i, existing := range r.entries {
		if existing.Pattern == pattern {
			r.entries[i] = entry
			return nil
		}
	}
	r.entries = append(r.entries, entry)
	return nil
}

// Matching returns all entries whose pattern matches the identifier, in
// registration order.
func (r *PatternHookRegistry) Matching(identifier string) []*PatternHook {
	var matched []*PatternHook
	for _, entry := range r.entries {
		if entry.Matches(identifier) {
			matched = append(matched, entry)
		}
	}
	return matched
}

// Entries returns the registered hooks in registration order.
func (r *PatternHookRegistry) Entries() []*PatternHook {
	out := make([]*PatternHook, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered hooks.
func (r *PatternHookRegistry) Len() int {
	return len(r.entries)
}

var defaultHookRegistry = NewPatternHookRegistry()

// DefaultHookRegistry returns the process-wide hook registry used by
// loaders constructed without an explicit one.
func DefaultHookRegistry() *PatternHookRegistry {
	return defaultHookRegistry
}

// RegisterHook registers a pattern hook on the process-wide registry.
// Usable before any loader or framework exists.
func RegisterHook(pattern string, onStartup, onShutdown PatternHookFunc) error {
	return defaultHookRegistry.Register(pattern, onStartup, onShutdown)
}
