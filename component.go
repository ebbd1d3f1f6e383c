package appframe

// Component is a tagged object contributed by a module. Components carry
// explicit metadata records instead of mutating the payload in place;
// the framework indexes them by type and qualified name after startup.
type Component struct {
	// Type is the component kind, conventionally the module type that
	// contributes it (e.g. "models").
	Type string

	// Name is the component's name, unique within its type inside a
	// single module. The framework qualifies it as "<app>.<name>".
	Name string

	// Config holds component-specific configuration.
	Config map[string]any

	// Metadata holds arbitrary descriptive metadata.
	Metadata map[string]any

	// Payload is the actual object being tagged.
	Payload any
}

// ComponentOption configures a component at construction time.
type ComponentOption func(*Component)

// WithComponentConfig sets the component's configuration map.
func WithComponentConfig(config map[string]any) ComponentOption {
	return func(c *Component) {
		c.Config = config
	}
}

// WithComponentMetadata sets the component's metadata map.
func WithComponentMetadata(metadata map[string]any) ComponentOption {
	return func(c *Component) {
		c.Metadata = metadata
	}
}

// NewComponent builds a component record wrapping the payload.
func NewComponent(componentType, name string, payload any, opts ...ComponentOption) Component {
	c := Component{
		Type:    componentType,
		Name:    name,
		Payload: payload,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
