package appframe

// Observer pattern interfaces for lifecycle event notification. Events
// use the CloudEvents specification for standardized format and better
// interoperability with external systems.

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience.
type CloudEvent = cloudevents.Event

// Observer is notified of framework lifecycle events. Observers register
// with a Subject and should handle events quickly to avoid blocking other
// observers.
type Observer interface {
	// OnEvent is called when an event the observer subscribed to occurs.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer, used for
	// registration tracking and debugging.
	ObserverID() string
}

// Subject emits lifecycle events to registered observers.
type Subject interface {
	// RegisterObserver adds an observer, optionally filtered by event
	// types. An empty filter receives all events.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. Idempotent.
	UnregisterObserver(observer Observer) error

	// NotifyObservers sends an event to all interested observers.
	// Observer errors are handled gracefully and never abort delivery.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers returns information about registered observers.
	GetObservers() []ObserverInfo
}

// ObserverInfo describes a registered observer.
type ObserverInfo struct {
	// ID is the unique identifier of the observer.
	ID string `json:"id"`

	// EventTypes are the event types the observer subscribed to; empty
	// means all events.
	EventTypes []string `json:"eventTypes"`

	// RegisteredAt indicates when the observer was registered.
	RegisteredAt time.Time `json:"registeredAt"`
}

// Lifecycle event types emitted by the framework, in CloudEvents reverse
// domain notation.
const (
	EventTypeModuleRegistered = "com.appframe.module.registered"
	EventTypeModuleStarted    = "com.appframe.module.started"
	EventTypeModuleStopped    = "com.appframe.module.stopped"

	EventTypeConfigLoaded = "com.appframe.config.loaded"

	EventTypeFrameworkStarted = "com.appframe.framework.started"
	EventTypeFrameworkStopped = "com.appframe.framework.stopped"
	EventTypeFrameworkFailed  = "com.appframe.framework.failed"

	EventTypeWorkerStarted = "com.appframe.worker.started"
	EventTypeWorkerStopped = "com.appframe.worker.stopped"
)

// NewCloudEvent creates a properly formatted CloudEvent with a UUIDv7 ID.
func NewCloudEvent(eventType, source string, data any, metadata map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	for key, value := range metadata {
		event.SetExtension(key, value)
	}
	return event
}

// generateEventID returns a UUIDv7, falling back to v4 if v7 generation
// fails. UUIDv7 includes timestamp information which provides
// time-ordered uniqueness.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// ObserverFunc is the handler signature accepted by WithObserver.
type ObserverFunc func(ctx context.Context, event cloudevents.Event) error

// FunctionalObserver wraps a handler function as an Observer, for quick
// observer creation without defining a struct.
type FunctionalObserver struct {
	id      string
	handler ObserverFunc
}

// NewFunctionalObserver creates an observer that delegates to the given
// handler.
func NewFunctionalObserver(id string, handler ObserverFunc) *FunctionalObserver {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent invokes the wrapped handler.
func (o *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	if o.handler == nil {
		return nil
	}
	return o.handler(ctx, event)
}

// ObserverID returns the observer's identifier.
func (o *FunctionalObserver) ObserverID() string {
	return o.id
}

// observerRegistration holds one registered observer with its filter.
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool // empty means all events
	registeredAt time.Time
}
