package event

import "time"

// Event is a message carried on the bus.
type Event interface {
	// EventType returns the "category.action" name of the event.
	EventType() string
	// EventKey returns the entity key the event concerns, or "" if none.
	EventKey() string
	// Timestamp returns when the event was created.
	Timestamp() time.Time
}

// Message is the concrete Event used across the service.
type Message struct {
	Type string    `json:"type"`
	Key  string    `json:"key,omitempty"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// New builds a Message stamped with the current time.
func New(typ, key string, data any) Message {
	return Message{Type: typ, Key: key, Time: time.Now(), Data: data}
}

func (m Message) EventType() string    { return m.Type }
func (m Message) EventKey() string     { return m.Key }
func (m Message) Timestamp() time.Time { return m.Time }

// Payload extracts a typed payload from e. It reports false when e is not a
// Message or its payload has a different type.
func Payload[T any](e Event) (T, bool) {
	var zero T
	m, ok := e.(Message)
	if !ok {
		if pm, ok2 := e.(*Message); ok2 && pm != nil {
			m = *pm
		} else {
			return zero, false
		}
	}
	v, ok := m.Data.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Matches reports whether e has one of the given types. An empty list matches
// every event.
func Matches(e Event, types ...string) bool {
	if len(types) == 0 {
		return true
	}
	t := e.EventType()
	for _, want := range types {
		if want == t || want == "*" {
			return true
		}
	}
	return false
}
