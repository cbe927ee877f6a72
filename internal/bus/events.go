// Package bus distributes character runtime events to observers such as the stream hub.
package bus

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	// Runtime state
	EventStateChanged EventType = "state_changed"

	// Action lifecycle
	EventActionStarted   EventType = "action_started"
	EventActionFinished  EventType = "action_finished"
	EventActionCancelled EventType = "action_cancelled"

	// Speech
	EventSpeechStarted  EventType = "speech_started"
	EventSpeechFinished EventType = "speech_finished"

	// Motion library
	EventMotionRecorded EventType = "motion_recorded"
	EventMotionEvicted  EventType = "motion_evicted"

	// Idle flourish fired
	EventFlourish EventType = "flourish"

	// Raw assistant text handed to the runtime
	EventTextReceived EventType = "text_received"
)

// Event is one notification. Only the fields relevant to Type are set.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	State     string `json:"state,omitempty"`
	PrevState string `json:"prev_state,omitempty"`

	Action string `json:"action,omitempty"`
	Name   string `json:"name,omitempty"`
	Text   string `json:"text,omitempty"`

	DurationMs int64          `json:"duration_ms,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

func NewEvent(t EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      t,
	}
}

// WithName returns a copy of e with Name set.
func (e Event) WithName(name string) Event {
	e.Name = name
	return e
}
