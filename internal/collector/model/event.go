package model

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrMissingEntityID is returned when an event carries no top-level entity_id.
var ErrMissingEntityID = errors.New("event has no entity_id")

// Event is a Home Assistant state_changed event as published on the event stream.
type Event struct {
	EventType string    `json:"event_type,omitempty"`
	Data      EventData `json:"event_data"`
}

type EventData struct {
	EntityID string `json:"entity_id"`
	NewState *State `json:"new_state,omitempty"`
	OldState *State `json:"old_state,omitempty"`
}

// State is one side of a state transition.
type State struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
	LastChanged string                 `json:"last_changed,omitempty"`
	LastUpdated string                 `json:"last_updated"`
}

// UnmarshalJSON accepts both the enveloped form {"event_type": ..., "event_data": {...}} and a bare event data
// object {"entity_id": ..., "new_state": {...}}. Either form must carry an entity_id.
func (e *Event) UnmarshalJSON(b []byte) error {
	var envelope struct {
		EventType string          `json:"event_type"`
		Data      json.RawMessage `json:"event_data"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return err
	}
	e.EventType = envelope.EventType
	data := b
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		data = envelope.Data
	}
	if err := json.Unmarshal(data, &e.Data); err != nil {
		return err
	}
	if e.Data.EntityID == "" {
		return ErrMissingEntityID
	}
	return nil
}

// DeviceClass returns the device_class attribute if it is present and a string.
func (s *State) DeviceClass() (string, bool) {
	class, ok := s.Attributes["device_class"].(string)
	return class, ok
}

// SplitEntityID splits "<kind>.<name>" on the first dot. ok is false if there is no dot.
func SplitEntityID(entityID string) (kind string, name string, ok bool) {
	return strings.Cut(entityID, ".")
}
