// Package events publishes session analytics to an external webhook.
// Delivery is best effort: a failed or slow delivery never blocks or
// fails the response pipeline.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Event types recognized by the analytics sink.
const (
	TypeSessionStarted = "session_started"
	TypeSessionEnded   = "session_ended"
	TypeMessageSent    = "message_sent"
	TypeVideoRequested = "video_requested"
	TypeVideoCompleted = "video_completed"
)

// Event is one analytics record. Data carries type-specific fields.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// envelope is the delivered payload. Source and AppVersion identify the
// emitting deployment to the receiver.
type envelope struct {
	Event
	Source     string `json:"source"`
	AppVersion string `json:"app_version"`
}

const eventSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "timestamp", "source", "app_version"],
  "properties": {
    "type": {
      "type": "string",
      "enum": ["session_started", "session_ended", "message_sent", "video_requested", "video_completed"]
    },
    "session_id": {"type": "string"},
    "timestamp": {"type": "string", "format": "date-time"},
    "source": {"type": "string", "minLength": 1},
    "app_version": {"type": "string", "minLength": 1},
    "data": {"type": "object"}
  },
  "additionalProperties": false
}`

var compiledEventSchema = jsonschema.MustCompileString("event.schema.json", eventSchema)

// ValidatePayload checks a serialized envelope against the event schema.
func ValidatePayload(raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	if err := compiledEventSchema.Validate(payload); err != nil {
		return fmt.Errorf("event payload rejected: %w", err)
	}
	return nil
}
