// Package notify carries the presentation side of the tracker over MQTT:
// the progress notification, widget refresh triggers, system lifecycle
// events, and the inbound command topic.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/step-tracker/internal/logic"
)

// TopicState carries the retained progress notification payload.
const TopicState = "fitness/steps/tracker/state"

// TopicWidget carries fire-and-forget widget refresh triggers.
const TopicWidget = "fitness/steps/tracker/widget"

// TopicSystem carries system lifecycle events.
const TopicSystem = "fitness/steps/tracker/system"

// TopicCommands is the inbound command topic the daemon subscribes to.
const TopicCommands = "fitness/steps/tracker/commands"

// Presenter renders the user-facing progress notification.
type Presenter interface {
	// Render publishes the progress state. Returns error if publishing
	// fails (should not crash the process).
	Render(u logic.Update, now time.Time) error
}

// WidgetTrigger requests a widget refresh, fire-and-forget.
type WidgetTrigger interface {
	RequestRefresh(now time.Time) error
}

// SystemPublisher sends system lifecycle events.
type SystemPublisher interface {
	PublishSystem(event SystemEvent) error
}

// Publisher is the full outbound surface the run loop drives.
type Publisher interface {
	Presenter
	WidgetTrigger
	SystemPublisher

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Command is an externally triggered tracker operation.
type Command string

const (
	// CommandPause toggles the pause controller.
	CommandPause Command = "PAUSE"
	// CommandForceUpdate forces a persist-and-notify cycle if steps were
	// walked since the last persist.
	CommandForceUpdate Command = "FORCE_UPDATE"
	// CommandUpdateNotification re-renders without changing counters.
	CommandUpdateNotification Command = "UPDATE_NOTIFICATION"
)

// ParseCommand maps an inbound command payload to a Command.
func ParseCommand(payload []byte) (Command, error) {
	switch c := Command(strings.TrimSpace(strings.ToUpper(string(payload)))); c {
	case CommandPause, CommandForceUpdate, CommandUpdateNotification:
		return c, nil
	default:
		return "", fmt.Errorf("unknown command %q", string(payload))
	}
}

// SystemEvent represents a system lifecycle event (startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN"
	Reason     string // e.g. "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, used directly
	Retained   bool
}

// StatePayload is the MQTT message payload for the progress notification.
type StatePayload struct {
	Steps StateInner `json:"steps"`
}

// StateInner contains the progress details.
type StateInner struct {
	Timestamp   string `json:"timestamp"`
	Today       int64  `json:"today"`
	Goal        int64  `json:"goal"`
	Remaining   int64  `json:"remaining"`
	GoalReached bool   `json:"goal_reached"`
	Paused      bool   `json:"paused"`
	HasData     bool   `json:"has_data"`
}

// FormatStatePayload creates the JSON payload for a progress update.
func FormatStatePayload(u logic.Update, now time.Time) ([]byte, error) {
	remaining := u.Goal - u.TodaySteps
	if remaining < 0 {
		remaining = 0
	}
	payload := StatePayload{
		Steps: StateInner{
			Timestamp:   now.UTC().Format(time.RFC3339),
			Today:       u.TodaySteps,
			Goal:        u.Goal,
			Remaining:   remaining,
			GoalReached: u.GoalReached(),
			Paused:      u.Paused,
			HasData:     u.HasReading,
		},
	}
	return json.Marshal(payload)
}

// WidgetPayload is the MQTT message payload for a widget refresh trigger.
type WidgetPayload struct {
	Widget WidgetInner `json:"widget"`
}

// WidgetInner contains the refresh trigger details.
type WidgetInner struct {
	Timestamp string `json:"timestamp"`
	Refresh   bool   `json:"refresh"`
}

// FormatWidgetPayload creates the JSON payload for a widget refresh.
func FormatWidgetPayload(now time.Time) ([]byte, error) {
	return json.Marshal(WidgetPayload{
		Widget: WidgetInner{
			Timestamp: now.UTC().Format(time.RFC3339),
			Refresh:   true,
		},
	})
}

// SystemPayload is the MQTT message payload for simple system events
// that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full
// status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
