package scan

import (
	"time"

	"github.com/teslashibe/assetscan/pkg/camera"
	"github.com/teslashibe/assetscan/pkg/lookup"
)

// EventType names a controller event.
type EventType string

const (
	EventStateChanged    EventType = "state_changed"
	EventScanned         EventType = "scanned"
	EventLookupSucceeded EventType = "lookup_succeeded"
	EventLookupFailed    EventType = "lookup_failed"
	EventTorchChanged    EventType = "torch_changed"
)

// Event is published to the controller's Notifier.
type Event struct {
	Type      EventType        `json:"type"`
	SessionID string           `json:"sessionId,omitempty"`
	State     State            `json:"state,omitempty"`
	ErrorKind camera.ErrorKind `json:"errorKind,omitempty"`
	Result    *Result          `json:"result,omitempty"`
	Asset     *lookup.Asset    `json:"asset,omitempty"`
	Error     string           `json:"error,omitempty"`
	Torch     *bool            `json:"torch,omitempty"`
	Time      time.Time        `json:"time"`
}

// Notifier receives controller events. Notify is called without the
// controller's lock held, possibly from several goroutines, and must not
// block for long.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }
