// Package host defines the contract between the presence engine and the
// external capture host that owns the actual capture sources.
package host

import "context"

// EventKind discriminates source lifecycle notifications
type EventKind string

const (
	// SourceCreated reports a new window/screen capture source
	SourceCreated EventKind = "created"
	// SourceRemoved reports that a capture source was destroyed
	SourceRemoved EventKind = "removed"
	// SourceActivated reports that a source started rendering to output
	SourceActivated EventKind = "activated"
	// SourceDeactivated reports that a source stopped rendering to output
	SourceDeactivated EventKind = "deactivated"
)

// SourceEvent is one capture-source lifecycle notification.
type SourceEvent struct {
	Kind EventKind

	// Name is the host's stable identifier for the source
	Name string

	// TargetApp is the configured capture-target identifier, read from the
	// source's settings at creation time. Only meaningful on SourceCreated;
	// may be empty when the settings carry no usable target.
	TargetApp string

	// Active is the source's initial render state on SourceCreated
	Active bool
}

// Target is one capturable window or application reported by the host.
type Target struct {
	// ID is the value a capture source's target property would be set to
	ID string `json:"id"`

	// Title is the human-readable window/application title
	Title string `json:"title"`

	// AppName is the application name extracted from the title
	AppName string `json:"app_name"`

	// Suggested marks applications people commonly want captured
	Suggested bool `json:"suggested"`
}

// Host is the capture host as seen by the presence engine: a stream of
// source lifecycle notifications plus on-demand enumeration of capturable
// targets. The host filters its own source population down to window/screen
// capture kinds before producing events.
type Host interface {
	// Events delivers source lifecycle notifications. The channel is
	// closed when the host connection shuts down for good.
	Events() <-chan SourceEvent

	// ListTargets enumerates the windows/applications currently available
	// for capture on this platform.
	ListTargets(ctx context.Context) ([]Target, error)

	// Close shuts the host connection down and closes Events
	Close() error
}
