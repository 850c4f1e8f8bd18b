// Package ven is the OpenADR 2.0 VEN core runtime: a poll worker asking
// the VTN for demand-response events and a control worker turning the
// currently active events into one aggregate signal level on a relay bank.
//
// The protocol payload codec, the event store and the interval selection
// algorithm are collaborators injected through the interfaces below.
package ven

import (
	"time"
)

// Signal is one interval of an event: a span usable for interval
// selection, the interval uid and the numeric signal level.
type Signal struct {
	Span  time.Duration
	ID    string
	Level float64
}

// Event is an opaque demand-response event owned by the EventHandler.
// The runtime only reads through these accessors and never mutates.
// Accessor errors isolate one malformed event from the rest of the batch.
type Event interface {
	ID() (string, error)
	ModNumber() (int, error)
	Status() (string, error)
	ActivePeriodStart() (time.Time, error)
	Signals() ([]Signal, error)
}

// EventHandler is the payload codec plus the in-memory event store.
//
// Implementations must be safe for concurrent use: the poll worker
// inserts and updates events while the control worker reads and removes
// them.
type EventHandler interface {
	// BuildRequestPayload returns the outbound event query document.
	BuildRequestPayload() ([]byte, error)

	// HandlePayload parses a VTN response, updates the event store and
	// returns the acknowledgment document to send back, nil for none.
	HandlePayload(body []byte) (reply []byte, err error)

	ActiveEvents() []Event
	RemoveEvents(ids []string)

	// CheckTargetInfo reports whether the event targets this VEN.
	CheckTargetInfo(Event) bool
}

// IntervalChooser resolves which interval of an event is active now.
// ok=false: the event is past its last interval, it has ended.
// idx<0: the event has not started yet.
// 0 <= idx < len(spans): spans[idx] is the active interval.
type IntervalChooser func(start time.Time, spans []time.Duration) (idx int, ok bool)
