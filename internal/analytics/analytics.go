// Package analytics records user actions on accomplishments.
package analytics

import (
	"sync"

	"go.uber.org/zap"
)

// Action is a tracked accomplishment action.
type Action string

const (
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

// Category is the event category every accomplishment action is filed under.
const Category = "Accomplishment"

// Event is a single tracked action.
type Event struct {
	Action   Action
	Category string
	Label    string
	Value    int
}

// Tracker receives analytics events. Implementations must not block.
type Tracker interface {
	Track(action Action, details string)
}

// newEvent builds the event for action, labelling it with details or, when
// details is empty, the action name.
func newEvent(action Action, details string) Event {
	label := details
	if label == "" {
		label = string(action)
	}
	return Event{Action: action, Category: Category, Label: label}
}

// LogTracker writes events to a structured logger.
type LogTracker struct {
	log *zap.Logger
}

// NewLogTracker returns a Tracker that logs each event at info level.
func NewLogTracker(l *zap.Logger) *LogTracker {
	return &LogTracker{log: l.Named("analytics")}
}

// Track logs the event.
func (t *LogTracker) Track(action Action, details string) {
	ev := newEvent(action, details)
	t.log.Info("event",
		zap.String("action", string(ev.Action)),
		zap.String("category", ev.Category),
		zap.String("label", ev.Label),
	)
}

// Recorder keeps events in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Track appends the event.
func (r *Recorder) Track(action Action, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, newEvent(action, details))
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Nop discards every event.
type Nop struct{}

// Track does nothing.
func (Nop) Track(Action, string) {}
