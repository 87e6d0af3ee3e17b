package models

// EventType tags one entry of a job's progress stream or the pool-wide
// reload broadcast.
type EventType string

const (
	EventStatus      EventType = "status"
	EventLog         EventType = "log"
	EventDone        EventType = "done"
	EventError       EventType = "error"
	EventReloadReady EventType = "hot-reload-ready"
)

// BuildEvent is the single wire shape for all event kinds; unused fields are
// omitted from the JSON encoding. Subscribers terminate on any terminal event.
type BuildEvent struct {
	Type        EventType `json:"type"`
	JobID       string    `json:"jobId,omitempty"`
	Phase       string    `json:"phase,omitempty"`
	Stream      string    `json:"stream,omitempty"`
	Message     string    `json:"message,omitempty"`
	PreviewPath string    `json:"previewPath,omitempty"`
	TargetJobID string    `json:"targetJobId,omitempty"`
	Timestamp   int64     `json:"timestamp,omitempty"`
}

// Terminal reports whether the event ends a per-job subscription.
func (e BuildEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
