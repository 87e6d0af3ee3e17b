package state

import "time"

type BuildStatus string

const (
	StatusPending    BuildStatus = "pending"
	StatusProcessing BuildStatus = "processing"
	StatusDone       BuildStatus = "done"
	StatusError      BuildStatus = "error"
	StatusCancelled  BuildStatus = "cancelled"
	StatusTimeout    BuildStatus = "timeout"
)

func (s BuildStatus) String() string {
	return string(s)
}

// Terminal reports whether a status allows no further transitions.
func (s BuildStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusError, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

var AllStatuses = []BuildStatus{
	StatusPending,
	StatusProcessing,
	StatusDone,
	StatusError,
	StatusCancelled,
	StatusTimeout,
}

type Transition struct {
	From BuildStatus
	To   BuildStatus
}

// ValidTransitions is the complete lifecycle. Cancellation is only reachable
// from pending; once a worker claims a job the only non-success outcomes are
// error and timeout.
var ValidTransitions = []Transition{
	{From: StatusPending, To: StatusProcessing},
	{From: StatusProcessing, To: StatusDone},
	{From: StatusProcessing, To: StatusError},
	{From: StatusPending, To: StatusCancelled},
	{From: StatusProcessing, To: StatusTimeout},
}

func IsValidTransition(from, to BuildStatus) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// Patch is one of the closed set of job updates. Every mutation of a stored
// job goes through a patch so the queue can reject invalid transitions in a
// single place instead of merging arbitrary fields.
type Patch interface {
	Status() BuildStatus
}

type MarkProcessing struct{}

func (MarkProcessing) Status() BuildStatus { return StatusProcessing }

type MarkDone struct {
	PreviewPath string
}

func (MarkDone) Status() BuildStatus { return StatusDone }

type MarkError struct {
	Message string
}

func (MarkError) Status() BuildStatus { return StatusError }

type MarkTimeout struct {
	Deadline time.Duration
}

func (MarkTimeout) Status() BuildStatus { return StatusTimeout }

type MarkCancelled struct {
	Reason string
}

func (MarkCancelled) Status() BuildStatus { return StatusCancelled }
