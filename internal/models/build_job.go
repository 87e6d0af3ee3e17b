package models

import (
	"path"
	"strings"
	"time"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/state"
)

// Priority tiers. Higher runs first. Live-subtree edits outrank side-module
// rebuilds, which outrank everything else.
const (
	PriorityDefault = 10
	PriorityPatch   = 50
	PriorityLive    = 100
)

// LiveSubtree is the project directory whose files belong to the hot-reload
// path. Edits under it get the highest priority tier.
const LiveSubtree = "game"

// SourceFile is one payload entry of a build job. Binary entries carry their
// content base64-encoded and are decoded during materialization.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Binary  bool   `json:"binary,omitempty"`
}

// BuildProfile is an explicit set of compiler flags supplied by the caller.
// Entry and output flags are derived from the job and stripped if present.
type BuildProfile struct {
	Flags  []string `json:"flags"`
	Output string   `json:"output,omitempty"`
}

// BuildJob is the unit of work. The id is assigned at the caller-facing
// boundary, never by the scheduler. After Enqueue the queue owns the record;
// workers hold a snapshot and report mutations back through UpdateJob.
type BuildJob struct {
	ID            string            `json:"id"`
	Files         []SourceFile      `json:"files,omitempty"`
	EntryPoint    string            `json:"entryPoint"`
	Language      string            `json:"language,omitempty"`
	Profile       *BuildProfile     `json:"profile,omitempty"`
	TargetBuildID string            `json:"targetBuildId,omitempty"`
	Priority      int               `json:"priority"`
	Status        state.BuildStatus `json:"status"`
	EnqueuedAt    time.Time         `json:"enqueuedAt"`
	StartedAt     *time.Time        `json:"startedAt,omitempty"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
	Error         *string           `json:"error,omitempty"`
	PreviewPath   string            `json:"previewPath,omitempty"`
}

// ComputePriority applies the tier rules for jobs without an explicit
// caller-supplied priority.
func (j *BuildJob) ComputePriority() int {
	for _, f := range j.Files {
		if UnderLiveSubtree(f.Path) {
			return PriorityLive
		}
	}
	if j.TargetBuildID != "" {
		return PriorityPatch
	}
	return PriorityDefault
}

// HasLiveSubtree reports whether any payload entry lives under the live
// module directory, which selects the dual-module build profile.
func (j *BuildJob) HasLiveSubtree() bool {
	for _, f := range j.Files {
		if UnderLiveSubtree(f.Path) {
			return true
		}
	}
	return false
}

// UnderLiveSubtree reports whether a project-relative path falls under the
// live subtree.
func UnderLiveSubtree(p string) bool {
	clean := path.Clean(strings.TrimPrefix(p, "/"))
	return clean == LiveSubtree || strings.HasPrefix(clean, LiveSubtree+"/")
}

// Clone returns a deep copy. The queue hands clones to callers and workers so
// the stored record is only ever mutated under the queue's own lock.
func (j *BuildJob) Clone() *BuildJob {
	dup := *j
	if j.Files != nil {
		dup.Files = make([]SourceFile, len(j.Files))
		copy(dup.Files, j.Files)
	}
	if j.Profile != nil {
		p := *j.Profile
		p.Flags = make([]string, len(j.Profile.Flags))
		copy(p.Flags, j.Profile.Flags)
		dup.Profile = &p
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		dup.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		dup.CompletedAt = &t
	}
	if j.Error != nil {
		e := *j.Error
		dup.Error = &e
	}
	return &dup
}
