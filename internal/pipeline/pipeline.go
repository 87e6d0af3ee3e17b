package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/custom_errors"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/compiler"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/events"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/models"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/queue"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/state"
)

// ScratchTier is the slice of the ephemeral store the pipeline needs.
type ScratchTier interface {
	Dir(jobID string) (string, error)
	WriteFile(jobID string, f models.SourceFile) error
	Remove(jobID string) error
}

// ArtifactTier is the slice of the durable store the pipeline needs.
type ArtifactTier interface {
	Promote(jobID, scratchDir string) error
	PatchFile(sourceJobID, targetJobID, name string) error
	Exists(jobID string) bool
}

// Pipeline executes one job end-to-end: materialize the payload into scratch
// space, compile, promote into durable storage, optionally patch a target
// build's side module, and report the terminal state back to the queue.
//
// Side effects are scoped to the two storage tiers, the compiler subprocess
// and the event bus; the queue is only touched through UpdateJob.
type Pipeline struct {
	queue     *queue.BuildQueue
	bus       *events.Bus
	scratch   ScratchTier
	artifacts ArtifactTier
	compiler  compiler.Compiler
}

func New(q *queue.BuildQueue, bus *events.Bus, scratch ScratchTier, artifacts ArtifactTier, c compiler.Compiler) *Pipeline {
	return &Pipeline{
		queue:     q,
		bus:       bus,
		scratch:   scratch,
		artifacts: artifacts,
		compiler:  c,
	}
}

// Run drives the job through its phases. It never panics through to the
// caller: any uncaught failure becomes a terminal job error so the worker
// slot is always released.
func (p *Pipeline) Run(ctx context.Context, job *models.BuildJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("job %s: pipeline panic: %v", job.ID, r)
			p.fail(job.ID, fmt.Sprintf("internal pipeline error: %v", r))
		}
	}()

	previewPath, err := p.run(ctx, job)
	if err != nil {
		p.fail(job.ID, err.Error())
		return
	}
	p.succeed(job.ID, previewPath)
}

func (p *Pipeline) run(ctx context.Context, job *models.BuildJob) (string, error) {
	// Materializing.
	p.phase(job.ID, "materializing")
	started := time.Now()
	for _, f := range job.Files {
		if err := p.scratch.WriteFile(job.ID, f); err != nil {
			return "", &custom_errors.PipelineError{Phase: "materializing", Err: err}
		}
	}
	scratchDir, err := p.scratch.Dir(job.ID)
	if err != nil {
		return "", &custom_errors.PipelineError{Phase: "materializing", Err: err}
	}
	log.Printf("job %s: materialized %d files in %s", job.ID, len(job.Files), time.Since(started))

	// Compiling.
	p.phase(job.ID, "compiling")
	steps := resolveSteps(job)
	sideBuilt := false
	for _, step := range steps {
		err := p.compiler.Compile(ctx, compiler.Request{
			JobID:  job.ID,
			Dir:    scratchDir,
			Entry:  step.entry,
			Output: step.output,
			Flags:  step.flags,
		}, func(stream, line string) {
			p.bus.Publish(job.ID, models.BuildEvent{
				Type:      models.EventLog,
				JobID:     job.ID,
				Stream:    stream,
				Message:   line,
				Timestamp: time.Now().UnixMilli(),
			})
		})
		if err != nil {
			return "", err
		}
		if step.output == SideArtifact {
			sideBuilt = true
		}
	}

	// Promoting.
	p.phase(job.ID, "promoting")
	if err := p.attachPreview(job); err != nil {
		return "", &custom_errors.PipelineError{Phase: "promoting", Err: err}
	}
	if err := p.artifacts.Promote(job.ID, scratchDir); err != nil {
		return "", &custom_errors.PipelineError{Phase: "promoting", Err: err}
	}
	if err := p.scratch.Remove(job.ID); err != nil {
		log.Printf("job %s: scratch cleanup: %v", job.ID, err)
	}

	// Patching the target build's side module.
	if job.TargetBuildID != "" && sideBuilt {
		p.phase(job.ID, "patching-target")
		if err := p.artifacts.PatchFile(job.ID, job.TargetBuildID, SideArtifact); err != nil {
			return "", &custom_errors.PipelineError{Phase: "patching-target", Err: err}
		}
		p.bus.Broadcast(models.BuildEvent{
			Type:        models.EventReloadReady,
			TargetJobID: job.TargetBuildID,
			Timestamp:   time.Now().UnixMilli(),
		})
		log.Printf("job %s: patched %s into build %s", job.ID, SideArtifact, job.TargetBuildID)
	}

	return fmt.Sprintf("builds/%s/index.html", job.ID), nil
}

// attachPreview writes the reload bootstrap and the generated canvas shell
// into the scratch directory so they are promoted with the build.
func (p *Pipeline) attachPreview(job *models.BuildJob) error {
	if err := p.scratch.WriteFile(job.ID, models.SourceFile{Path: "reload.js", Content: reloadBootstrap}); err != nil {
		return err
	}
	return p.scratch.WriteFile(job.ID, models.SourceFile{Path: "index.html", Content: previewHarness(job.ID)})
}

func (p *Pipeline) phase(jobID, phase string) {
	p.bus.Publish(jobID, models.BuildEvent{
		Type:      models.EventStatus,
		JobID:     jobID,
		Phase:     phase,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (p *Pipeline) succeed(jobID, previewPath string) {
	if _, err := p.queue.UpdateJob(jobID, state.MarkDone{PreviewPath: previewPath}); err != nil {
		// Most likely the timeout sweep got here first; the job is already
		// terminal and its channel closed.
		log.Printf("job %s: success report rejected: %v", jobID, err)
		return
	}
	p.bus.Publish(jobID, models.BuildEvent{
		Type:        models.EventDone,
		JobID:       jobID,
		PreviewPath: previewPath,
		Timestamp:   time.Now().UnixMilli(),
	})
	p.bus.CloseJob(jobID)
}

func (p *Pipeline) fail(jobID, message string) {
	if _, err := p.queue.UpdateJob(jobID, state.MarkError{Message: message}); err != nil {
		log.Printf("job %s: failure report rejected: %v", jobID, err)
		return
	}
	p.bus.Publish(jobID, models.BuildEvent{
		Type:      models.EventError,
		JobID:     jobID,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
	p.bus.CloseJob(jobID)
}
