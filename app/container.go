package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/compiler"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/events"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/pipeline"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/queue"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/storage"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/workerpool"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/types/config"
)

// Container holds all application dependencies. It is the single source of truth
// for dependency injection and ensures services are created once.
type Container struct {
	Config *config.EngineConfig

	// Infrastructure
	Bus       *events.Bus
	Queue     *queue.BuildQueue
	Scratch   *storage.ScratchStore
	Artifacts *storage.ArtifactStore

	// Build machinery
	Compiler compiler.Compiler
	Pipeline *pipeline.Pipeline
	Pool     *workerpool.Pool

	scheduler *cron.Cron
}

// NewContainer creates and wires all dependencies. Single entry point for DI.
// Call this once per application lifecycle.
// Pass WithCompiler to inject a compiler for testing.
func NewContainer(cfg *config.EngineConfig, opts ...ContainerOption) (*Container, error) {
	opt := &containerConfig{}
	for _, o := range opts {
		o(opt)
	}

	bus := events.NewBus()
	buildQueue := queue.New(queue.Config{
		MaxJobs:        cfg.MaxJobs,
		MaxConcurrent:  cfg.MaxConcurrent,
		MaxCompleted:   cfg.MaxCompleted,
		ProcessTimeout: cfg.ProcessTimeout(),
	}, bus)

	scratch := storage.NewScratchStore(cfg.ScratchDir)
	artifacts := storage.NewArtifactStore(cfg.ArtifactsDir)

	comp := opt.compiler
	if comp == nil {
		comp = compiler.NewToolchain(cfg.CompilerCommand, cfg.CompileTimeout())
	}

	buildPipeline := pipeline.New(buildQueue, bus, scratch, artifacts, comp)
	pool := workerpool.New(cfg.Workers, buildQueue, bus, buildPipeline)

	c := &Container{
		Config:    cfg,
		Bus:       bus,
		Queue:     buildQueue,
		Scratch:   scratch,
		Artifacts: artifacts,
		Compiler:  comp,
		Pipeline:  buildPipeline,
		Pool:      pool,
	}

	if err := c.initScheduler(); err != nil {
		return nil, err
	}
	return c, nil
}

// initScheduler registers the timeout sweep and store cleanup on their
// configured intervals.
func (c *Container) initScheduler() error {
	scheduler := cron.New(cron.WithSeconds())

	sweepEvery := fmt.Sprintf("@every %ds", c.Config.SweepIntervalSeconds)
	if _, err := scheduler.AddFunc(sweepEvery, func() {
		if n := c.Queue.TimeoutSweep(time.Now()); n > 0 {
			log.Printf("timeout sweep: reclassified %d jobs", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule timeout sweep: %w", err)
	}

	cleanupEvery := fmt.Sprintf("@every %ds", c.Config.CleanupIntervalSeconds)
	if _, err := scheduler.AddFunc(cleanupEvery, func() {
		c.Queue.Cleanup()
	}); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}

	c.scheduler = scheduler
	return nil
}

// Start brings up the worker pool and the maintenance schedules.
func (c *Container) Start(ctx context.Context) {
	c.Pool.Start(ctx)
	c.scheduler.Start()
	log.Printf("engine started: %d workers, %d concurrent builds", c.Config.Workers, c.Config.MaxConcurrent)
}

// Shutdown stops the maintenance schedules, waits for in-flight builds to
// finish (bounded by ctx), then stops the pool.
func (c *Container) Shutdown(ctx context.Context) error {
	<-c.scheduler.Stop().Done()

	if err := c.Pool.Drain(ctx); err != nil {
		c.Pool.Stop()
		return fmt.Errorf("drain worker pool: %w", err)
	}
	c.Pool.Stop()
	log.Println("engine shutdown complete")
	return nil
}
