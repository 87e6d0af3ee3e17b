package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/custom_errors"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/compiler"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/events"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/models"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/queue"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/state"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/storage"
)

// ===================== Compiler Mock =========================
type MockCompiler struct {
	MockCompile func(ctx context.Context, req compiler.Request, logf compiler.LogFunc) error
}

func (m *MockCompiler) Compile(ctx context.Context, req compiler.Request, logf compiler.LogFunc) error {
	return m.MockCompile(ctx, req, logf)
}

type pipelineFixture struct {
	queue       *queue.BuildQueue
	bus         *events.Bus
	scratch     *storage.ScratchStore
	scratchRoot string
	artifacts   *storage.ArtifactStore
	pipeline    *Pipeline
}

func newFixture(t *testing.T, mock *MockCompiler) *pipelineFixture {
	t.Helper()
	bus := events.NewBus()
	q := queue.New(queue.Config{
		MaxJobs:        50,
		MaxConcurrent:  4,
		MaxCompleted:   10,
		ProcessTimeout: time.Minute,
	}, bus)
	scratchRoot := t.TempDir()
	scratch := storage.NewScratchStore(scratchRoot)
	artifacts := storage.NewArtifactStore(t.TempDir())
	return &pipelineFixture{
		queue:       q,
		bus:         bus,
		scratch:     scratch,
		scratchRoot: scratchRoot,
		artifacts:   artifacts,
		pipeline:    New(q, bus, scratch, artifacts, mock),
	}
}

// claim enqueues the job and dequeues it into processing, as the worker pool
// would.
func (f *pipelineFixture) claim(t *testing.T, job *models.BuildJob) *models.BuildJob {
	t.Helper()
	_, err := f.queue.Enqueue(job)
	require.NoError(t, err)
	claimed := f.queue.Dequeue()
	require.NotNil(t, claimed)
	require.Equal(t, job.ID, claimed.ID)
	return claimed
}

func drain(ch <-chan models.BuildEvent) []models.BuildEvent {
	var out []models.BuildEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestPipeline_SuccessfulBuild(t *testing.T) {
	mock := &MockCompiler{
		MockCompile: func(ctx context.Context, req compiler.Request, logf compiler.LogFunc) error {
			logf("stdout", "cache hit")
			return os.WriteFile(filepath.Join(req.Dir, req.Output), []byte("compiled:"+req.Entry), 0o644)
		},
	}
	f := newFixture(t, mock)

	job := f.claim(t, &models.BuildJob{
		ID:         "job-1",
		EntryPoint: "main.c",
		Files:      []models.SourceFile{{Path: "main.c", Content: "int main(void){return 0;}"}},
	})
	ch, _ := f.bus.Subscribe("job-1")

	f.pipeline.Run(context.Background(), job)

	got, ok := f.queue.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, state.StatusDone, got.Status)
	assert.Equal(t, "builds/job-1/index.html", got.PreviewPath)

	evs := drain(ch)
	var phases []string
	var sawLog, sawDone bool
	for _, ev := range evs {
		switch ev.Type {
		case models.EventStatus:
			phases = append(phases, ev.Phase)
		case models.EventLog:
			sawLog = true
		case models.EventDone:
			sawDone = true
			assert.Equal(t, "builds/job-1/index.html", ev.PreviewPath)
		}
	}
	assert.Equal(t, []string{"materializing", "compiling", "promoting"}, phases)
	assert.True(t, sawLog)
	assert.True(t, sawDone)

	// Promotion carries the compiled output plus the preview attachments.
	for _, name := range []string{"game.js", "index.html", "reload.js", "main.c"} {
		file, err := f.artifacts.Open("job-1", name)
		require.NoError(t, err, "promoted artifact must contain %s", name)
		file.Close()
	}

	// Scratch space is discarded after promotion.
	_, err := os.Stat(filepath.Join(f.scratchRoot, "job-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestPipeline_CompileFailureSurfacesDiagnostics(t *testing.T) {
	mock := &MockCompiler{
		MockCompile: func(ctx context.Context, req compiler.Request, logf compiler.LogFunc) error {
			return &custom_errors.CompileError{
				ExitCode: 1,
				Output:   "game/game.c:42:1: error: expected ';' after expression",
			}
		},
	}
	f := newFixture(t, mock)

	job := f.claim(t, &models.BuildJob{
		ID:         "job-1",
		EntryPoint: "main.c",
		Files:      []models.SourceFile{{Path: "game/game.c", Content: "broken"}},
	})
	ch, _ := f.bus.Subscribe("job-1")

	f.pipeline.Run(context.Background(), job)

	got, _ := f.queue.Get("job-1")
	assert.Equal(t, state.StatusError, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "expected ';'")

	evs := drain(ch)
	last := evs[len(evs)-1]
	assert.Equal(t, models.EventError, last.Type)
	assert.Contains(t, last.Message, "expected ';'")
}

func TestPipeline_SideModulePatch(t *testing.T) {
	mock := &MockCompiler{
		MockCompile: func(ctx context.Context, req compiler.Request, logf compiler.LogFunc) error {
			content := req.JobID + ":" + req.Output
			return os.WriteFile(filepath.Join(req.Dir, req.Output), []byte(content), 0o644)
		},
	}
	f := newFixture(t, mock)

	// Promote the target build first; the caller guarantees this ordering.
	target := f.claim(t, &models.BuildJob{
		ID:         "target",
		EntryPoint: "main.c",
		Files: []models.SourceFile{
			{Path: "main.c", Content: "int main(void){return 0;}"},
			{Path: "game/game.c", Content: "void update_game(void){}"},
		},
	})
	f.pipeline.Run(context.Background(), target)
	got, _ := f.queue.Get("target")
	require.Equal(t, state.StatusDone, got.Status)

	reload, cancelReload := f.bus.SubscribeBroadcast()
	defer cancelReload()

	patch := f.claim(t, &models.BuildJob{
		ID:            "patch",
		EntryPoint:    "game/game.c",
		TargetBuildID: "target",
		Files: []models.SourceFile{
			{Path: "game/game.c", Content: "void update_game(void){ /* tuned */ }"},
			{Path: "game/game.h", Content: "#pragma once"},
		},
	})
	f.pipeline.Run(context.Background(), patch)

	got, _ = f.queue.Get("patch")
	require.Equal(t, state.StatusDone, got.Status)

	// The reload event names the target build, not the patch job.
	ev := <-reload
	assert.Equal(t, models.EventReloadReady, ev.Type)
	assert.Equal(t, "target", ev.TargetJobID)
	assert.NotZero(t, ev.Timestamp)

	// The target's side module was replaced in place.
	file, err := f.artifacts.Open("target", "game.wasm")
	require.NoError(t, err)
	defer file.Close()
	data, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	assert.Equal(t, "patch:game.wasm", string(data))

	// The target's main module is untouched.
	file2, err := f.artifacts.Open("target", "game.js")
	require.NoError(t, err)
	defer file2.Close()
	data, err = os.ReadFile(file2.Name())
	require.NoError(t, err)
	assert.Equal(t, "target:game.js", string(data))
}

func TestPipeline_PatchAgainstUnpromotedTargetFails(t *testing.T) {
	mock := &MockCompiler{
		MockCompile: func(ctx context.Context, req compiler.Request, logf compiler.LogFunc) error {
			return os.WriteFile(filepath.Join(req.Dir, req.Output), []byte("wasm"), 0o644)
		},
	}
	f := newFixture(t, mock)

	patch := f.claim(t, &models.BuildJob{
		ID:            "patch",
		EntryPoint:    "game/game.c",
		TargetBuildID: "missing-target",
		Files:         []models.SourceFile{{Path: "game/game.c", Content: "x"}},
	})
	f.pipeline.Run(context.Background(), patch)

	got, _ := f.queue.Get("patch")
	assert.Equal(t, state.StatusError, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "patching-target")
}

func TestPipeline_PanicBecomesJobError(t *testing.T) {
	mock := &MockCompiler{
		MockCompile: func(ctx context.Context, req compiler.Request, logf compiler.LogFunc) error {
			panic("toolchain wrapper bug")
		},
	}
	f := newFixture(t, mock)

	job := f.claim(t, &models.BuildJob{
		ID:         "job-1",
		EntryPoint: "main.c",
		Files:      []models.SourceFile{{Path: "main.c", Content: "x"}},
	})

	require.NotPanics(t, func() {
		f.pipeline.Run(context.Background(), job)
	})

	got, _ := f.queue.Get("job-1")
	assert.Equal(t, state.StatusError, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "internal pipeline error")
}

func TestPipeline_LateSuccessAfterTimeoutIsRejected(t *testing.T) {
	mock := &MockCompiler{
		MockCompile: func(ctx context.Context, req compiler.Request, logf compiler.LogFunc) error {
			return os.WriteFile(filepath.Join(req.Dir, req.Output), []byte("wasm"), 0o644)
		},
	}
	f := newFixture(t, mock)

	job := f.claim(t, &models.BuildJob{
		ID:         "slow",
		EntryPoint: "main.c",
		Files:      []models.SourceFile{{Path: "main.c", Content: "x"}},
	})

	// The sweep reclassifies the job while the pipeline is still running.
	swept := f.queue.TimeoutSweep(time.Now().Add(2 * time.Minute))
	require.Equal(t, 1, swept)

	require.NotPanics(t, func() {
		f.pipeline.Run(context.Background(), job)
	})

	got, _ := f.queue.Get("slow")
	assert.Equal(t, state.StatusTimeout, got.Status, "timeout verdict must stand")
}
