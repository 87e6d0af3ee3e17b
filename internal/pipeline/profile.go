package pipeline

import (
	"path"
	"strings"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/models"
)

// Artifact names follow the layout the preview shell expects: emcc emits the
// main module as game.js (+ its wasm), and the reloadable side module is
// always game.wasm.
const (
	MainArtifact = "game.js"
	SideArtifact = "game.wasm"
)

var (
	defaultFlags = []string{"-sUSE_SDL=2", "-sALLOW_MEMORY_GROWTH=1", "-O2"}
	mainFlags    = []string{"-sMAIN_MODULE=2", "-sUSE_SDL=2", "-sALLOW_MEMORY_GROWTH=1"}
	sideFlags    = []string{"-sSIDE_MODULE=1", "-O2"}
)

// compileStep is one toolchain invocation resolved from the job's profile.
type compileStep struct {
	entry  string
	output string
	flags  []string
}

// resolveSteps picks the build profile for a job.
//
// An explicit profile is used verbatim after stripping entry/output flags
// (those are derived from the job, never passed through). Otherwise the shape
// of the payload decides: a side-module rebuild compiles only the side
// artifact; a project with a live subtree gets the dual-module profile; and
// everything else gets the single default profile.
func resolveSteps(job *models.BuildJob) []compileStep {
	if job.Profile != nil {
		output := job.Profile.Output
		if output == "" {
			output = MainArtifact
		}
		return []compileStep{{
			entry:  job.EntryPoint,
			output: output,
			flags:  stripReservedFlags(job.Profile.Flags, job.EntryPoint, output),
		}}
	}

	if job.TargetBuildID != "" {
		return []compileStep{{
			entry:  job.EntryPoint,
			output: SideArtifact,
			flags:  sideFlags,
		}}
	}

	if job.HasLiveSubtree() {
		return []compileStep{
			{entry: job.EntryPoint, output: MainArtifact, flags: mainFlags},
			{entry: liveEntry(job), output: SideArtifact, flags: sideFlags},
		}
	}

	return []compileStep{{entry: job.EntryPoint, output: MainArtifact, flags: defaultFlags}}
}

// liveEntry finds the C source inside the live subtree that becomes the side
// module.
func liveEntry(job *models.BuildJob) string {
	for _, f := range job.Files {
		if models.UnderLiveSubtree(f.Path) && strings.HasSuffix(f.Path, ".c") {
			return path.Clean(f.Path)
		}
	}
	return path.Join(models.LiveSubtree, "game.c")
}

// stripReservedFlags drops entry and output flags from an explicit profile.
func stripReservedFlags(flags []string, entry, output string) []string {
	out := make([]string, 0, len(flags))
	skipNext := false
	for _, f := range flags {
		if skipNext {
			skipNext = false
			continue
		}
		switch {
		case f == "-o":
			skipNext = true
		case strings.HasPrefix(f, "-o") && len(f) > 2:
			// -ogame.js form
		case f == entry || f == output:
		default:
			out = append(out, f)
		}
	}
	return out
}
