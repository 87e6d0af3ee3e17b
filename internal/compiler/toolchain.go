package compiler

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/custom_errors"
)

// maxCapturedStderr bounds the diagnostic text carried into a CompileError.
const maxCapturedStderr = 64 * 1024

// Request describes one compiler invocation. Paths are relative to Dir.
type Request struct {
	JobID  string
	Dir    string
	Entry  string
	Output string
	Flags  []string
}

// LogFunc receives one line of toolchain output. Stream is "stdout" or
// "stderr".
type LogFunc func(stream, line string)

// Compiler is the invocation boundary the build pipeline depends on.
type Compiler interface {
	Compile(ctx context.Context, req Request, logf LogFunc) error
}

// Toolchain runs the Emscripten compiler as a subprocess, streaming its
// output line by line. Timeout is a hard wall-clock guard independent of the
// queue's processing deadline.
type Toolchain struct {
	Command string
	Timeout time.Duration
}

func NewToolchain(command string, timeout time.Duration) *Toolchain {
	return &Toolchain{Command: command, Timeout: timeout}
}

// Compile builds the argv as (entry, -o output, flags...), spawns the
// toolchain and waits for exit. A spawn failure is reported as SpawnError;
// a non-zero exit as CompileError carrying the captured stderr.
func (t *Toolchain) Compile(ctx context.Context, req Request, logf LogFunc) error {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	args := append([]string{req.Entry, "-o", req.Output}, req.Flags...)
	cmd := exec.CommandContext(ctx, t.Command, args...)
	cmd.Dir = req.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &custom_errors.SpawnError{Tool: t.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &custom_errors.SpawnError{Tool: t.Command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return &custom_errors.SpawnError{Tool: t.Command, Err: err}
	}

	var captured bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if logf != nil {
				logf("stdout", scanner.Text())
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if logf != nil {
				logf("stderr", line)
			}
			if captured.Len() < maxCapturedStderr {
				captured.WriteString(line)
				captured.WriteByte('\n')
			}
		}
	}()

	wg.Wait()
	err = cmd.Wait()
	if err == nil {
		return nil
	}

	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	return &custom_errors.CompileError{
		ExitCode: exitCode,
		Output:   captured.String(),
	}
}
