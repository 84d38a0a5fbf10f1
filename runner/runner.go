// Package runner executes approved commands and captures their results.
// Exactly one child process is spawned per request, directly from an
// argument vector and never through a shell. A nonzero exit or a timeout
// is an ordinary result, not an error.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/deepnoodle-ai/toolbench/slogger"
)

const (
	// DefaultTimeout applies when a request carries no timeout.
	DefaultTimeout = 2 * time.Minute

	// MaxTimeout caps any requested timeout.
	MaxTimeout = 10 * time.Minute

	// DefaultMaxOutputBytes is the per-stream capture ceiling.
	DefaultMaxOutputBytes = 1 << 20 // 1 MiB

	// timeoutExitCode is substituted when a timed-out process leaves no
	// exit code of its own. 124 matches the coreutils timeout convention.
	timeoutExitCode = 124
)

// Request describes one command execution. It is immutable once
// constructed: built per invocation, discarded after the result is read.
type Request struct {
	// Program is the executable to run, resolved via PATH unless it
	// contains a path separator.
	Program string

	// Args is the argument vector, passed through verbatim. No shell
	// syntax, piping, or globbing is interpreted.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds environment overrides merged onto the current process
	// environment. The process environment itself is never mutated.
	Env map[string]string

	// Timeout bounds the wall-clock run time. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Result captures everything a finished execution produced. It is created
// exactly once per request and owned solely by the caller.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int

	// Duration is wall-clock time from spawn to exit or forced
	// termination.
	Duration time.Duration

	// TimedOut is set when the process was terminated at the deadline.
	TimedOut bool

	// Signal names the signal that ended the process, if any.
	Signal string

	// StdoutDropped and StderrDropped count bytes discarded beyond the
	// per-stream capture ceiling. Truncation is reported, never an error.
	StdoutDropped int
	StderrDropped int
}

// Truncated reports whether either stream lost bytes to the ceiling.
func (r *Result) Truncated() bool {
	return r.StdoutDropped > 0 || r.StderrDropped > 0
}

// Combined returns stdout followed by stderr, the conventional order for
// downstream consumers.
func (r *Result) Combined() string {
	return r.Stdout + r.Stderr
}

// Options configures a Runner.
type Options struct {
	// MaxOutputBytes caps the bytes captured per stream. Defaults to
	// DefaultMaxOutputBytes.
	MaxOutputBytes int

	// Logger receives per-execution debug logging. Defaults to a discard
	// logger.
	Logger slogger.Logger
}

// Runner executes commands. It holds no per-call state, so a single Runner
// may serve any number of concurrent executions; the framework imposes no
// concurrency cap beyond the host's process limits.
type Runner struct {
	maxOutputBytes int
	logger         slogger.Logger
}

// New creates a Runner with the given options.
func New(opts ...Options) *Runner {
	var resolved Options
	if len(opts) > 0 {
		resolved = opts[0]
	}
	if resolved.MaxOutputBytes <= 0 {
		resolved.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if resolved.Logger == nil {
		resolved.Logger = slogger.Discard()
	}
	return &Runner{
		maxOutputBytes: resolved.MaxOutputBytes,
		logger:         resolved.Logger,
	}
}

// Run executes the request and blocks until the child exits or the timeout
// fires. A non-nil error is returned only when the process could not be
// spawned at all (program not found, unusable working directory); command
// failure and timeout are reported inside the Result.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Program == "" {
		return nil, fmt.Errorf("no program specified")
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, req.Program, req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = mergeEnviron(req.Env)

	stdout := newCapBuffer(r.maxOutputBytes)
	stderr := newCapBuffer(r.maxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
		Duration:      time.Since(start),
		StdoutDropped: stdout.Dropped(),
		StderrDropped: stderr.Dropped(),
	}

	if err := finishResult(result, runErr, ctx.Err() == context.DeadlineExceeded); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", req.Program, runErr)
	}

	r.logger.Debug("command finished",
		"program", req.Program,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
		"timed_out", result.TimedOut,
		"truncated", result.Truncated())
	return result, nil
}

// finishResult classifies how the run ended and applies timeout
// reporting. A non-nil return means the process never ran at all.
//
// A run counts as timed out only when it actually failed at the deadline:
// a process that exits cleanly just as the deadline fires produced a real
// result and is reported as such. When the deadline killed the child
// before it could report any exit (runErr is the bare context error, not
// an *exec.ExitError), the OS supplied no exit code and the conventional
// 124 is substituted.
func finishResult(result *Result, runErr error, deadlineExceeded bool) error {
	timedOut := deadlineExceeded && runErr != nil
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			result.ExitCode = exitErr.ExitCode()
			result.Signal = signalName(exitErr)
		case timedOut:
			result.ExitCode = -1
		default:
			return runErr
		}
	}
	if timedOut {
		result.TimedOut = true
		if result.Signal == "" {
			result.Signal = "SIGKILL"
		}
		if result.ExitCode < 0 {
			result.ExitCode = timeoutExitCode
		}
	}
	return nil
}

// mergeEnviron layers overrides onto a copy of the current process
// environment. Overridden keys replace inherited values; new keys are
// appended in sorted order for determinism.
func mergeEnviron(overrides map[string]string) []string {
	base := os.Environ()
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if ok {
			if _, overridden := overrides[key]; overridden {
				continue
			}
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out = append(out, key+"="+overrides[key])
	}
	return out
}

// waitSignaler matches the unix syscall.WaitStatus method set. On
// platforms without signal reporting the assertion simply fails and no
// signal name is recorded.
type waitSignaler interface {
	Signaled() bool
	Signal() syscall.Signal
}

func signalName(exitErr *exec.ExitError) string {
	ws, ok := exitErr.Sys().(waitSignaler)
	if !ok || !ws.Signaled() {
		return ""
	}
	switch ws.Signal() {
	case syscall.SIGKILL:
		return "SIGKILL"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGHUP:
		return "SIGHUP"
	case syscall.SIGQUIT:
		return "SIGQUIT"
	case syscall.SIGSEGV:
		return "SIGSEGV"
	case syscall.SIGPIPE:
		return "SIGPIPE"
	default:
		return strings.ToUpper(ws.Signal().String())
	}
}
