package runner

import (
	"context"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires unix coreutils")
	}
}

func TestRunner_CapturesStdoutAndStderr(t *testing.T) {
	skipOnWindows(t)
	r := New()

	result, err := r.Run(context.Background(), Request{
		Program: "sh",
		Args:    []string{"-c", "echo out; echo err 1>&2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
	assert.Equal(t, "out\nerr\n", result.Combined())
	assert.False(t, result.TimedOut)
	assert.Empty(t, result.Signal)
	assert.False(t, result.Truncated())
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestRunner_NonzeroExitIsAResult(t *testing.T) {
	skipOnWindows(t)
	r := New()

	result, err := r.Run(context.Background(), Request{
		Program: "sh",
		Args:    []string{"-c", "exit 3"},
	})
	require.NoError(t, err, "nonzero exit is an ordinary result")
	assert.Equal(t, 3, result.ExitCode)
}

func TestRunner_SpawnFailureIsAnError(t *testing.T) {
	r := New()
	_, err := r.Run(context.Background(), Request{
		Program: "definitely-not-a-real-program-12345",
	})
	assert.Error(t, err)
}

func TestRunner_EmptyProgram(t *testing.T) {
	r := New()
	_, err := r.Run(context.Background(), Request{})
	assert.Error(t, err)
}

func TestRunner_Timeout(t *testing.T) {
	skipOnWindows(t)
	r := New()

	start := time.Now()
	result, err := r.Run(context.Background(), Request{
		Program: "sleep",
		Args:    []string{"10"},
		Timeout: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)
	require.NoError(t, err, "a timeout is an ordinary result")

	assert.True(t, result.TimedOut)
	assert.Equal(t, 124, result.ExitCode)
	assert.Equal(t, "SIGKILL", result.Signal)
	assert.Less(t, elapsed, 5*time.Second, "run must return promptly after the deadline")
}

func TestRunner_TimeoutBeforeProcessReportsExit(t *testing.T) {
	skipOnWindows(t)
	r := New()

	// A deadline this short expires before the child can report any
	// exit, so cmd.Run surfaces the bare context error instead of an
	// ExitError. The result must still carry the conventional 124, not
	// a zero exit that reads as success.
	result, err := r.Run(context.Background(), Request{
		Program: "sleep",
		Args:    []string{"5"},
		Timeout: time.Nanosecond,
	})
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, 124, result.ExitCode)
	assert.Equal(t, "SIGKILL", result.Signal)
}

func TestFinishResult_TimeoutWithoutExitError(t *testing.T) {
	result := &Result{}
	err := finishResult(result, context.DeadlineExceeded, true)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, 124, result.ExitCode)
	assert.Equal(t, "SIGKILL", result.Signal)
}

func TestFinishResult_CleanExitAtDeadlineIsNotATimeout(t *testing.T) {
	// The process exited 0 exactly as the deadline fired: it was never
	// signaled, so the result must not be misreported as timed out.
	result := &Result{}
	err := finishResult(result, nil, true)
	require.NoError(t, err)
	assert.False(t, result.TimedOut)
	assert.Equal(t, 0, result.ExitCode)
	assert.Empty(t, result.Signal)
}

func TestFinishResult_SpawnFailure(t *testing.T) {
	result := &Result{}
	err := finishResult(result, os.ErrNotExist, false)
	assert.Error(t, err)
}

func TestRunner_WorkingDirectory(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	r := New()

	result, err := r.Run(context.Background(), Request{
		Program: "pwd",
		Dir:     dir,
	})
	require.NoError(t, err)
	// Resolve both sides through the shell's view: pwd prints the
	// physical directory, which may differ from dir on symlinked
	// temp roots, so compare suffixes.
	assert.True(t, strings.HasSuffix(strings.TrimSpace(result.Stdout), "/"+trailingComponent(dir)),
		"pwd %q should end with %q", result.Stdout, trailingComponent(dir))
}

func trailingComponent(path string) string {
	parts := strings.Split(strings.TrimRight(path, "/"), "/")
	return parts[len(parts)-1]
}

func TestRunner_EnvOverrides(t *testing.T) {
	skipOnWindows(t)
	t.Setenv("TOOLBENCH_TEST_INHERITED", "inherited")
	t.Setenv("TOOLBENCH_TEST_REPLACED", "original")
	r := New()

	result, err := r.Run(context.Background(), Request{
		Program: "sh",
		Args:    []string{"-c", "echo $TOOLBENCH_TEST_INHERITED $TOOLBENCH_TEST_REPLACED $TOOLBENCH_TEST_ADDED"},
		Env: map[string]string{
			"TOOLBENCH_TEST_REPLACED": "replaced",
			"TOOLBENCH_TEST_ADDED":    "added",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "inherited replaced added\n", result.Stdout)

	// The parent environment is untouched.
	assert.Equal(t, "original", os.Getenv("TOOLBENCH_TEST_REPLACED"))
}

func TestRunner_OutputTruncation(t *testing.T) {
	skipOnWindows(t)
	r := New(Options{MaxOutputBytes: 100})

	result, err := r.Run(context.Background(), Request{
		Program: "sh",
		Args:    []string{"-c", "for i in $(seq 1 100); do echo 'line of output'; done"},
	})
	require.NoError(t, err)
	assert.Len(t, result.Stdout, 100)
	assert.True(t, result.Truncated())
	assert.Greater(t, result.StdoutDropped, 0)
	assert.Zero(t, result.StderrDropped)
}

func TestMergeEnviron_Deterministic(t *testing.T) {
	overrides := map[string]string{"B_KEY": "2", "A_KEY": "1", "C_KEY": "3"}
	first := mergeEnviron(overrides)
	second := mergeEnviron(overrides)
	assert.Equal(t, first, second)

	tail := first[len(first)-3:]
	assert.Equal(t, []string{"A_KEY=1", "B_KEY=2", "C_KEY=3"}, tail)
}

func TestCapBuffer(t *testing.T) {
	b := newCapBuffer(10)

	n, err := b.Write([]byte("12345"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = b.Write([]byte("6789012345"))
	require.NoError(t, err)
	assert.Equal(t, 10, n, "writes report full consumption even when capped")

	assert.Equal(t, "1234567890", b.String())
	assert.Equal(t, 5, b.Dropped())

	n, err = b.Write([]byte("more"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 9, b.Dropped())
}
