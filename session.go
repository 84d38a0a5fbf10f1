package toolbench

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/toolbench/policy"
	"github.com/deepnoodle-ai/toolbench/runner"
	"github.com/deepnoodle-ai/toolbench/slogger"
)

// Session ties the policy gate, process runner, parser, and output
// composer into one invocation pipeline. A Session holds only references
// to process-wide read-only state, so any number of calls may run
// concurrently through the same Session.
type Session struct {
	registry *Registry
	config   *policy.Config
	runner   *runner.Runner
	logger   slogger.Logger
}

// SessionOptions configures a Session.
type SessionOptions struct {
	// Registry supplies the capability bundles. Required.
	Registry *Registry

	// Config is the policy configuration. Defaults to an unrestricted
	// config when nil.
	Config *policy.Config

	// Runner executes commands. Defaults to runner.New() when nil.
	Runner *runner.Runner

	// Logger receives invocation logging. Defaults to a discard logger.
	Logger slogger.Logger
}

// NewSession creates a Session.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("session requires a registry")
	}
	if opts.Config == nil {
		opts.Config = policy.ResolveConfig(nil)
	}
	if opts.Runner == nil {
		opts.Runner = runner.New()
	}
	if opts.Logger == nil {
		opts.Logger = slogger.Discard()
	}
	return &Session{
		registry: opts.Registry,
		config:   opts.Config,
		runner:   opts.Runner,
		logger:   opts.Logger,
	}, nil
}

// InvokeOptions carries per-call settings.
type InvokeOptions struct {
	// ForceFull skips the compaction engine entirely; the full result is
	// the sole structured payload.
	ForceFull bool

	// Values are caller-supplied strings destined for value positions in
	// the argument vector (branch names, package names, URLs). Each is
	// checked for flag injection before anything runs.
	Values []string
}

// Invocation is the outcome of one tool call: the raw execution result,
// the parsed typed result, and the composed dual output.
type Invocation struct {
	Capability *Capability
	Result     *runner.Result
	Parsed     any
	Output     *DualOutput
}

// Invoke runs one tool operation end to end: policy gate, process
// execution, parsing, and output composition.
//
// A policy denial or an unknown tool key is returned as an error before
// any process is spawned. A nonzero exit or timeout is not an error: it
// flows into the parsed result, and the caller inspects the structured
// payload's own failure fields.
func (s *Session) Invoke(ctx context.Context, key string, req runner.Request, opts InvokeOptions) (*Invocation, error) {
	capability, ok := s.registry.Resolve(key)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", key)
	}

	gate := policy.NewGate(s.config, capability.Group)
	if err := gate.RejectFlagValues(opts.Values...); err != nil {
		return nil, err
	}
	if err := gate.Authorize(req.Program, req.Dir, req.Args); err != nil {
		return nil, err
	}

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	parsed := capability.Parse(result.ExitCode, result.Stdout, result.Stderr)
	output, err := Compose(capability, parsed, result.Combined(), opts.ForceFull)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("tool invoked",
		"tool", key,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
		"decision", output.Decision)

	return &Invocation{
		Capability: capability,
		Result:     result,
		Parsed:     parsed,
		Output:     output,
	}, nil
}
