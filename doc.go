// Package toolbench is a framework for exposing command-line developer
// tools to automated agents as callable operations with typed,
// schema-described results.
//
// The framework supplies the shared machinery every tool wrapper is built
// on: a policy gate that decides whether a command may run at all and
// where (package policy), a process runner that executes it with timeouts
// and capped output capture (package runner), a dual-output composer that
// pairs a human-readable rendering with a machine-validated structured
// payload, an adaptive compaction engine that collapses detail when the
// structured form would cost more tokens than the raw tool output, and a
// tool-exposure policy governing which operations are advertised at all
// (package exposure).
//
// Individual tool adapters supply a Capability per operation: a parser
// converting captured output into a typed result, renderers for the human
// views, and an optional compact projection. Adapters register their
// capabilities once at startup; the Session type then runs the full
// pipeline per call:
//
//	reg := toolbench.NewRegistry()
//	reg.Register(gitStatusCapability())
//
//	session, _ := toolbench.NewSession(toolbench.SessionOptions{
//	    Registry: reg,
//	    Config:   policy.ConfigFromEnv(),
//	})
//	inv, err := session.Invoke(ctx, "git:status", runner.Request{
//	    Program: "git",
//	    Args:    []string{"status", "--porcelain"},
//	    Dir:     workdir,
//	}, toolbench.InvokeOptions{})
//
// The framework is not a shell: it never interprets shell syntax, pipes,
// or globbing. Each invocation spawns a single program with an argument
// vector.
package toolbench
