package main

import (
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/toolbench"
	"github.com/deepnoodle-ai/wonton/schema"
)

// The sys group is a small built-in capability set used to exercise the
// pipeline from the CLI. Real tool adapters (git, docker, npm, ...) live
// outside this module and register their own capabilities.

type execReport struct {
	ExitCode    int      `json:"exit_code"`
	Success     bool     `json:"success"`
	StdoutLines []string `json:"stdout_lines,omitempty"`
	StderrLines []string `json:"stderr_lines,omitempty"`
}

type execSummary struct {
	ExitCode    int    `json:"exit_code"`
	Success     bool   `json:"success"`
	StdoutCount int    `json:"stdout_line_count"`
	StderrCount int    `json:"stderr_line_count"`
	FirstLine   string `json:"first_line,omitempty"`
}

func execCapability() *toolbench.Capability {
	return toolbench.NewCapability(toolbench.TypedCapability[execReport]{
		Group:       "sys",
		Tool:        "exec",
		Core:        true,
		Description: "Run a program and report its output line by line",
		Schema: &schema.Schema{
			Type:     "object",
			Required: []string{"exit_code", "success"},
			Properties: map[string]*schema.Property{
				"exit_code":    {Type: "integer", Description: "Process exit code"},
				"success":      {Type: "boolean", Description: "True when the exit code is zero"},
				"stdout_lines": {Type: "array", Description: "Captured stdout lines", Items: &schema.Property{Type: "string"}},
				"stderr_lines": {Type: "array", Description: "Captured stderr lines", Items: &schema.Property{Type: "string"}},
			},
		},
		Parse: func(exitCode int, stdout, stderr string) execReport {
			return execReport{
				ExitCode:    exitCode,
				Success:     exitCode == 0,
				StdoutLines: splitLines(stdout),
				StderrLines: splitLines(stderr),
			}
		},
		RenderHuman: func(r execReport) string {
			var b strings.Builder
			fmt.Fprintf(&b, "exit %d\n", r.ExitCode)
			for _, line := range r.StdoutLines {
				b.WriteString(line)
				b.WriteByte('\n')
			}
			for _, line := range r.StderrLines {
				b.WriteString("! " + line)
				b.WriteByte('\n')
			}
			return b.String()
		},
		CompactMap: func(r execReport) any {
			s := execSummary{
				ExitCode:    r.ExitCode,
				Success:     r.Success,
				StdoutCount: len(r.StdoutLines),
				StderrCount: len(r.StderrLines),
			}
			if len(r.StdoutLines) > 0 {
				s.FirstLine = r.StdoutLines[0]
			}
			return s
		},
		RenderCompact: func(compact any) string {
			s := compact.(execSummary)
			return fmt.Sprintf("exit %d (%d stdout lines, %d stderr lines)\n",
				s.ExitCode, s.StdoutCount, s.StderrCount)
		},
	})
}

type whichReport struct {
	Found bool   `json:"found"`
	Path  string `json:"path,omitempty"`
}

func whichCapability() *toolbench.Capability {
	return toolbench.NewCapability(toolbench.TypedCapability[whichReport]{
		Group:       "sys",
		Tool:        "which",
		Description: "Locate a program on the search path",
		Schema: &schema.Schema{
			Type:     "object",
			Required: []string{"found"},
			Properties: map[string]*schema.Property{
				"found": {Type: "boolean", Description: "Whether the program was found"},
				"path":  {Type: "string", Description: "Resolved path when found"},
			},
		},
		Parse: func(exitCode int, stdout, stderr string) whichReport {
			path := strings.TrimSpace(stdout)
			return whichReport{Found: exitCode == 0 && path != "", Path: path}
		},
		RenderHuman: func(r whichReport) string {
			if !r.Found {
				return "not found\n"
			}
			return r.Path + "\n"
		},
	})
}

func sampleRegistry() (*toolbench.Registry, error) {
	reg := toolbench.NewRegistry()
	for _, c := range []*toolbench.Capability{execCapability(), whichCapability()} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
