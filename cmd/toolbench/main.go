// Command toolbench is a small front end for the toolbench framework. It
// stands in for the transport layer that would normally expose operations
// to a calling agent: it lists advertised tools, drives the discovery
// operation, and runs a tool through the full pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/deepnoodle-ai/toolbench"
	"github.com/deepnoodle-ai/toolbench/exposure"
	"github.com/deepnoodle-ai/toolbench/policy"
	"github.com/deepnoodle-ai/toolbench/runner"
	"github.com/deepnoodle-ai/toolbench/slogger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logLevel string

type app struct {
	registry *toolbench.Registry
	table    *exposure.Table
	session  *toolbench.Session
	logger   slogger.Logger
}

func newApp() (*app, error) {
	logger := slogger.New(slogger.LevelFromString(logLevel))

	registry, err := sampleRegistry()
	if err != nil {
		return nil, err
	}

	exposurePolicy, err := exposure.PolicyFromEnv()
	if err != nil {
		return nil, err
	}
	table := exposurePolicy.Apply(registry)
	table.OnChange(func(loaded []string) {
		logger.Info("advertised tool set changed", "loaded", strings.Join(loaded, ", "))
	})

	session, err := toolbench.NewSession(toolbench.SessionOptions{
		Registry: registry,
		Config:   policy.ConfigFromEnv(),
		Runner:   runner.New(runner.Options{Logger: logger}),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		registry: registry,
		table:    table,
		session:  session,
		logger:   logger,
	}, nil
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List advertised tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			bold := color.New(color.Bold)
			for _, reg := range a.table.Advertised() {
				bold.Print(reg.Key())
				if reg.Core {
					color.New(color.FgGreen).Print(" [core]")
				}
				fmt.Printf("  %s\n", reg.Description)
			}
			if deferred := a.table.Deferred(); len(deferred) > 0 {
				color.New(color.FgYellow).Printf("%d deferred tool(s); run `toolbench discover` to list them\n", len(deferred))
			}
			return nil
		},
	}
}

func newDiscoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover [tool ...]",
		Short: "Load deferred tools by name, or list what remains deferred",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			report, err := a.table.Load(args)
			if err != nil {
				return err
			}
			for _, key := range report.Loaded {
				color.New(color.FgGreen).Printf("loaded %s\n", key)
			}
			for _, tool := range report.Deferred {
				fmt.Printf("deferred %s  %s\n", tool.Name, tool.Description)
			}
			fmt.Printf("%d tool(s) remaining deferred\n", report.Remaining)
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	var (
		dir       string
		timeout   time.Duration
		env       []string
		values    []string
		forceFull bool
	)
	cmd := &cobra.Command{
		Use:   "run <group:tool> -- <program> [args ...]",
		Short: "Run a tool operation through the full pipeline",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			key := args[0]
			reg, ok := a.table.Lookup(key)
			if !ok {
				return fmt.Errorf("unknown tool %q", key)
			}
			if !reg.Advertised() {
				return fmt.Errorf("tool %q is not advertised (state %s)", key, reg.State)
			}

			envOverrides := map[string]string{}
			for _, kv := range env {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --env value %q (expected KEY=VALUE)", kv)
				}
				envOverrides[k] = v
			}

			inv, err := a.session.Invoke(cmd.Context(), key, runner.Request{
				Program: args[1],
				Args:    args[2:],
				Dir:     dir,
				Env:     envOverrides,
				Timeout: timeout,
			}, toolbench.InvokeOptions{
				ForceFull: forceFull,
				Values:    values,
			})
			if err != nil {
				if policy.IsDenial(err) {
					color.New(color.FgRed).Fprintf(os.Stderr, "%s\n", err)
					return fmt.Errorf("denied: %s", policy.DenialCode(err))
				}
				return err
			}

			fmt.Print(inv.Output.Text())
			fmt.Printf("--- structured (%s) ---\n%s\n", inv.Output.Decision, inv.Output.Payload())
			if inv.Result.Truncated() {
				color.New(color.FgYellow).Printf("output truncated (%d stdout bytes, %d stderr bytes dropped)\n",
					inv.Result.StdoutDropped, inv.Result.StderrDropped)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "working directory for the command")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "execution timeout (default 2m)")
	cmd.Flags().StringArrayVar(&env, "env", nil, "environment override KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&values, "value", nil, "caller-supplied value to check for flag injection (repeatable)")
	cmd.Flags().BoolVar(&forceFull, "force-full", false, "always return the full structured result")
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:           "toolbench",
		Short:         "Expose CLI developer tools as schema-validated operations",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(newListCommand(), newDiscoverCommand(), newRunCommand())

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
