package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbaker/forge/internal/buildctx"
	"github.com/cwbaker/forge/internal/executor"
	"github.com/cwbaker/forge/internal/graph"
	"github.com/cwbaker/forge/internal/scheduler"
)

// newBuildCmd wires the root script, graph, and scheduler together and
// runs the named target (or the whole graph's root) to completion (spec §6
// "build" command, exit codes 0/1/2).
func newBuildCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [name=value...] [target]",
		Short: "Build outdated targets in dependency order",
		RunE: func(cmd *cobra.Command, args []string) (buildErr error) {
			app, rootPath, err := loadAppContext(flags)
			if err != nil {
				return err
			}

			graphPath := rootPath + ".graph"
			g := graph.Load(graphPath, app.Sys, app.Sink)
			exec := executor.New(app.Sys, app.Config.MaximumParallelJobs)
			defer exec.Stop()

			sched := scheduler.New(app.Sys, app.Sink, g, exec)
			sched.SetMaximumParallelJobs(app.Config.MaximumParallelJobs)
			if app.Config.BuildHooksLibrary != "" {
				sched.SetBuildHooksLibrary(app.Config.BuildHooksLibrary)
			}

			if interactiveTerminal(flags.verbose) {
				finishDashboard := runDashboard(sched)
				defer func() { finishDashboard(buildErr) }()
			}

			// Positional target names are passed through to the script as
			// args (so build.lua can branch on them) and also used below
			// to narrow the postorder root to that target specifically.
			assignments, targetArgs := splitAssignments(args)
			values := make([]interface{}, 0, len(assignments)+len(targetArgs))
			for key, value := range assignments {
				values = append(values, key+"="+value)
			}
			for _, a := range targetArgs {
				values = append(values, a)
			}
			if err := sched.Load(rootPath, values...); err != nil {
				return exitError{code: 2, err: err}
			}

			root := g.Root()
			if len(targetArgs) > 0 {
				found, ok := g.FindTarget(targetArgs[0])
				if !ok {
					return exitError{code: 2, err: fmt.Errorf("build: unknown target %q", targetArgs[0])}
				}
				root = found
			}

			count, err := sched.Postorder(root, func(ctx *buildctx.Context, t *graph.Target) error {
				return nil
			})
			if err != nil {
				return exitError{code: 1, err: err}
			}
			app.Sink.Output(fmt.Sprintf("forge: %d targets visited", count))

			if err := g.Save(graphPath); err != nil {
				return exitError{code: 1, err: err}
			}
			return nil
		},
	}
	return cmd
}

// splitAssignments separates leading name=value pairs from the remaining
// positional target arguments (spec §7 "name=value... positional global
// assignment").
func splitAssignments(args []string) (assignments map[string]string, rest []string) {
	assignments = make(map[string]string)
	i := 0
	for ; i < len(args); i++ {
		key, value, ok := splitAssignment(args[i])
		if !ok {
			break
		}
		assignments[key] = value
	}
	return assignments, args[i:]
}

func splitAssignment(arg string) (key, value string, ok bool) {
	for i, r := range arg {
		if r == '=' {
			return arg[:i], arg[i+1:], true
		}
	}
	return "", "", false
}

// exitError carries a process exit code through cobra's error path.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }
func (e exitError) Unwrap() error { return e.err }
