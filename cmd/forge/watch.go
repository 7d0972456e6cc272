package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbaker/forge/internal/buildctx"
	"github.com/cwbaker/forge/internal/executor"
	"github.com/cwbaker/forge/internal/graph"
	"github.com/cwbaker/forge/internal/scheduler"
)

// newWatchCmd re-runs the build whenever the root script's mtime changes,
// a thin polling loop rather than a filesystem-event watcher since forge's
// System abstraction only exposes stat-based mtimes (spec §6 "watch").
func newWatchCmd(flags *rootFlags) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild whenever the root script changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, rootPath, err := loadAppContext(flags)
			if err != nil {
				return err
			}

			var lastSeen time.Time
			for {
				modTime, ok := app.Sys.LastWriteTime(rootPath)
				if ok && modTime.After(lastSeen) {
					lastSeen = modTime
					if err := runOnce(app, rootPath); err != nil {
						app.Sink.Error(fmt.Sprintf("forge: %v", err))
					}
				}
				time.Sleep(interval)
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "how often to poll the root script for changes")
	return cmd
}

func runOnce(app *AppContext, rootPath string) error {
	graphPath := rootPath + ".graph"
	g := graph.Load(graphPath, app.Sys, app.Sink)
	exec := executor.New(app.Sys, app.Config.MaximumParallelJobs)
	defer exec.Stop()

	sched := scheduler.New(app.Sys, app.Sink, g, exec)
	if err := sched.Load(rootPath); err != nil {
		return err
	}
	if _, err := sched.Postorder(g.Root(), func(ctx *buildctx.Context, target *graph.Target) error { return nil }); err != nil {
		return err
	}
	return g.Save(graphPath)
}
