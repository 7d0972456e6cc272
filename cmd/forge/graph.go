package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbaker/forge/internal/graph"
)

// newGraphCmd prints every target in the persisted graph along with its
// height and outdated flag, useful for debugging dependency ordering
// without running a build (spec §6 "graph" command).
func newGraphCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the persisted dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, rootPath, err := loadAppContext(flags)
			if err != nil {
				return err
			}
			g := graph.Load(rootPath+".graph", app.Sys, app.Sink)
			// Height and Outdated are not persisted; bind every target so
			// both reflect the loaded edges and the files on disk.
			for _, t := range g.Targets() {
				if _, err := g.Bind(t); err != nil {
					return err
				}
			}
			for _, t := range g.Targets() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s height=%-4d outdated=%v\n", t.Path, t.Height, t.Outdated)
			}
			return nil
		},
	}
}
