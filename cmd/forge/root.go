package main

import (
	"github.com/spf13/cobra"

	"github.com/cwbaker/forge/internal/config"
)

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "forge",
		Short:         "forge orchestrates script-described builds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.directory, "C", "C", ".", "change to directory before doing anything else")
	cmd.PersistentFlags().StringVar(&flags.file, "file", "", "use this root script instead of discovering build.lua")
	cmd.PersistentFlags().IntVar(&flags.jobs, "jobs", 0, "maximum number of parallel jobs (0 uses forge.yaml or the default)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable structured logging")

	cmd.AddCommand(newBuildCmd(flags))
	cmd.AddCommand(newGraphCmd(flags))
	cmd.AddCommand(newWatchCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func loadAppContext(flags *rootFlags) (*AppContext, string, error) {
	rootPath, err := resolveRootFile(flags.directory, flags.file)
	if err != nil {
		return nil, "", err
	}

	cfgPath := rootPath[:len(rootPath)-len(rootFileName)] + "forge.yaml"
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", err
	}
	if flags.jobs > 0 {
		cfg.MaximumParallelJobs = flags.jobs
	}

	return newAppContext(flags.verbose, cfg), rootPath, nil
}
