package main

import (
	"github.com/cwbaker/forge/internal/config"
	"github.com/cwbaker/forge/internal/eventsink"
	"github.com/cwbaker/forge/internal/system"
)

// AppContext bundles the long-lived services wired up at startup and
// handed to every subcommand.
type AppContext struct {
	Sys    system.System
	Sink   eventsink.Sink
	Config config.Config
}

func newAppContext(verbose bool, cfg config.Config) *AppContext {
	var sink eventsink.Sink
	if verbose {
		level := cfg.LogLevel
		if level == "" {
			level = "debug"
		}
		structured, err := eventsink.NewStructured(eventsink.StructuredOptions{Level: level, Component: "forge"})
		if err == nil {
			sink = structured
		}
	}
	if sink == nil {
		sink = eventsink.NewPlain()
	}
	return &AppContext{
		Sys:    system.New(),
		Sink:   sink,
		Config: cfg,
	}
}
