package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/config"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/taskdef"
)

func cmdRender(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	out := fs.String("out", "", "write the rendered descriptor to this file instead of stdout")
	fs.Parse(args)

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *out != "" {
		if err := taskdef.WriteRendered(cfg, *out); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	rendered, err := taskdef.Rendered(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(rendered)
}
