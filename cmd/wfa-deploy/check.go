package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	dockerclient "github.com/docker/docker/client"

	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/awsx"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/config"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/preflight"
)

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	logLevel := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	fs.Parse(args)

	logger := newLogger(*logLevel)

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	clients, err := awsx.New(ctx, cfg.Region, cfg.EndpointURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	engine, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	checker := preflight.New(clients.STS, clients.EFS, clients.EC2, engine, cfg, logger)
	checks := checker.Run(ctx)

	allOk := true
	for _, c := range checks {
		icon := "OK"
		detail := ""
		if !c.OK() {
			icon = "FAIL"
			detail = " (" + c.Err.Error() + ")"
			allOk = false
		}
		fmt.Printf("  [%s] %s%s\n", icon, c.Name, detail)
	}

	if !allOk {
		os.Exit(1)
	}
}
