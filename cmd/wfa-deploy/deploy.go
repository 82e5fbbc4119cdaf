package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	dockerclient "github.com/docker/docker/client"

	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/awsx"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/config"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/deploy"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/preflight"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/provision"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/reconcile"
	"github.com/GeorgeNassef/Weather-Feature-Flight-Delays/internal/registry"
)

func cmdDeploy(args []string) {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	buildContext := fs.String("build-context", ".", "Docker build context directory")
	stateDir := fs.String("state-dir", ".wfa-deploy", "directory for the rendered descriptor")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	skipBuild := fs.Bool("skip-build", false, "skip image build and push, reuse the pushed image")
	skipPreflight := fs.Bool("skip-preflight", false, "skip preflight checks")
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
		logger.Fatal().Err(err).Msg("load aws configuration")
	}

	engine, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("create docker client")
	}

	if !*skipPreflight {
		checker := preflight.New(clients.STS, clients.EFS, clients.EC2, engine, cfg, logger)
		if err := preflight.FirstError(checker.Run(ctx)); err != nil {
			logger.Fatal().Err(err).Msg("preflight failed")
		}
	}

	pipeline := deploy.New(
		cfg,
		provision.NewDriver(clients.ECR, clients.ECS, clients.Logs, logger),
		registry.NewPublisher(clients.ECR, engine, logger),
		reconcile.New(clients.ECS, cfg, logger),
		logger,
	)

	outcome, err := pipeline.Run(ctx, deploy.Options{
		BuildContext: *buildContext,
		StateDir:     *stateDir,
		SkipBuild:    *skipBuild,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("deploy failed")
	}

	fmt.Printf("Service %s %s (task definition %s)\n", cfg.Service, outcome.Action, outcome.TaskDefinitionARN)
}
