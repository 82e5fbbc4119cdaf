package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "deploy":
		cmdDeploy(os.Args[2:])
	case "render":
		cmdRender(os.Args[2:])
	case "check":
		cmdCheck(os.Args[2:])
	case "version":
		fmt.Println("wfa-deploy v0.1.0")
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: wfa-deploy <command>

Commands:
  deploy    Build, publish, and deploy the analyzer to Fargate
  render    Render the task definition template
  check     Run preflight checks
  version   Print version

Required environment:
  AWS_ACCOUNT_ID, AWS_REGION, EFS_ID, SUBNET_ID, SECURITY_GROUP_ID`)
}

func newLogger(level string) zerolog.Logger {
	lv, err := zerolog.ParseLevel(level)
	if err != nil {
		lv = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lv).
		With().
		Timestamp().
		Str("component", "wfa-deploy").
		Logger()
}
