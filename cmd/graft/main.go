// Command graft is the CLI front for the patch toolkit: create, apply,
// rollback, and describe patch bundles.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"

	"github.com/grafthq/graft/internal/cli/applycmd"
	"github.com/grafthq/graft/internal/cli/createcmd"
	"github.com/grafthq/graft/internal/cli/describecmd"
	"github.com/grafthq/graft/internal/cli/rollbackcmd"
	"github.com/grafthq/graft/internal/exitcode"
	"github.com/grafthq/graft/internal/version"
)

const (
	defaultLogLevel  = logging.LevelWarning
	defaultLogFormat = logging.FormatText
)

var rootCmd = func() *cli.RootCommand {
	return &cli.RootCommand{
		Name:    version.Name,
		Version: version.HumanVersion,
		Commands: map[string]cli.CommandFactory{
			"patch": func() cli.Command { return patchCmd() },
		},
	}
}

var patchCmd = func() *cli.RootCommand {
	return &cli.RootCommand{
		Name:        "patch",
		Description: "create, apply, roll back, and describe patch bundles",
		Commands: map[string]cli.CommandFactory{
			"create": func() cli.Command {
				return &createcmd.Command{}
			},
			"apply": func() cli.Command {
				return &applycmd.Command{}
			},
			"rollback": func() cli.Command {
				return &rollbackcmd.Command{}
			},
			"describe": func() cli.Command {
				return &describecmd.Command{}
			},
		},
	}
}

func main() {
	ctx, done := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer done()

	setLogEnvVars()
	ctx = logging.WithLogger(ctx, logging.NewFromEnv("GRAFT_"))

	if err := realMain(ctx); err != nil {
		done()
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCodeOf(err))
	}
}

func setLogEnvVars() {
	if os.Getenv("GRAFT_LOG_FORMAT") == "" {
		os.Setenv("GRAFT_LOG_FORMAT", string(defaultLogFormat))
	}
	if os.Getenv("GRAFT_LOG_LEVEL") == "" {
		os.Setenv("GRAFT_LOG_LEVEL", defaultLogLevel.String())
	}
}

func exitCodeOf(err error) int {
	var exitErr *exitcode.Error
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitcode.Other
}

func realMain(ctx context.Context) error {
	return rootCmd().Run(ctx, os.Args[1:]) //nolint:wrapcheck
}
