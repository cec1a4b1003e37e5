package main

import (
	"log/slog"
	"os"

	"go.aimuz.me/voxmemo/internal/cli"
	"go.aimuz.me/voxmemo/internal/output"
	"go.aimuz.me/voxmemo/internal/version"
)

func main() {
	cli.SetupLogging(os.Stderr, slog.LevelInfo)
	slog.Debug("starting voxmemo", "version", version.Version, "commit", version.Commit, "date", version.Date)

	deps := &cli.Dependencies{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	if err := cli.NewRootCmd(deps).Execute(); err != nil {
		output.NewFormatter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}
