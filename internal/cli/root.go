package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go.aimuz.me/voxmemo/config"
	"go.aimuz.me/voxmemo/internal/app"
	"go.aimuz.me/voxmemo/internal/version"
)

type Dependencies struct {
	Config *config.Config

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

type rootOptions struct {
	configPath string
	logLevel   string
	hotkeys    bool
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:   "voxmemo",
		Short: "Record voice memos and play them back",
		Long: "An interactive voice recorder. Type r to start or stop recording and p to play the last recording.\n" +
			"Recordings are saved as Ogg Opus files in the recordings directory.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return deps.load(cmd, opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), deps)
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file, JSON or TOML (default: user config dir/voxmemo/config.json)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&opts.hotkeys, "hotkeys", false, "enable global hotkeys")

	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}

// load reads the config, applies flag overrides and configures logging.
func (d *Dependencies) load(cmd *cobra.Command, opts rootOptions) error {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if f := cmd.Flags().Lookup("hotkeys"); f != nil && f.Changed {
		cfg.Hotkeys.Enabled = opts.hotkeys
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	SetupLogging(d.Stderr, level)

	d.Config = cfg
	slog.Debug("config loaded", "path", cfg.Path(), "recordings_dir", cfg.RecordingsDir)
	return nil
}

func runSession(ctx context.Context, deps *Dependencies) error {
	svc, err := app.New(deps.Config, app.Options{Output: deps.Stdout})
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer svc.Shutdown()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.ReadTriggers(ctx, deps.Stdin, svc.Triggers()); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("read commands", "error", err)
		}
	}()

	return svc.Run(ctx)
}
