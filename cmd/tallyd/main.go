package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"tally/config"
	"tally/daemon"
	"tally/internal/buildinfo"
	"tally/internal/logging"
	"tally/pkg/sdk/client"
)

func main() {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("daemon failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var socketPath string
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:     "tallyd",
		Short:   "Statistics engine daemon for log pipelines",
		Version: buildinfo.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !debug && cfg.LogLevel != "" {
				if err := logging.Configure(cfg.LogLevel); err != nil {
					return err
				}
			}
			if cfg.Socket != "" && !cmd.Flags().Changed("socket") {
				socketPath = cfg.Socket
			}
			return daemon.Run(ctx, cfg, socketPath)
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&socketPath, "socket", client.DefaultSocketPath(), "Control socket path")
	cmd.Flags().StringVar(&configPath, "config", "/etc/tally/tallyd.yaml", "Config file path")
	return cmd
}
