// Package main is the INKINGI Rescue USSD gateway binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/thebtf/inkingi-ussd/internal/config"
	"github.com/thebtf/inkingi-ussd/internal/worker"
	"golang.org/x/term"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "inkingi",
		Short:        "INKINGI Rescue USSD gateway",
		Long:         "inkingi serves the INKINGI Rescue USSD menu to mobile subscribers and forwards emergencies to the rescue backend.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSimulateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the USSD gateway HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			setupLogging(cfg, false)
			if port > 0 {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := worker.NewService(ctx, Version, cfg)
			if err != nil {
				return err
			}
			return svc.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from INKINGI_PORT or settings)")
	return cmd
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	return cfg
}

// setupLogging configures the global logger. quiet raises the level to warn
// so simulate output is not drowned in request logs.
func setupLogging(cfg *config.Config, quiet bool) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if quiet && level < zerolog.WarnLevel {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" || quiet {
		noColor := quiet || !term.IsTerminal(int(os.Stderr.Fd()))
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// background is the context used when cobra runs without one.
func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
