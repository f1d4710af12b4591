// Package main runs the Instagram relay as a long-lived HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/instagram-relay/internal/boot"
	"github.com/fpang/instagram-relay/internal/logging"
	"github.com/fpang/instagram-relay/internal/metrics"
	"github.com/fpang/instagram-relay/internal/relay"
)

// CLI flags
var (
	portFlag   int
	configFlag string
	awsFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "relay-server",
	Short: "Instagram webhook, OAuth, and Graph API relay",
	Long: `Relay Server receives Instagram webhook notifications, completes the
Instagram Business Login OAuth flow, and proxies read-only Graph API queries.

Configuration comes from an optional YAML file, then environment variables,
then (with --aws) SSM Parameter Store for credentials still missing.

Examples:
  relay-server
  relay-server --port 9090
  relay-server --config relay.yaml --aws`,
	RunE:         runMain,
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config and PORT)")
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Path to a YAML config file")
	rootCmd.Flags().BoolVar(&awsFlag, "aws", false, "Use AWS: SSM credential fallback, token store, EventBridge")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	initStart := time.Now()
	logging.Init()
	startup := logging.NewStartupLogger("relay-server").CommitHash(commitHash)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var clients *boot.AWSClients
	if awsFlag {
		var err error
		if clients, err = boot.InitAWS(ctx); err != nil {
			return err
		}
	}

	cfg, err := boot.LoadConfig(ctx, configFlag, clients, startup)
	if err != nil {
		return err
	}
	if portFlag != 0 {
		cfg.Server.Port = portFlag
	}

	deps, err := boot.Deps(cfg, clients, startup)
	if err != nil {
		return err
	}
	deps.Metrics = metrics.NewCollectors(deps.Updates.Len)

	handler := relay.New(deps).Handler()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	startup.
		Config("port", fmt.Sprint(cfg.Server.Port)).
		Config("configFile", configFlag).
		Feature("aws", awsFlag).
		InitDuration(time.Since(initStart)).
		Log()

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	log.Info().Int("port", cfg.Server.Port).Msg("Starting relay server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	<-shutdownDone
	log.Info().Msg("Server stopped")
	return nil
}
