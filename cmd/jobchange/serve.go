package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/job-change-tracker/internal/config"
	"github.com/jonathan/job-change-tracker/internal/server"
	"github.com/jonathan/job-change-tracker/internal/server/ratelimit"
	"github.com/spf13/cobra"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server exposing recorded job changes, company stats, trends and scrape runs,
plus Prometheus metrics on /metrics. POST /changes/ack requires a bearer token whose bcrypt
hash is in API_TOKEN_HASH; without it the route is disabled.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tokens, err := config.NewTokenConfig()
	if err != nil {
		return err
	}
	limits, err := ratelimit.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	srv := server.New(server.Config{Port: servePort, Token: tokens, RateLimit: limits}, database)
	return srv.Start(ctx)
}
