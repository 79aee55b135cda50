package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/epiwatch/covidtrack/internal/api"
	"github.com/epiwatch/covidtrack/internal/api/handlers"
	"github.com/epiwatch/covidtrack/internal/scheduler/jobs"
)

// apiCmd represents the api command.
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server together with the recurring series
refresh schedule.

Endpoints:
  GET  /health                        - Health check
  GET  /data                          - Latest snapshot
  GET  /data/country/{country}        - Latest snapshot for one country
  GET  /data/date/{date}              - Snapshot for a date (MM-DD-YYYY)
  GET  /data/custom?date=&country=    - Date and/or country selection
  GET  /data/range/{start}/{end}      - Per-date aggregates, end exclusive
  POST /data/refresh                  - Trigger an immediate refresh
  GET  /data/status                   - Refresh job statistics

Example:
  go run ./cmd/covidtrack api
  go run ./cmd/covidtrack api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	application, err := initApp()
	if err != nil {
		return err
	}
	log := application.log

	if apiPort != "" {
		application.cfg.Port = apiPort
	}

	// Refresh schedule runs for the lifetime of the server.
	application.sched.Start()
	if application.cfg.Refresh.OnStart {
		if err := application.sched.RunJob(jobs.RefreshJobName); err != nil {
			return fmt.Errorf("start initial refresh: %w", err)
		}
	}

	dataHandler := handlers.NewDataHandler(application.engine, application.resolver, application.sched, log)
	router := api.NewRouter(dataHandler, log)
	server := api.New(application.cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", application.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	application.sched.Stop()

	log.Info("Server stopped")
	return nil
}
