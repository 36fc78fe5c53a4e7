package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/regdocs/internal/api"
	"github.com/dgallion1/regdocs/internal/pipeline"
	"github.com/dgallion1/regdocs/internal/retrieval"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve starts the ingest and retrieval API. Uploaded documents run through
every stage on a pool of workers; poll the returned job for progress.

Endpoints:
  GET    /health
  POST   /api/ingest                          multipart "file", optional "force"
  GET    /api/ingest/{jobID}/status
  POST   /api/search
  POST   /api/query
  PATCH  /api/documents/{fileName}/pages/{page}
  PUT    /api/documents/{fileName}/pages/{page}
  DELETE /api/documents/{fileName}/pages/{page}
  GET    /api/stats/embed`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if err := cfg.ValidateServer(); err != nil {
			return err
		}

		a, err := newApp(ctx, allNeeds)
		if err != nil {
			return err
		}
		defer a.Close()

		orch := pipeline.NewOrchestrator(a.runner, pipeline.Options{
			Workers:  cfg.Server.Workers,
			MaxQueue: cfg.Server.MaxQueue,
			JobTTL:   cfg.Server.JobTTL,
		}, logger)
		orch.Start(ctx)

		svc := retrieval.NewService(a.runner.Store, a.runner.Embedder, logger)
		srv := api.NewServer(orch, svc, a.stats, logger, cfg)

		httpServer := &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown. Workers stop once no handler can submit.
		done := make(chan struct{})
		go func() {
			defer close(done)
			<-ctx.Done()
			logger.Info("shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", "error", err)
			}
			orch.Stop()
		}()

		logger.Info("starting regdocs", "port", cfg.Server.Port, "workers", cfg.Server.Workers)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		<-done
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "8090", "port to listen on (default: server.port)")
}
