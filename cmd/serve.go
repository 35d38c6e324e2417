package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codefornorway/civic-scrapers/internal/api"
	"github.com/codefornorway/civic-scrapers/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve [org]",
	Short: "Serve a record set over a read-only HTTP API",
	Long: `Serve records over HTTP:

  GET /health
  GET /v1/locations?city=&q=&organization=&limit=&offset=
  GET /v1/locations.geojson

Records come from the configured store when store.driver is set, otherwise
from the record file "scrape" wrote for the organization (or --input).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		var source api.Source
		if cfg.Store.Driver != "" {
			st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			source = st
		} else {
			input, _ := cmd.Flags().GetString("input")
			if input == "" {
				reg, err := buildRegistry(cfg.Sites.ProfilesPath)
				if err != nil {
					return err
				}
				s, err := reg.Get(orgArg(args))
				if err != nil {
					return err
				}
				input = filepath.Join(cfg.Crawl.OutputDir, s.OutputName()+".json")
			}
			source = api.NewFileSource(input)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewServer(source, cfg.Server.AllowedOrigins).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().String("input", "", "record set to serve when no store is configured")
	rootCmd.AddCommand(serveCmd)
}
