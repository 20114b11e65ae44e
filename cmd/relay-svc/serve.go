package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"supportrelay/internal/config"
	"supportrelay/internal/metrics"
	"supportrelay/internal/wire"
)

const shutdownTimeout = 30 * time.Second

type ServerFlags struct {
	ListenAddr     string
	MetricsAddr    string
	StorageBackend string
}

func NewServerFlags() *ServerFlags {
	return &ServerFlags{}
}

func (f *ServerFlags) BindFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.ListenAddr, "listen", f.ListenAddr, "The address to serve the API on (default HTTP_HOST:HTTP_PORT)")
	flagSet.StringVar(&f.MetricsAddr, "listen-metrics", f.MetricsAddr, "The address to serve prometheus metrics on (default METRICS_ADDR, \"off\" disables)")
	flagSet.StringVar(&f.StorageBackend, "storage", f.StorageBackend, "Storage backend: mongo or memory (default STORAGE_BACKEND)")
}

// Apply lets explicitly set flags win over the environment
func (f *ServerFlags) Apply(cfg *config.Config) string {
	if f.StorageBackend != "" {
		cfg.Storage.Backend = f.StorageBackend
	}
	switch f.MetricsAddr {
	case "":
	case "off":
		cfg.Server.MetricsAddr = ""
	default:
		cfg.Server.MetricsAddr = f.MetricsAddr
	}
	if f.ListenAddr != "" {
		return f.ListenAddr
	}
	return cfg.ListenAddr()
}

func NewServeCommand() *cobra.Command {
	f := NewServerFlags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLogs, err := loadConfig()
			if err != nil {
				return errors.WithMessage(err, "couldn't set up logging")
			}
			defer closeLogs()
			listenAddr := f.Apply(cfg)

			log.Info("Initializing application...")
			app, cleanup, err := wire.InitializeApplication(cfg)
			if err != nil {
				return errors.WithMessage(err, "couldn't initialize application")
			}
			defer cleanup()

			server := &http.Server{
				Addr:           listenAddr,
				Handler:        app.Handler,
				ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
				WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
				MaxHeaderBytes: 1 << 20, // 1 MB
			}

			var metricsServer *http.Server
			if cfg.Server.MetricsAddr != "" {
				// Serve our metrics endpoint for prometheus to scrape
				metricsMux := http.NewServeMux()
				metricsMux.Handle("/metrics", metrics.Handler())
				metricsServer = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}
				go func() {
					log.Infof("Serving metrics on %s", metricsServer.Addr)
					if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.WithError(err).Error("metrics server stopped")
					}
				}()
			}

			serveErr := make(chan error, 1)
			go func() {
				log.WithFields(log.Fields{
					"addr":     server.Addr,
					"storage":  cfg.Storage.Backend,
					"provider": cfg.Provider.Kind,
				}).Info("Server starting")
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					serveErr <- err
				}
			}()

			// Wait for interrupt signal for graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-quit:
				log.WithField("signal", sig.String()).Info("Shutting down server...")
			case err := <-serveErr:
				return errors.WithMessage(err, "server failed to start")
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				log.WithError(err).Warn("Server forced to shutdown")
			}
			if metricsServer != nil {
				if err := metricsServer.Shutdown(ctx); err != nil {
					log.WithError(err).Warn("metrics server forced to shutdown")
				}
			}

			log.Info("Server gracefully stopped")
			return nil
		},
	}

	f.BindFlags(cmd.Flags())
	return cmd
}
