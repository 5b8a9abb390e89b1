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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tejusbharadwaj/airhist/internal/acquire"
	"github.com/tejusbharadwaj/airhist/internal/config"
	"github.com/tejusbharadwaj/airhist/internal/fields"
	"github.com/tejusbharadwaj/airhist/internal/metrics"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "airhist",
	Short:         "Historical air quality sensor acquisition",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	fieldsPath  string
	metricsAddr string
)

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Retrieve sensor history into the store",
	Long: `Retrieves every configured sensor over the configured date range, newest
segment first, and appends the readings to the store.

Examples:
  airhist acquire --config config.yaml
  airhist acquire --config config.yaml --fields fields.yaml --metrics-addr :9090`,
	RunE: runAcquire,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to config file")

	acquireCmd.Flags().StringVar(&fieldsPath, "fields", "", "Path to a YAML field table (default: built-in PurpleAir fields)")
	acquireCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")

	rootCmd.AddCommand(acquireCmd)
}

// Command airhist downloads historical air quality readings for a set of
// sensors and appends them to a local store.
//
// Usage:
//
//	airhist acquire --config config.yaml [--fields fields.yaml] [--metrics-addr :9090]
//	airhist inspect --config config.yaml
//
// Interrupting acquire (SIGINT, SIGTERM) stops after the segment in
// progress; everything retrieved so far is written before exit.
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, &config.ConfigError{Key: "logging.level", Reason: err.Error()}
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, &config.ConfigError{Key: "logging.format", Reason: fmt.Sprintf("unknown format %q", cfg.Format)}
	}
	return logger, nil
}

func selectFields(path string) ([]fields.Field, error) {
	if path == "" {
		return fields.PurpleAir.Select(fields.DefaultSet...)
	}
	_, selected, err := fields.LoadFile(path)
	return selected, err
}

func runAcquire(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	fieldSet, err := selectFields(fieldsPath)
	if err != nil {
		return fmt.Errorf("load fields: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []acquire.Option{acquire.WithLogger(logger)}

	addr := cfg.Metrics.Addr
	if metricsAddr != "" {
		addr = metricsAddr
	}
	if addr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, acquire.WithRegisterer(reg))
		defer serveMetrics(addr, reg, logger)()
	}

	return acquire.Acquire(ctx, cfg, fieldSet, opts...)
}

// serveMetrics exposes reg on addr/metrics in the background. The returned
// function shuts the server down.
func serveMetrics(addr string, reg *prometheus.Registry, logger logrus.FieldLogger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.WithField("addr", addr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Metrics server shutdown failed")
		}
	}
}
