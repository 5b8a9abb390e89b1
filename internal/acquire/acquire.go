// Package acquire wires the acquisition pipeline together and runs it to
// completion.
package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/airhist/internal/api"
	"github.com/tejusbharadwaj/airhist/internal/config"
	"github.com/tejusbharadwaj/airhist/internal/database"
	"github.com/tejusbharadwaj/airhist/internal/fields"
	"github.com/tejusbharadwaj/airhist/internal/metrics"
	"github.com/tejusbharadwaj/airhist/internal/queue"
	"github.com/tejusbharadwaj/airhist/internal/scheduler"
	"github.com/tejusbharadwaj/airhist/internal/segment"
	"github.com/tejusbharadwaj/airhist/internal/writer"
)

// Source is the remote side of an acquisition: sensor directory, metadata
// and history. *api.Client implements it.
type Source interface {
	scheduler.DataSource
	SensorIDs(ctx context.Context, state string) ([]int, error)
}

type options struct {
	source   Source
	logger   logrus.FieldLogger
	registry prometheus.Registerer
}

type Option func(*options)

// WithSource replaces the API client built from the configuration.
func WithSource(s Source) Option {
	return func(o *options) { o.source = s }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the run's metrics with reg. Without it no
// metrics are collected.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// Acquire retrieves the configured window for every selected sensor and
// appends the results to the store.
//
// Configuration problems are reported as *config.ConfigError before any
// request is made. Per-sensor failures are logged and skipped. When ctx is
// cancelled no further segments are started, records already produced are
// still written, and Acquire returns normally. The returned error is the
// joined set of store write failures, if any.
func Acquire(ctx context.Context, cfg *config.Config, fieldSet []fields.Field, opts ...Option) error {
	o := options{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(fieldSet) == 0 {
		return &config.ConfigError{Key: "fields", Reason: "no fields selected"}
	}

	log := o.logger.WithField("run_id", uuid.NewString())

	start, stop, _ := cfg.Acquisition.Window()
	planner, err := segment.NewPlanner(start, stop, cfg.Acquisition.SegmentWidth())
	if err != nil {
		return err
	}
	if planner.Count() == 0 {
		log.WithFields(logrus.Fields{
			"start": cfg.Acquisition.StartDate,
			"stop":  cfg.Acquisition.StopDate,
		}).Warn("Empty date range, nothing to retrieve")
		return nil
	}

	var m *metrics.Metrics
	if o.registry != nil {
		if m, err = metrics.New(o.registry); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	source := o.source
	if source == nil {
		client, err := api.NewClient(api.Config{
			URL:       cfg.API.URL,
			Key:       cfg.API.Key,
			RateLimit: cfg.API.RateLimit,
			RateBurst: cfg.API.RateBurst,
			Timeout:   cfg.API.Timeout,
			CacheSize: cfg.API.CacheSize,
		})
		if err != nil {
			return err
		}
		source = client
	}

	ids, err := sensorIDs(ctx, cfg.Acquisition, source)
	if err != nil {
		return err
	}

	// an interrupt must still leave a usable store behind
	store, err := database.Open(context.WithoutCancel(ctx), cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	q := queue.New(queue.WithLenObserver(m.SetBacklog))
	w := writer.New(store, q, log,
		writer.WithIdleInterval(cfg.Writer.IdleInterval),
		writer.WithMetrics(m),
	)
	pool := scheduler.NewSensorPool(cfg.Acquisition.Workers, source, fields.NewMapper(fieldSet), q, log, m)
	sched := scheduler.NewScheduler(planner, pool, w, log, m)

	log.WithFields(logrus.Fields{
		"sensors":  len(ids),
		"segments": planner.Count(),
		"workers":  cfg.Acquisition.Workers,
		"fields":   len(fieldSet),
		"store":    cfg.Store.Driver,
	}).Info("Starting acquisition")

	started := time.Now()
	sum, err := sched.Run(ctx, ids)

	entry := log.WithFields(logrus.Fields{
		"segments":   sum.Segments,
		"produced":   sum.Produced,
		"suppressed": sum.Suppressed,
		"failed":     sum.Failed,
		"written":    w.Written(),
		"cancelled":  sum.Cancelled,
		"duration":   time.Since(started).String(),
	})
	if err != nil {
		entry.WithError(err).Error("Acquisition finished with write errors")
		return err
	}
	entry.Info("Acquisition finished")
	return nil
}

// sensorIDs returns the explicit sensor list, or the directory listing of
// the configured state, capped at SensorsToGet when set.
func sensorIDs(ctx context.Context, a config.AcquisitionConfig, source Source) ([]int, error) {
	ids := a.SensorIDs
	if len(ids) == 0 {
		var err error
		ids, err = source.SensorIDs(ctx, a.State)
		if err != nil {
			return nil, fmt.Errorf("failed to list sensors for %s: %w", a.State, err)
		}
	}
	if a.SensorsToGet > 0 && len(ids) > a.SensorsToGet {
		ids = ids[:a.SensorsToGet]
	}
	return ids, nil
}
