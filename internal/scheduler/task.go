//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/datasource.go -package=mocks . DataSource

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/airhist/internal/fields"
	"github.com/tejusbharadwaj/airhist/internal/metrics"
	"github.com/tejusbharadwaj/airhist/internal/models"
)

// DataSource reads sensor metadata and historical readings.
type DataSource interface {
	// Sensor returns the metadata of a sensing unit, fetched for seg.
	Sensor(ctx context.Context, id int, seg models.Segment) (models.SensorMeta, error)

	// History returns one channel and lineage of a sensor over seg.
	History(ctx context.Context, id int, ch models.Channel, l models.Lineage, seg models.Segment) (models.Table, error)
}

// Enqueuer accepts produced records without blocking.
type Enqueuer interface {
	Enqueue(rec *models.SensorRecord)
}

// FetchError reports a failed retrieval for one sensor and segment.
type FetchError struct {
	SensorID int
	Segment  models.Segment
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch sensor %d for %s: %v", e.SensorID, e.Segment, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Outcome is the result of one FetchTask.
type Outcome int

const (
	Produced Outcome = iota
	Suppressed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Produced:
		return metrics.OutcomeProduced
	case Suppressed:
		return metrics.OutcomeSuppressed
	}
	return metrics.OutcomeFailed
}

// FetchTask retrieves and transforms one sensor's data for one segment.
type FetchTask struct {
	SensorID int
	Segment  models.Segment

	source  DataSource
	mapper  *fields.Mapper
	out     Enqueuer
	logger  logrus.FieldLogger
	metrics *metrics.Metrics

	// set when some requested fields were missing
	partial bool
}

// Run executes the task. Every failure, including a panic, is contained
// here: it is logged and reported as Failed, and no record is produced.
func (t *FetchTask) Run(ctx context.Context) (outcome Outcome) {
	start := time.Now()
	log := t.logger.WithFields(logrus.Fields{
		"sensor_id": t.SensorID,
		"segment":   t.Segment.String(),
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Fetch task panicked")
			outcome = Failed
		}
		label := outcome.String()
		if outcome == Produced && t.partial {
			label = metrics.OutcomePartial
		}
		t.metrics.TaskDone(label, time.Since(start).Seconds())
	}()

	rec, err := t.fetch(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch sensor data")
		return Failed
	}
	if rec == nil {
		log.Debug("No primary readings, record suppressed")
		return Suppressed
	}

	t.out.Enqueue(rec)
	return Produced
}

func (t *FetchTask) fetch(ctx context.Context) (*models.SensorRecord, error) {
	meta, err := t.source.Sensor(ctx, t.SensorID, t.Segment)
	if err != nil {
		return nil, &FetchError{SensorID: t.SensorID, Segment: t.Segment, Err: err}
	}

	var raw fields.Raw
	for _, c := range models.Channels {
		for _, l := range models.Lineages {
			tbl, err := t.source.History(ctx, t.SensorID, c, l, t.Segment)
			if err != nil {
				return nil, &FetchError{
					SensorID: t.SensorID,
					Segment:  t.Segment,
					Err:      fmt.Errorf("%s/%s: %w", c, l, err),
				}
			}
			raw[c][l] = tbl
		}
	}

	for _, c := range models.Channels {
		if raw[c][models.Primary].Len() == 0 {
			return nil, nil
		}
	}

	rec, err := t.mapper.Map(meta, t.Segment, raw)
	if err != nil {
		var terr *fields.TransformError
		if !errors.As(err, &terr) {
			return nil, err
		}
		// keep the fields that mapped
		t.partial = true
		t.logger.WithFields(logrus.Fields{
			"sensor_id": t.SensorID,
			"segment":   t.Segment.String(),
		}).WithError(err).Warn("Some fields could not be mapped")
	}
	return &rec, nil
}
