//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/store.go -package=mocks . Store

// Package writer persists queued sensor records from a single background
// goroutine.
//
// The writer is the only component that touches the store. Its lifecycle
// is explicit:
//
//	w := writer.New(store, q, logger)
//	w.Start()
//	...              // producers enqueue records
//	w.RequestStop()  // returns immediately
//	err := w.Join()  // waits for a final drain of the queue
package writer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/airhist/internal/database"
	"github.com/tejusbharadwaj/airhist/internal/metrics"
	"github.com/tejusbharadwaj/airhist/internal/models"
	"github.com/tejusbharadwaj/airhist/internal/queue"
)

// DefaultIdleInterval is how long the writer sleeps when the queue is empty
// and no wake-up arrives.
const DefaultIdleInterval = time.Millisecond

// Store is the persistence surface the writer needs.
type Store interface {
	// AppendTable appends t under key without touching earlier rows.
	AppendTable(ctx context.Context, key string, t models.Table) error

	// SetAttribute overwrites one scalar attribute of a group.
	SetAttribute(ctx context.Context, group, name, value string) error
}

// Writer drains a queue into a Store.
type Writer struct {
	store   Store
	queue   *queue.Queue
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	idle    time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}

	// owned by the writer goroutine until done is closed
	written int
	errs    []error
}

// Option configures a Writer.
type Option func(*Writer)

// WithIdleInterval sets the idle poll interval.
func WithIdleInterval(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.idle = d
		}
	}
}

// WithMetrics records writes and failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

func New(store Store, q *queue.Queue, logger logrus.FieldLogger, opts ...Option) *Writer {
	w := &Writer{
		store:  store,
		queue:  q,
		logger: logger,
		idle:   DefaultIdleInterval,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start launches the writer goroutine. Calling Start more than once has no
// further effect.
func (w *Writer) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// RequestStop asks the writer to finish. It does not block; records still
// queued are written before Join returns.
func (w *Writer) RequestStop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Join waits for the writer to exit and returns the joined table write
// failures of the whole run, or nil. RequestStop must be called first;
// otherwise Join blocks until it is. A writer that was never started is
// started here, so its queue is still drained.
func (w *Writer) Join() error {
	w.startOnce.Do(func() {
		go w.run()
	})
	<-w.done
	return errors.Join(w.errs...)
}

// Written returns the number of records persisted. Valid after Join.
func (w *Writer) Written() int {
	<-w.done
	return w.written
}

func (w *Writer) run() {
	defer close(w.done)

	timer := time.NewTimer(w.idle)
	defer timer.Stop()

	for {
		w.drain()

		select {
		case <-w.stop:
			// producers have been joined by now; one last pass picks up
			// anything enqueued since the drain above
			w.drain()
			return
		case <-w.queue.Notify():
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.idle)
	}
}

func (w *Writer) drain() {
	for _, rec := range w.queue.DrainAvailable() {
		w.persist(rec)
	}
}

// persist writes one record: the four tables first, then the attribute
// set. Each table append and each attribute write is isolated, so one
// failure never blocks the others.
func (w *Writer) persist(rec *models.SensorRecord) {
	// the run may have been cancelled; in-flight writes still complete
	ctx := context.Background()
	log := w.logger.WithFields(logrus.Fields{
		"sensor_id": rec.ID,
		"segment":   rec.Segment.String(),
	})

	failed := false
	for _, c := range models.Channels {
		for _, l := range models.Lineages {
			key := models.TableKey(rec.ID, c, l)
			if err := w.store.AppendTable(ctx, key, *rec.Table(c, l)); err != nil {
				failed = true
				w.errs = append(w.errs, asWriteError(key, "", err))
				w.metrics.WriteFailed(metrics.KindTable)
				log.WithError(err).WithField("key", key).Error("Failed to append table")
			}
		}
	}

	group := models.GroupKey(rec.ID)
	for _, kv := range database.AttributeValues(rec.SensorMeta) {
		if err := w.store.SetAttribute(ctx, group, kv[0], kv[1]); err != nil {
			w.metrics.WriteFailed(metrics.KindAttribute)
			log.WithError(err).WithField("attribute", kv[0]).Warn("Failed to write attribute")
		}
	}

	if !failed {
		w.written++
		w.metrics.RecordWritten()
	}
}

func asWriteError(key, attr string, err error) error {
	var werr *database.WriteError
	if errors.As(err, &werr) {
		return err
	}
	return &database.WriteError{Key: key, Attribute: attr, Err: err}
}
