package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/airhist/internal/metrics"
	"github.com/tejusbharadwaj/airhist/internal/segment"
)

// Writer is the lifecycle the scheduler drives on the store writer.
type Writer interface {
	Start()
	RequestStop()
	Join() error
}

// Summary describes a finished run.
type Summary struct {
	Segments  int
	Cancelled bool
	PoolStats
}

type Scheduler struct {
	planner *segment.Planner
	pool    *SensorPool
	writer  Writer
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewScheduler(planner *segment.Planner, pool *SensorPool, writer Writer, logger logrus.FieldLogger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		planner: planner,
		pool:    pool,
		writer:  writer,
		logger:  logger,
		metrics: m,
	}
}

// Run fetches every segment, newest first, one segment at a time. The
// writer is started before the first segment and joined after the last.
//
// Cancelling ctx stops new segments from being dispatched. Tasks already
// running in the current segment finish normally and their records are
// persisted; nothing written is rolled back. The returned error comes from
// the writer only.
func (s *Scheduler) Run(ctx context.Context, sensorIDs []int) (Summary, error) {
	var sum Summary

	s.writer.Start()

	// in-flight network calls are never interrupted
	taskCtx := context.WithoutCancel(ctx)

	total := s.planner.Count()
	for it := s.planner.Iter(); ; {
		if ctx.Err() != nil {
			sum.Cancelled = true
			s.logger.WithField("remaining_segments", it.Remaining()).Warn("Interrupted, stopping data retrieval")
			break
		}
		seg, ok := it.Next()
		if !ok {
			break
		}

		started := time.Now()
		log := s.logger.WithFields(logrus.Fields{
			"segment": seg.String(),
			"index":   sum.Segments + 1,
			"of":      total,
		})
		log.WithField("sensors", len(sensorIDs)).Info("Retrieving segment")

		stats := s.pool.Run(taskCtx, seg, sensorIDs)
		sum.Segments++
		sum.add(stats)
		s.metrics.SegmentDone()

		log.WithFields(logrus.Fields{
			"produced":   stats.Produced,
			"suppressed": stats.Suppressed,
			"failed":     stats.Failed,
			"duration":   time.Since(started).String(),
		}).Info("Segment done")
	}

	s.writer.RequestStop()
	err := s.writer.Join()
	return sum, err
}
