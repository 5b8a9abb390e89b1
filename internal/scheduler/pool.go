package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tejusbharadwaj/airhist/internal/fields"
	"github.com/tejusbharadwaj/airhist/internal/metrics"
	"github.com/tejusbharadwaj/airhist/internal/models"
)

// PoolStats counts the outcomes of one segment.
type PoolStats struct {
	Dispatched int
	Produced   int
	Suppressed int
	Failed     int
}

func (s *PoolStats) add(o PoolStats) {
	s.Dispatched += o.Dispatched
	s.Produced += o.Produced
	s.Suppressed += o.Suppressed
	s.Failed += o.Failed
}

// SensorPool runs the fetch tasks of one segment with bounded concurrency.
type SensorPool struct {
	workers int
	source  DataSource
	mapper  *fields.Mapper
	out     Enqueuer
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewSensorPool(workers int, source DataSource, mapper *fields.Mapper, out Enqueuer, logger logrus.FieldLogger, m *metrics.Metrics) *SensorPool {
	if workers <= 0 {
		workers = 1
	}
	return &SensorPool{
		workers: workers,
		source:  source,
		mapper:  mapper,
		out:     out,
		logger:  logger,
		metrics: m,
	}
}

// Run dispatches one task per sensor and returns once every task has
// finished. At most workers tasks are in flight. Task failures never stop
// sibling tasks.
func (p *SensorPool) Run(ctx context.Context, seg models.Segment, sensorIDs []int) PoolStats {
	var produced, suppressed, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, id := range sensorIDs {
		task := &FetchTask{
			SensorID: id,
			Segment:  seg,
			source:   p.source,
			mapper:   p.mapper,
			out:      p.out,
			logger:   p.logger,
			metrics:  p.metrics,
		}
		g.Go(func() error {
			switch task.Run(ctx) {
			case Produced:
				produced.Add(1)
			case Suppressed:
				suppressed.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	// tasks never return errors
	_ = g.Wait()

	return PoolStats{
		Dispatched: len(sensorIDs),
		Produced:   int(produced.Load()),
		Suppressed: int(suppressed.Load()),
		Failed:     int(failed.Load()),
	}
}
