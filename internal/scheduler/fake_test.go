package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tejusbharadwaj/airhist/internal/fields"
	"github.com/tejusbharadwaj/airhist/internal/models"
)

const pmColumn = "PM2.5 (CF=1) ug/m3"

var t0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func pmMapper() *fields.Mapper {
	fs, err := fields.PurpleAir.Select(fields.PM2_5)
	if err != nil {
		panic(err)
	}
	return fields.NewMapper(fs)
}

func pmTable(rows int, base float64) models.Table {
	t := models.Table{}
	vals := make([]float64, rows)
	for i := 0; i < rows; i++ {
		t.Time = append(t.Time, t0.Add(time.Duration(i)*2*time.Minute))
		vals[i] = base + float64(i)
	}
	t.Columns = []models.Column{{Name: pmColumn, Values: vals}}
	return t
}

type historyCall struct {
	id  int
	seg models.Segment
}

// fakeSource serves rows readings per table and records every call.
type fakeSource struct {
	rows  int
	delay time.Duration
	fail  func(id int, seg models.Segment) error
	// called on every History call, before any delay
	onCall func(id int, seg models.Segment)

	mu    sync.Mutex
	calls []historyCall

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (f *fakeSource) Sensor(ctx context.Context, id int, seg models.Segment) (models.SensorMeta, error) {
	return models.SensorMeta{ID: id, Name: "sensor", Lat: 45, Lon: -122}, nil
}

func (f *fakeSource) History(ctx context.Context, id int, ch models.Channel, l models.Lineage, seg models.Segment) (models.Table, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		m := f.maxInflight.Load()
		if n <= m || f.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, historyCall{id: id, seg: seg})
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(id, seg)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail != nil {
		if err := f.fail(id, seg); err != nil {
			return models.Table{}, err
		}
	}
	return pmTable(f.rows, float64(id*100)+float64(ch)*10), nil
}

func (f *fakeSource) history() []historyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]historyCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeWriter records lifecycle calls.
type fakeWriter struct {
	started, stopped, joined atomic.Int32
	err                      error
}

func (w *fakeWriter) Start()       { w.started.Add(1) }
func (w *fakeWriter) RequestStop() { w.stopped.Add(1) }
func (w *fakeWriter) Join() error {
	w.joined.Add(1)
	return w.err
}
