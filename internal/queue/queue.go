package queue

import (
	"sync"

	"github.com/tejusbharadwaj/airhist/internal/models"
)

// Queue is an unbounded multi-producer, single-consumer FIFO of sensor
// records. Enqueue never blocks; a consumer that falls behind lets the
// backlog grow without limit.
type Queue struct {
	mu     sync.Mutex
	data   []*models.SensorRecord
	notify chan struct{}

	// onLen, if set, observes the backlog after every change
	onLen func(int)
}

// Option configures a Queue.
type Option func(*Queue)

// WithLenObserver registers fn to be called with the queue length after
// every enqueue and drain. fn runs under the queue lock and must not block.
func WithLenObserver(fn func(int)) Option {
	return func(q *Queue) { q.onLen = fn }
}

func New(opts ...Option) *Queue {
	q := &Queue{notify: make(chan struct{}, 1)}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue appends rec and wakes the consumer.
func (q *Queue) Enqueue(rec *models.SensorRecord) {
	q.mu.Lock()
	q.data = append(q.data, rec)
	q.observe()
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// DrainAvailable removes and returns every queued record in FIFO order.
// It returns nil without blocking when the queue is empty.
func (q *Queue) DrainAvailable() []*models.SensorRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	out := q.data
	q.data = nil
	q.observe()
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Notify returns a channel that receives after an Enqueue. Wake-ups are
// coalesced, so the consumer must drain fully on each receive.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

func (q *Queue) observe() {
	if q.onLen != nil {
		q.onLen(len(q.data))
	}
}
