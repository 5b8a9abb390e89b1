// Package segment splits an acquisition date range into fixed-width windows.
//
// Windows are produced newest first, walking backward from the stop date:
//
//	p, _ := segment.NewPlanner(start, stop, 7*24*time.Hour)
//	for it := p.Iter(); ; {
//	    seg, ok := it.Next()
//	    if !ok {
//	        break
//	    }
//	    ...
//	}
package segment

import (
	"time"

	"github.com/tejusbharadwaj/airhist/internal/config"
	"github.com/tejusbharadwaj/airhist/internal/models"
)

// Planner describes the segmentation of [start, stop].
type Planner struct {
	start time.Time
	stop  time.Time
	width time.Duration
}

// NewPlanner returns a Planner for [start, stop] with windows of the given
// width. A non-positive width is a configuration error. start >= stop is
// valid and yields no segments.
func NewPlanner(start, stop time.Time, width time.Duration) (*Planner, error) {
	if width <= 0 {
		return nil, &config.ConfigError{Key: "segment width", Reason: "must be positive"}
	}
	return &Planner{start: start, stop: stop, width: width}, nil
}

// Count returns ceil((stop - start) / width).
func (p *Planner) Count() int {
	if !p.start.Before(p.stop) {
		return 0
	}
	span := p.stop.Sub(p.start)
	n := span / p.width
	if span%p.width != 0 {
		n++
	}
	return int(n)
}

// Iter returns a new iterator positioned at the newest segment.
func (p *Planner) Iter() *Iterator {
	return &Iterator{p: p, total: p.Count()}
}

// Segments collects the full sequence.
func (p *Planner) Segments() []models.Segment {
	out := make([]models.Segment, 0, p.Count())
	for it := p.Iter(); ; {
		seg, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, seg)
	}
}

// Iterator walks a Planner's segments lazily. It is not safe for
// concurrent use.
type Iterator struct {
	p     *Planner
	k     int
	total int
}

// Next returns the next older segment, or false once the start date has
// been reached.
func (it *Iterator) Next() (models.Segment, bool) {
	if it.k >= it.total {
		return models.Segment{}, false
	}
	end := it.p.stop.Add(-time.Duration(it.k) * it.p.width)
	start := end.Add(-it.p.width)
	if start.Before(it.p.start) {
		start = it.p.start
	}
	it.k++
	return models.Segment{Start: start, End: end}, true
}

// Remaining returns how many segments are left.
func (it *Iterator) Remaining() int {
	return it.total - it.k
}
