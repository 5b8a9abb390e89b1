package segment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/airhist/internal/config"
	"github.com/tejusbharadwaj/airhist/internal/models"
)

const day = 24 * time.Hour

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewPlannerRejectsWidth(t *testing.T) {
	for _, width := range []time.Duration{0, -day} {
		_, err := NewPlanner(date(2023, 1, 1), date(2023, 1, 15), width)
		var cfgErr *config.ConfigError
		assert.True(t, errors.As(err, &cfgErr), "width %v", width)
	}
}

func TestPlannerSegments(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		stop  time.Time
		width time.Duration
		want  []models.Segment
	}{
		{
			name:  "exact multiple",
			start: date(2023, 1, 1),
			stop:  date(2023, 1, 15),
			width: 7 * day,
			want: []models.Segment{
				{Start: date(2023, 1, 8), End: date(2023, 1, 15)},
				{Start: date(2023, 1, 1), End: date(2023, 1, 8)},
			},
		},
		{
			name:  "oldest segment clamped",
			start: date(2023, 1, 1),
			stop:  date(2023, 1, 17),
			width: 7 * day,
			want: []models.Segment{
				{Start: date(2023, 1, 10), End: date(2023, 1, 17)},
				{Start: date(2023, 1, 3), End: date(2023, 1, 10)},
				{Start: date(2023, 1, 1), End: date(2023, 1, 3)},
			},
		},
		{
			name:  "range shorter than width",
			start: date(2023, 1, 1),
			stop:  date(2023, 1, 2),
			width: 14 * day,
			want: []models.Segment{
				{Start: date(2023, 1, 1), End: date(2023, 1, 2)},
			},
		},
		{
			name:  "start equals stop",
			start: date(2023, 1, 1),
			stop:  date(2023, 1, 1),
			width: day,
			want:  []models.Segment{},
		},
		{
			name:  "start after stop",
			start: date(2023, 2, 1),
			stop:  date(2023, 1, 1),
			width: day,
			want:  []models.Segment{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPlanner(tt.start, tt.stop, tt.width)
			require.NoError(t, err)

			got := p.Segments()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), p.Count())

			for _, seg := range got {
				assert.True(t, seg.End.After(seg.Start))
				assert.False(t, seg.Start.Before(tt.start))
			}
		})
	}
}

func TestPlannerCountMatchesCeil(t *testing.T) {
	start := date(2022, 3, 5)
	for days := 1; days <= 60; days++ {
		for width := 1; width <= 10; width++ {
			p, err := NewPlanner(start, start.Add(time.Duration(days)*day), time.Duration(width)*day)
			require.NoError(t, err)
			want := (days + width - 1) / width
			assert.Equal(t, want, p.Count(), "days=%d width=%d", days, width)
			assert.Len(t, p.Segments(), want)
		}
	}
}

func TestIteratorIsRestartable(t *testing.T) {
	p, err := NewPlanner(date(2023, 1, 1), date(2023, 1, 15), 7*day)
	require.NoError(t, err)

	it := p.Iter()
	assert.Equal(t, 2, it.Remaining())
	first, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, 1, it.Remaining())

	again, ok := p.Iter().Next()
	require.True(t, ok)
	assert.Equal(t, first, again)

	_, ok = it.Next()
	assert.True(t, ok)
	_, ok = it.Next()
	assert.False(t, ok)
}
