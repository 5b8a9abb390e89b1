package fields

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/airhist/internal/models"
)

func table(n int, start time.Time, cols map[string]float64) models.Table {
	t := models.Table{}
	for i := 0; i < n; i++ {
		t.Time = append(t.Time, start.Add(time.Duration(i)*2*time.Minute))
	}
	for name, base := range cols {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = base + float64(i)
		}
		t.Columns = append(t.Columns, models.Column{Name: name, Values: vals})
	}
	return t
}

func purpleAirRaw() Raw {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	var raw Raw
	raw[models.ChannelA][models.Primary] = table(3, t0, map[string]float64{
		"Temperature_F": 70, "Humidity_%": 40, "PM1.0 (CF=1) ug/m3": 1,
		"PM2.5 (CF=1) ug/m3": 2, "PM10.0 (CF=1) ug/m3": 3, "PM2.5 (CF=ATM) ug/m3": 4,
	})
	raw[models.ChannelA][models.Secondary] = table(2, t0, map[string]float64{"PM1.0 (CF=ATM) ug/m3": 5})
	raw[models.ChannelB][models.Primary] = table(4, t0.Add(time.Second), map[string]float64{
		"Atmospheric Pressure": 1000, "PM1.0 (CF=1) ug/m3": 10,
		"PM2.5 (CF=1) ug/m3": 20, "PM10.0 (CF=1) ug/m3": 30, "PM2.5 (CF=ATM) ug/m3": 40,
	})
	raw[models.ChannelB][models.Secondary] = table(1, t0, map[string]float64{"PM1.0 (CF=ATM) ug/m3": 50})
	return raw
}

func TestSelect(t *testing.T) {
	fs, err := PurpleAir.Select(DefaultSet...)
	require.NoError(t, err)
	assert.Len(t, fs, len(DefaultSet))
	assert.Equal(t, Temperature, fs[0].ID)

	_, err = PurpleAir.Select("ozone")
	assert.Error(t, err)
}

func TestScopeChannels(t *testing.T) {
	assert.Equal(t, []models.Channel{models.ChannelA, models.ChannelB}, BothChannels().Channels())
	assert.Equal(t, []models.Channel{models.ChannelB}, SingleChannel(models.ChannelB).Channels())
}

func TestMap(t *testing.T) {
	fs, err := PurpleAir.Select(DefaultSet...)
	require.NoError(t, err)
	meta := models.SensorMeta{ID: 7, Name: "roof"}
	raw := purpleAirRaw()

	rec, err := NewMapper(fs).Map(meta, models.Segment{}, raw)
	require.NoError(t, err)
	assert.Equal(t, 7, rec.ID)

	a := rec.Table(models.ChannelA, models.Primary)
	b := rec.Table(models.ChannelB, models.Primary)
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 4, b.Len())
	assert.Equal(t, raw[models.ChannelB][models.Primary].Time, b.Time)

	temp, ok := a.Column("Temperature_F")
	require.True(t, ok)
	assert.Equal(t, []float64{70, 71, 72}, temp)
	_, ok = b.Column("Temperature_F")
	assert.False(t, ok, "single-channel field leaked into channel B")

	pressure, ok := b.Column("Atmospheric Pressure")
	require.True(t, ok)
	assert.Equal(t, 1000.0, pressure[0])

	pmA, _ := a.Column("PM2.5 (CF=1) ug/m3")
	pmB, _ := b.Column("PM2.5 (CF=1) ug/m3")
	assert.Equal(t, 2.0, pmA[0])
	assert.Equal(t, 20.0, pmB[0], "channel B must hold the child sensor's readings")

	// secondary tables carry timestamps even without requested columns
	assert.Equal(t, 2, rec.Table(models.ChannelA, models.Secondary).Len())
	assert.Empty(t, rec.Table(models.ChannelA, models.Secondary).Columns)
}

func TestMapAggregatesPerFieldErrors(t *testing.T) {
	fs, err := PurpleAir.Select(Temperature, Pressure, PM2_5)
	require.NoError(t, err)
	raw := purpleAirRaw()
	raw[models.ChannelB][models.Primary].Columns = raw[models.ChannelB][models.Primary].Columns[:0]

	rec, err := NewMapper(fs).Map(models.SensorMeta{ID: 3}, models.Segment{}, raw)
	require.Error(t, err)

	var terr *TransformError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 3, terr.SensorID)
	assert.True(t, errors.Is(err, ErrMissingColumn))

	// unrelated fields still mapped
	_, ok := rec.Table(models.ChannelA, models.Primary).Column("Temperature_F")
	assert.True(t, ok)
	_, ok = rec.Table(models.ChannelA, models.Primary).Column("PM2.5 (CF=1) ug/m3")
	assert.True(t, ok)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.yaml")
	content := `
fields:
  pm2_5:
    channel: both
    lineage: primary
    column: "PM2.5 (CF=1) ug/m3"
  temp:
    channel: a
    column: "Temperature_F"
  uptime:
    channel: b
    lineage: secondary
    column: "Uptime"
select: [temp, pm2_5]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	tbl, selected, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, tbl, 3)
	require.Len(t, selected, 2)
	assert.Equal(t, "temp", selected[0].ID)
	assert.Equal(t, []models.Channel{models.ChannelA}, selected[0].Scope.Channels())
	assert.Equal(t, models.Secondary, tbl["uptime"].Lineage)
}

func TestLoadFileInvalid(t *testing.T) {
	tests := map[string]string{
		"bad channel": "fields:\n  x:\n    channel: c\n    column: X\n",
		"bad lineage": "fields:\n  x:\n    lineage: tertiary\n    column: X\n",
		"no column":   "fields:\n  x:\n    channel: a\n",
		"bad select":  "fields:\n  x:\n    column: X\nselect: [y]\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fields.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, _, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}
