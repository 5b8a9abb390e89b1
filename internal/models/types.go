package models

import (
	"fmt"
	"time"
)

// Channel identifies one of the two physical sub-sensors of a unit.
type Channel int

const (
	ChannelA Channel = iota // parent
	ChannelB                // child
)

// Channels lists both channels in storage order.
var Channels = [2]Channel{ChannelA, ChannelB}

func (c Channel) String() string {
	switch c {
	case ChannelA:
		return "channelA"
	case ChannelB:
		return "channelB"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// Lineage identifies one of the two data streams produced per channel.
type Lineage int

const (
	Primary Lineage = iota
	Secondary
)

// Lineages lists both lineages in storage order.
var Lineages = [2]Lineage{Primary, Secondary}

func (l Lineage) String() string {
	switch l {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	}
	return fmt.Sprintf("lineage(%d)", int(l))
}

// Segment is the half-open window [Start, End) fetched as one batch.
type Segment struct {
	Start time.Time
	End   time.Time
}

func (s Segment) String() string {
	return s.Start.Format("2006-01-02") + ".." + s.End.Format("2006-01-02")
}

// Column is one named numeric column of a Table.
type Column struct {
	Name   string
	Values []float64
}

// Table holds rows keyed by a timestamp plus numeric columns. Every column
// has exactly len(Time) values; NaN marks a missing reading.
type Table struct {
	Time    []time.Time
	Columns []Column
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Time) }

// Column returns the values of the named column.
func (t Table) Column(name string) ([]float64, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Values, true
		}
	}
	return nil, false
}

// Timestamps returns a table sharing no memory with t that holds only the
// timestamp column.
func (t Table) Timestamps() Table {
	ts := make([]time.Time, len(t.Time))
	copy(ts, t.Time)
	return Table{Time: ts}
}

// SetColumn adds or replaces a column. The values are copied.
func (t *Table) SetColumn(name string, values []float64) error {
	if len(values) != len(t.Time) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.Time))
	}
	v := make([]float64, len(values))
	copy(v, values)
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			t.Columns[i].Values = v
			return nil
		}
	}
	t.Columns = append(t.Columns, Column{Name: name, Values: v})
	return nil
}

// ChannelData holds both lineages of one channel.
type ChannelData struct {
	Primary   Table
	Secondary Table
}

// Lineage returns the table for l.
func (c *ChannelData) Lineage(l Lineage) *Table {
	if l == Secondary {
		return &c.Secondary
	}
	return &c.Primary
}

// SensorMeta is the descriptive metadata of a sensing unit.
type SensorMeta struct {
	ID           int
	Lat          float64
	Lon          float64
	LocationType string
	Name         string
	Hardware     string
	Model        string
}

// SensorRecord is one sensor's mapped data for one segment. Channels is
// indexed by Channel; the two entries are always built from distinct
// physical sub-sensors.
type SensorRecord struct {
	SensorMeta
	Segment  Segment
	Channels [2]ChannelData
}

// Channel returns the data of channel c.
func (r *SensorRecord) Channel(c Channel) *ChannelData {
	return &r.Channels[c]
}

// Table returns the table for the given channel and lineage.
func (r *SensorRecord) Table(c Channel, l Lineage) *Table {
	return r.Channels[c].Lineage(l)
}

// GroupKey returns the store group of a sensor.
func GroupKey(sensorID int) string {
	return fmt.Sprintf("sensor_%d", sensorID)
}

// TableKey returns the store key of one of a sensor's four tables.
func TableKey(sensorID int, c Channel, l Lineage) string {
	return GroupKey(sensorID) + "/" + c.String() + "/" + l.String()
}
