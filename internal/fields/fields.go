// Package fields maps requested field identifiers onto the channel, lineage
// and column they are read from.
package fields

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tejusbharadwaj/airhist/internal/models"
)

// Scope says which channels a field applies to.
type Scope struct {
	both    bool
	channel models.Channel
}

// SingleChannel scopes a field to one channel.
func SingleChannel(c models.Channel) Scope { return Scope{channel: c} }

// BothChannels scopes a field to channel A and channel B.
func BothChannels() Scope { return Scope{both: true} }

// Channels returns the channels covered by the scope.
func (s Scope) Channels() []models.Channel {
	if s.both {
		return models.Channels[:]
	}
	return []models.Channel{s.channel}
}

func (s Scope) String() string {
	if s.both {
		return "both"
	}
	return s.channel.String()
}

// Field describes where one requested field is read from.
type Field struct {
	ID      string
	Scope   Scope
	Lineage models.Lineage
	Column  string
}

// Table is a finite map from field identifier to its location.
type Table map[string]Field

// Identifiers of the built-in PurpleAir fields.
const (
	Temperature = "temperature"
	Humidity    = "humidity"
	Pressure    = "pressure"
	PM1_0       = "pm1_0"
	PM2_5       = "pm2_5"
	PM10        = "pm10"
	PM1_0ATM    = "pm1_0_atm"
	PM2_5ATM    = "pm2_5_atm"
	PM10ATM     = "pm10_atm"
)

// PurpleAir is the field table of PurpleAir dual-laser sensors.
var PurpleAir = Table{
	Temperature: {ID: Temperature, Scope: SingleChannel(models.ChannelA), Lineage: models.Primary, Column: "Temperature_F"},
	Humidity:    {ID: Humidity, Scope: SingleChannel(models.ChannelA), Lineage: models.Primary, Column: "Humidity_%"},
	Pressure:    {ID: Pressure, Scope: SingleChannel(models.ChannelB), Lineage: models.Primary, Column: "Atmospheric Pressure"},
	PM1_0:       {ID: PM1_0, Scope: BothChannels(), Lineage: models.Primary, Column: "PM1.0 (CF=1) ug/m3"},
	PM2_5:       {ID: PM2_5, Scope: BothChannels(), Lineage: models.Primary, Column: "PM2.5 (CF=1) ug/m3"},
	PM10:        {ID: PM10, Scope: BothChannels(), Lineage: models.Primary, Column: "PM10.0 (CF=1) ug/m3"},
	PM1_0ATM:    {ID: PM1_0ATM, Scope: BothChannels(), Lineage: models.Secondary, Column: "PM1.0 (CF=ATM) ug/m3"},
	PM2_5ATM:    {ID: PM2_5ATM, Scope: BothChannels(), Lineage: models.Primary, Column: "PM2.5 (CF=ATM) ug/m3"},
	PM10ATM:     {ID: PM10ATM, Scope: BothChannels(), Lineage: models.Secondary, Column: "PM10.0 (CF=ATM) ug/m3"},
}

// DefaultSet is the field set requested when none is configured.
var DefaultSet = []string{Temperature, Humidity, Pressure, PM1_0, PM2_5, PM10, PM2_5ATM}

// Select resolves identifiers against the table, in the given order.
func (t Table) Select(ids ...string) ([]Field, error) {
	out := make([]Field, 0, len(ids))
	for _, id := range ids {
		f, ok := t[id]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", id)
		}
		out = append(out, f)
	}
	return out, nil
}

// IDs returns the sorted identifiers of the table.
func (t Table) IDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type fileField struct {
	Channel string `yaml:"channel"`
	Lineage string `yaml:"lineage"`
	Column  string `yaml:"column"`
}

type fileTable struct {
	Fields map[string]fileField `yaml:"fields"`
	Select []string             `yaml:"select"`
}

// LoadFile reads a field table and the selected field set from YAML:
//
//	fields:
//	  pm2_5:
//	    channel: both      # a, b or both
//	    lineage: primary   # primary or secondary
//	    column: "PM2.5 (CF=1) ug/m3"
//	select: [pm2_5]
//
// An empty select list selects every field in the file.
func LoadFile(path string) (Table, []Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read field file: %w", err)
	}
	var raw fileTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal field file: %w", err)
	}

	table := make(Table, len(raw.Fields))
	for id, ff := range raw.Fields {
		f, err := ff.field(id)
		if err != nil {
			return nil, nil, err
		}
		table[id] = f
	}

	sel := raw.Select
	if len(sel) == 0 {
		sel = table.IDs()
	}
	selected, err := table.Select(sel...)
	if err != nil {
		return nil, nil, err
	}
	return table, selected, nil
}

func (ff fileField) field(id string) (Field, error) {
	f := Field{ID: id, Column: ff.Column}
	if ff.Column == "" {
		return f, fmt.Errorf("field %q: column is required", id)
	}

	switch ff.Channel {
	case "a", "A":
		f.Scope = SingleChannel(models.ChannelA)
	case "b", "B":
		f.Scope = SingleChannel(models.ChannelB)
	case "both", "":
		f.Scope = BothChannels()
	default:
		return f, fmt.Errorf("field %q: invalid channel %q", id, ff.Channel)
	}

	switch ff.Lineage {
	case "primary", "":
		f.Lineage = models.Primary
	case "secondary":
		f.Lineage = models.Secondary
	default:
		return f, fmt.Errorf("field %q: invalid lineage %q", id, ff.Lineage)
	}
	return f, nil
}
