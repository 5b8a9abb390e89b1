package fields

import (
	"errors"
	"fmt"

	"github.com/tejusbharadwaj/airhist/internal/models"
)

// TransformError reports a requested field that could not be mapped.
type TransformError struct {
	SensorID int
	Field    string
	Channel  models.Channel
	Lineage  models.Lineage
	Err      error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("sensor %d: field %s (%s/%s): %v", e.SensorID, e.Field, e.Channel, e.Lineage, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// ErrMissingColumn is wrapped by TransformError when the source table lacks
// the requested column.
var ErrMissingColumn = errors.New("missing column")

// Raw holds the four source tables of one sensor, indexed by channel then
// lineage.
type Raw [2][2]models.Table

// Mapper builds SensorRecords from raw channel data.
type Mapper struct {
	fields []Field
}

// NewMapper returns a Mapper for the given field set.
func NewMapper(fields []Field) *Mapper {
	return &Mapper{fields: fields}
}

// Fields returns the mapped field set.
func (m *Mapper) Fields() []Field { return m.fields }

// Map copies the requested columns into a new record. Timestamps are taken
// from each source table so that channel B always carries the child
// sensor's own rows. Fields are mapped independently: the returned error
// joins one TransformError per field that failed, and the record still
// holds every field that succeeded.
func (m *Mapper) Map(meta models.SensorMeta, seg models.Segment, raw Raw) (models.SensorRecord, error) {
	rec := models.SensorRecord{SensorMeta: meta, Segment: seg}
	for _, c := range models.Channels {
		for _, l := range models.Lineages {
			*rec.Table(c, l) = raw[c][l].Timestamps()
		}
	}

	var errs []error
	for _, f := range m.fields {
		for _, c := range f.Scope.Channels() {
			src := raw[c][f.Lineage]
			values, ok := src.Column(f.Column)
			if !ok {
				errs = append(errs, &TransformError{
					SensorID: meta.ID, Field: f.ID, Channel: c, Lineage: f.Lineage,
					Err: fmt.Errorf("%w %q", ErrMissingColumn, f.Column),
				})
				continue
			}
			if err := rec.Table(c, f.Lineage).SetColumn(f.Column, values); err != nil {
				errs = append(errs, &TransformError{
					SensorID: meta.ID, Field: f.ID, Channel: c, Lineage: f.Lineage, Err: err,
				})
			}
		}
	}
	return rec, errors.Join(errs...)
}
