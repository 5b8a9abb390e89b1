// Package database implements the append-only sensor store.
//
// Layout:
//   - Every sensor owns a group, sensor_<id>.
//   - A group holds four tables, channelA/primary, channelA/secondary,
//     channelB/primary and channelB/secondary. Appends never rewrite
//     earlier rows; each append is recorded as one batch.
//   - A group holds a scalar attribute set (lat, lon, locationType, name,
//     hardware, model) that is overwritten on every write.
//
// The store lives in a single SQLite file, or in a Postgres database when
// opened with the "postgres" driver. It expects a single writer.
//
// Example usage:
//
//	store, err := database.Open(ctx, "sqlite", "air.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.AppendTable(ctx, "sensor_7/channelA/primary", table)
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tejusbharadwaj/airhist/internal/models"
)

// Attribute names of a sensor group.
const (
	AttrLat          = "lat"
	AttrLon          = "lon"
	AttrLocationType = "locationType"
	AttrName         = "name"
	AttrHardware     = "hardware"
	AttrModel        = "model"
)

// AttributeNames lists the scalar attributes in write order.
var AttributeNames = []string{AttrLat, AttrLon, AttrLocationType, AttrName, AttrHardware, AttrModel}

// WriteError reports a failed table append or attribute write.
type WriteError struct {
	Key       string
	Attribute string
	Err       error
}

func (e *WriteError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("write attribute %s of %s: %v", e.Attribute, e.Key, e.Err)
	}
	return fmt.Sprintf("append %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

type dialect struct {
	driver    string
	seqColumn string
	numbered  bool // $1 placeholders
}

var dialects = map[string]dialect{
	"sqlite":   {driver: "sqlite", seqColumn: "INTEGER PRIMARY KEY AUTOINCREMENT"},
	"postgres": {driver: "postgres", seqColumn: "BIGSERIAL PRIMARY KEY", numbered: true},
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sensor_batches (
			id ` + d.seqColumn + `,
			dataset TEXT NOT NULL,
			sensor_group TEXT NOT NULL,
			row_count INTEGER NOT NULL,
			written_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sensor_batches_dataset ON sensor_batches (dataset)`,
		`CREATE TABLE IF NOT EXISTS sensor_rows (
			seq ` + d.seqColumn + `,
			batch_id BIGINT NOT NULL,
			dataset TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			vals TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sensor_rows_dataset ON sensor_rows (dataset)`,
		`CREATE TABLE IF NOT EXISTS sensor_attrs (
			sensor_group TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (sensor_group, name)
		)`,
	}
}

// Store is the SQL-backed sensor store.
type Store struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

// Open opens (creating if needed) the store. For "sqlite" path is a file
// name; for "postgres" it is a connection string.
func Open(ctx context.Context, driver, path string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	if driver == "sqlite" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open(d.driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if driver == "sqlite" {
		// one connection: the writer is the only user and ":memory:" is per connection
		db.SetMaxOpenConns(1)
		for _, p := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 10000",
			"PRAGMA synchronous = NORMAL",
		} {
			if _, err := db.ExecContext(ctx, p); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to apply %s: %w", p, err)
			}
		}
	}

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach store: %w", err)
	}

	for _, stmt := range d.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Store{db: db, d: d, now: time.Now}, nil
}

// AppendTable appends every row of t to the table stored under key, as one
// batch. The append is atomic: either all rows are written or none.
func (s *Store) AppendTable(ctx context.Context, key string, t models.Table) error {
	group := key
	if i := strings.IndexByte(key, '/'); i >= 0 {
		group = key[:i]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &WriteError{Key: key, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback() // rollback if not committed

	var batchID int64
	err = tx.QueryRowContext(ctx, s.d.rebind(
		`INSERT INTO sensor_batches (dataset, sensor_group, row_count, written_at) VALUES (?, ?, ?, ?) RETURNING id`),
		key, group, t.Len(), s.now().UnixMilli(),
	).Scan(&batchID)
	if err != nil {
		return &WriteError{Key: key, Err: fmt.Errorf("failed to record batch: %w", err)}
	}

	stmt, err := tx.PrepareContext(ctx, s.d.rebind(
		`INSERT INTO sensor_rows (batch_id, dataset, created_at, vals) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return &WriteError{Key: key, Err: fmt.Errorf("failed to prepare statement: %w", err)}
	}
	defer stmt.Close()

	row := make(map[string]float64, len(t.Columns))
	for i, ts := range t.Time {
		clear(row)
		for _, c := range t.Columns {
			if v := c.Values[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				row[c.Name] = v
			}
		}
		vals, err := json.Marshal(row)
		if err != nil {
			return &WriteError{Key: key, Err: fmt.Errorf("marshal values: %w", err)}
		}
		if _, err := stmt.ExecContext(ctx, batchID, key, ts.UnixMilli(), string(vals)); err != nil {
			return &WriteError{Key: key, Err: fmt.Errorf("failed to insert row: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &WriteError{Key: key, Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return nil
}

// SetAttribute overwrites one scalar attribute of a group.
func (s *Store) SetAttribute(ctx context.Context, group, name, value string) error {
	_, err := s.db.ExecContext(ctx, s.d.rebind(`
		INSERT INTO sensor_attrs (sensor_group, name, value) VALUES (?, ?, ?)
		ON CONFLICT (sensor_group, name) DO UPDATE SET value = excluded.value`),
		group, name, value,
	)
	if err != nil {
		return &WriteError{Key: group, Attribute: name, Err: err}
	}
	return nil
}

// RowCount returns the number of rows stored under key.
func (s *Store) RowCount(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT COUNT(*) FROM sensor_rows WHERE dataset = ?`), key).Scan(&n)
	return n, err
}

// BatchCount returns the number of appends made to key.
func (s *Store) BatchCount(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT COUNT(*) FROM sensor_batches WHERE dataset = ?`), key).Scan(&n)
	return n, err
}

// Groups returns the sorted names of all sensor groups.
func (s *Store) Groups(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sensor_group FROM sensor_batches
		UNION
		SELECT sensor_group FROM sensor_attrs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(groups)
	return groups, nil
}

// Attributes returns the scalar attribute set of a group.
func (s *Store) Attributes(ctx context.Context, group string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(`SELECT name, value FROM sensor_attrs WHERE sensor_group = ?`), group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attrs := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		attrs[name] = value
	}
	return attrs, rows.Err()
}

// ReadTable reads every row stored under key in append order. Columns are
// sorted by name; readings absent from a row are NaN.
func (s *Store) ReadTable(ctx context.Context, key string) (models.Table, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(
		`SELECT created_at, vals FROM sensor_rows WHERE dataset = ? ORDER BY seq`), key)
	if err != nil {
		return models.Table{}, err
	}
	defer rows.Close()

	var (
		times  []time.Time
		values []map[string]float64
		names  = make(map[string]struct{})
	)
	for rows.Next() {
		var ms int64
		var raw string
		if err := rows.Scan(&ms, &raw); err != nil {
			return models.Table{}, err
		}
		v := make(map[string]float64)
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return models.Table{}, fmt.Errorf("decode row of %s: %w", key, err)
		}
		for name := range v {
			names[name] = struct{}{}
		}
		times = append(times, time.UnixMilli(ms).UTC())
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return models.Table{}, err
	}

	t := models.Table{Time: times}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	for _, name := range sorted {
		col := models.Column{Name: name, Values: make([]float64, len(values))}
		for i, v := range values {
			if x, ok := v[name]; ok {
				col.Values[i] = x
			} else {
				col.Values[i] = math.NaN()
			}
		}
		t.Columns = append(t.Columns, col)
	}
	return t, nil
}

// ReadSensor reads a sensor group back into a record.
func (s *Store) ReadSensor(ctx context.Context, sensorID int) (models.SensorRecord, error) {
	group := models.GroupKey(sensorID)
	attrs, err := s.Attributes(ctx, group)
	if err != nil {
		return models.SensorRecord{}, err
	}
	if len(attrs) == 0 {
		return models.SensorRecord{}, fmt.Errorf("group %s: %w", group, sql.ErrNoRows)
	}

	rec := models.SensorRecord{SensorMeta: MetaFromAttributes(sensorID, attrs)}
	for _, c := range models.Channels {
		for _, l := range models.Lineages {
			t, err := s.ReadTable(ctx, models.TableKey(sensorID, c, l))
			if err != nil {
				return models.SensorRecord{}, err
			}
			*rec.Table(c, l) = t
		}
	}
	return rec, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AttributeValues returns the attribute set of meta as stored strings, in
// AttributeNames order.
func AttributeValues(meta models.SensorMeta) [][2]string {
	return [][2]string{
		{AttrLat, strconv.FormatFloat(meta.Lat, 'f', -1, 64)},
		{AttrLon, strconv.FormatFloat(meta.Lon, 'f', -1, 64)},
		{AttrLocationType, meta.LocationType},
		{AttrName, meta.Name},
		{AttrHardware, meta.Hardware},
		{AttrModel, meta.Model},
	}
}

// MetaFromAttributes is the inverse of AttributeValues. Unparseable coordinates
// are left at zero.
func MetaFromAttributes(sensorID int, attrs map[string]string) models.SensorMeta {
	meta := models.SensorMeta{
		ID:           sensorID,
		LocationType: attrs[AttrLocationType],
		Name:         attrs[AttrName],
		Hardware:     attrs[AttrHardware],
		Model:        attrs[AttrModel],
	}
	meta.Lat, _ = strconv.ParseFloat(attrs[AttrLat], 64)
	meta.Lon, _ = strconv.ParseFloat(attrs[AttrLon], 64)
	return meta
}
