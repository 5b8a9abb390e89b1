// Package airhist retrieves historical readings of dual-channel air quality
// sensors and appends them to a local store.
//
// # Architecture
//
// The tool is structured into several packages:
//   - config: YAML and environment configuration
//   - segment: splits the date range into fixed-width windows, newest first
//   - api: rate limited HTTP client for sensor metadata and history
//   - fields: maps source columns onto the requested field set
//   - scheduler: runs one fetch task per sensor and segment on a bounded pool
//   - queue: unbounded hand-off between fetch tasks and the writer
//   - writer: the single store writer, drained completely on stop
//   - database: the append-only sensor store (SQLite or Postgres)
//   - acquire: wires the above together
//
// Key Features
//
//   - Segmented retrieval:
//     Segments are retrieved one at a time. Every sensor of a segment is
//     fetched and transformed before the next segment starts.
//
//   - Failure isolation:
//     A sensor that fails to fetch or transform is logged and skipped;
//     siblings and later segments are unaffected.
//
//   - Interrupts:
//     An interrupt stops new segments. Records already retrieved are still
//     written, so the store is valid and reflects all completed work.
//
// Example Usage
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fieldSet, _ := fields.PurpleAir.Select(fields.DefaultSet...)
//	err = acquire.Acquire(ctx, cfg, fieldSet)
//
// For more information about specific packages, see their respective
// documentation.
package airhist
