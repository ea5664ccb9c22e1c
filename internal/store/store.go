// Package store keeps the history of classified photos in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/classify"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationsFS returns the schema migrations shipped with the binary.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return sub
}

// Record is one classified (or failed) photo.
type Record struct {
	RequestID    uuid.UUID              `json:"request_id"`
	DeviceID     string                 `json:"device_id"`
	CapturedAt   time.Time              `json:"captured_at"`
	Label        string                 `json:"label"` // top identifier, empty when nothing was recognized
	Confidence   float32                `json:"confidence"`
	Observations []classify.Observation `json:"observations"`
	Error        string                 `json:"error,omitempty"`
}

// LabelCount is the number of photos whose top label was Label.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DB is the history database.
type DB struct {
	*sql.DB
}

// OpenDB opens (or creates) the database at path and applies pending migrations.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	debug.Info("History database ready: %s", path)
	return db, nil
}

// NewRecord builds a history record from a classification outcome.
func NewRecord(id uuid.UUID, deviceID string, capturedAt time.Time, results []classify.Observation, err error) Record {
	r := Record{
		RequestID:    id,
		DeviceID:     deviceID,
		CapturedAt:   capturedAt,
		Observations: results,
	}
	if err != nil {
		r.Error = err.Error()
	}
	if len(results) > 0 {
		r.Label = results[0].Identifier
		r.Confidence = results[0].Confidence
	}
	return r
}

// Insert stores r. Inserting the same request twice fails.
func (db *DB) Insert(ctx context.Context, r Record) error {
	obs := r.Observations
	if obs == nil {
		obs = []classify.Observation{}
	}
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observations: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO classifications
			(request_id, device_id, captured_at_ns, label, confidence, observations_json, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RequestID.String(), r.DeviceID, r.CapturedAt.UnixNano(),
		r.Label, float64(r.Confidence), string(data), r.Error,
	)
	if err != nil {
		return fmt.Errorf("insert classification %s: %w", r.RequestID, err)
	}
	debug.Trace("History: stored %s (%q)", r.RequestID, r.Label)
	return nil
}

// Recent returns up to limit records, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT request_id, device_id, captured_at_ns, label, confidence, observations_json, error
		FROM classifications
		ORDER BY captured_at_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			id, device, label, obsJSON, errText string
			capturedNs                          int64
			confidence                          float64
		)
		if err := rows.Scan(&id, &device, &capturedNs, &label, &confidence, &obsJSON, &errText); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("history row has bad request id %q: %w", id, err)
		}
		var obs []classify.Observation
		if err := json.Unmarshal([]byte(obsJSON), &obs); err != nil {
			return nil, fmt.Errorf("history row %s: %w", id, err)
		}
		out = append(out, Record{
			RequestID:    rid,
			DeviceID:     device,
			CapturedAt:   time.Unix(0, capturedNs),
			Label:        label,
			Confidence:   float32(confidence),
			Observations: obs,
			Error:        errText,
		})
	}
	return out, rows.Err()
}

// LabelCounts returns how often each top label was seen, most frequent first.
// Failed and empty classifications are not counted.
func (db *DB) LabelCounts(ctx context.Context) ([]LabelCount, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT label, COUNT(*) AS n
		FROM classifications
		WHERE label != ''
		GROUP BY label
		ORDER BY n DESC, label ASC`)
	if err != nil {
		return nil, fmt.Errorf("query label counts: %w", err)
	}
	defer rows.Close()

	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}
