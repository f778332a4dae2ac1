package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rushikesh-Palande/rs-485/internal/infrastructure/database"
)

// History query limits. The UI chart asks for what it needs; the cap
// keeps a misbehaving client from dragging the whole table through JSON.
const (
	defaultHistoryLimit = 1000
	maxHistoryLimit     = 10000
)

// tsLayout is the storage timestamp format: fixed-width UTC so SQLite's
// lexicographic string comparison matches chronological order.
const tsLayout = "2006-01-02T15:04:05.000000Z"

// ErrDeviceUIDRequired is returned when recording a sample without a
// device identity.
var ErrDeviceUIDRequired = errors.New("telemetry: device uid is required")

// HistoryPoint is one sample in a history query result.
type HistoryPoint struct {
	TS      string         `json:"ts"`
	Metrics map[string]any `json:"metrics"`
	Quality map[string]any `json:"quality,omitempty"`
}

// Store persists telemetry samples and serves history queries.
//
// Devices are auto-registered by UID on first sample; samples reference
// them by numeric id so history queries can use the (device_id, ts)
// index.
type Store struct {
	db *database.DB
}

// NewStore creates a Store on top of an opened database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// clampLimit normalises a requested row limit into [1, maxHistoryLimit],
// applying the default when the caller didn't specify one.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

// History returns samples for a device ordered by time ascending.
//
// start and end are optional bounds (inclusive). An unknown device or an
// empty window (start after end) yields an empty slice, not an error.
func (s *Store) History(ctx context.Context, deviceUID string, start, end *time.Time, limit int) ([]HistoryPoint, error) {
	limit = clampLimit(limit)

	query := `
		SELECT t.ts, t.metrics_json, t.quality_json
		FROM telemetry_samples t
		JOIN devices d ON t.device_id = d.id
		WHERE d.device_uid = ?`
	args := []any{deviceUID}

	if start != nil {
		query += " AND t.ts >= ?"
		args = append(args, start.UTC().Format(tsLayout))
	}
	if end != nil {
		query += " AND t.ts <= ?"
		args = append(args, end.UTC().Format(tsLayout))
	}

	query += " ORDER BY t.ts ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	points := make([]HistoryPoint, 0, limit)
	for rows.Next() {
		var (
			ts          string
			metricsJSON string
			qualityJSON sql.NullString
		)
		if err := rows.Scan(&ts, &metricsJSON, &qualityJSON); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}

		point := HistoryPoint{TS: ts}
		if err := json.Unmarshal([]byte(metricsJSON), &point.Metrics); err != nil {
			return nil, fmt.Errorf("decoding metrics for %s: %w", deviceUID, err)
		}
		if qualityJSON.Valid && qualityJSON.String != "" {
			if err := json.Unmarshal([]byte(qualityJSON.String), &point.Quality); err != nil {
				return nil, fmt.Errorf("decoding quality for %s: %w", deviceUID, err)
			}
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}

	return points, nil
}

// EnsureDevice returns the registry id for a device UID, creating the
// device row on first contact.
func (s *Store) EnsureDevice(ctx context.Context, deviceUID string) (int64, error) {
	if deviceUID == "" {
		return 0, ErrDeviceUIDRequired
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM devices WHERE device_uid = ?", deviceUID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("looking up device %s: %w", deviceUID, err)
	}

	now := time.Now().UTC().Format(tsLayout)
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO devices (device_uid, created_at, updated_at) VALUES (?, ?, ?)",
		deviceUID, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("registering device %s: %w", deviceUID, err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading device id: %w", err)
	}
	return id, nil
}

// RecordSample persists one event as a history sample, auto-registering
// the device when needed. crc_ok and frame_seq are lifted out of the
// quality payload into their own columns for cheap filtering.
func (s *Store) RecordSample(ctx context.Context, event Event, source string) error {
	deviceID, err := s.EnsureDevice(ctx, event.DeviceUID)
	if err != nil {
		return err
	}

	metrics := event.Metrics
	if metrics == nil {
		metrics = map[string]any{}
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}

	var qualityJSON any
	if event.Quality != nil {
		encoded, err := json.Marshal(event.Quality)
		if err != nil {
			return fmt.Errorf("encoding quality: %w", err)
		}
		qualityJSON = string(encoded)
	}

	var crcOK any
	if v, ok := event.Quality["crc_ok"].(bool); ok {
		if v {
			crcOK = 1
		} else {
			crcOK = 0
		}
	}

	var frameSeq any
	switch v := event.Quality["frame_seq"].(type) {
	case float64:
		frameSeq = int64(v)
	case int:
		frameSeq = int64(v)
	case int64:
		frameSeq = v
	case uint64:
		frameSeq = int64(v) //nolint:gosec // Frame counters stay far below overflow
	}

	now := time.Now().UTC().Format(tsLayout)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO telemetry_samples
			(device_id, ts, metrics_json, quality_json, crc_ok, frame_seq, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		deviceID,
		event.Time().UTC().Format(tsLayout),
		string(metricsJSON),
		qualityJSON,
		crcOK,
		frameSeq,
		source,
		now,
	)
	if err != nil {
		return fmt.Errorf("inserting sample: %w", err)
	}
	return nil
}

// PruneHistory deletes samples older than the cutoff and returns how
// many rows were removed. Retention policy lives with the caller.
func (s *Store) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM telemetry_samples WHERE ts < ?",
		before.UTC().Format(tsLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading pruned count: %w", err)
	}
	return removed, nil
}
