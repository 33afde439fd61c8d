package storage

import (
	"fmt"
	"time"
)

// CycleRecord is one persisted scan cycle.
type CycleRecord struct {
	CycleID    string        `json:"cycleId"`
	Trigger    string        `json:"trigger"` // "full" or "incremental"
	FilesSeen  int           `json:"filesSeen"`
	CacheHits  int           `json:"cacheHits"`
	Analyzed   int           `json:"analyzed"`
	Failed     int           `json:"failed"`
	Removed    int           `json:"removed"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"durationMs"`
	RecordedAt time.Time     `json:"recordedAt"`
}

// RecordCycle saves one scan cycle row.
func (db *DB) RecordCycle(rec CycleRecord) error {
	_, err := db.conn.Exec(`
		INSERT INTO scan_cycles (
			cycle_id, trigger_kind, files_seen, cache_hits, analyzed, failed,
			removed, duration_ms, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.CycleID, rec.Trigger, rec.FilesSeen, rec.CacheHits, rec.Analyzed,
		rec.Failed, rec.Removed, rec.Duration.Milliseconds(),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record scan cycle: %w", err)
	}
	return nil
}

// RecordCollision saves one fingerprint collision event.
func (db *DB) RecordCollision(cycleID, hash, path string) error {
	_, err := db.conn.Exec(`
		INSERT INTO collision_events (cycle_id, hash, path, recorded_at)
		VALUES (?, ?, ?, ?)
	`, cycleID, hash, path, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record collision: %w", err)
	}
	return nil
}

// RecentCycles returns the most recent cycles, newest first.
func (db *DB) RecentCycles(limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(`
		SELECT cycle_id, trigger_kind, files_seen, cache_hits, analyzed, failed,
		       removed, duration_ms, recorded_at
		FROM scan_cycles
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan cycles: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	var cycles []CycleRecord
	for rows.Next() {
		var rec CycleRecord
		var recordedAt string
		if err := rows.Scan(&rec.CycleID, &rec.Trigger, &rec.FilesSeen,
			&rec.CacheHits, &rec.Analyzed, &rec.Failed, &rec.Removed,
			&rec.DurationMs, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cycle row: %w", err)
		}
		rec.Duration = time.Duration(rec.DurationMs) * time.Millisecond
		rec.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt)
		cycles = append(cycles, rec)
	}

	return cycles, rows.Err()
}

// CollisionCount returns the total number of recorded collision events.
func (db *DB) CollisionCount() (int64, error) {
	var count int64
	row := db.conn.QueryRow(`SELECT COUNT(*) FROM collision_events`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count collisions: %w", err)
	}
	return count, nil
}
