package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Watermark returns the replication cursor for a table as (timestamp, last
// forwarded id), or zero values when the table has never been forwarded. The
// id disambiguates rows that share the watermark timestamp, which every row
// committed in one batch transaction does.
func (s *Store) Watermark(ctx context.Context, table string) (time.Time, int64, error) {
	var at time.Time
	var lastID int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT watermark, last_id FROM replication_watermarks WHERE table_name = $1
	`, table).Scan(&at, &lastID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, 0, nil
	}
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("read watermark %s: %w", table, err)
	}
	return at, lastID, nil
}

// SetWatermark advances the replication cursor for a table.
func (s *Store) SetWatermark(ctx context.Context, table string, at time.Time, lastID int64) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO replication_watermarks (table_name, watermark, last_id) VALUES ($1, $2, $3)
		ON CONFLICT (table_name) DO UPDATE
		SET watermark = EXCLUDED.watermark, last_id = EXCLUDED.last_id, updated_at = now()
	`, table, at, lastID)
	if err != nil {
		return fmt.Errorf("set watermark %s: %w", table, err)
	}
	return nil
}
