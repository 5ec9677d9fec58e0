package replication

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresSource reads forwarded tables straight off the operational
// database. It scans generically so new columns flow through without a code
// change here.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

var knownTables = func() map[string]bool {
	known := make(map[string]bool, len(Tables))
	for _, t := range Tables {
		known[t] = true
	}
	return known
}()

func (s *PostgresSource) RowsSince(ctx context.Context, table string, since time.Time, sinceID int64, limit int) ([]Row, error) {
	// The table name is interpolated, so it must come from the fixed list.
	if !knownTables[table] {
		return nil, fmt.Errorf("rows since: unknown table %q", table)
	}

	// Keyset pagination on the compound cursor: rows sharing the watermark
	// timestamp resume after the last forwarded id instead of being skipped
	// by a strict created_at comparison.
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE (created_at, id) > ($1, $2) ORDER BY created_at, id LIMIT %d",
		table, limit)
	rows, err := s.db.QueryContext(ctx, query, since, sinceID)
	if err != nil {
		return nil, fmt.Errorf("rows since %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("rows since %s: %w", table, err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("rows since %s: %w", table, err)
		}

		row := Row{Columns: make(map[string]any, len(columns))}
		for i, col := range columns {
			v := values[i]
			// pq hands text columns back as []byte under a generic scan.
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row.Columns[col] = v
			switch col {
			case "id":
				if id, ok := v.(int64); ok {
					row.ID = id
				}
			case "created_at":
				if at, ok := v.(time.Time); ok {
					row.CreatedAt = at
				}
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows since %s: %w", table, err)
	}
	return out, nil
}
