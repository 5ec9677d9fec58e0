package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"jali/internal/storage"
	txcontext "jali/pkg/platform/tx"
)

var _ storage.Sessions = (*Sessions)(nil)

// Sessions opens one database transaction per commit batch. Row boundaries
// inside the batch are fenced with savepoints, so a rejected row rolls back
// to its own checkpoint without poisoning the rows already applied.
type Sessions struct {
	db *sql.DB
}

func NewSessions(db *sql.DB) *Sessions {
	return &Sessions{db: db}
}

func (s *Sessions) BeginBatch(ctx context.Context) (storage.Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &batch{ctx: txcontext.WithTx(ctx, tx), tx: tx}, nil
}

type batch struct {
	ctx context.Context
	tx  *sql.Tx
}

func (b *batch) Context() context.Context { return b.ctx }

func (b *batch) RowCheckpoint() error {
	if _, err := b.tx.ExecContext(b.ctx, "SAVEPOINT row_boundary"); err != nil {
		return fmt.Errorf("row checkpoint: %w", err)
	}
	return nil
}

func (b *batch) RowRelease() error {
	if _, err := b.tx.ExecContext(b.ctx, "RELEASE SAVEPOINT row_boundary"); err != nil {
		return fmt.Errorf("row release: %w", err)
	}
	return nil
}

func (b *batch) RowRollback() error {
	if _, err := b.tx.ExecContext(b.ctx, "ROLLBACK TO SAVEPOINT row_boundary"); err != nil {
		return fmt.Errorf("row rollback: %w", err)
	}
	return nil
}

func (b *batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (b *batch) Rollback() error {
	if err := b.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback batch: %w", err)
	}
	return nil
}
