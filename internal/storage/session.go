package storage

import "context"

// Sessions governs batch transaction boundaries for the committer. The
// Postgres implementation opens a real transaction and carries it in context
// (pkg/platform/tx); the in-memory implementation is a no-op so unit tests
// run without transactional plumbing.
type Sessions interface {
	BeginBatch(ctx context.Context) (Batch, error)
}

// Batch is one open transaction boundary. Row* methods fence individual rows
// inside the batch (savepoints on Postgres) so a failed row rolls back alone
// while committed work from earlier rows in the batch survives.
type Batch interface {
	// Context returns the batch context; stores called with it write through
	// the batch transaction.
	Context() context.Context
	RowCheckpoint() error
	RowRelease() error
	RowRollback() error
	Commit() error
	Rollback() error
}

// NoopSessions satisfies Sessions without transactional semantics. The
// in-memory store applies writes immediately, so batches have nothing to do.
type NoopSessions struct{}

func (NoopSessions) BeginBatch(ctx context.Context) (Batch, error) {
	return noopBatch{ctx: ctx}, nil
}

type noopBatch struct{ ctx context.Context }

func (b noopBatch) Context() context.Context { return b.ctx }
func (noopBatch) RowCheckpoint() error       { return nil }
func (noopBatch) RowRelease() error          { return nil }
func (noopBatch) RowRollback() error         { return nil }
func (noopBatch) Commit() error              { return nil }
func (noopBatch) Rollback() error            { return nil }
