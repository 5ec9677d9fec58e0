package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"jali/internal/platform/metrics"
	"jali/internal/storage"
)

const (
	// DefaultBatchSize is how many rows share one transaction between
	// commit boundaries.
	DefaultBatchSize = 1000

	// errorSampleLimit caps how many row error messages the report keeps.
	errorSampleLimit = 10
)

// Report is the terminal accounting of one import run.
type Report struct {
	Imported     int64
	Errored      int64
	ErrorSamples []string
}

// Committer drives the reconcile-and-persist loop over a row stream. Each
// batch of rows shares one transaction; each row is fenced inside it so a
// failing row rolls back alone and the stream continues. The last completed
// commit boundary is the durable checkpoint if the run is killed.
type Committer struct {
	store      storage.FactStore
	sessions   storage.Sessions
	reconciler *Reconciler
	log        *slog.Logger
	metrics    *metrics.Metrics
	batchSize  int

	imported atomic.Int64
	errored  atomic.Int64
}

func NewCommitter(
	store storage.FactStore,
	sessions storage.Sessions,
	reconciler *Reconciler,
	log *slog.Logger,
	m *metrics.Metrics,
	batchSize int,
) *Committer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Committer{
		store:      store,
		sessions:   sessions,
		reconciler: reconciler,
		log:        log,
		metrics:    m,
		batchSize:  batchSize,
	}
}

// Progress reports live counters for the status endpoint.
func (c *Committer) Progress() (imported, errored int64) {
	return c.imported.Load(), c.errored.Load()
}

// Run consumes the reader to the end of the stream. The returned error is
// fatal-class only (a commit or checkpoint failure); row-level failures are
// absorbed into the report.
func (c *Committer) Run(ctx context.Context, reader *Reader) (Report, error) {
	var report Report

	batch, err := c.sessions.BeginBatch(ctx)
	if err != nil {
		return report, err
	}
	rowsInBatch := 0

	rowFailed := func(row Row, err error) {
		report.Errored++
		c.errored.Add(1)
		c.metrics.RowsErrored.Inc()
		if len(report.ErrorSamples) < errorSampleLimit {
			report.ErrorSamples = append(report.ErrorSamples, fmt.Sprintf("row %d: %v", row.Number, err))
		}
		c.log.Warn("row skipped", "row", row.Number, "error", err)
	}

	for {
		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// CSV-level malformation: nothing was written, no rollback needed.
			rowFailed(row, err)
			continue
		}

		if err := batch.RowCheckpoint(); err != nil {
			_ = batch.Rollback()
			return report, err
		}

		if err := c.persistRow(batch.Context(), row); err != nil {
			if rbErr := batch.RowRollback(); rbErr != nil {
				_ = batch.Rollback()
				return report, rbErr
			}
			rowFailed(row, err)
			continue
		}

		if err := batch.RowRelease(); err != nil {
			_ = batch.Rollback()
			return report, err
		}
		report.Imported++
		c.imported.Add(1)
		c.metrics.RowsImported.Inc()
		rowsInBatch++

		if rowsInBatch >= c.batchSize {
			if err := c.commit(batch); err != nil {
				return report, err
			}
			c.log.Info("batch committed", "imported", report.Imported, "errored", report.Errored)
			batch, err = c.sessions.BeginBatch(ctx)
			if err != nil {
				return report, err
			}
			rowsInBatch = 0
		}
	}

	if err := c.commit(batch); err != nil {
		return report, err
	}
	c.log.Info("import complete", "imported", report.Imported, "errored", report.Errored)
	return report, nil
}

func (c *Committer) persistRow(ctx context.Context, row Row) error {
	record, err := c.reconciler.Reconcile(ctx, row)
	if err != nil {
		return err
	}
	beneficiaryID, err := c.store.InsertBeneficiary(ctx, record.Beneficiary)
	if err != nil {
		return err
	}
	record.Event.BeneficiaryID = beneficiaryID
	if _, err := c.store.InsertCaseEvent(ctx, record.Event); err != nil {
		return err
	}
	return nil
}

func (c *Committer) commit(batch storage.Batch) error {
	start := time.Now()
	if err := batch.Commit(); err != nil {
		return err
	}
	c.metrics.BatchCommitSecs.Observe(time.Since(start).Seconds())
	return nil
}
