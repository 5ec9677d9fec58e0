package replication

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jali/internal/platform/metrics"
)

type fakeSource struct {
	rows map[string][]Row
}

func (s *fakeSource) RowsSince(_ context.Context, table string, since time.Time, sinceID int64, limit int) ([]Row, error) {
	all := append([]Row(nil), s.rows[table]...)
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	var out []Row
	for _, r := range all {
		if r.CreatedAt.After(since) || (r.CreatedAt.Equal(since) && r.ID > sinceID) {
			// Copy so masking does not mutate the fixture.
			cols := make(map[string]any, len(r.Columns))
			for k, v := range r.Columns {
				cols[k] = v
			}
			out = append(out, Row{ID: r.ID, Columns: cols, CreatedAt: r.CreatedAt})
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type cursor struct {
	at     time.Time
	lastID int64
}

type fakeMarks struct {
	mu    sync.Mutex
	marks map[string]cursor
}

func (m *fakeMarks) Watermark(_ context.Context, table string) (time.Time, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.marks[table]
	return c.at, c.lastID, nil
}

func (m *fakeMarks) SetWatermark(_ context.Context, table string, at time.Time, lastID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[table] = cursor{at: at, lastID: lastID}
	return nil
}

type published struct {
	table string
	row   map[string]any
}

type fakePublisher struct {
	mu     sync.Mutex
	sent   []published
	failOn string
}

func (p *fakePublisher) Publish(_ context.Context, table string, row map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if table == p.failOn {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, published{table: table, row: row})
	return nil
}

func (p *fakePublisher) forTable(table string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, s := range p.sent {
		if s.table == table {
			out = append(out, s)
		}
	}
	return out
}

func newTestForwarder(source Source, pub Publisher) (*Forwarder, *fakeMarks) {
	marks := &fakeMarks{marks: make(map[string]cursor)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := NewForwarder(source, marks, pub, log, metrics.New(prometheus.NewRegistry()))
	return f, marks
}

func caregiverRow(id int64, name, nationalID string, at time.Time) Row {
	return Row{
		ID:        id,
		Columns:   map[string]any{"id": id, "name": name, "national_id": nationalID, "created_at": at},
		CreatedAt: at,
	}
}

func TestRunOnceForwardsAndMasks(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: map[string][]Row{
		"caregivers": {
			caregiverRow(1, "Jane Wanjiku", "12345678", base),
			caregiverRow(2, "Mary Atieno", "87654321", base.Add(time.Minute)),
		},
	}}
	pub := &fakePublisher{}
	f, marks := newTestForwarder(source, pub)

	require.NoError(t, f.RunOnce(context.Background()))

	sent := pub.forTable("caregivers")
	require.Len(t, sent, 2)
	assert.Equal(t, "J*** W******", sent[0].row["name"])
	assert.Equal(t, "********", sent[0].row["national_id"])

	mark, lastID, err := marks.Watermark(context.Background(), "caregivers")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute), mark)
	assert.Equal(t, int64(2), lastID)
}

func TestRunOnceSkipsAlreadyForwardedRows(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: map[string][]Row{
		"caregivers": {caregiverRow(1, "Jane Wanjiku", "12345678", base)},
	}}
	pub := &fakePublisher{}
	f, _ := newTestForwarder(source, pub)

	ctx := context.Background()
	require.NoError(t, f.RunOnce(ctx))
	require.NoError(t, f.RunOnce(ctx))
	assert.Len(t, pub.forTable("caregivers"), 1)

	// A row landing after the first cycle is picked up by the next one.
	source.rows["caregivers"] = append(source.rows["caregivers"],
		caregiverRow(2, "Mary Atieno", "87654321", base.Add(time.Hour)))
	require.NoError(t, f.RunOnce(ctx))
	assert.Len(t, pub.forTable("caregivers"), 2)
}

func TestRunOncePaginatesLargeTables(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var rows []Row
	for i := 0; i < 7; i++ {
		rows = append(rows, caregiverRow(int64(i+1), "Jane Wanjiku", "12345678", base.Add(time.Duration(i)*time.Second)))
	}
	source := &fakeSource{rows: map[string][]Row{"caregivers": rows}}
	pub := &fakePublisher{}
	f, _ := newTestForwarder(source, pub)
	f.pageSize = 3

	require.NoError(t, f.RunOnce(context.Background()))
	assert.Len(t, pub.forTable("caregivers"), 7)
}

func TestSharedTimestampAcrossPageBoundary(t *testing.T) {
	// Rows committed in one batch transaction all get the transaction's
	// now(), so a whole import batch shares one created_at. The cursor's id
	// component must carry pagination through the tie group.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var rows []Row
	for i := 0; i < 5; i++ {
		rows = append(rows, caregiverRow(int64(i+1), "Jane Wanjiku", "12345678", base))
	}
	source := &fakeSource{rows: map[string][]Row{"caregivers": rows}}
	pub := &fakePublisher{}
	f, marks := newTestForwarder(source, pub)
	f.pageSize = 3

	ctx := context.Background()
	require.NoError(t, f.RunOnce(ctx))
	assert.Len(t, pub.forTable("caregivers"), 5)

	mark, lastID, err := marks.Watermark(ctx, "caregivers")
	require.NoError(t, err)
	assert.Equal(t, base, mark)
	assert.Equal(t, int64(5), lastID)

	// The next cycle resumes past the tie group rather than re-sending it.
	require.NoError(t, f.RunOnce(ctx))
	assert.Len(t, pub.forTable("caregivers"), 5)
}

func TestPublishFailureHoldsWatermark(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: map[string][]Row{
		"caregivers": {caregiverRow(1, "Jane Wanjiku", "12345678", base)},
	}}
	pub := &fakePublisher{failOn: "caregivers"}
	f, marks := newTestForwarder(source, pub)

	ctx := context.Background()
	require.Error(t, f.RunOnce(ctx))
	mark, _, err := marks.Watermark(ctx, "caregivers")
	require.NoError(t, err)
	assert.True(t, mark.IsZero())

	// Once the broker recovers, the held watermark re-sends the row.
	pub.failOn = ""
	require.NoError(t, f.RunOnce(ctx))
	assert.Len(t, pub.forTable("caregivers"), 1)
}
