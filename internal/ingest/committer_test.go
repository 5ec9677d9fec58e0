package ingest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jali/internal/domain"
	"jali/internal/platform/metrics"
	"jali/internal/resolve"
	"jali/internal/storage"
)

type fixture struct {
	store     *storage.InMemory
	committer *Committer
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	store := storage.NewInMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := resolve.New(store, resolve.NewMemoryCache(), log)
	reconciler := NewReconciler(resolver, uuid.New())
	m := metrics.New(prometheus.NewRegistry())
	committer := NewCommitter(store, storage.NoopSessions{}, reconciler, log, m, batchSize)

	ctx := context.Background()
	countyID, err := store.UpsertCounty(ctx, "Nairobi")
	require.NoError(t, err)
	constituencyID, err := store.UpsertConstituency(ctx, "Kibra", countyID)
	require.NoError(t, err)
	_, err = store.UpsertWard(ctx, "Woodley", constituencyID)
	require.NoError(t, err)

	return &fixture{store: store, committer: committer}
}

func (f *fixture) run(t *testing.T, csvBody string) Report {
	t.Helper()
	reader, err := NewReader(strings.NewReader(csvBody))
	require.NoError(t, err)
	report, err := f.committer.Run(context.Background(), reader)
	require.NoError(t, err)
	return report
}

const testHeader = "ward,cbo,chv_names,facility,facility_mfl_code,school_name,schoollevel," +
	"caregiver_names,caregiver_nationalid,phone,caregiver_gender,caregiverhivstatus," +
	"ovc_names,gender,dob,ovchivstatus,duration_on_art,date_of_event\n"

func TestRunResolvesSharedOrganization(t *testing.T) {
	f := newFixture(t, 0)

	body := testHeader +
		"Woodley,Tumikia CBO,Alice Nduta,,,,,Mary Atieno,11111111,,F,negative,Child One,M,12/05/2014,neg,,01/06/2021\n" +
		"Woodley,tumikia cbo,Alice Nduta,,,,,Mary Atieno,11111111,,F,negative,Child Two,F,03/04/2016,pos,,01/06/2021\n"

	report := f.run(t, body)
	assert.Equal(t, int64(2), report.Imported)
	assert.Equal(t, int64(0), report.Errored)

	assert.Len(t, f.store.AllOrganizations(), 1)
	assert.Len(t, f.store.AllHealthWorkers(), 1)
	assert.Len(t, f.store.AllCaregivers(), 1)

	events := f.store.AllCaseEvents()
	require.Len(t, events, 2)
	require.NotNil(t, events[0].OrganizationID)
	require.NotNil(t, events[1].OrganizationID)
	assert.Equal(t, *events[0].OrganizationID, *events[1].OrganizationID)
	require.NotNil(t, events[0].CaregiverID)
	require.NotNil(t, events[1].CaregiverID)
	assert.Equal(t, *events[0].CaregiverID, *events[1].CaregiverID)
}

func TestRunKeepsRowWithPartialReference(t *testing.T) {
	f := newFixture(t, 0)

	// The facility name matches nothing and carries no MFL code.
	body := testHeader +
		"Woodley,,,St. Nowhere Clinic,,,,,,,,,Child One,M,12/05/2014,neg,,\n"

	report := f.run(t, body)
	assert.Equal(t, int64(1), report.Imported)

	events := f.store.AllCaseEvents()
	require.Len(t, events, 1)
	assert.Nil(t, events[0].FacilityID)
	assert.NotNil(t, events[0].WardID)
	assert.Empty(t, f.store.AllFacilities())
}

func TestRunIsolatesMalformedRow(t *testing.T) {
	f := newFixture(t, 0)

	body := testHeader +
		"Woodley,,,,,,,,,,,,Child One,M,12/05/2014,neg,,\n" +
		"Woodley,bad\"cell,,,,,,,,,,,Child Two,F,,,,\n" +
		"Woodley,,,,,,,,,,,,Child Three,F,03/04/2016,pos,,\n"

	report := f.run(t, body)
	assert.Equal(t, int64(2), report.Imported)
	assert.Equal(t, int64(1), report.Errored)
	require.Len(t, report.ErrorSamples, 1)
	assert.Contains(t, report.ErrorSamples[0], "row 2")

	assert.Len(t, f.store.AllBeneficiaries(), 2)
}

func TestRunDegradesUnparsableValues(t *testing.T) {
	f := newFixture(t, 0)

	body := testHeader +
		"Woodley,,,,,,Primary 2,,,,,,Child One,Girl,not a date,declined,14.0,43599\n"

	report := f.run(t, body)
	assert.Equal(t, int64(1), report.Imported)
	assert.Equal(t, int64(0), report.Errored)

	bens := f.store.AllBeneficiaries()
	require.Len(t, bens, 1)
	assert.Equal(t, domain.GenderFemale, bens[0].Gender)
	assert.Nil(t, bens[0].DOB)
	assert.Equal(t, domain.HIVDeclined, bens[0].HIVStatus)

	events := f.store.AllCaseEvents()
	require.Len(t, events, 1)
	require.NotNil(t, events[0].DurationOnARTMos)
	assert.Equal(t, 14, *events[0].DurationOnARTMos)
	require.NotNil(t, events[0].SchoolLevel)
	assert.Equal(t, domain.SchoolLowerPrimary, *events[0].SchoolLevel)
	// Excel serial 43599 is 14 May 2019.
	require.NotNil(t, events[0].DateOfEvent)
	assert.Equal(t, 2019, events[0].DateOfEvent.Year())
}

func TestRunCommitsFinalPartialBatch(t *testing.T) {
	f := newFixture(t, 2)

	body := testHeader +
		"Woodley,,,,,,,,,,,,Child One,M,,,,\n" +
		"Woodley,,,,,,,,,,,,Child Two,F,,,,\n" +
		"Woodley,,,,,,,,,,,,Child Three,F,,,,\n"

	report := f.run(t, body)
	assert.Equal(t, int64(3), report.Imported)
	assert.Len(t, f.store.AllCaseEvents(), 3)

	imported, errored := f.committer.Progress()
	assert.Equal(t, int64(3), imported)
	assert.Equal(t, int64(0), errored)
}

func TestRunStampsProvenance(t *testing.T) {
	store := storage.NewInMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := resolve.New(store, nil, log)
	runID := uuid.New()
	reconciler := NewReconciler(resolver, runID)
	m := metrics.New(prometheus.NewRegistry())
	committer := NewCommitter(store, storage.NoopSessions{}, reconciler, log, m, 0)

	body := testHeader +
		",,,,,,,,,,,,Child One,M,,,,\n" +
		",,,,,,,,,,,,Child Two,F,,,,\n"
	reader, err := NewReader(strings.NewReader(body))
	require.NoError(t, err)
	_, err = committer.Run(context.Background(), reader)
	require.NoError(t, err)

	events := store.AllCaseEvents()
	require.Len(t, events, 2)
	assert.Equal(t, runID, events[0].ImportRunID)
	assert.Equal(t, int64(1), events[0].SourceRow)
	assert.Equal(t, int64(2), events[1].SourceRow)
}
