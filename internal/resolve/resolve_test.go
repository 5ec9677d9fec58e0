package resolve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jali/internal/domain"
	"jali/internal/storage"
)

func newTestResolver(t *testing.T) (*Resolver, *storage.InMemory) {
	t.Helper()
	store := storage.NewInMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, NewMemoryCache(), log), store
}

func seedHierarchy(t *testing.T, store *storage.InMemory) int64 {
	t.Helper()
	ctx := context.Background()
	countyID, err := store.UpsertCounty(ctx, "Nairobi")
	require.NoError(t, err)
	constituencyID, err := store.UpsertConstituency(ctx, "Kibra", countyID)
	require.NoError(t, err)
	wardID, err := store.UpsertWard(ctx, "Woodley", constituencyID)
	require.NoError(t, err)
	return wardID
}

func TestOrganizationInsertOrFetch(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()
	wardID := seedHierarchy(t, store)

	first, ok, err := r.Organization(ctx, nil, "Tumikia CBO", &wardID)
	require.NoError(t, err)
	require.True(t, ok)

	second, ok, err := r.Organization(ctx, nil, "tumikia cbo", &wardID)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Len(t, store.AllOrganizations(), 1)
}

func TestOrganizationExplicitIDWins(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	extID := int64(17)
	seeded, err := store.GetOrCreateOrganization(ctx, domain.Organization{
		ExternalID: &extID, Name: "Tumikia CBO",
	})
	require.NoError(t, err)

	// The legacy id short-circuits even when the name on the row drifted.
	id, ok, err := r.Organization(ctx, &extID, "Tumikia Community Org", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, seeded, id)
	assert.Len(t, store.AllOrganizations(), 1)
}

func TestOrganizationBlankNameIsAbsent(t *testing.T) {
	r, store := newTestResolver(t)

	id, ok, err := r.Organization(context.Background(), nil, "", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, id)
	assert.Empty(t, store.AllOrganizations())
}

func TestWardIsLookupOnly(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()
	wardID := seedHierarchy(t, store)

	id, ok, err := r.Ward(ctx, nil, "Woodley", "Kibra", "Nairobi")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, wardID, id)

	// Unknown names do not mint wards; the hierarchy loader owns creation.
	_, ok, err = r.Ward(ctx, nil, "Makadara", "", "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, store.AllWards(), 1)
}

func TestWardGlobalFallbackWithoutHints(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()
	wardID := seedHierarchy(t, store)

	id, ok, err := r.Ward(ctx, nil, "woodley", "", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, wardID, id)
}

func TestWardExplicitSurrogateID(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()
	wardID := seedHierarchy(t, store)

	id, ok, err := r.Ward(ctx, &wardID, "", "", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, wardID, id)

	// A stale id falls through to the (blank) name and comes back absent.
	stale := wardID + 100
	_, ok, err = r.Ward(ctx, &stale, "", "", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFacilityPrefersMFLCode(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	first, ok, err := r.Facility(ctx, nil, "13023", "Mbagathi Hospital", nil)
	require.NoError(t, err)
	require.True(t, ok)

	// Same code with a drifted name resolves to the same facility.
	second, ok, err := r.Facility(ctx, nil, "13023", "Mbagathi District Hospital", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, second)

	// A code alone can match but never create.
	_, ok, err = r.Facility(ctx, nil, "99999", "", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// A bare name matches an existing facility.
	byName, ok, err := r.Facility(ctx, nil, "", "Mbagathi Hospital", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, byName)

	// An unmatched bare name is an absent reference, not a new facility.
	_, ok, err = r.Facility(ctx, nil, "", "St. Nowhere Clinic", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, store.AllFacilities(), 1)
}

func TestCaregiverResolutionChain(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	natID := "12345678"
	phone := "0722000111"
	first, ok, err := r.Caregiver(ctx, domain.Caregiver{
		Name: "Jane Wanjiku", NationalID: &natID, Phone: &phone,
		Gender: domain.GenderFemale, HIVStatus: domain.HIVUnknown,
	})
	require.NoError(t, err)
	require.True(t, ok)

	byNat, ok, err := r.Caregiver(ctx, domain.Caregiver{
		Name: "J. Wanjiku", NationalID: &natID,
		Gender: domain.GenderFemale, HIVStatus: domain.HIVUnknown,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, byNat)

	byPhone, ok, err := r.Caregiver(ctx, domain.Caregiver{
		Name: "Jane W.", Phone: &phone,
		Gender: domain.GenderFemale, HIVStatus: domain.HIVUnknown,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, byPhone)

	// No keys and no name is an absent reference, not an error.
	_, ok, err = r.Caregiver(ctx, domain.Caregiver{
		Gender: domain.GenderUnknown, HIVStatus: domain.HIVUnknown,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Len(t, store.AllCaregivers(), 1)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (int64, bool, error) {
	return 0, false, errors.New("cache unavailable")
}
func (brokenCache) Set(context.Context, string, int64) error {
	return errors.New("cache unavailable")
}

func TestBrokenCacheDegradesToStorage(t *testing.T) {
	store := storage.NewInMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(store, brokenCache{}, log)
	ctx := context.Background()

	first, ok, err := r.Organization(ctx, nil, "Tumikia CBO", nil)
	require.NoError(t, err)
	require.True(t, ok)

	second, ok, err := r.Organization(ctx, nil, "Tumikia CBO", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestParseExplicitID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *int64
	}{
		{"plain integer", "17", ptr(int64(17))},
		{"float export suffix", "17.0", ptr(int64(17))},
		{"blank", "", nil},
		{"text", "N/A", nil},
		{"fractional", "17.5", nil},
		{"zero", "0", nil},
		{"negative", "-3", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseExplicitID(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func ptr[T any](v T) *T { return &v }
