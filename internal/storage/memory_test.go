package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jali/internal/domain"
	"jali/pkg/platform/sentinel"
)

func TestUpsertHierarchyIsIdempotent(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	countyID, err := s.UpsertCounty(ctx, "Nairobi")
	require.NoError(t, err)
	again, err := s.UpsertCounty(ctx, "NAIROBI")
	require.NoError(t, err)
	assert.Equal(t, countyID, again)

	// The latest spelling wins.
	counties := s.AllCounties()
	require.Len(t, counties, 1)
	assert.Equal(t, "NAIROBI", counties[0].Name)
}

func TestUpsertConstituencyScopedByCounty(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	nairobiID, err := s.UpsertCounty(ctx, "Nairobi")
	require.NoError(t, err)
	kisumuID, err := s.UpsertCounty(ctx, "Kisumu")
	require.NoError(t, err)

	// The same constituency name under different counties is two rows.
	first, err := s.UpsertConstituency(ctx, "Central", nairobiID)
	require.NoError(t, err)
	second, err := s.UpsertConstituency(ctx, "Central", kisumuID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = s.UpsertConstituency(ctx, "Central", 999)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestFindWardByNameScopedAndGlobal(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	countyID, err := s.UpsertCounty(ctx, "Nairobi")
	require.NoError(t, err)
	constituencyID, err := s.UpsertConstituency(ctx, "Kibra", countyID)
	require.NoError(t, err)
	wardID, err := s.UpsertWard(ctx, "Woodley", constituencyID)
	require.NoError(t, err)

	scoped, err := s.FindWardByName(ctx, "woodley", constituencyID)
	require.NoError(t, err)
	assert.Equal(t, wardID, scoped.ID)

	global, err := s.FindWardByName(ctx, "Woodley", 0)
	require.NoError(t, err)
	assert.Equal(t, wardID, global.ID)

	_, err = s.FindWardByName(ctx, "Makadara", 0)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestGetOrCreateFacilityArbitratesOnMFLCode(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	code := "13023"
	first, err := s.GetOrCreateFacility(ctx, domain.Facility{Name: "Mbagathi Hospital", MFLCode: &code})
	require.NoError(t, err)

	renamed, err := s.GetOrCreateFacility(ctx, domain.Facility{Name: "Mbagathi District Hospital", MFLCode: &code})
	require.NoError(t, err)
	assert.Equal(t, first, renamed)

	byName, err := s.GetOrCreateFacility(ctx, domain.Facility{Name: "Mbagathi District Hospital"})
	require.NoError(t, err)
	assert.Equal(t, first, byName)

	assert.Len(t, s.AllFacilities(), 1)
}

func TestGetOrCreateCaregiverMatchesEitherKey(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	natID := "12345678"
	phone := "0722000111"
	created, err := s.GetOrCreateCaregiver(ctx, domain.Caregiver{
		Name: "Jane Wanjiku", NationalID: &natID, Phone: &phone,
	})
	require.NoError(t, err)

	byPhone, err := s.GetOrCreateCaregiver(ctx, domain.Caregiver{Name: "Jane W.", Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, created, byPhone)

	// A keyless caregiver always creates a fresh row.
	other, err := s.GetOrCreateCaregiver(ctx, domain.Caregiver{Name: "Jane Wanjiku"})
	require.NoError(t, err)
	assert.NotEqual(t, created, other)
	assert.Len(t, s.AllCaregivers(), 2)
}

func TestInsertCaseEventRejectsDanglingReference(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	benID, err := s.InsertBeneficiary(ctx, domain.Beneficiary{Name: "Child One"})
	require.NoError(t, err)

	bad := int64(42)
	_, err = s.InsertCaseEvent(ctx, domain.CaseEvent{
		ImportRunID:   uuid.New(),
		SourceRow:     1,
		BeneficiaryID: benID,
		FacilityID:    &bad,
	})
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	assert.Empty(t, s.AllCaseEvents())
}
