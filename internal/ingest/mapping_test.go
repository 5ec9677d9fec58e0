package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMappingMatchesHeaderVariants(t *testing.T) {
	header := []string{"Ward", "WARD_ID", "CBO Name?", "cbo_id", "Caregiver NationalID", "OVC_Names"}
	m := NewMapping(header)

	record := []string{"Woodley", "12", "ignored", "7", "12345678", "Amina Otieno"}
	assert.Equal(t, "Woodley", m.Value(record, FieldWard))
	assert.Equal(t, "12", m.Value(record, FieldWardID))
	assert.Equal(t, "7", m.Value(record, FieldCBOID))
	assert.Equal(t, "12345678", m.Value(record, FieldCaregiverNationalID))
	assert.Equal(t, "Amina Otieno", m.Value(record, FieldOVCNames))

	// "CBO Name?" folds to "cboname?", which is not the canonical "cbo".
	assert.Equal(t, "", m.Value(record, FieldCBO))
}

func TestMappingMissingColumnsReadBlank(t *testing.T) {
	m := NewMapping([]string{"ward"})

	assert.Equal(t, "", m.Value([]string{"Woodley"}, FieldFacility))
	assert.Contains(t, m.Missing(), FieldFacility)
	assert.NotContains(t, m.Missing(), FieldWard)
}

func TestMappingShortRecordReadsBlank(t *testing.T) {
	m := NewMapping([]string{"ward", "cbo"})

	// Ragged row with fewer cells than the header.
	assert.Equal(t, "", m.Value([]string{"Woodley"}, FieldCBO))
	assert.Equal(t, "Woodley", m.Value([]string{"Woodley"}, FieldWard))
}

func TestMappingFirstDuplicateHeaderWins(t *testing.T) {
	m := NewMapping([]string{"ward", "Ward"})

	assert.Equal(t, "first", m.Value([]string{"first", "second"}, FieldWard))
}

func TestMappingTrimsValues(t *testing.T) {
	m := NewMapping([]string{"ward"})

	assert.Equal(t, "Woodley", m.Value([]string{"  Woodley  "}, FieldWard))
}
