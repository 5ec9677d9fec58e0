// Package ingest streams denormalized case rows out of CSV sources, resolves
// their natural keys through internal/resolve, and commits the resulting
// facts in batched transactions.
package ingest

import (
	"strings"
)

// Field names one canonical input column. Sources rename columns freely;
// the Mapping matches their headers back onto these.
type Field string

const (
	FieldWard            Field = "ward"
	FieldWardID          Field = "ward_id"
	FieldConstituency    Field = "constituency"
	FieldCounty          Field = "county"
	FieldCBO             Field = "cbo"
	FieldCBOID           Field = "cbo_id"
	FieldCHVNames        Field = "chv_names"
	FieldCHVID           Field = "chv_id"
	FieldFacility        Field = "facility"
	FieldFacilityID      Field = "facility_id"
	FieldFacilityMFLCode Field = "facility_mfl_code"
	FieldSchoolName      Field = "school_name"
	FieldSchoolID        Field = "school_id"
	FieldSchoolLevel     Field = "schoollevel"

	FieldCaregiverNames      Field = "caregiver_names"
	FieldCaregiverNationalID Field = "caregiver_nationalid"
	FieldPhone               Field = "phone"
	FieldCaregiverGender     Field = "caregiver_gender"
	FieldCaregiverDOB        Field = "caregiver_dob"
	FieldCaregiverHIVStatus  Field = "caregiverhivstatus"
	FieldCaregiverType       Field = "caregiver_type"

	FieldHousehold     Field = "household"
	FieldOVCNames      Field = "ovc_names"
	FieldGender        Field = "gender"
	FieldDOB           Field = "dob"
	FieldBCertNumber   Field = "bcertnumber"
	FieldNCPWDNumber   Field = "ncpwdnumber"
	FieldOVCDisability Field = "ovcdisability"
	FieldOVCHIVStatus  Field = "ovchivstatus"

	FieldARTStatus     Field = "artstatus"
	FieldCCCNumber     Field = "ccc_number"
	FieldDurationOnART Field = "duration_on_art"
	FieldViralLoad     Field = "viral_load"

	FieldDateOfEvent      Field = "date_of_event"
	FieldDateOfLinkage    Field = "date_of_linkage"
	FieldRegistrationDate Field = "registration_date"
	FieldExitDate         Field = "exit_date"
	FieldExitStatus       Field = "exit_status"
	FieldExitReason       Field = "exit_reason"
	FieldImmunization     Field = "immunization"
	FieldEligibility      Field = "eligibility"
)

var allFields = []Field{
	FieldWard, FieldWardID, FieldConstituency, FieldCounty,
	FieldCBO, FieldCBOID, FieldCHVNames, FieldCHVID,
	FieldFacility, FieldFacilityID, FieldFacilityMFLCode,
	FieldSchoolName, FieldSchoolID, FieldSchoolLevel,
	FieldCaregiverNames, FieldCaregiverNationalID, FieldPhone,
	FieldCaregiverGender, FieldCaregiverDOB, FieldCaregiverHIVStatus, FieldCaregiverType,
	FieldHousehold, FieldOVCNames, FieldGender, FieldDOB,
	FieldBCertNumber, FieldNCPWDNumber, FieldOVCDisability, FieldOVCHIVStatus,
	FieldARTStatus, FieldCCCNumber, FieldDurationOnART, FieldViralLoad,
	FieldDateOfEvent, FieldDateOfLinkage, FieldRegistrationDate, FieldExitDate,
	FieldExitStatus, FieldExitReason, FieldImmunization, FieldEligibility,
}

// foldHeader collapses the cosmetic variation sources apply to column names:
// case, surrounding whitespace, and underscore/space separators.
func foldHeader(name string) string {
	folded := strings.ToLower(strings.TrimSpace(name))
	folded = strings.ReplaceAll(folded, "_", "")
	folded = strings.ReplaceAll(folded, " ", "")
	return folded
}

// Mapping binds canonical fields to column positions in one source. It is
// built once from the header, not probed per row; a field the source does
// not carry reads as blank forever.
type Mapping struct {
	index   map[Field]int
	missing []Field
}

func NewMapping(header []string) *Mapping {
	byFolded := make(map[string]int, len(header))
	for i, name := range header {
		folded := foldHeader(name)
		if _, taken := byFolded[folded]; !taken {
			byFolded[folded] = i
		}
	}

	m := &Mapping{index: make(map[Field]int, len(allFields))}
	for _, f := range allFields {
		if i, ok := byFolded[foldHeader(string(f))]; ok {
			m.index[f] = i
			continue
		}
		m.missing = append(m.missing, f)
	}
	return m
}

// Value reads one canonical field out of a raw record, trimmed. Missing
// columns and short records read as blank.
func (m *Mapping) Value(record []string, f Field) string {
	i, ok := m.index[f]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// Missing lists the canonical fields the source does not carry.
func (m *Mapping) Missing() []Field {
	return m.missing
}
