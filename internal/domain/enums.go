package domain

// Closed vocabularies for normalized enumerated fields. Raw source values are
// mapped into these by internal/normalize; nothing outside the constants below
// is ever stored.

// Gender is the normalized beneficiary/caregiver gender.
type Gender string

const (
	GenderMale    Gender = "Male"
	GenderFemale  Gender = "Female"
	GenderOther   Gender = "Other"
	GenderUnknown Gender = "Unknown"
)

// HIVStatus is the normalized HIV status for beneficiaries and caregivers.
type HIVStatus string

const (
	HIVPositive HIVStatus = "Positive"
	HIVNegative HIVStatus = "Negative"
	HIVExposed  HIVStatus = "Exposed"
	HIVUnknown  HIVStatus = "Unknown"
	HIVDeclined HIVStatus = "Declined to Disclose"
)

// SchoolLevel buckets free-text school descriptions into the national levels.
type SchoolLevel string

const (
	SchoolPrePrimary      SchoolLevel = "Pre-Primary"
	SchoolLowerPrimary    SchoolLevel = "Lower Primary"
	SchoolUpperPrimary    SchoolLevel = "Upper Primary"
	SchoolJuniorSecondary SchoolLevel = "Junior Secondary"
	SchoolSeniorSecondary SchoolLevel = "Senior Secondary"
	SchoolTertiary        SchoolLevel = "Tertiary"
	SchoolNotInSchool     SchoolLevel = "Not in School"
	SchoolNotApplicable   SchoolLevel = "Not Applicable"
)
