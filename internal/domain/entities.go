package domain

import (
	"time"

	"github.com/google/uuid"
)

// The administrative hierarchy is strictly nested: every Ward belongs to
// exactly one Constituency, every Constituency to exactly one County. Names
// are unique within their parent, case-insensitively. Surrogate IDs are
// assigned by the storage layer; natural keys (trimmed names, external codes)
// are what inputs use to recognize "the same entity" across runs.

type County struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

type Constituency struct {
	ID        int64
	Name      string
	CountyID  int64
	CreatedAt time.Time
}

type Ward struct {
	ID             int64
	Name           string
	ConstituencyID int64
	CreatedAt      time.Time
}

// Organization is a community-based organization (CBO) operating within a
// ward. The ward reference is best-effort: the name alone is the natural key.
// ExternalID is the legacy identifier carried by source rows; it is looked up
// first but the name remains the uniqueness arbiter.
type Organization struct {
	ID         int64
	ExternalID *int64
	Name       string
	WardID     *int64
	CreatedAt  time.Time
}

// HealthWorker is a community health worker/volunteer (CHW/CHV), the frontline
// data collector tied to a ward and organization.
type HealthWorker struct {
	ID             int64
	ExternalID     *int64
	Name           string
	WardID         *int64
	OrganizationID *int64
	CreatedAt      time.Time
}

// Facility is a health facility. MFLCode is the national master facility list
// code, the preferred natural key when present; the name is the fallback.
type Facility struct {
	ID         int64
	ExternalID *int64
	Name       string
	MFLCode    *string
	WardID     *int64
	CreatedAt  time.Time
}

type School struct {
	ID         int64
	ExternalID *int64
	Name       string
	Level      *string
	WardID     *int64
	CreatedAt  time.Time
}

// Caregiver is recognized best-effort by national ID, falling back to phone.
// Either key may be absent; a caregiver with neither is still created but can
// only be matched again within the same run via the resolver cache.
type Caregiver struct {
	ID         int64
	Name       string
	NationalID *string
	Phone      *string
	Gender     Gender
	DOB        *time.Time
	HIVStatus  HIVStatus
	Type       *string
	WardID     *int64
	CreatedAt  time.Time
}

// Beneficiary is the individual (OVC or other program client) a case event
// describes. Rows are append-only: each ingested input row produces one
// beneficiary record, with no cross-run de-duplication.
type Beneficiary struct {
	ID          int64
	Name        string
	Gender      Gender
	DOB         *time.Time
	BirthCertNo *string
	NCPWDNo     *string
	Disability  *string
	HIVStatus   HIVStatus
	CreatedAt   time.Time
}

// CaseEvent is the fact record assembled from one input row: resolved foreign
// keys plus normalized scalar fields. Every foreign key is either a valid
// reference or nil, never dangling. ImportRunID and SourceRow record
// provenance so a later de-duplication policy has something to key on.
type CaseEvent struct {
	ID          int64
	ImportRunID uuid.UUID
	SourceRow   int64

	BeneficiaryID  int64
	WardID         *int64
	OrganizationID *int64
	HealthWorkerID *int64
	FacilityID     *int64
	SchoolID       *int64
	CaregiverID    *int64

	Household        *string
	ARTStatus        *string
	CCCNumber        *string
	DurationOnARTMos *int
	ViralLoad        *string
	SchoolLevel      *SchoolLevel
	Immunization     *string
	Eligibility      *string
	ExitStatus       *string
	ExitReason       *string

	DateOfEvent      *time.Time
	DateOfLinkage    *time.Time
	RegistrationDate *time.Time
	ExitDate         *time.Time

	CreatedAt time.Time
}
