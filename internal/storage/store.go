package storage

import (
	"context"

	"jali/internal/domain"
)

// Stores are interface-driven so resolvers and the committer stay testable
// against the in-memory implementation while production runs against
// Postgres. "Not found" is sentinel.ErrNotFound, never a nil-id success.
//
// GetOrCreate* methods are conflict-safe: when a uniqueness constraint on the
// natural key rejects the insert, the store returns the id of the row that
// won, not an error (insert-or-fetch). On Postgres this is a single atomic
// upsert-returning-id statement where one constraint is the arbiter, and
// insert-then-reselect inside the batch transaction where it is not.

// HierarchyStore upserts the strictly nested administrative hierarchy.
// Upserts use update-on-conflict semantics: a second load with a renamed
// entry under the same natural key updates the stored name in place.
type HierarchyStore interface {
	UpsertCounty(ctx context.Context, name string) (int64, error)
	UpsertConstituency(ctx context.Context, name string, countyID int64) (int64, error)
	UpsertWard(ctx context.Context, name string, constituencyID int64) (int64, error)
}

// WardStore looks up hierarchy entities for row resolution. Wards are never
// created during row processing; the hierarchy load owns creation.
// FindWardByName with constituencyID zero is the degraded global match.
type WardStore interface {
	FindWardByID(ctx context.Context, id int64) (domain.Ward, error)
	FindWardByName(ctx context.Context, name string, constituencyID int64) (domain.Ward, error)
	FindConstituencyByName(ctx context.Context, name string, countyID int64) (domain.Constituency, error)
	FindCountyByName(ctx context.Context, name string) (domain.County, error)
}

type OrganizationStore interface {
	FindOrganizationByExternalID(ctx context.Context, externalID int64) (domain.Organization, error)
	FindOrganizationByName(ctx context.Context, name string) (domain.Organization, error)
	GetOrCreateOrganization(ctx context.Context, org domain.Organization) (int64, error)
}

type HealthWorkerStore interface {
	FindHealthWorkerByExternalID(ctx context.Context, externalID int64) (domain.HealthWorker, error)
	FindHealthWorkerByName(ctx context.Context, name string) (domain.HealthWorker, error)
	GetOrCreateHealthWorker(ctx context.Context, hw domain.HealthWorker) (int64, error)
}

type FacilityStore interface {
	FindFacilityByExternalID(ctx context.Context, externalID int64) (domain.Facility, error)
	FindFacilityByMFLCode(ctx context.Context, code string) (domain.Facility, error)
	FindFacilityByName(ctx context.Context, name string) (domain.Facility, error)
	GetOrCreateFacility(ctx context.Context, f domain.Facility) (int64, error)
}

type SchoolStore interface {
	FindSchoolByExternalID(ctx context.Context, externalID int64) (domain.School, error)
	FindSchoolByName(ctx context.Context, name string) (domain.School, error)
	GetOrCreateSchool(ctx context.Context, s domain.School) (int64, error)
}

type CaregiverStore interface {
	FindCaregiverByNationalID(ctx context.Context, nationalID string) (domain.Caregiver, error)
	FindCaregiverByPhone(ctx context.Context, phone string) (domain.Caregiver, error)
	GetOrCreateCaregiver(ctx context.Context, c domain.Caregiver) (int64, error)
}

// FactStore appends the per-row facts. Both inserts are append-only; each
// run is a new reporting snapshot, so re-ingesting a source row inserts
// again.
type FactStore interface {
	InsertBeneficiary(ctx context.Context, b domain.Beneficiary) (int64, error)
	InsertCaseEvent(ctx context.Context, e domain.CaseEvent) (int64, error)
}

// Store is the full surface an import run needs.
type Store interface {
	HierarchyStore
	WardStore
	OrganizationStore
	HealthWorkerStore
	FacilityStore
	SchoolStore
	CaregiverStore
	FactStore
}
