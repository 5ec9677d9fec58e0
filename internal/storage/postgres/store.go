// Package postgres persists the normalized graph in PostgreSQL. Uniqueness
// constraints on the natural keys are the arbiter for every get-or-create:
// the store never holds an in-process lock, so it stays correct when rows
// are sharded across processes later.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"jali/internal/domain"
	"jali/internal/storage"
	"jali/pkg/platform/sentinel"
	txcontext "jali/pkg/platform/tx"
)

//go:embed schema.sql
var schemaSQL string

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store over database/sql with the pq driver.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ApplySchema creates all tables and uniqueness constraints. Idempotent;
// called once at startup before any row processing.
func (s *Store) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// execer routes through the batch transaction when one is carried in context.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// rejection, the expected branch of insert-or-fetch.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// --- hierarchy upserts ---

func (s *Store) UpsertCounty(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO counties (name) VALUES ($1)
		ON CONFLICT (lower(name)) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert county: %w", err)
	}
	return id, nil
}

func (s *Store) UpsertConstituency(ctx context.Context, name string, countyID int64) (int64, error) {
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO constituencies (name, county_id) VALUES ($1, $2)
		ON CONFLICT (lower(name), county_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name, countyID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert constituency: %w", err)
	}
	return id, nil
}

func (s *Store) UpsertWard(ctx context.Context, name string, constituencyID int64) (int64, error) {
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO wards (name, constituency_id) VALUES ($1, $2)
		ON CONFLICT (lower(name), constituency_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name, constituencyID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert ward: %w", err)
	}
	return id, nil
}

// --- hierarchy lookups ---

func (s *Store) FindWardByID(ctx context.Context, id int64) (domain.Ward, error) {
	var w domain.Ward
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, name, constituency_id, created_at FROM wards WHERE id = $1
	`, id).Scan(&w.ID, &w.Name, &w.ConstituencyID, &w.CreatedAt)
	if err != nil {
		return domain.Ward{}, notFound(err, "find ward by id")
	}
	return w, nil
}

func (s *Store) FindWardByName(ctx context.Context, name string, constituencyID int64) (domain.Ward, error) {
	query := `
		SELECT id, name, constituency_id, created_at FROM wards
		WHERE lower(name) = lower($1) AND constituency_id = $2
	`
	args := []any{name, constituencyID}
	if constituencyID == 0 {
		// Degraded global match when no constituency hint resolved.
		query = `
			SELECT id, name, constituency_id, created_at FROM wards
			WHERE lower(name) = lower($1) ORDER BY id LIMIT 1
		`
		args = []any{name}
	}
	var w domain.Ward
	err := s.execer(ctx).QueryRowContext(ctx, query, args...).
		Scan(&w.ID, &w.Name, &w.ConstituencyID, &w.CreatedAt)
	if err != nil {
		return domain.Ward{}, notFound(err, "find ward by name")
	}
	return w, nil
}

func (s *Store) FindConstituencyByName(ctx context.Context, name string, countyID int64) (domain.Constituency, error) {
	query := `
		SELECT id, name, county_id, created_at FROM constituencies
		WHERE lower(name) = lower($1) AND county_id = $2
	`
	args := []any{name, countyID}
	if countyID == 0 {
		query = `
			SELECT id, name, county_id, created_at FROM constituencies
			WHERE lower(name) = lower($1) ORDER BY id LIMIT 1
		`
		args = []any{name}
	}
	var c domain.Constituency
	err := s.execer(ctx).QueryRowContext(ctx, query, args...).
		Scan(&c.ID, &c.Name, &c.CountyID, &c.CreatedAt)
	if err != nil {
		return domain.Constituency{}, notFound(err, "find constituency by name")
	}
	return c, nil
}

func (s *Store) FindCountyByName(ctx context.Context, name string) (domain.County, error) {
	var c domain.County
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, name, created_at FROM counties WHERE lower(name) = lower($1)
	`, name).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return domain.County{}, notFound(err, "find county by name")
	}
	return c, nil
}

// --- organizations ---

func (s *Store) FindOrganizationByExternalID(ctx context.Context, externalID int64) (domain.Organization, error) {
	var o domain.Organization
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, external_id, name, ward_id, created_at FROM organizations
		WHERE external_id = $1 ORDER BY id LIMIT 1
	`, externalID).Scan(&o.ID, &o.ExternalID, &o.Name, &o.WardID, &o.CreatedAt)
	if err != nil {
		return domain.Organization{}, notFound(err, "find organization by external id")
	}
	return o, nil
}

func (s *Store) FindOrganizationByName(ctx context.Context, name string) (domain.Organization, error) {
	var o domain.Organization
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, external_id, name, ward_id, created_at FROM organizations
		WHERE lower(name) = lower($1)
	`, name).Scan(&o.ID, &o.ExternalID, &o.Name, &o.WardID, &o.CreatedAt)
	if err != nil {
		return domain.Organization{}, notFound(err, "find organization by name")
	}
	return o, nil
}

func (s *Store) GetOrCreateOrganization(ctx context.Context, org domain.Organization) (int64, error) {
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO organizations (external_id, name, ward_id) VALUES ($1, $2, $3)
		ON CONFLICT (lower(name)) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, org.ExternalID, org.Name, org.WardID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get or create organization: %w", err)
	}
	return id, nil
}

// --- health workers ---

func (s *Store) FindHealthWorkerByExternalID(ctx context.Context, externalID int64) (domain.HealthWorker, error) {
	var w domain.HealthWorker
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, external_id, name, ward_id, organization_id, created_at
		FROM community_health_workers WHERE external_id = $1 ORDER BY id LIMIT 1
	`, externalID).Scan(&w.ID, &w.ExternalID, &w.Name, &w.WardID, &w.OrganizationID, &w.CreatedAt)
	if err != nil {
		return domain.HealthWorker{}, notFound(err, "find health worker by external id")
	}
	return w, nil
}

func (s *Store) FindHealthWorkerByName(ctx context.Context, name string) (domain.HealthWorker, error) {
	var w domain.HealthWorker
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, external_id, name, ward_id, organization_id, created_at
		FROM community_health_workers WHERE lower(name) = lower($1)
	`, name).Scan(&w.ID, &w.ExternalID, &w.Name, &w.WardID, &w.OrganizationID, &w.CreatedAt)
	if err != nil {
		return domain.HealthWorker{}, notFound(err, "find health worker by name")
	}
	return w, nil
}

func (s *Store) GetOrCreateHealthWorker(ctx context.Context, hw domain.HealthWorker) (int64, error) {
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO community_health_workers (external_id, name, ward_id, organization_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (lower(name)) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, hw.ExternalID, hw.Name, hw.WardID, hw.OrganizationID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get or create health worker: %w", err)
	}
	return id, nil
}

// --- facilities ---

func (s *Store) FindFacilityByExternalID(ctx context.Context, externalID int64) (domain.Facility, error) {
	var f domain.Facility
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, external_id, name, mfl_code, ward_id, created_at FROM facilities
		WHERE external_id = $1 ORDER BY id LIMIT 1
	`, externalID).Scan(&f.ID, &f.ExternalID, &f.Name, &f.MFLCode, &f.WardID, &f.CreatedAt)
	if err != nil {
		return domain.Facility{}, notFound(err, "find facility by external id")
	}
	return f, nil
}

func (s *Store) FindFacilityByMFLCode(ctx context.Context, code string) (domain.Facility, error) {
	var f domain.Facility
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, external_id, name, mfl_code, ward_id, created_at FROM facilities
		WHERE lower(mfl_code) = lower($1)
	`, code).Scan(&f.ID, &f.ExternalID, &f.Name, &f.MFLCode, &f.WardID, &f.CreatedAt)
	if err != nil {
		return domain.Facility{}, notFound(err, "find facility by mfl code")
	}
	return f, nil
}

func (s *Store) FindFacilityByName(ctx context.Context, name string) (domain.Facility, error) {
	var f domain.Facility
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, external_id, name, mfl_code, ward_id, created_at FROM facilities
		WHERE lower(name) = lower($1)
	`, name).Scan(&f.ID, &f.ExternalID, &f.Name, &f.MFLCode, &f.WardID, &f.CreatedAt)
	if err != nil {
		return domain.Facility{}, notFound(err, "find facility by name")
	}
	return f, nil
}

// withSavepoint fences a conflict-prone statement inside the surrounding
// transaction, when one is carried in context. A unique violation aborts a
// Postgres transaction, so without the fence the reselect that follows would
// fail with "current transaction is aborted".
func (s *Store) withSavepoint(ctx context.Context, fn func() error) error {
	tx, ok := txcontext.From(ctx)
	if !ok {
		return fn()
	}
	if _, err := tx.ExecContext(ctx, "SAVEPOINT insert_boundary"); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT insert_boundary"); rbErr != nil {
			return rbErr
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT insert_boundary"); err != nil {
		return err
	}
	return nil
}

// GetOrCreateFacility upserts on the MFL code when one is present, otherwise
// on the name. A same-name facility arriving under a new code still trips the
// name constraint; that lands in the reselect-by-name branch, which needs the
// savepoint fence to stay reachable inside the batch transaction.
func (s *Store) GetOrCreateFacility(ctx context.Context, f domain.Facility) (int64, error) {
	var id int64
	err := s.withSavepoint(ctx, func() error {
		if f.MFLCode != nil {
			return s.execer(ctx).QueryRowContext(ctx, `
				INSERT INTO facilities (external_id, name, mfl_code, ward_id) VALUES ($1, $2, $3, $4)
				ON CONFLICT (lower(mfl_code)) WHERE mfl_code IS NOT NULL
				DO UPDATE SET name = EXCLUDED.name
				RETURNING id
			`, f.ExternalID, f.Name, f.MFLCode, f.WardID).Scan(&id)
		}
		return s.execer(ctx).QueryRowContext(ctx, `
			INSERT INTO facilities (external_id, name, mfl_code, ward_id) VALUES ($1, $2, NULL, $3)
			ON CONFLICT (lower(name)) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, f.ExternalID, f.Name, f.WardID).Scan(&id)
	})
	if err == nil {
		return id, nil
	}
	if !isUniqueViolation(err) {
		return 0, fmt.Errorf("get or create facility: %w", err)
	}
	existing, ferr := s.FindFacilityByName(ctx, f.Name)
	if ferr != nil {
		return 0, fmt.Errorf("get or create facility: reselect: %w", ferr)
	}
	return existing.ID, nil
}

// --- schools ---

func (s *Store) FindSchoolByExternalID(ctx context.Context, externalID int64) (domain.School, error) {
	var sc domain.School
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, external_id, name, level, ward_id, created_at FROM schools
		WHERE external_id = $1 ORDER BY id LIMIT 1
	`, externalID).Scan(&sc.ID, &sc.ExternalID, &sc.Name, &sc.Level, &sc.WardID, &sc.CreatedAt)
	if err != nil {
		return domain.School{}, notFound(err, "find school by external id")
	}
	return sc, nil
}

func (s *Store) FindSchoolByName(ctx context.Context, name string) (domain.School, error) {
	var sc domain.School
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, external_id, name, level, ward_id, created_at FROM schools
		WHERE lower(name) = lower($1)
	`, name).Scan(&sc.ID, &sc.ExternalID, &sc.Name, &sc.Level, &sc.WardID, &sc.CreatedAt)
	if err != nil {
		return domain.School{}, notFound(err, "find school by name")
	}
	return sc, nil
}

func (s *Store) GetOrCreateSchool(ctx context.Context, sc domain.School) (int64, error) {
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO schools (external_id, name, level, ward_id) VALUES ($1, $2, $3, $4)
		ON CONFLICT (lower(name)) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, sc.ExternalID, sc.Name, sc.Level, sc.WardID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get or create school: %w", err)
	}
	return id, nil
}

// --- caregivers ---

func (s *Store) FindCaregiverByNationalID(ctx context.Context, nationalID string) (domain.Caregiver, error) {
	return s.findCaregiver(ctx, "national_id = $1", nationalID)
}

func (s *Store) FindCaregiverByPhone(ctx context.Context, phone string) (domain.Caregiver, error) {
	return s.findCaregiver(ctx, "phone = $1", phone)
}

func (s *Store) findCaregiver(ctx context.Context, where string, arg any) (domain.Caregiver, error) {
	var c domain.Caregiver
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, name, national_id, phone, gender, dob, hiv_status, caregiver_type, ward_id, created_at
		FROM caregivers WHERE `+where+` ORDER BY id LIMIT 1
	`, arg).Scan(&c.ID, &c.Name, &c.NationalID, &c.Phone, &c.Gender, &c.DOB,
		&c.HIVStatus, &c.Type, &c.WardID, &c.CreatedAt)
	if err != nil {
		return domain.Caregiver{}, notFound(err, "find caregiver")
	}
	return c, nil
}

// GetOrCreateCaregiver has two possible natural keys (national ID, phone), so
// a single conflict target cannot arbitrate. It inserts with ON CONFLICT DO
// NOTHING and reselects by whichever key exists; inside the batch transaction
// there is no window between the failed insert and the reselect.
func (s *Store) GetOrCreateCaregiver(ctx context.Context, c domain.Caregiver) (int64, error) {
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO caregivers (name, national_id, phone, gender, dob, hiv_status, caregiver_type, ward_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
		RETURNING id
	`, c.Name, c.NationalID, c.Phone, c.Gender, c.DOB, c.HIVStatus, c.Type, c.WardID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("get or create caregiver: %w", err)
	}
	if c.NationalID != nil {
		if existing, ferr := s.FindCaregiverByNationalID(ctx, *c.NationalID); ferr == nil {
			return existing.ID, nil
		}
	}
	if c.Phone != nil {
		if existing, ferr := s.FindCaregiverByPhone(ctx, *c.Phone); ferr == nil {
			return existing.ID, nil
		}
	}
	return 0, fmt.Errorf("get or create caregiver: conflict without matching key: %w", sentinel.ErrConflict)
}

// --- facts ---

func (s *Store) InsertBeneficiary(ctx context.Context, b domain.Beneficiary) (int64, error) {
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO beneficiaries (name, gender, dob, birth_cert_no, ncpwd_no, disability, hiv_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, b.Name, b.Gender, b.DOB, b.BirthCertNo, b.NCPWDNo, b.Disability, b.HIVStatus).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert beneficiary: %w", err)
	}
	return id, nil
}

func (s *Store) InsertCaseEvent(ctx context.Context, e domain.CaseEvent) (int64, error) {
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO case_events (
			import_run_id, source_row, beneficiary_id,
			ward_id, organization_id, health_worker_id, facility_id, school_id, caregiver_id,
			household, art_status, ccc_number, duration_on_art_months, viral_load,
			school_level, immunization, eligibility, exit_status, exit_reason,
			date_of_event, date_of_linkage, registration_date, exit_date
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23
		)
		RETURNING id
	`,
		e.ImportRunID, e.SourceRow, e.BeneficiaryID,
		e.WardID, e.OrganizationID, e.HealthWorkerID, e.FacilityID, e.SchoolID, e.CaregiverID,
		e.Household, e.ARTStatus, e.CCCNumber, e.DurationOnARTMos, e.ViralLoad,
		e.SchoolLevel, e.Immunization, e.Eligibility, e.ExitStatus, e.ExitReason,
		e.DateOfEvent, e.DateOfLinkage, e.RegistrationDate, e.ExitDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert case event: %w", err)
	}
	return id, nil
}
