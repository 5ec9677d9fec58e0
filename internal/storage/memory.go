package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"jali/internal/domain"
	"jali/pkg/platform/sentinel"
)

// InMemory keeps the whole graph in maps guarded by one mutex. It mirrors the
// Postgres semantics that matter to callers: case-insensitive natural keys,
// update-on-conflict upserts, and foreign keys that must reference existing
// rows. It intentionally favors clarity over performance.
type InMemory struct {
	mu sync.Mutex

	nextID int64

	counties       map[int64]domain.County
	countyByName   map[string]int64
	constituencies map[int64]domain.Constituency
	constByKey     map[string]int64
	wards          map[int64]domain.Ward
	wardByKey      map[string]int64

	orgs      map[int64]domain.Organization
	orgByName map[string]int64

	workers      map[int64]domain.HealthWorker
	workerByName map[string]int64

	facilities map[int64]domain.Facility
	facByName  map[string]int64
	facByMFL   map[string]int64

	schools      map[int64]domain.School
	schoolByName map[string]int64

	caregivers map[int64]domain.Caregiver
	cgByNID    map[string]int64
	cgByPhone  map[string]int64

	beneficiaries map[int64]domain.Beneficiary
	events        []domain.CaseEvent
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		counties:       make(map[int64]domain.County),
		countyByName:   make(map[string]int64),
		constituencies: make(map[int64]domain.Constituency),
		constByKey:     make(map[string]int64),
		wards:          make(map[int64]domain.Ward),
		wardByKey:      make(map[string]int64),
		orgs:           make(map[int64]domain.Organization),
		orgByName:      make(map[string]int64),
		workers:        make(map[int64]domain.HealthWorker),
		workerByName:   make(map[string]int64),
		facilities:     make(map[int64]domain.Facility),
		facByName:      make(map[string]int64),
		facByMFL:       make(map[string]int64),
		schools:        make(map[int64]domain.School),
		schoolByName:   make(map[string]int64),
		caregivers:     make(map[int64]domain.Caregiver),
		cgByNID:        make(map[string]int64),
		cgByPhone:      make(map[string]int64),
		beneficiaries:  make(map[int64]domain.Beneficiary),
	}
}

func (s *InMemory) id() int64 {
	s.nextID++
	return s.nextID
}

func fold(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func scopedKey(name string, parentID int64) string {
	return fmt.Sprintf("%s\x00%d", fold(name), parentID)
}

// --- hierarchy upserts ---

func (s *InMemory) UpsertCounty(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.countyByName[fold(name)]; ok {
		c := s.counties[id]
		c.Name = strings.TrimSpace(name)
		s.counties[id] = c
		return id, nil
	}
	id := s.id()
	s.counties[id] = domain.County{ID: id, Name: strings.TrimSpace(name), CreatedAt: time.Now()}
	s.countyByName[fold(name)] = id
	return id, nil
}

func (s *InMemory) UpsertConstituency(_ context.Context, name string, countyID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counties[countyID]; !ok {
		return 0, fmt.Errorf("constituency %q: county %d: %w", name, countyID, sentinel.ErrNotFound)
	}
	key := scopedKey(name, countyID)
	if id, ok := s.constByKey[key]; ok {
		c := s.constituencies[id]
		c.Name = strings.TrimSpace(name)
		s.constituencies[id] = c
		return id, nil
	}
	id := s.id()
	s.constituencies[id] = domain.Constituency{ID: id, Name: strings.TrimSpace(name), CountyID: countyID, CreatedAt: time.Now()}
	s.constByKey[key] = id
	return id, nil
}

func (s *InMemory) UpsertWard(_ context.Context, name string, constituencyID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.constituencies[constituencyID]; !ok {
		return 0, fmt.Errorf("ward %q: constituency %d: %w", name, constituencyID, sentinel.ErrNotFound)
	}
	key := scopedKey(name, constituencyID)
	if id, ok := s.wardByKey[key]; ok {
		w := s.wards[id]
		w.Name = strings.TrimSpace(name)
		s.wards[id] = w
		return id, nil
	}
	id := s.id()
	s.wards[id] = domain.Ward{ID: id, Name: strings.TrimSpace(name), ConstituencyID: constituencyID, CreatedAt: time.Now()}
	s.wardByKey[key] = id
	return id, nil
}

// --- hierarchy lookups ---

func (s *InMemory) FindWardByID(_ context.Context, id int64) (domain.Ward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wards[id]; ok {
		return w, nil
	}
	return domain.Ward{}, sentinel.ErrNotFound
}

func (s *InMemory) FindWardByName(_ context.Context, name string, constituencyID int64) (domain.Ward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if constituencyID != 0 {
		if id, ok := s.wardByKey[scopedKey(name, constituencyID)]; ok {
			return s.wards[id], nil
		}
		return domain.Ward{}, sentinel.ErrNotFound
	}
	for _, w := range s.wards {
		if fold(w.Name) == fold(name) {
			return w, nil
		}
	}
	return domain.Ward{}, sentinel.ErrNotFound
}

func (s *InMemory) FindConstituencyByName(_ context.Context, name string, countyID int64) (domain.Constituency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if countyID != 0 {
		if id, ok := s.constByKey[scopedKey(name, countyID)]; ok {
			return s.constituencies[id], nil
		}
		return domain.Constituency{}, sentinel.ErrNotFound
	}
	for _, c := range s.constituencies {
		if fold(c.Name) == fold(name) {
			return c, nil
		}
	}
	return domain.Constituency{}, sentinel.ErrNotFound
}

func (s *InMemory) FindCountyByName(_ context.Context, name string) (domain.County, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.countyByName[fold(name)]; ok {
		return s.counties[id], nil
	}
	return domain.County{}, sentinel.ErrNotFound
}

// --- organizations ---

func (s *InMemory) FindOrganizationByExternalID(_ context.Context, externalID int64) (domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orgs {
		if o.ExternalID != nil && *o.ExternalID == externalID {
			return o, nil
		}
	}
	return domain.Organization{}, sentinel.ErrNotFound
}

func (s *InMemory) FindOrganizationByName(_ context.Context, name string) (domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.orgByName[fold(name)]; ok {
		return s.orgs[id], nil
	}
	return domain.Organization{}, sentinel.ErrNotFound
}

func (s *InMemory) GetOrCreateOrganization(_ context.Context, org domain.Organization) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.orgByName[fold(org.Name)]; ok {
		existing := s.orgs[id]
		existing.Name = strings.TrimSpace(org.Name)
		s.orgs[id] = existing
		return id, nil
	}
	id := s.id()
	org.ID = id
	org.Name = strings.TrimSpace(org.Name)
	org.CreatedAt = time.Now()
	s.orgs[id] = org
	s.orgByName[fold(org.Name)] = id
	return id, nil
}

// --- health workers ---

func (s *InMemory) FindHealthWorkerByExternalID(_ context.Context, externalID int64) (domain.HealthWorker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workers {
		if w.ExternalID != nil && *w.ExternalID == externalID {
			return w, nil
		}
	}
	return domain.HealthWorker{}, sentinel.ErrNotFound
}

func (s *InMemory) FindHealthWorkerByName(_ context.Context, name string) (domain.HealthWorker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.workerByName[fold(name)]; ok {
		return s.workers[id], nil
	}
	return domain.HealthWorker{}, sentinel.ErrNotFound
}

func (s *InMemory) GetOrCreateHealthWorker(_ context.Context, hw domain.HealthWorker) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.workerByName[fold(hw.Name)]; ok {
		return id, nil
	}
	id := s.id()
	hw.ID = id
	hw.Name = strings.TrimSpace(hw.Name)
	hw.CreatedAt = time.Now()
	s.workers[id] = hw
	s.workerByName[fold(hw.Name)] = id
	return id, nil
}

// --- facilities ---

func (s *InMemory) FindFacilityByExternalID(_ context.Context, externalID int64) (domain.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.facilities {
		if f.ExternalID != nil && *f.ExternalID == externalID {
			return f, nil
		}
	}
	return domain.Facility{}, sentinel.ErrNotFound
}

func (s *InMemory) FindFacilityByMFLCode(_ context.Context, code string) (domain.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.facByMFL[fold(code)]; ok {
		return s.facilities[id], nil
	}
	return domain.Facility{}, sentinel.ErrNotFound
}

func (s *InMemory) FindFacilityByName(_ context.Context, name string) (domain.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.facByName[fold(name)]; ok {
		return s.facilities[id], nil
	}
	return domain.Facility{}, sentinel.ErrNotFound
}

func (s *InMemory) GetOrCreateFacility(_ context.Context, f domain.Facility) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// MFL code is the preferred arbiter; a facility renamed under the same
	// code updates in place rather than duplicating.
	if f.MFLCode != nil {
		if id, ok := s.facByMFL[fold(*f.MFLCode)]; ok {
			existing := s.facilities[id]
			existing.Name = strings.TrimSpace(f.Name)
			s.facilities[id] = existing
			return id, nil
		}
	}
	if id, ok := s.facByName[fold(f.Name)]; ok {
		return id, nil
	}
	id := s.id()
	f.ID = id
	f.Name = strings.TrimSpace(f.Name)
	f.CreatedAt = time.Now()
	s.facilities[id] = f
	s.facByName[fold(f.Name)] = id
	if f.MFLCode != nil {
		s.facByMFL[fold(*f.MFLCode)] = id
	}
	return id, nil
}

// --- schools ---

func (s *InMemory) FindSchoolByExternalID(_ context.Context, externalID int64) (domain.School, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.schools {
		if sc.ExternalID != nil && *sc.ExternalID == externalID {
			return sc, nil
		}
	}
	return domain.School{}, sentinel.ErrNotFound
}

func (s *InMemory) FindSchoolByName(_ context.Context, name string) (domain.School, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.schoolByName[fold(name)]; ok {
		return s.schools[id], nil
	}
	return domain.School{}, sentinel.ErrNotFound
}

func (s *InMemory) GetOrCreateSchool(_ context.Context, sc domain.School) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.schoolByName[fold(sc.Name)]; ok {
		return id, nil
	}
	id := s.id()
	sc.ID = id
	sc.Name = strings.TrimSpace(sc.Name)
	sc.CreatedAt = time.Now()
	s.schools[id] = sc
	s.schoolByName[fold(sc.Name)] = id
	return id, nil
}

// --- caregivers ---

func (s *InMemory) FindCaregiverByNationalID(_ context.Context, nationalID string) (domain.Caregiver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.cgByNID[nationalID]; ok {
		return s.caregivers[id], nil
	}
	return domain.Caregiver{}, sentinel.ErrNotFound
}

func (s *InMemory) FindCaregiverByPhone(_ context.Context, phone string) (domain.Caregiver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.cgByPhone[phone]; ok {
		return s.caregivers[id], nil
	}
	return domain.Caregiver{}, sentinel.ErrNotFound
}

func (s *InMemory) GetOrCreateCaregiver(_ context.Context, c domain.Caregiver) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.NationalID != nil {
		if id, ok := s.cgByNID[*c.NationalID]; ok {
			return id, nil
		}
	}
	if c.Phone != nil {
		if id, ok := s.cgByPhone[*c.Phone]; ok {
			return id, nil
		}
	}
	id := s.id()
	c.ID = id
	c.Name = strings.TrimSpace(c.Name)
	c.CreatedAt = time.Now()
	s.caregivers[id] = c
	if c.NationalID != nil {
		s.cgByNID[*c.NationalID] = id
	}
	if c.Phone != nil {
		s.cgByPhone[*c.Phone] = id
	}
	return id, nil
}

// --- facts ---

func (s *InMemory) InsertBeneficiary(_ context.Context, b domain.Beneficiary) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	b.ID = id
	b.CreatedAt = time.Now()
	s.beneficiaries[id] = b
	return id, nil
}

func (s *InMemory) InsertCaseEvent(_ context.Context, e domain.CaseEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.beneficiaries[e.BeneficiaryID]; !ok {
		return 0, fmt.Errorf("case event: beneficiary %d: %w", e.BeneficiaryID, sentinel.ErrInvalidState)
	}
	for _, ref := range []struct {
		id *int64
		ok func(int64) bool
	}{
		{e.WardID, func(id int64) bool { _, ok := s.wards[id]; return ok }},
		{e.OrganizationID, func(id int64) bool { _, ok := s.orgs[id]; return ok }},
		{e.HealthWorkerID, func(id int64) bool { _, ok := s.workers[id]; return ok }},
		{e.FacilityID, func(id int64) bool { _, ok := s.facilities[id]; return ok }},
		{e.SchoolID, func(id int64) bool { _, ok := s.schools[id]; return ok }},
		{e.CaregiverID, func(id int64) bool { _, ok := s.caregivers[id]; return ok }},
	} {
		if ref.id != nil && !ref.ok(*ref.id) {
			return 0, fmt.Errorf("case event: dangling reference %d: %w", *ref.id, sentinel.ErrInvalidState)
		}
	}
	id := s.id()
	e.ID = id
	e.CreatedAt = time.Now()
	s.events = append(s.events, e)
	return id, nil
}

// --- test support snapshots ---

func (s *InMemory) AllCounties() []domain.County {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.County, 0, len(s.counties))
	for _, c := range s.counties {
		out = append(out, c)
	}
	return out
}

func (s *InMemory) AllConstituencies() []domain.Constituency {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Constituency, 0, len(s.constituencies))
	for _, c := range s.constituencies {
		out = append(out, c)
	}
	return out
}

func (s *InMemory) AllWards() []domain.Ward {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Ward, 0, len(s.wards))
	for _, w := range s.wards {
		out = append(out, w)
	}
	return out
}

func (s *InMemory) AllOrganizations() []domain.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Organization, 0, len(s.orgs))
	for _, o := range s.orgs {
		out = append(out, o)
	}
	return out
}

func (s *InMemory) AllFacilities() []domain.Facility {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Facility, 0, len(s.facilities))
	for _, f := range s.facilities {
		out = append(out, f)
	}
	return out
}

func (s *InMemory) AllHealthWorkers() []domain.HealthWorker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.HealthWorker, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w)
	}
	return out
}

func (s *InMemory) AllSchools() []domain.School {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.School, 0, len(s.schools))
	for _, sc := range s.schools {
		out = append(out, sc)
	}
	return out
}

func (s *InMemory) AllCaregivers() []domain.Caregiver {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Caregiver, 0, len(s.caregivers))
	for _, c := range s.caregivers {
		out = append(out, c)
	}
	return out
}

func (s *InMemory) AllCaseEvents() []domain.CaseEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CaseEvent{}, s.events...)
}

func (s *InMemory) AllBeneficiaries() []domain.Beneficiary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Beneficiary, 0, len(s.beneficiaries))
	for _, b := range s.beneficiaries {
		out = append(out, b)
	}
	return out
}
