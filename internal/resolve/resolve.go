// Package resolve maps messy natural keys (names, legacy ids, codes) onto
// stable surrogate ids. Each entity type gets one resolver method with the
// same short-circuiting shape: explicit legacy id, then cached natural key,
// then a conflict-safe get-or-create against storage. Absence is an answer,
// not an error: every method returns (0, false, nil) when the row simply
// does not reference the entity, and reserves its error return for
// infrastructure failures.
package resolve

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"jali/internal/domain"
	"jali/internal/storage"
	"jali/pkg/platform/sentinel"
)

type Resolver struct {
	store storage.Store
	cache Cache
	log   *slog.Logger
}

// New builds a Resolver. cache may be nil, in which case every resolution
// goes straight to storage.
func New(store storage.Store, cache Cache, log *slog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, log: log}
}

// cached reads the cache, treating any cache failure as a miss.
func (r *Resolver) cached(ctx context.Context, key string) (int64, bool) {
	if r.cache == nil {
		return 0, false
	}
	id, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.Warn("resolver cache read failed", "key", key, "error", err)
		return 0, false
	}
	return id, ok
}

func (r *Resolver) remember(ctx context.Context, key string, id int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, id); err != nil {
		r.log.Warn("resolver cache write failed", "key", key, "error", err)
	}
}

// Ward resolves an administrative ward. Wards are lookup-only: the hierarchy
// loader owns their creation, so an unknown ward name is an absent reference,
// not a new row. The constituency and county hints narrow the match; when
// neither resolves, the name is matched globally as a degraded fallback.
func (r *Resolver) Ward(ctx context.Context, explicitID *int64, name, constituency, county string) (int64, bool, error) {
	if explicitID != nil {
		w, err := r.store.FindWardByID(ctx, *explicitID)
		if err == nil {
			return w.ID, true, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return 0, false, err
		}
	}
	if name == "" {
		return 0, false, nil
	}

	key := cacheKey("ward", constituency, name)
	if id, ok := r.cached(ctx, key); ok {
		return id, true, nil
	}

	var constituencyID int64
	if constituency != "" {
		var countyID int64
		if county != "" {
			c, err := r.store.FindCountyByName(ctx, county)
			if err == nil {
				countyID = c.ID
			} else if !errors.Is(err, sentinel.ErrNotFound) {
				return 0, false, err
			}
		}
		c, err := r.store.FindConstituencyByName(ctx, constituency, countyID)
		if err == nil {
			constituencyID = c.ID
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return 0, false, err
		}
	}

	w, err := r.store.FindWardByName(ctx, name, constituencyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	r.remember(ctx, key, w.ID)
	return w.ID, true, nil
}

// Organization resolves a community-based organization by legacy id, then by
// name with get-or-create semantics.
func (r *Resolver) Organization(ctx context.Context, explicitID *int64, name string, wardID *int64) (int64, bool, error) {
	if explicitID != nil {
		o, err := r.store.FindOrganizationByExternalID(ctx, *explicitID)
		if err == nil {
			return o.ID, true, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return 0, false, err
		}
	}
	if name == "" {
		return 0, false, nil
	}

	key := cacheKey("org", "", name)
	if id, ok := r.cached(ctx, key); ok {
		return id, true, nil
	}

	id, err := r.store.GetOrCreateOrganization(ctx, domain.Organization{
		ExternalID: explicitID,
		Name:       name,
		WardID:     wardID,
	})
	if err != nil {
		return 0, false, err
	}
	r.remember(ctx, key, id)
	return id, true, nil
}

// HealthWorker resolves a community health worker by legacy id, then by
// display name with get-or-create semantics.
func (r *Resolver) HealthWorker(ctx context.Context, explicitID *int64, name string, wardID, organizationID *int64) (int64, bool, error) {
	if explicitID != nil {
		w, err := r.store.FindHealthWorkerByExternalID(ctx, *explicitID)
		if err == nil {
			return w.ID, true, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return 0, false, err
		}
	}
	if name == "" {
		return 0, false, nil
	}

	key := cacheKey("chw", "", name)
	if id, ok := r.cached(ctx, key); ok {
		return id, true, nil
	}

	id, err := r.store.GetOrCreateHealthWorker(ctx, domain.HealthWorker{
		ExternalID:     explicitID,
		Name:           name,
		WardID:         wardID,
		OrganizationID: organizationID,
	})
	if err != nil {
		return 0, false, err
	}
	r.remember(ctx, key, id)
	return id, true, nil
}

// Facility resolves a health facility. The MFL code is the preferred natural
// key and the only one trusted enough to mint a row: a bare name can match
// an existing facility but never creates one, so a misspelled facility
// degrades to an absent reference instead of a duplicate.
func (r *Resolver) Facility(ctx context.Context, explicitID *int64, mflCode, name string, wardID *int64) (int64, bool, error) {
	if explicitID != nil {
		f, err := r.store.FindFacilityByExternalID(ctx, *explicitID)
		if err == nil {
			return f.ID, true, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return 0, false, err
		}
	}

	if mflCode != "" {
		key := cacheKey("facility", "mfl", mflCode)
		if id, ok := r.cached(ctx, key); ok {
			return id, true, nil
		}
		if name != "" {
			id, err := r.store.GetOrCreateFacility(ctx, domain.Facility{
				ExternalID: explicitID,
				Name:       name,
				MFLCode:    &mflCode,
				WardID:     wardID,
			})
			if err != nil {
				return 0, false, err
			}
			r.remember(ctx, key, id)
			return id, true, nil
		}
		f, err := r.store.FindFacilityByMFLCode(ctx, mflCode)
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		r.remember(ctx, key, f.ID)
		return f.ID, true, nil
	}

	if name == "" {
		return 0, false, nil
	}
	key := cacheKey("facility", "name", name)
	if id, ok := r.cached(ctx, key); ok {
		return id, true, nil
	}
	f, err := r.store.FindFacilityByName(ctx, name)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	r.remember(ctx, key, f.ID)
	return f.ID, true, nil
}

// School resolves a school by legacy id, then by name with get-or-create
// semantics. level, when present, is stored on first creation only.
func (r *Resolver) School(ctx context.Context, explicitID *int64, name string, level *string, wardID *int64) (int64, bool, error) {
	if explicitID != nil {
		sc, err := r.store.FindSchoolByExternalID(ctx, *explicitID)
		if err == nil {
			return sc.ID, true, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return 0, false, err
		}
	}
	if name == "" {
		return 0, false, nil
	}

	key := cacheKey("school", "", name)
	if id, ok := r.cached(ctx, key); ok {
		return id, true, nil
	}

	id, err := r.store.GetOrCreateSchool(ctx, domain.School{
		ExternalID: explicitID,
		Name:       name,
		Level:      level,
		WardID:     wardID,
	})
	if err != nil {
		return 0, false, err
	}
	r.remember(ctx, key, id)
	return id, true, nil
}

// Caregiver resolves a caregiver by national ID, then phone, then creates one
// when the row carries at least a name. A caregiver with no key and no name
// is an absent reference.
func (r *Resolver) Caregiver(ctx context.Context, c domain.Caregiver) (int64, bool, error) {
	if c.NationalID != nil {
		key := cacheKey("caregiver", "nid", *c.NationalID)
		if id, ok := r.cached(ctx, key); ok {
			return id, true, nil
		}
		existing, err := r.store.FindCaregiverByNationalID(ctx, *c.NationalID)
		if err == nil {
			r.remember(ctx, key, existing.ID)
			return existing.ID, true, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return 0, false, err
		}
	}
	if c.Phone != nil {
		key := cacheKey("caregiver", "phone", *c.Phone)
		if id, ok := r.cached(ctx, key); ok {
			return id, true, nil
		}
		existing, err := r.store.FindCaregiverByPhone(ctx, *c.Phone)
		if err == nil {
			r.remember(ctx, key, existing.ID)
			return existing.ID, true, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return 0, false, err
		}
	}
	if c.Name == "" {
		return 0, false, nil
	}

	id, err := r.store.GetOrCreateCaregiver(ctx, c)
	if err != nil {
		return 0, false, err
	}
	if c.NationalID != nil {
		r.remember(ctx, cacheKey("caregiver", "nid", *c.NationalID), id)
	}
	if c.Phone != nil {
		r.remember(ctx, cacheKey("caregiver", "phone", *c.Phone), id)
	}
	return id, true, nil
}

// ParseExplicitID interprets a raw legacy-id cell. Sources write these as
// integers, sometimes with a float suffix ("17.0"); anything else is absent.
func ParseExplicitID(raw string) *int64 {
	if raw == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) && f > 0 {
		id := int64(f)
		return &id
	}
	return nil
}
