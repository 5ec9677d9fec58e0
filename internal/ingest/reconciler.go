package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"jali/internal/domain"
	"jali/internal/normalize"
	"jali/internal/resolve"
)

// ResolvedRecord is one fully-resolved input row, ready for the fact insert.
// Event.BeneficiaryID is filled in by the committer after the beneficiary
// row exists.
type ResolvedRecord struct {
	Beneficiary domain.Beneficiary
	Event       domain.CaseEvent
}

// Reconciler turns one raw Row into a ResolvedRecord. Resolution order
// matters: the ward id feeds the organization, the organization feeds the
// health worker, and so on down the chain.
type Reconciler struct {
	resolver *resolve.Resolver
	runID    uuid.UUID
}

func NewReconciler(resolver *resolve.Resolver, runID uuid.UUID) *Reconciler {
	return &Reconciler{resolver: resolver, runID: runID}
}

// Reconcile resolves the row's references and normalizes its scalars. An
// unresolvable reference becomes a nil foreign key, never an error; the
// error return carries only infrastructure failures, which the committer
// handles at the row boundary.
func (r *Reconciler) Reconcile(ctx context.Context, row Row) (ResolvedRecord, error) {
	wardName, _ := normalize.Text(row.Get(FieldWard))
	constituency, _ := normalize.Text(row.Get(FieldConstituency))
	county, _ := normalize.Text(row.Get(FieldCounty))
	wardID, wardOK, err := r.resolver.Ward(ctx,
		resolve.ParseExplicitID(row.Get(FieldWardID)), wardName, constituency, county)
	if err != nil {
		return ResolvedRecord{}, err
	}
	var ward *int64
	if wardOK {
		ward = &wardID
	}

	orgName, _ := normalize.Text(row.Get(FieldCBO))
	orgID, orgOK, err := r.resolver.Organization(ctx,
		resolve.ParseExplicitID(row.Get(FieldCBOID)), orgName, ward)
	if err != nil {
		return ResolvedRecord{}, err
	}
	var org *int64
	if orgOK {
		org = &orgID
	}

	chwName, _ := normalize.Text(row.Get(FieldCHVNames))
	chwID, chwOK, err := r.resolver.HealthWorker(ctx,
		resolve.ParseExplicitID(row.Get(FieldCHVID)), chwName, ward, org)
	if err != nil {
		return ResolvedRecord{}, err
	}
	var chw *int64
	if chwOK {
		chw = &chwID
	}

	facilityName, _ := normalize.Text(row.Get(FieldFacility))
	mflCode, _ := normalize.Text(row.Get(FieldFacilityMFLCode))
	facilityID, facilityOK, err := r.resolver.Facility(ctx,
		resolve.ParseExplicitID(row.Get(FieldFacilityID)), mflCode, facilityName, ward)
	if err != nil {
		return ResolvedRecord{}, err
	}
	var facility *int64
	if facilityOK {
		facility = &facilityID
	}

	schoolName, _ := normalize.Text(row.Get(FieldSchoolName))
	var schoolLevelText *string
	if level, ok := normalize.SchoolLevel(row.Get(FieldSchoolLevel)); ok {
		s := string(level)
		schoolLevelText = &s
	}
	schoolID, schoolOK, err := r.resolver.School(ctx,
		resolve.ParseExplicitID(row.Get(FieldSchoolID)), schoolName, schoolLevelText, ward)
	if err != nil {
		return ResolvedRecord{}, err
	}
	var school *int64
	if schoolOK {
		school = &schoolID
	}

	caregiverID, caregiverOK, err := r.resolver.Caregiver(ctx, r.caregiverFromRow(row, ward))
	if err != nil {
		return ResolvedRecord{}, err
	}
	var caregiver *int64
	if caregiverOK {
		caregiver = &caregiverID
	}

	beneficiaryName, _ := normalize.Text(row.Get(FieldOVCNames))
	beneficiary := domain.Beneficiary{
		Name:        beneficiaryName,
		Gender:      normalize.Gender(row.Get(FieldGender)),
		DOB:         optionalDate(row.Get(FieldDOB)),
		BirthCertNo: optionalText(row.Get(FieldBCertNumber)),
		NCPWDNo:     optionalText(row.Get(FieldNCPWDNumber)),
		Disability:  optionalText(row.Get(FieldOVCDisability)),
		HIVStatus:   normalize.HIVStatus(row.Get(FieldOVCHIVStatus)),
	}

	event := domain.CaseEvent{
		ImportRunID:    r.runID,
		SourceRow:      row.Number,
		WardID:         ward,
		OrganizationID: org,
		HealthWorkerID: chw,
		FacilityID:     facility,
		SchoolID:       school,
		CaregiverID:    caregiver,

		Household:    optionalText(row.Get(FieldHousehold)),
		ARTStatus:    optionalText(row.Get(FieldARTStatus)),
		CCCNumber:    optionalText(row.Get(FieldCCCNumber)),
		ViralLoad:    optionalText(row.Get(FieldViralLoad)),
		Immunization: optionalText(row.Get(FieldImmunization)),
		Eligibility:  optionalText(row.Get(FieldEligibility)),
		ExitStatus:   optionalText(row.Get(FieldExitStatus)),
		ExitReason:   optionalText(row.Get(FieldExitReason)),

		DateOfEvent:      optionalDate(row.Get(FieldDateOfEvent)),
		DateOfLinkage:    optionalDate(row.Get(FieldDateOfLinkage)),
		RegistrationDate: optionalDate(row.Get(FieldRegistrationDate)),
		ExitDate:         optionalDate(row.Get(FieldExitDate)),
	}
	if months, ok := normalize.Int(row.Get(FieldDurationOnART)); ok {
		event.DurationOnARTMos = &months
	}
	if level, ok := normalize.SchoolLevel(row.Get(FieldSchoolLevel)); ok {
		event.SchoolLevel = &level
	}

	return ResolvedRecord{Beneficiary: beneficiary, Event: event}, nil
}

func (r *Reconciler) caregiverFromRow(row Row, ward *int64) domain.Caregiver {
	name, _ := normalize.Text(row.Get(FieldCaregiverNames))
	return domain.Caregiver{
		Name:       name,
		NationalID: optionalText(row.Get(FieldCaregiverNationalID)),
		Phone:      optionalText(row.Get(FieldPhone)),
		Gender:     normalize.Gender(row.Get(FieldCaregiverGender)),
		DOB:        optionalDate(row.Get(FieldCaregiverDOB)),
		HIVStatus:  normalize.HIVStatus(row.Get(FieldCaregiverHIVStatus)),
		Type:       optionalText(row.Get(FieldCaregiverType)),
		WardID:     ward,
	}
}

func optionalText(raw string) *string {
	if v, ok := normalize.Text(raw); ok {
		return &v
	}
	return nil
}

func optionalDate(raw string) *time.Time {
	if v, ok := normalize.Date(raw); ok {
		return &v
	}
	return nil
}
