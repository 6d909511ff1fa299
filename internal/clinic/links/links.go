// Package links maintains the owner id-set invariant: a doctor's and a
// patient's medical_record_ids contain exactly the ids of the records that
// reference them. The record services are the only callers.
package links

import (
	"context"
	"errors"
	"fmt"

	"github.com/medclinic/healthapi/internal/clinic"
	"github.com/medclinic/healthapi/internal/clinic/repository"
)

// Registry exposes idempotent link/unlink primitives over the owner
// repositories. There is no cross-aggregate locking; concurrent writers to
// the same owner race at the store level (last save wins).
type Registry struct {
	doctors  repository.DoctorRepository
	patients repository.PatientRepository
}

func NewRegistry(d repository.DoctorRepository, p repository.PatientRepository) *Registry {
	return &Registry{doctors: d, patients: p}
}

// LinkDoctor adds recordID to the doctor's id-set. Adding an id that is
// already present is a no-op, so calling twice has the effect of once.
func (r *Registry) LinkDoctor(ctx context.Context, doctorID, recordID string) error {
	d, err := r.doctors.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return clinic.NotFound(clinic.KindDoctor, doctorID)
		}
		return err
	}
	if contains(d.MedicalRecordIDs, recordID) {
		return nil
	}
	d.MedicalRecordIDs = append(d.MedicalRecordIDs, recordID)
	if _, err := r.doctors.Save(ctx, d); err != nil {
		return fmt.Errorf("link doctor %s: %w", doctorID, err)
	}
	return nil
}

// UnlinkDoctor removes recordID from the doctor's id-set. Removing an
// absent id is a no-op.
func (r *Registry) UnlinkDoctor(ctx context.Context, doctorID, recordID string) error {
	d, err := r.doctors.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return clinic.NotFound(clinic.KindDoctor, doctorID)
		}
		return err
	}
	if !contains(d.MedicalRecordIDs, recordID) {
		return nil
	}
	d.MedicalRecordIDs = remove(d.MedicalRecordIDs, recordID)
	if _, err := r.doctors.Save(ctx, d); err != nil {
		return fmt.Errorf("unlink doctor %s: %w", doctorID, err)
	}
	return nil
}

// LinkPatient is the patient-side counterpart of LinkDoctor.
func (r *Registry) LinkPatient(ctx context.Context, patientID, recordID string) error {
	p, err := r.patients.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return clinic.NotFound(clinic.KindPatient, patientID)
		}
		return err
	}
	if contains(p.MedicalRecordIDs, recordID) {
		return nil
	}
	p.MedicalRecordIDs = append(p.MedicalRecordIDs, recordID)
	if _, err := r.patients.Save(ctx, p); err != nil {
		return fmt.Errorf("link patient %s: %w", patientID, err)
	}
	return nil
}

// UnlinkPatient is the patient-side counterpart of UnlinkDoctor.
func (r *Registry) UnlinkPatient(ctx context.Context, patientID, recordID string) error {
	p, err := r.patients.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return clinic.NotFound(clinic.KindPatient, patientID)
		}
		return err
	}
	if !contains(p.MedicalRecordIDs, recordID) {
		return nil
	}
	p.MedicalRecordIDs = remove(p.MedicalRecordIDs, recordID)
	if _, err := r.patients.Save(ctx, p); err != nil {
		return fmt.Errorf("unlink patient %s: %w", patientID, err)
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
