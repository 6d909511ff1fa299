package repository

import (
	"context"
	"errors"

	"github.com/medclinic/healthapi/internal/clinic"
)

// ErrNotFound is returned by Get when no aggregate exists for the id.
var ErrNotFound = errors.New("not found")

// DoctorRepository defines keyed persistence for the doctors collection.
// Save assigns an id when the aggregate has none. Delete is idempotent.
type DoctorRepository interface {
	Save(ctx context.Context, d *clinic.Doctor) (*clinic.Doctor, error)
	Get(ctx context.Context, id string) (*clinic.Doctor, error)
	List(ctx context.Context) ([]*clinic.Doctor, error)
	Delete(ctx context.Context, id string) error
}

// PatientRepository defines keyed persistence for the patients collection.
type PatientRepository interface {
	Save(ctx context.Context, p *clinic.Patient) (*clinic.Patient, error)
	Get(ctx context.Context, id string) (*clinic.Patient, error)
	List(ctx context.Context) ([]*clinic.Patient, error)
	Delete(ctx context.Context, id string) error
}

// RecordRepository defines keyed persistence for medical records plus the
// equality-keyed owner lookups the listing endpoints use.
type RecordRepository interface {
	Save(ctx context.Context, r *clinic.MedicalRecord) (*clinic.MedicalRecord, error)
	Get(ctx context.Context, id string) (*clinic.MedicalRecord, error)
	List(ctx context.Context) ([]*clinic.MedicalRecord, error)
	Delete(ctx context.Context, id string) error
	FindByDoctorID(ctx context.Context, doctorID string) ([]*clinic.MedicalRecord, error)
	FindByPatientID(ctx context.Context, patientID string) ([]*clinic.MedicalRecord, error)
}
