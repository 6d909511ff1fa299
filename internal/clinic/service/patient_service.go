package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/medclinic/healthapi/internal/clinic"
	"github.com/medclinic/healthapi/internal/clinic/repository"
	"github.com/medclinic/healthapi/internal/storage"
	"github.com/medclinic/healthapi/pkg/logger"
	"github.com/medclinic/healthapi/pkg/metrics"
)

// PatientRequest carries the caller-settable profile fields of a patient.
type PatientRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Gender    string `json:"gender"`
	Birthdate string `json:"birthdate"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// PatientService mirrors DoctorService for patient aggregates.
type PatientService struct {
	patients repository.PatientRepository
	blobs    storage.BlobStore
}

func NewPatientService(patients repository.PatientRepository, blobs storage.BlobStore) *PatientService {
	return &PatientService{patients: patients, blobs: blobs}
}

func (s *PatientService) AddPatient(ctx context.Context, req PatientRequest, file *Upload) (*clinic.Patient, error) {
	p := &clinic.Patient{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
		Birthdate: req.Birthdate,
		Email:     req.Email,
		Phone:     req.Phone,
	}
	if file != nil {
		url, err := uploadAvatar(ctx, s.blobs, file)
		if err != nil {
			return nil, err
		}
		p.ImageURL = url
	}
	p, err := s.patients.Save(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("save patient: %w", err)
	}
	return p, nil
}

func (s *PatientService) ReadPatients(ctx context.Context) ([]*clinic.Patient, error) {
	return s.patients.List(ctx)
}

func (s *PatientService) ReadPatient(ctx context.Context, id string) (*clinic.Patient, error) {
	p, err := s.patients.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, clinic.NotFound(clinic.KindPatient, id)
		}
		return nil, err
	}
	return p, nil
}

func (s *PatientService) UpdatePatient(ctx context.Context, id string, req PatientRequest) (*clinic.Patient, error) {
	p, err := s.ReadPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	p.FirstName = req.FirstName
	p.LastName = req.LastName
	p.Gender = req.Gender
	p.Birthdate = req.Birthdate
	p.Email = req.Email
	p.Phone = req.Phone
	p, err = s.patients.Save(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("save patient: %w", err)
	}
	return p, nil
}

func (s *PatientService) DeletePatient(ctx context.Context, id string) error {
	p, err := s.ReadPatient(ctx, id)
	if err != nil {
		return err
	}
	if p.ImageURL != "" {
		if !s.blobs.Delete(ctx, storage.KeyFromURL(p.ImageURL)) {
			return fmt.Errorf("patient %s: avatar %s could not be removed", id, p.ImageURL)
		}
	}
	return s.patients.Delete(ctx, id)
}

// UpdateAvatar follows the same replace-then-delete-old ordering as the
// doctor side; see DoctorService.UpdateAvatar.
func (s *PatientService) UpdateAvatar(ctx context.Context, id string, file *Upload) (*clinic.Patient, error) {
	p, err := s.ReadPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := uploadAvatar(ctx, s.blobs, file)
	if err != nil {
		return nil, err
	}
	if url != "" {
		old := p.ImageURL
		if old == "" || s.blobs.Delete(ctx, storage.KeyFromURL(old)) {
			p.ImageURL = url
			if p, err = s.patients.Save(ctx, p); err != nil {
				return nil, fmt.Errorf("save patient: %w", err)
			}
			return p, nil
		}
		logger.Warnf("patient %s: old avatar %s not removed, keeping it; new blob %s orphaned", id, old, url)
		metrics.OrphanedBlobs.Inc()
	}
	return p, nil
}
