package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medclinic/healthapi/internal/clinic"
	"github.com/medclinic/healthapi/internal/clinic/links"
	"github.com/medclinic/healthapi/internal/clinic/render"
	"github.com/medclinic/healthapi/internal/clinic/repository"
	"github.com/medclinic/healthapi/internal/storage"
	"github.com/medclinic/healthapi/pkg/logger"
	"github.com/medclinic/healthapi/pkg/metrics"
)

// RecordRequest carries the caller-settable fields of a medical record.
type RecordRequest struct {
	Date        time.Time `json:"date" binding:"required"`
	Description string    `json:"description" binding:"required"`
	PatientID   string    `json:"patientId" binding:"required"`
	DoctorID    string    `json:"doctorId" binding:"required"`
}

// RecordService coordinates the lifecycle of a medical record across the
// three aggregate stores and the blob store. None of the steps are atomic
// with each other; the operation orderings below keep the inconsistency
// window small and make partial failures detectable instead of silent.
type RecordService struct {
	records  repository.RecordRepository
	doctors  repository.DoctorRepository
	patients repository.PatientRepository
	links    *links.Registry
	blobs    storage.BlobStore
}

func NewRecordService(records repository.RecordRepository, doctors repository.DoctorRepository,
	patients repository.PatientRepository, reg *links.Registry, blobs storage.BlobStore) *RecordService {
	return &RecordService{records: records, doctors: doctors, patients: patients, links: reg, blobs: blobs}
}

// AddRecord creates a record for an existing doctor and patient. The
// document is rendered and uploaded before the record is persisted, so an
// upload failure leaves no trace; link updates come last and a failure
// there is reported rather than rolled back.
func (s *RecordService) AddRecord(ctx context.Context, doctorID, patientID string, req RecordRequest) (*clinic.MedicalRecord, error) {
	doctor, err := s.getDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	patient, err := s.getPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	rec := &clinic.MedicalRecord{
		Date:        req.Date,
		Description: req.Description,
		DoctorID:    doctor.ID,
		PatientID:   patient.ID,
	}

	content := render.Document(rec, doctor, patient)
	url, err := s.uploadDocument(ctx, content)
	if err != nil {
		return nil, err
	}

	rec.FileURL = url
	rec, err = s.records.Save(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}

	if err := s.links.LinkDoctor(ctx, doctor.ID, rec.ID); err != nil {
		return nil, fmt.Errorf("record %s created but doctor link failed: %w", rec.ID, err)
	}
	if err := s.links.LinkPatient(ctx, patient.ID, rec.ID); err != nil {
		return nil, fmt.Errorf("record %s created but patient link failed: %w", rec.ID, err)
	}

	metrics.RecordOperations.WithLabelValues("add").Inc()
	return rec, nil
}

// GetRecord returns the record by id.
func (s *RecordService) GetRecord(ctx context.Context, id string) (*clinic.MedicalRecord, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, clinic.NotFound(clinic.KindRecord, id)
		}
		return nil, err
	}
	return rec, nil
}

// ListAll returns every medical record.
func (s *RecordService) ListAll(ctx context.Context) ([]*clinic.MedicalRecord, error) {
	return s.records.List(ctx)
}

// ListByDoctor returns the records referencing doctorID. The doctor must
// exist.
func (s *RecordService) ListByDoctor(ctx context.Context, doctorID string) ([]*clinic.MedicalRecord, error) {
	if _, err := s.getDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.records.FindByDoctorID(ctx, doctorID)
}

// ListByPatient returns the records referencing patientID. The patient must
// exist.
func (s *RecordService) ListByPatient(ctx context.Context, patientID string) ([]*clinic.MedicalRecord, error) {
	if _, err := s.getPatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.records.FindByPatientID(ctx, patientID)
}

// UpdateRecord applies new fields, may re-point the record to a different
// doctor or patient, and regenerates the document. Owners are relinked
// before the document is regenerated: if regeneration fails, the id-sets
// already reflect the intended final owners and only artifact freshness is
// lost. The old blob is deleted only after the new one is confirmed, so a
// record never has zero live artifacts.
func (s *RecordService) UpdateRecord(ctx context.Context, id string, req RecordRequest) (*clinic.MedicalRecord, error) {
	existing, err := s.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	// current owners must still resolve; a miss here means the stores are
	// already inconsistent and the update must not proceed
	if _, err := s.getDoctor(ctx, existing.DoctorID); err != nil {
		return nil, err
	}
	if _, err := s.getPatient(ctx, existing.PatientID); err != nil {
		return nil, err
	}

	updated := *existing
	updated.Date = req.Date
	updated.Description = req.Description
	updated.DoctorID = req.DoctorID
	updated.PatientID = req.PatientID

	newDoctor, err := s.getDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	newPatient, err := s.getPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	if existing.DoctorID != newDoctor.ID {
		if err := s.links.UnlinkDoctor(ctx, existing.DoctorID, id); err != nil {
			return nil, err
		}
		if err := s.links.LinkDoctor(ctx, newDoctor.ID, id); err != nil {
			return nil, err
		}
	}
	if existing.PatientID != newPatient.ID {
		if err := s.links.UnlinkPatient(ctx, existing.PatientID, id); err != nil {
			return nil, err
		}
		if err := s.links.LinkPatient(ctx, newPatient.ID, id); err != nil {
			return nil, err
		}
	}

	content := render.Document(&updated, newDoctor, newPatient)
	url, err := s.uploadDocument(ctx, content)
	if err != nil {
		return nil, err
	}

	if existing.FileURL != "" {
		if !s.blobs.Delete(ctx, existing.FileURL) {
			logger.Warnf("record %s: old document %s not removed, blob orphaned", id, existing.FileURL)
			metrics.OrphanedBlobs.Inc()
		}
	}

	updated.FileURL = url
	rec, err := s.records.Save(ctx, &updated)
	if err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	metrics.RecordOperations.WithLabelValues("update").Inc()
	return rec, nil
}

// DeleteRecord removes the record, its owner links and its document. A
// vanished owner is skipped rather than aborting: the record must remain
// removable even when a doctor or patient was deleted independently. A
// failed blob delete is logged and tolerated; an orphaned blob is
// acceptable, an orphaned record is not.
func (s *RecordService) DeleteRecord(ctx context.Context, id string) error {
	rec, err := s.GetRecord(ctx, id)
	if err != nil {
		return err
	}

	var nf *clinic.NotFoundError
	if err := s.links.UnlinkDoctor(ctx, rec.DoctorID, id); err != nil {
		if !errors.As(err, &nf) {
			return err
		}
		logger.Warnf("record %s: owning doctor %s already gone, skipping unlink", id, rec.DoctorID)
	}
	if err := s.links.UnlinkPatient(ctx, rec.PatientID, id); err != nil {
		if !errors.As(err, &nf) {
			return err
		}
		logger.Warnf("record %s: owning patient %s already gone, skipping unlink", id, rec.PatientID)
	}

	if rec.FileURL != "" {
		if !s.blobs.Delete(ctx, rec.FileURL) {
			logger.Warnf("record %s: document %s not removed, blob orphaned", id, rec.FileURL)
			metrics.OrphanedBlobs.Inc()
		}
	}

	if err := s.records.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	metrics.RecordOperations.WithLabelValues("delete").Inc()
	return nil
}

func (s *RecordService) uploadDocument(ctx context.Context, content string) (string, error) {
	key := uuid.NewString() + render.KeySuffix
	url, err := s.blobs.Put(ctx, key, render.ContentType, []byte(content))
	if err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}
	return url, nil
}

func (s *RecordService) getDoctor(ctx context.Context, id string) (*clinic.Doctor, error) {
	d, err := s.doctors.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, clinic.NotFound(clinic.KindDoctor, id)
		}
		return nil, err
	}
	return d, nil
}

func (s *RecordService) getPatient(ctx context.Context, id string) (*clinic.Patient, error) {
	p, err := s.patients.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, clinic.NotFound(clinic.KindPatient, id)
		}
		return nil, err
	}
	return p, nil
}
