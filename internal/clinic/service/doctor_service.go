package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/medclinic/healthapi/internal/clinic"
	"github.com/medclinic/healthapi/internal/clinic/repository"
	"github.com/medclinic/healthapi/internal/storage"
	"github.com/medclinic/healthapi/pkg/logger"
	"github.com/medclinic/healthapi/pkg/metrics"
)

// Upload is a decoded multipart file handed down from the handler layer.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DoctorRequest carries the caller-settable profile fields of a doctor.
type DoctorRequest struct {
	FirstName      string `json:"firstName" binding:"required"`
	LastName       string `json:"lastName" binding:"required"`
	Specialization string `json:"specialization"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
}

// DoctorService manages doctor aggregates and their avatar blobs. It never
// touches MedicalRecordIDs; that list belongs to the record services.
type DoctorService struct {
	doctors repository.DoctorRepository
	blobs   storage.BlobStore
}

func NewDoctorService(doctors repository.DoctorRepository, blobs storage.BlobStore) *DoctorService {
	return &DoctorService{doctors: doctors, blobs: blobs}
}

// AddDoctor stores the avatar first and persists the doctor with its URL.
func (s *DoctorService) AddDoctor(ctx context.Context, req DoctorRequest, file *Upload) (*clinic.Doctor, error) {
	d := &clinic.Doctor{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Specialization: req.Specialization,
		Email:          req.Email,
		Phone:          req.Phone,
	}
	if file != nil {
		url, err := uploadAvatar(ctx, s.blobs, file)
		if err != nil {
			return nil, err
		}
		d.ImageURL = url
	}
	d, err := s.doctors.Save(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("save doctor: %w", err)
	}
	return d, nil
}

// ReadDoctors returns all doctors.
func (s *DoctorService) ReadDoctors(ctx context.Context) ([]*clinic.Doctor, error) {
	return s.doctors.List(ctx)
}

// ReadDoctor returns the doctor by id.
func (s *DoctorService) ReadDoctor(ctx context.Context, id string) (*clinic.Doctor, error) {
	d, err := s.doctors.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, clinic.NotFound(clinic.KindDoctor, id)
		}
		return nil, err
	}
	return d, nil
}

// UpdateDoctor replaces the profile fields. Avatar and record links are
// untouched.
func (s *DoctorService) UpdateDoctor(ctx context.Context, id string, req DoctorRequest) (*clinic.Doctor, error) {
	d, err := s.ReadDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	d.FirstName = req.FirstName
	d.LastName = req.LastName
	d.Specialization = req.Specialization
	d.Email = req.Email
	d.Phone = req.Phone
	d, err = s.doctors.Save(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("save doctor: %w", err)
	}
	return d, nil
}

// DeleteDoctor removes the avatar blob and then the aggregate. When the
// avatar delete is not confirmed the doctor is kept, so the aggregate never
// outlives proof that its blob is gone.
func (s *DoctorService) DeleteDoctor(ctx context.Context, id string) error {
	d, err := s.ReadDoctor(ctx, id)
	if err != nil {
		return err
	}
	if d.ImageURL != "" {
		if !s.blobs.Delete(ctx, storage.KeyFromURL(d.ImageURL)) {
			return fmt.Errorf("doctor %s: avatar %s could not be removed", id, d.ImageURL)
		}
	}
	return s.doctors.Delete(ctx, id)
}

// UpdateAvatar uploads the new file first and deletes the old blob only
// after the upload returned a URL; the doctor keeps its old URL unless the
// old blob's removal is confirmed. A failed removal therefore orphans the
// newly uploaded blob instead of ever leaving the doctor with zero
// artifacts.
func (s *DoctorService) UpdateAvatar(ctx context.Context, id string, file *Upload) (*clinic.Doctor, error) {
	d, err := s.ReadDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := uploadAvatar(ctx, s.blobs, file)
	if err != nil {
		return nil, err
	}
	if url != "" {
		old := d.ImageURL
		if old == "" || s.blobs.Delete(ctx, storage.KeyFromURL(old)) {
			d.ImageURL = url
			if d, err = s.doctors.Save(ctx, d); err != nil {
				return nil, fmt.Errorf("save doctor: %w", err)
			}
			return d, nil
		}
		logger.Warnf("doctor %s: old avatar %s not removed, keeping it; new blob %s orphaned", id, old, url)
		metrics.OrphanedBlobs.Inc()
	}
	return d, nil
}

// uploadAvatar mints a fresh key preserving the original filename extension
// so concurrent uploads never collide.
func uploadAvatar(ctx context.Context, blobs storage.BlobStore, file *Upload) (string, error) {
	ext := ""
	if i := strings.LastIndex(file.Filename, "."); i >= 0 {
		ext = file.Filename[i:]
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := blobs.Put(ctx, uuid.NewString()+ext, contentType, file.Data)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	return url, nil
}
