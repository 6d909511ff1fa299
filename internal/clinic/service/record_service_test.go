package service

import (
	"context"
	"testing"
	"time"

	"github.com/medclinic/healthapi/internal/clinic"
	"github.com/medclinic/healthapi/internal/clinic/links"
	"github.com/medclinic/healthapi/internal/clinic/repository"
	"github.com/medclinic/healthapi/internal/storage"
	"github.com/stretchr/testify/require"
)

// flakyBlobStore wraps MemoryStorage so tests can force upload and delete
// failures.
type flakyBlobStore struct {
	*storage.MemoryStorage
	failPut    bool
	failDelete bool
}

func (f *flakyBlobStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if f.failPut {
		return "", storage.ErrUploadFailed
	}
	return f.MemoryStorage.Put(ctx, key, contentType, data)
}

func (f *flakyBlobStore) Delete(ctx context.Context, keyOrURL string) bool {
	if f.failDelete {
		return false
	}
	return f.MemoryStorage.Delete(ctx, keyOrURL)
}

type recordFixture struct {
	svc      *RecordService
	records  *repository.MemoryRecordRepository
	doctors  *repository.MemoryDoctorRepository
	patients *repository.MemoryPatientRepository
	blobs    *flakyBlobStore
	doctor   *clinic.Doctor
	patient  *clinic.Patient
}

func newRecordFixture(t *testing.T) *recordFixture {
	t.Helper()
	ctx := context.Background()

	records := repository.NewMemoryRecordRepository()
	doctors := repository.NewMemoryDoctorRepository()
	patients := repository.NewMemoryPatientRepository()
	blobs := &flakyBlobStore{MemoryStorage: storage.NewMemoryStorage()}
	reg := links.NewRegistry(doctors, patients)

	d, err := doctors.Save(ctx, &clinic.Doctor{FirstName: "Olena", LastName: "Shevchenko", Specialization: "Therapist"})
	require.NoError(t, err)
	p, err := patients.Save(ctx, &clinic.Patient{FirstName: "Ivan", LastName: "Koval", Gender: "male"})
	require.NoError(t, err)

	return &recordFixture{
		svc:      NewRecordService(records, doctors, patients, reg, blobs),
		records:  records,
		doctors:  doctors,
		patients: patients,
		blobs:    blobs,
		doctor:   d,
		patient:  p,
	}
}

func fluRequest(fx *recordFixture) RecordRequest {
	return RecordRequest{
		Date:        time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
		Description: "Flu",
		DoctorID:    fx.doctor.ID,
		PatientID:   fx.patient.ID,
	}
}

func TestAddRecordLinksBothOwners(t *testing.T) {
	fx := newRecordFixture(t)
	ctx := context.Background()

	rec, err := fx.svc.AddRecord(ctx, fx.doctor.ID, fx.patient.ID, fluRequest(fx))
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.NotEmpty(t, rec.FileURL)

	d, err := fx.doctors.Get(ctx, fx.doctor.ID)
	require.NoError(t, err)
	require.Equal(t, []string{rec.ID}, d.MedicalRecordIDs)

	p, err := fx.patients.Get(ctx, fx.patient.ID)
	require.NoError(t, err)
	require.Equal(t, []string{rec.ID}, p.MedicalRecordIDs)

	content, ok := fx.blobs.Get(rec.FileURL)
	require.True(t, ok)
	require.Contains(t, string(content), "Flu")
	require.Contains(t, string(content), "2024-03-15 09:30")
}

func TestAddRecordUnknownOwnerLeavesNoTrace(t *testing.T) {
	fx := newRecordFixture(t)
	ctx := context.Background()

	req := fluRequest(fx)
	_, err := fx.svc.AddRecord(ctx, "missing", fx.patient.ID, req)
	var nf *clinic.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, clinic.KindDoctor, nf.Kind)

	_, err = fx.svc.AddRecord(ctx, fx.doctor.ID, "missing", req)
	require.ErrorAs(t, err, &nf)
	require.Equal(t, clinic.KindPatient, nf.Kind)

	recs, err := fx.records.List(ctx)
	require.NoError(t, err)
	require.Empty(t, recs)
	require.Equal(t, 0, fx.blobs.Len())
}

func TestAddRecordUploadFailureAborts(t *testing.T) {
	fx := newRecordFixture(t)
	fx.blobs.failPut = true
	ctx := context.Background()

	_, err := fx.svc.AddRecord(ctx, fx.doctor.ID, fx.patient.ID, fluRequest(fx))
	require.ErrorIs(t, err, storage.ErrUploadFailed)

	recs, err := fx.records.List(ctx)
	require.NoError(t, err)
	require.Empty(t, recs)

	d, err := fx.doctors.Get(ctx, fx.doctor.ID)
	require.NoError(t, err)
	require.Empty(t, d.MedicalRecordIDs)
}

func TestUpdateRecordRegeneratesDocument(t *testing.T) {
	fx := newRecordFixture(t)
	ctx := context.Background()

	rec, err := fx.svc.AddRecord(ctx, fx.doctor.ID, fx.patient.ID, fluRequest(fx))
	require.NoError(t, err)
	oldURL := rec.FileURL

	req := fluRequest(fx)
	req.Description = "Flu, follow-up"
	updated, err := fx.svc.UpdateRecord(ctx, rec.ID, req)
	require.NoError(t, err)
	require.NotEqual(t, oldURL, updated.FileURL)

	_, ok := fx.blobs.Get(oldURL)
	require.False(t, ok)
	content, ok := fx.blobs.Get(updated.FileURL)
	require.True(t, ok)
	require.Contains(t, string(content), "Flu, follow-up")
}

func TestUpdateRecordRelinksOwners(t *testing.T) {
	fx := newRecordFixture(t)
	ctx := context.Background()

	d2, err := fx.doctors.Save(ctx, &clinic.Doctor{FirstName: "Taras", LastName: "Bondar", Specialization: "Surgeon"})
	require.NoError(t, err)

	rec, err := fx.svc.AddRecord(ctx, fx.doctor.ID, fx.patient.ID, fluRequest(fx))
	require.NoError(t, err)

	req := fluRequest(fx)
	req.DoctorID = d2.ID
	updated, err := fx.svc.UpdateRecord(ctx, rec.ID, req)
	require.NoError(t, err)
	require.Equal(t, d2.ID, updated.DoctorID)

	d1, err := fx.doctors.Get(ctx, fx.doctor.ID)
	require.NoError(t, err)
	require.Empty(t, d1.MedicalRecordIDs)

	d2got, err := fx.doctors.Get(ctx, d2.ID)
	require.NoError(t, err)
	require.Equal(t, []string{rec.ID}, d2got.MedicalRecordIDs)

	p, err := fx.patients.Get(ctx, fx.patient.ID)
	require.NoError(t, err)
	require.Equal(t, []string{rec.ID}, p.MedicalRecordIDs)
}

func TestUpdateRecordNewOwnerMissing(t *testing.T) {
	fx := newRecordFixture(t)
	ctx := context.Background()

	rec, err := fx.svc.AddRecord(ctx, fx.doctor.ID, fx.patient.ID, fluRequest(fx))
	require.NoError(t, err)

	req := fluRequest(fx)
	req.DoctorID = "missing"
	_, err = fx.svc.UpdateRecord(ctx, rec.ID, req)
	var nf *clinic.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, clinic.KindDoctor, nf.Kind)

	// links and document untouched
	d, err := fx.doctors.Get(ctx, fx.doctor.ID)
	require.NoError(t, err)
	require.Equal(t, []string{rec.ID}, d.MedicalRecordIDs)
	_, ok := fx.blobs.Get(rec.FileURL)
	require.True(t, ok)
}

func TestUpdateRecordToleratesOrphanedOldBlob(t *testing.T) {
	fx := newRecordFixture(t)
	ctx := context.Background()

	rec, err := fx.svc.AddRecord(ctx, fx.doctor.ID, fx.patient.ID, fluRequest(fx))
	require.NoError(t, err)
	oldURL := rec.FileURL

	fx.blobs.failDelete = true
	req := fluRequest(fx)
	req.Description = "Flu, revised"
	updated, err := fx.svc.UpdateRecord(ctx, rec.ID, req)
	require.NoError(t, err)
	require.NotEqual(t, oldURL, updated.FileURL)

	// the persisted record points at the new document even though the old
	// blob could not be removed
	got, err := fx.records.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, updated.FileURL, got.FileURL)
}

func TestDeleteRecordCleansUp(t *testing.T) {
	fx := newRecordFixture(t)
	ctx := context.Background()

	rec, err := fx.svc.AddRecord(ctx, fx.doctor.ID, fx.patient.ID, fluRequest(fx))
	require.NoError(t, err)

	require.NoError(t, fx.svc.DeleteRecord(ctx, rec.ID))

	d, err := fx.doctors.Get(ctx, fx.doctor.ID)
	require.NoError(t, err)
	require.Empty(t, d.MedicalRecordIDs)
	p, err := fx.patients.Get(ctx, fx.patient.ID)
	require.NoError(t, err)
	require.Empty(t, p.MedicalRecordIDs)

	require.Equal(t, 0, fx.blobs.Len())

	_, err = fx.svc.GetRecord(ctx, rec.ID)
	var nf *clinic.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, clinic.KindRecord, nf.Kind)
}

func TestDeleteRecordSkipsVanishedOwners(t *testing.T) {
	fx := newRecordFixture(t)
	ctx := context.Background()

	rec, err := fx.svc.AddRecord(ctx, fx.doctor.ID, fx.patient.ID, fluRequest(fx))
	require.NoError(t, err)

	// the owning doctor disappears out from under the record
	require.NoError(t, fx.doctors.Delete(ctx, fx.doctor.ID))

	require.NoError(t, fx.svc.DeleteRecord(ctx, rec.ID))

	_, err = fx.records.Get(ctx, rec.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	p, err := fx.patients.Get(ctx, fx.patient.ID)
	require.NoError(t, err)
	require.Empty(t, p.MedicalRecordIDs)
}

func TestDeleteRecordToleratesBlobFailure(t *testing.T) {
	fx := newRecordFixture(t)
	ctx := context.Background()

	rec, err := fx.svc.AddRecord(ctx, fx.doctor.ID, fx.patient.ID, fluRequest(fx))
	require.NoError(t, err)

	fx.blobs.failDelete = true
	require.NoError(t, fx.svc.DeleteRecord(ctx, rec.ID))

	_, err = fx.records.Get(ctx, rec.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListByOwner(t *testing.T) {
	fx := newRecordFixture(t)
	ctx := context.Background()

	rec, err := fx.svc.AddRecord(ctx, fx.doctor.ID, fx.patient.ID, fluRequest(fx))
	require.NoError(t, err)

	byDoctor, err := fx.svc.ListByDoctor(ctx, fx.doctor.ID)
	require.NoError(t, err)
	require.Len(t, byDoctor, 1)
	require.Equal(t, rec.ID, byDoctor[0].ID)

	byPatient, err := fx.svc.ListByPatient(ctx, fx.patient.ID)
	require.NoError(t, err)
	require.Len(t, byPatient, 1)

	_, err = fx.svc.ListByDoctor(ctx, "missing")
	var nf *clinic.NotFoundError
	require.ErrorAs(t, err, &nf)
}

// End-to-end pass through the full lifecycle of one record.
func TestRecordLifecycle(t *testing.T) {
	fx := newRecordFixture(t)
	ctx := context.Background()

	d2, err := fx.doctors.Save(ctx, &clinic.Doctor{FirstName: "Taras", LastName: "Bondar"})
	require.NoError(t, err)

	rec, err := fx.svc.AddRecord(ctx, fx.doctor.ID, fx.patient.ID, fluRequest(fx))
	require.NoError(t, err)
	require.Equal(t, fx.doctor.ID, rec.DoctorID)
	require.NotEmpty(t, rec.FileURL)
	firstURL := rec.FileURL

	req := fluRequest(fx)
	req.DoctorID = d2.ID
	rec, err = fx.svc.UpdateRecord(ctx, rec.ID, req)
	require.NoError(t, err)
	require.NotEqual(t, firstURL, rec.FileURL)

	d1, _ := fx.doctors.Get(ctx, fx.doctor.ID)
	require.Empty(t, d1.MedicalRecordIDs)
	d2got, _ := fx.doctors.Get(ctx, d2.ID)
	require.Equal(t, []string{rec.ID}, d2got.MedicalRecordIDs)

	require.NoError(t, fx.svc.DeleteRecord(ctx, rec.ID))
	d2got, _ = fx.doctors.Get(ctx, d2.ID)
	require.Empty(t, d2got.MedicalRecordIDs)

	_, err = fx.svc.GetRecord(ctx, rec.ID)
	var nf *clinic.NotFoundError
	require.ErrorAs(t, err, &nf)
}
