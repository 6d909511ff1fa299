package service

import (
	"context"
	"strings"
	"testing"

	"github.com/medclinic/healthapi/internal/clinic"
	"github.com/medclinic/healthapi/internal/clinic/repository"
	"github.com/medclinic/healthapi/internal/storage"
	"github.com/stretchr/testify/require"
)

func newDoctorService(t *testing.T) (*DoctorService, *repository.MemoryDoctorRepository, *flakyBlobStore) {
	t.Helper()
	doctors := repository.NewMemoryDoctorRepository()
	blobs := &flakyBlobStore{MemoryStorage: storage.NewMemoryStorage()}
	return NewDoctorService(doctors, blobs), doctors, blobs
}

func pngUpload(name string) *Upload {
	return &Upload{Filename: name, ContentType: "image/png", Data: []byte("png-bytes-" + name)}
}

func TestAddDoctorStoresAvatar(t *testing.T) {
	svc, _, blobs := newDoctorService(t)
	ctx := context.Background()

	d, err := svc.AddDoctor(ctx, DoctorRequest{FirstName: "Olena", LastName: "Shevchenko"}, pngUpload("face.png"))
	require.NoError(t, err)
	require.NotEmpty(t, d.ID)
	require.NotEmpty(t, d.ImageURL)
	require.True(t, strings.HasSuffix(d.ImageURL, ".png"))

	data, ok := blobs.Get(d.ImageURL)
	require.True(t, ok)
	require.Equal(t, []byte("png-bytes-face.png"), data)
}

func TestAddDoctorWithoutAvatar(t *testing.T) {
	svc, _, blobs := newDoctorService(t)

	d, err := svc.AddDoctor(context.Background(), DoctorRequest{FirstName: "Olena", LastName: "Shevchenko"}, nil)
	require.NoError(t, err)
	require.Empty(t, d.ImageURL)
	require.Equal(t, 0, blobs.Len())
}

func TestUpdateDoctorKeepsAvatarAndLinks(t *testing.T) {
	svc, doctors, _ := newDoctorService(t)
	ctx := context.Background()

	d, err := svc.AddDoctor(ctx, DoctorRequest{FirstName: "Olena", LastName: "Shevchenko"}, pngUpload("face.png"))
	require.NoError(t, err)

	// a record service linked a record in the meantime
	stored, err := doctors.Get(ctx, d.ID)
	require.NoError(t, err)
	stored.MedicalRecordIDs = append(stored.MedicalRecordIDs, "r1")
	_, err = doctors.Save(ctx, stored)
	require.NoError(t, err)

	got, err := svc.UpdateDoctor(ctx, d.ID, DoctorRequest{FirstName: "Olena", LastName: "Kovalenko", Specialization: "Cardiologist"})
	require.NoError(t, err)
	require.Equal(t, "Kovalenko", got.LastName)
	require.Equal(t, d.ImageURL, got.ImageURL)
	require.Equal(t, []string{"r1"}, got.MedicalRecordIDs)
}

func TestUpdateAvatarReplacesOldBlob(t *testing.T) {
	svc, _, blobs := newDoctorService(t)
	ctx := context.Background()

	d, err := svc.AddDoctor(ctx, DoctorRequest{FirstName: "Olena", LastName: "Shevchenko"}, pngUpload("old.png"))
	require.NoError(t, err)
	oldURL := d.ImageURL

	got, err := svc.UpdateAvatar(ctx, d.ID, pngUpload("new.png"))
	require.NoError(t, err)
	require.NotEqual(t, oldURL, got.ImageURL)

	_, ok := blobs.Get(oldURL)
	require.False(t, ok)
	_, ok = blobs.Get(got.ImageURL)
	require.True(t, ok)
	require.Equal(t, 1, blobs.Len())
}

func TestUpdateAvatarKeepsOldURLWhenDeleteFails(t *testing.T) {
	svc, doctors, blobs := newDoctorService(t)
	ctx := context.Background()

	d, err := svc.AddDoctor(ctx, DoctorRequest{FirstName: "Olena", LastName: "Shevchenko"}, pngUpload("old.png"))
	require.NoError(t, err)
	oldURL := d.ImageURL

	blobs.failDelete = true
	got, err := svc.UpdateAvatar(ctx, d.ID, pngUpload("new.png"))
	require.NoError(t, err)
	// the aggregate keeps its old URL; the freshly uploaded blob is orphaned
	require.Equal(t, oldURL, got.ImageURL)
	require.Equal(t, 2, blobs.Len())

	stored, err := doctors.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, oldURL, stored.ImageURL)
}

func TestUpdateAvatarUploadFailure(t *testing.T) {
	svc, doctors, blobs := newDoctorService(t)
	ctx := context.Background()

	d, err := svc.AddDoctor(ctx, DoctorRequest{FirstName: "Olena", LastName: "Shevchenko"}, pngUpload("old.png"))
	require.NoError(t, err)

	blobs.failPut = true
	_, err = svc.UpdateAvatar(ctx, d.ID, pngUpload("new.png"))
	require.ErrorIs(t, err, storage.ErrUploadFailed)

	stored, err := doctors.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, d.ImageURL, stored.ImageURL)
}

func TestDeleteDoctorRemovesAvatar(t *testing.T) {
	svc, doctors, blobs := newDoctorService(t)
	ctx := context.Background()

	d, err := svc.AddDoctor(ctx, DoctorRequest{FirstName: "Olena", LastName: "Shevchenko"}, pngUpload("face.png"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDoctor(ctx, d.ID))
	require.Equal(t, 0, blobs.Len())

	_, err = doctors.Get(ctx, d.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteDoctorKeptWhenAvatarDeleteFails(t *testing.T) {
	svc, doctors, blobs := newDoctorService(t)
	ctx := context.Background()

	d, err := svc.AddDoctor(ctx, DoctorRequest{FirstName: "Olena", LastName: "Shevchenko"}, pngUpload("face.png"))
	require.NoError(t, err)

	blobs.failDelete = true
	err = svc.DeleteDoctor(ctx, d.ID)
	require.Error(t, err)

	_, err = doctors.Get(ctx, d.ID)
	require.NoError(t, err)
}

func TestReadDoctorNotFound(t *testing.T) {
	svc, _, _ := newDoctorService(t)

	_, err := svc.ReadDoctor(context.Background(), "missing")
	var nf *clinic.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, clinic.KindDoctor, nf.Kind)
}
