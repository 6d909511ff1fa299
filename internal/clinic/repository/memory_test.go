package repository

import (
	"context"
	"testing"
	"time"

	"github.com/medclinic/healthapi/internal/clinic"
	"github.com/stretchr/testify/require"
)

func TestMemoryDoctorRepository(t *testing.T) {
	r := NewMemoryDoctorRepository()
	ctx := context.Background()

	d, err := r.Save(ctx, &clinic.Doctor{FirstName: "Olena", LastName: "Shevchenko"})
	require.NoError(t, err)
	require.NotEmpty(t, d.ID)
	require.NotNil(t, d.MedicalRecordIDs)

	got, err := r.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "Olena", got.FirstName)

	// mutating a fetched aggregate must not leak into the store before Save
	got.MedicalRecordIDs = append(got.MedicalRecordIDs, "r1")
	again, err := r.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Empty(t, again.MedicalRecordIDs)

	_, err = r.Save(ctx, got)
	require.NoError(t, err)
	again, err = r.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"r1"}, again.MedicalRecordIDs)

	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, r.Delete(ctx, d.ID))
	_, err = r.Get(ctx, d.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// deleting an absent aggregate is not an error
	require.NoError(t, r.Delete(ctx, d.ID))
}

func TestMemoryPatientRepository(t *testing.T) {
	r := NewMemoryPatientRepository()
	ctx := context.Background()

	p, err := r.Save(ctx, &clinic.Patient{FirstName: "Ivan", LastName: "Koval"})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)

	_, err = r.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Koval", got.LastName)
}

func TestMemoryRecordRepositoryFind(t *testing.T) {
	r := NewMemoryRecordRepository()
	ctx := context.Background()

	date := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	r1, err := r.Save(ctx, &clinic.MedicalRecord{Date: date, Description: "Flu", DoctorID: "d1", PatientID: "p1"})
	require.NoError(t, err)
	_, err = r.Save(ctx, &clinic.MedicalRecord{Date: date, Description: "Checkup", DoctorID: "d2", PatientID: "p1"})
	require.NoError(t, err)

	byDoctor, err := r.FindByDoctorID(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, byDoctor, 1)
	require.Equal(t, r1.ID, byDoctor[0].ID)

	byPatient, err := r.FindByPatientID(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, byPatient, 2)

	none, err := r.FindByDoctorID(ctx, "d9")
	require.NoError(t, err)
	require.Empty(t, none)

	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestMemoryRecordRepositorySaveKeepsID(t *testing.T) {
	r := NewMemoryRecordRepository()
	ctx := context.Background()

	rec, err := r.Save(ctx, &clinic.MedicalRecord{Description: "Flu"})
	require.NoError(t, err)
	id := rec.ID

	rec.Description = "Flu, revised"
	saved, err := r.Save(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, id, saved.ID)

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Flu, revised", got.Description)

	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
