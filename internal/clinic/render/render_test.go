package render

import (
	"testing"
	"time"

	"github.com/medclinic/healthapi/internal/clinic"
	"github.com/stretchr/testify/require"
)

func sampleInputs() (*clinic.MedicalRecord, *clinic.Doctor, *clinic.Patient) {
	rec := &clinic.MedicalRecord{
		ID:          "r1",
		Date:        time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
		Description: "Seasonal flu, prescribed rest",
		DoctorID:    "d1",
		PatientID:   "p1",
	}
	doc := &clinic.Doctor{
		ID: "d1", FirstName: "Olena", LastName: "Shevchenko",
		Specialization: "Therapist", Email: "olena@medclinic.ua", Phone: "+380 44 111 1111",
	}
	pat := &clinic.Patient{
		ID: "p1", FirstName: "Ivan", LastName: "Koval",
		Gender: "male", Birthdate: "1990-06-01", Email: "ivan@example.com", Phone: "+380 44 222 2222",
	}
	return rec, doc, pat
}

func TestDocumentContainsRecordFields(t *testing.T) {
	rec, doc, pat := sampleInputs()
	out := Document(rec, doc, pat)

	require.Contains(t, out, "Seasonal flu, prescribed rest")
	require.Contains(t, out, "2024-03-15 09:30")
	require.Contains(t, out, "Olena Shevchenko")
	require.Contains(t, out, "Therapist")
	require.Contains(t, out, "Ivan Koval")
	require.Contains(t, out, "1990-06-01")
	// fixed clinic block appears in every document
	require.Contains(t, out, "MedClinic")
	require.Contains(t, out, "st. Medichna 12, Kiev, 01001")
}

func TestDocumentDeterministic(t *testing.T) {
	rec, doc, pat := sampleInputs()
	first := Document(rec, doc, pat)
	second := Document(rec, doc, pat)
	require.Equal(t, first, second)
}

func TestDocumentEmptyOptionals(t *testing.T) {
	rec, doc, pat := sampleInputs()
	doc.Specialization = ""
	doc.Email = ""
	pat.Gender = ""
	pat.Birthdate = ""

	out := Document(rec, doc, pat)
	require.Contains(t, out, "<p><strong>Specialization:</strong> </p>")
	require.Contains(t, out, "<p><strong>Gender:</strong> </p>")
	require.Contains(t, out, "</body></html>")
}

func TestDocumentWellFormedShell(t *testing.T) {
	rec, doc, pat := sampleInputs()
	out := Document(rec, doc, pat)
	require.True(t, len(out) > 0)
	require.Contains(t, out, "<html>")
	require.Contains(t, out, "<h1>Medical Record</h1>")
	require.Contains(t, out, "<h2>Clinic Information</h2>")
	require.Contains(t, out, "<h2>Patient Information</h2>")
	require.Contains(t, out, "<h2>Doctor Information</h2>")
	require.Contains(t, out, "<h2>Medical Record Details</h2>")
}
