package render

import (
	"strings"

	"github.com/medclinic/healthapi/internal/clinic"
)

// ContentType of rendered medical record documents.
const ContentType = "text/html"

// KeySuffix is the blob key suffix for rendered documents. Artifacts within
// the same suffix family replace each other on update.
const KeySuffix = ".html"

// DateLayout fixes how visit dates appear in rendered documents.
const DateLayout = "2006-01-02 15:04"

// defaultClinic is the fixed identity block embedded in every document.
var defaultClinic = clinic.Clinic{
	Name:    "MedClinic",
	Address: "st. Medichna 12, Kiev, 01001",
	Phone:   "+380 44 123 4567",
	Email:   "info@medclinic.ua",
}

// Document renders the medical record document from the record and the
// owner snapshots. Pure and deterministic: identical inputs produce
// byte-identical output, and empty optional fields render as empty values
// rather than failing.
func Document(rec *clinic.MedicalRecord, doctor *clinic.Doctor, patient *clinic.Patient) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Medical Record</title>")
	b.WriteString("<style>")
	b.WriteString("body { font-family: Arial, sans-serif; margin: 20px; padding: 20px; background-color: #f9f9f9; }")
	b.WriteString("h1, h2 { color: #333; }")
	b.WriteString(".section { margin-bottom: 20px; padding: 10px; background-color: #fff; border: 1px solid #ddd; border-radius: 5px; }")
	b.WriteString(".section h2 { margin-top: 0; }")
	b.WriteString(".info p { margin: 5px 0; }")
	b.WriteString(".info strong { display: inline-block; width: 150px; }")
	b.WriteString("</style>")
	b.WriteString("</head><body>")

	b.WriteString("<div class=\"section\"><h1>Medical Record</h1></div>")

	section(&b, "Clinic Information", [][2]string{
		{"Name", defaultClinic.Name},
		{"Address", defaultClinic.Address},
		{"Phone", defaultClinic.Phone},
		{"Email", defaultClinic.Email},
	})

	section(&b, "Patient Information", [][2]string{
		{"Name", patient.FirstName + " " + patient.LastName},
		{"Gender", patient.Gender},
		{"Birthdate", patient.Birthdate},
		{"Email", patient.Email},
		{"Phone", patient.Phone},
	})

	section(&b, "Doctor Information", [][2]string{
		{"Name", doctor.FirstName + " " + doctor.LastName},
		{"Specialization", doctor.Specialization},
		{"Email", doctor.Email},
		{"Phone", doctor.Phone},
	})

	section(&b, "Medical Record Details", [][2]string{
		{"Date", rec.Date.Format(DateLayout)},
		{"Description", rec.Description},
	})

	b.WriteString("</body></html>")
	return b.String()
}

func section(b *strings.Builder, title string, rows [][2]string) {
	b.WriteString("<div class=\"section\">")
	b.WriteString("<h2>" + title + "</h2>")
	b.WriteString("<div class=\"info\">")
	for _, row := range rows {
		b.WriteString("<p><strong>" + row[0] + ":</strong> " + row[1] + "</p>")
	}
	b.WriteString("</div></div>")
}
