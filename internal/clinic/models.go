package clinic

import (
	"fmt"
	"time"
)

// Doctor is a clinic doctor aggregate. MedicalRecordIDs holds the ids of the
// medical records whose DoctorID points back at this doctor; the record
// services are the only writers of that list.
type Doctor struct {
	ID               string   `bson:"_id,omitempty" json:"id"`
	FirstName        string   `bson:"first_name" json:"firstName"`
	LastName         string   `bson:"last_name" json:"lastName"`
	Specialization   string   `bson:"specialization" json:"specialization"`
	ImageURL         string   `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	Email            string   `bson:"email" json:"email"`
	Phone            string   `bson:"phone" json:"phone"`
	MedicalRecordIDs []string `bson:"medical_record_ids" json:"medicalRecordIds"`
}

// Patient mirrors Doctor for the patient side of a record.
type Patient struct {
	ID               string   `bson:"_id,omitempty" json:"id"`
	FirstName        string   `bson:"first_name" json:"firstName"`
	LastName         string   `bson:"last_name" json:"lastName"`
	Gender           string   `bson:"gender" json:"gender"`
	Birthdate        string   `bson:"birthdate" json:"birthdate"`
	ImageURL         string   `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	Email            string   `bson:"email" json:"email"`
	Phone            string   `bson:"phone" json:"phone"`
	MedicalRecordIDs []string `bson:"medical_record_ids" json:"medicalRecordIds"`
}

// MedicalRecord links a doctor and a patient to one visit. FileURL names the
// rendered document in the blob store; it is empty only while a create is in
// flight.
type MedicalRecord struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Date        time.Time `bson:"date" json:"date"`
	Description string    `bson:"description" json:"description"`
	PatientID   string    `bson:"patient_id" json:"patientId"`
	DoctorID    string    `bson:"doctor_id" json:"doctorId"`
	FileURL     string    `bson:"file_url,omitempty" json:"fileUrl,omitempty"`
}

// Clinic is the fixed identity block embedded in every rendered document.
// Not persisted.
type Clinic struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

// Aggregate kinds used in error reporting and link operations.
const (
	KindDoctor  = "doctor"
	KindPatient = "patient"
	KindRecord  = "medical record"
)

// NotFoundError reports a missing aggregate by kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found id:%s", e.Kind, e.ID)
}

// NotFound is a convenience constructor.
func NotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}
