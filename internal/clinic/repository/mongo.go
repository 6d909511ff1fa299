package repository

import (
	"context"

	"github.com/medclinic/healthapi/internal/clinic"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo-backed repositories. Ids are ObjectID hex strings minted on first
// save so the same id shape works for the memory repositories and in URLs.
// No multi-document transactions are used anywhere; each Save/Delete touches
// exactly one document.

var replaceUpsert = options.Replace().SetUpsert(true)

// MongoDoctorRepository implements DoctorRepository on a Mongo collection.
type MongoDoctorRepository struct {
	col *mongo.Collection
}

func NewMongoDoctorRepository(col *mongo.Collection) *MongoDoctorRepository {
	return &MongoDoctorRepository{col: col}
}

func (r *MongoDoctorRepository) Save(ctx context.Context, d *clinic.Doctor) (*clinic.Doctor, error) {
	if d.MedicalRecordIDs == nil {
		d.MedicalRecordIDs = []string{}
	}
	if d.ID == "" {
		d.ID = primitive.NewObjectID().Hex()
		if _, err := r.col.InsertOne(ctx, d); err != nil {
			return nil, err
		}
		return d, nil
	}
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": d.ID}, d, replaceUpsert); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *MongoDoctorRepository) Get(ctx context.Context, id string) (*clinic.Doctor, error) {
	var d clinic.Doctor
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *MongoDoctorRepository) List(ctx context.Context) ([]*clinic.Doctor, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*clinic.Doctor{}
	for cur.Next(ctx) {
		var d clinic.Doctor
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

func (r *MongoDoctorRepository) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// MongoPatientRepository implements PatientRepository on a Mongo collection.
type MongoPatientRepository struct {
	col *mongo.Collection
}

func NewMongoPatientRepository(col *mongo.Collection) *MongoPatientRepository {
	return &MongoPatientRepository{col: col}
}

func (r *MongoPatientRepository) Save(ctx context.Context, p *clinic.Patient) (*clinic.Patient, error) {
	if p.MedicalRecordIDs == nil {
		p.MedicalRecordIDs = []string{}
	}
	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
		if _, err := r.col.InsertOne(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, replaceUpsert); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *MongoPatientRepository) Get(ctx context.Context, id string) (*clinic.Patient, error) {
	var p clinic.Patient
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *MongoPatientRepository) List(ctx context.Context) ([]*clinic.Patient, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*clinic.Patient{}
	for cur.Next(ctx) {
		var p clinic.Patient
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, cur.Err()
}

func (r *MongoPatientRepository) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// MongoRecordRepository implements RecordRepository on a Mongo collection.
// An index on doctor_id and patient_id keeps the owner lookups cheap.
type MongoRecordRepository struct {
	col *mongo.Collection
}

func NewMongoRecordRepository(col *mongo.Collection) *MongoRecordRepository {
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "doctor_id", Value: 1}}},
		{Keys: bson.D{{Key: "patient_id", Value: 1}}},
	}
	col.Indexes().CreateMany(context.Background(), idx)
	return &MongoRecordRepository{col: col}
}

func (r *MongoRecordRepository) Save(ctx context.Context, rec *clinic.MedicalRecord) (*clinic.MedicalRecord, error) {
	if rec.ID == "" {
		rec.ID = primitive.NewObjectID().Hex()
		if _, err := r.col.InsertOne(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec, replaceUpsert); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *MongoRecordRepository) Get(ctx context.Context, id string) (*clinic.MedicalRecord, error) {
	var rec clinic.MedicalRecord
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *MongoRecordRepository) List(ctx context.Context) ([]*clinic.MedicalRecord, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoRecordRepository) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoRecordRepository) FindByDoctorID(ctx context.Context, doctorID string) ([]*clinic.MedicalRecord, error) {
	return r.find(ctx, bson.M{"doctor_id": doctorID})
}

func (r *MongoRecordRepository) FindByPatientID(ctx context.Context, patientID string) ([]*clinic.MedicalRecord, error) {
	return r.find(ctx, bson.M{"patient_id": patientID})
}

func (r *MongoRecordRepository) find(ctx context.Context, filter bson.M) ([]*clinic.MedicalRecord, error) {
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*clinic.MedicalRecord{}
	for cur.Next(ctx) {
		var rec clinic.MedicalRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, cur.Err()
}
