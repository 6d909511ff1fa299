package repository

import (
	"context"
	"sync"

	"github.com/medclinic/healthapi/internal/clinic"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repositories used by the standalone records binary and by unit
// tests. They store copies so callers can mutate fetched aggregates without
// a Save leaking through, matching how the Mongo repositories behave.

// MemoryDoctorRepository implements DoctorRepository in process memory.
type MemoryDoctorRepository struct {
	mu    sync.RWMutex
	store map[string]clinic.Doctor
}

func NewMemoryDoctorRepository() *MemoryDoctorRepository {
	return &MemoryDoctorRepository{store: make(map[string]clinic.Doctor)}
}

func (r *MemoryDoctorRepository) Save(ctx context.Context, d *clinic.Doctor) (*clinic.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == "" {
		d.ID = primitive.NewObjectID().Hex()
	}
	if d.MedicalRecordIDs == nil {
		d.MedicalRecordIDs = []string{}
	}
	cp := *d
	cp.MedicalRecordIDs = append([]string{}, d.MedicalRecordIDs...)
	r.store[d.ID] = cp
	return d, nil
}

func (r *MemoryDoctorRepository) Get(ctx context.Context, id string) (*clinic.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := d
	cp.MedicalRecordIDs = append([]string{}, d.MedicalRecordIDs...)
	return &cp, nil
}

func (r *MemoryDoctorRepository) List(ctx context.Context) ([]*clinic.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*clinic.Doctor, 0, len(r.store))
	for _, d := range r.store {
		cp := d
		cp.MedicalRecordIDs = append([]string{}, d.MedicalRecordIDs...)
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryDoctorRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, id)
	return nil
}

// MemoryPatientRepository implements PatientRepository in process memory.
type MemoryPatientRepository struct {
	mu    sync.RWMutex
	store map[string]clinic.Patient
}

func NewMemoryPatientRepository() *MemoryPatientRepository {
	return &MemoryPatientRepository{store: make(map[string]clinic.Patient)}
}

func (r *MemoryPatientRepository) Save(ctx context.Context, p *clinic.Patient) (*clinic.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
	}
	if p.MedicalRecordIDs == nil {
		p.MedicalRecordIDs = []string{}
	}
	cp := *p
	cp.MedicalRecordIDs = append([]string{}, p.MedicalRecordIDs...)
	r.store[p.ID] = cp
	return p, nil
}

func (r *MemoryPatientRepository) Get(ctx context.Context, id string) (*clinic.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	cp.MedicalRecordIDs = append([]string{}, p.MedicalRecordIDs...)
	return &cp, nil
}

func (r *MemoryPatientRepository) List(ctx context.Context) ([]*clinic.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*clinic.Patient, 0, len(r.store))
	for _, p := range r.store {
		cp := p
		cp.MedicalRecordIDs = append([]string{}, p.MedicalRecordIDs...)
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryPatientRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, id)
	return nil
}

// MemoryRecordRepository implements RecordRepository in process memory.
type MemoryRecordRepository struct {
	mu    sync.RWMutex
	store map[string]clinic.MedicalRecord
}

func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{store: make(map[string]clinic.MedicalRecord)}
}

func (r *MemoryRecordRepository) Save(ctx context.Context, rec *clinic.MedicalRecord) (*clinic.MedicalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == "" {
		rec.ID = primitive.NewObjectID().Hex()
	}
	r.store[rec.ID] = *rec
	return rec, nil
}

func (r *MemoryRecordRepository) Get(ctx context.Context, id string) (*clinic.MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (r *MemoryRecordRepository) List(ctx context.Context) ([]*clinic.MedicalRecord, error) {
	return r.filter(func(clinic.MedicalRecord) bool { return true }), nil
}

func (r *MemoryRecordRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, id)
	return nil
}

func (r *MemoryRecordRepository) FindByDoctorID(ctx context.Context, doctorID string) ([]*clinic.MedicalRecord, error) {
	return r.filter(func(rec clinic.MedicalRecord) bool { return rec.DoctorID == doctorID }), nil
}

func (r *MemoryRecordRepository) FindByPatientID(ctx context.Context, patientID string) ([]*clinic.MedicalRecord, error) {
	return r.filter(func(rec clinic.MedicalRecord) bool { return rec.PatientID == patientID }), nil
}

func (r *MemoryRecordRepository) filter(keep func(clinic.MedicalRecord) bool) []*clinic.MedicalRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*clinic.MedicalRecord{}
	for _, rec := range r.store {
		if keep(rec) {
			cp := rec
			out = append(out, &cp)
		}
	}
	return out
}
