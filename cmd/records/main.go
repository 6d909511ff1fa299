package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medclinic/healthapi/internal/clinic/handler"
	"github.com/medclinic/healthapi/internal/clinic/links"
	"github.com/medclinic/healthapi/internal/clinic/repository"
	"github.com/medclinic/healthapi/internal/clinic/service"
	"github.com/medclinic/healthapi/internal/database"
	"github.com/medclinic/healthapi/internal/storage"
)

// Standalone clinic API for local development: no auth, no Redis, and a
// memory fallback for both Mongo and the blob store.
func main() {
	port := os.Getenv("RECORDS_SERVICE_PORT")
	if port == "" {
		port = "5010"
	}

	r := gin.New()
	r.Use(gin.Recovery())

	var doctorRepo repository.DoctorRepository
	var patientRepo repository.PatientRepository
	var recordRepo repository.RecordRepository

	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI != "" {
		client, err := database.ConnectMongo(context.Background(), mongoURI, 10*time.Second)
		if err != nil {
			log.Printf("warning: cannot connect to MongoDB (%v) — using memory-backed repositories", err)
		} else {
			db := client.Database(os.Getenv("MONGODB_DATABASE"))
			doctorRepo = repository.NewMongoDoctorRepository(db.Collection("doctors"))
			patientRepo = repository.NewMongoPatientRepository(db.Collection("patients"))
			recordRepo = repository.NewMongoRecordRepository(db.Collection("medical_records"))
		}
	}
	if doctorRepo == nil {
		doctorRepo = repository.NewMemoryDoctorRepository()
		patientRepo = repository.NewMemoryPatientRepository()
		recordRepo = repository.NewMemoryRecordRepository()
	}

	var blobs storage.BlobStore
	if mcfg := storage.LoadMinIOConfig(); mcfg.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(mcfg)
		if err != nil {
			log.Fatalf("minio: %v", err)
		}
		blobs = ms
	} else {
		blobs = storage.NewMemoryStorage()
	}

	registry := links.NewRegistry(doctorRepo, patientRepo)
	handler.RegisterRecordRoutes(r, service.NewRecordService(recordRepo, doctorRepo, patientRepo, registry, blobs))
	handler.RegisterDoctorRoutes(r, service.NewDoctorService(doctorRepo, blobs))
	handler.RegisterPatientRoutes(r, service.NewPatientService(patientRepo, blobs))

	log.Printf("clinic records service listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
