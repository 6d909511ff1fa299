package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medclinic/healthapi/handlers"
	"github.com/medclinic/healthapi/internal/clinic/handler"
	"github.com/medclinic/healthapi/internal/clinic/links"
	"github.com/medclinic/healthapi/internal/clinic/repository"
	"github.com/medclinic/healthapi/internal/clinic/service"
	"github.com/medclinic/healthapi/internal/config"
	"github.com/medclinic/healthapi/internal/database"
	"github.com/medclinic/healthapi/internal/oidc"
	"github.com/medclinic/healthapi/internal/sessions"
	"github.com/medclinic/healthapi/internal/storage"
	"github.com/medclinic/healthapi/internal/users"
	"github.com/medclinic/healthapi/pkg/logger"
	"github.com/medclinic/healthapi/pkg/metrics"
	"github.com/medclinic/healthapi/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "")

	r := gin.New()

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple — production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// shared runtime vars used by handlers/readiness
	var verifier middleware.Verifier
	var userSvc *users.Service
	var sessionsSvc *sessions.Service
	var blobs storage.BlobStore
	var mongoOK bool

	// Global middlewares: logging + recovery
	r.Use(gin.Logger(), gin.Recovery())

	// Connect to Redis early so the rate-limiter can use it when configured
	var importedRedis *redis.Client
	if cfg.Redis.Host != "" {
		importedRedis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password})
		if err := importedRedis.Ping(context.Background()).Err(); err == nil {
			// expose Redis client for blacklist checks (session wiring happens later)
			sessions.SetBlacklistClient(importedRedis)
			logger.Infof("Connected to Redis (early) for optional features: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		} else {
			logger.Warnf("failed to connect to Redis early (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		}
		// Optional global rate limiter (per-user when authenticated, otherwise per-IP)
		if cfg.RateLimit.Enabled {
			// use Redis-backed limiter when configured and Redis client is available
			if cfg.RateLimit.UseRedis && importedRedis != nil {
				win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
				r.Use(middleware.RedisRateLimitMiddleware(importedRedis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
			} else {
				r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
			}
		}
	}

	// Basic health endpoint
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness endpoint — return 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		deps["mongo"] = mongoOK
		if !mongoOK {
			ready = false
		}
		deps["blobstore"] = blobs != nil
		if blobs == nil {
			ready = false
		}
		deps["users"] = userSvc != nil

		// OIDC readiness: if Keycloak URL was configured we expect a verifier (or ALLOW_INSECURE_TOKEN)
		if cfg.Keycloak.URL != "" {
			deps["oidc"] = verifier != nil
			if verifier == nil {
				ready = false
			}
		} else {
			// not configured -> consider OK
			deps["oidc"] = true
		}

		// Redis readiness when used for rate-limiter or sessions
		if cfg.Redis.Host != "" && cfg.RateLimit.UseRedis {
			deps["redis"] = importedRedis != nil
			if !deps["redis"] {
				ready = false
			}
		} else {
			deps["redis"] = true
		}

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": fmt.Sprintf("%s", time.Since(startTime))})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": fmt.Sprintf("%s", time.Since(startTime))})
	})

	// Keycloak OIDC verifier
	ctx := context.Background()
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" && cfg.Keycloak.Realm != "" {
		issuer := strings.TrimRight(cfg.Keycloak.URL, "/") + "/realms/" + cfg.Keycloak.Realm
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	} else if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		// Fallback: try URL as issuer (older deployments may expose realm path in URL)
		ver, err := oidc.NewVerifier(ctx, cfg.Keycloak.URL, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier (fallback): %v", err)
		} else {
			verifier = ver
		}
	}

	// Optional insecure verifier for integration tests: parse token claims without signature verification
	if verifier == nil {
		val := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")))
		if val == "true" {
			logger.Warn("enabling insecure OIDC verifier (integration mode)")
			verifier = oidc.NewInsecureVerifier()
		}
	}

	// Blob storage: MinIO when configured, memory fallback for dev
	if mcfg := storage.LoadMinIOConfig(); mcfg.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(mcfg)
		if err != nil {
			logger.Fatalf("failed to initialize MinIO storage: %v", err)
		}
		blobs = ms
		logger.Infof("Connected to MinIO bucket %s at %s", mcfg.Bucket, mcfg.Endpoint)
	} else {
		logger.Warnf("MINIO_ENDPOINT not set — using in-memory blob storage (documents do not survive restarts)")
		blobs = storage.NewMemoryStorage()
	}

	// Prefer Redis-based sessions when configured (fast, in-memory)
	if importedRedis != nil {
		srepo := sessions.NewRedisRepository(importedRedis, "session:")
		sessionsSvc = sessions.NewService(srepo)
		logger.Infof("Using Redis for session storage (early connection)")
	}

	// Clinic repositories: Mongo-backed in normal operation, memory-backed
	// when Mongo is unreachable so the API still comes up for local work.
	var doctorRepo repository.DoctorRepository
	var patientRepo repository.PatientRepository
	var recordRepo repository.RecordRepository

	if cfg.MongoDB.URI != "" {
		// Retry/backoff when connecting to MongoDB to tolerate startup races
		const maxAttempts = 5
		backoff := time.Second
		var client *mongo.Client
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			client, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
		} else {
			defer func() { _ = client.Disconnect(ctx) }()
			mongoOK = true
			db := client.Database(cfg.MongoDB.Database)

			usersRepo := users.NewMongoUserRepository(db.Collection("users"))
			userSvc = users.NewService(usersRepo)

			// only create Mongo-backed session repo when a session service isn't already set
			if sessionsSvc == nil {
				sessionsSvc = sessions.NewService(sessions.NewMongoRepository(db.Collection("sessions")))
			}

			doctorRepo = repository.NewMongoDoctorRepository(db.Collection("doctors"))
			patientRepo = repository.NewMongoPatientRepository(db.Collection("patients"))
			recordRepo = repository.NewMongoRecordRepository(db.Collection("medical_records"))
		}
	}
	if doctorRepo == nil {
		logger.Warnf("MongoDB unavailable — clinic data held in memory only")
		doctorRepo = repository.NewMemoryDoctorRepository()
		patientRepo = repository.NewMemoryPatientRepository()
		recordRepo = repository.NewMemoryRecordRepository()
	}

	registry := links.NewRegistry(doctorRepo, patientRepo)
	recordSvc := service.NewRecordService(recordRepo, doctorRepo, patientRepo, registry, blobs)
	doctorSvc := service.NewDoctorService(doctorRepo, blobs)
	patientSvc := service.NewPatientService(patientRepo, blobs)

	// Register auth handlers if services are available
	if userSvc != nil && sessionsSvc != nil {
		h := handlers.NewAuthHandler(cfg, userSvc, sessionsSvc)
		h.Register(r.Group("/"))
	} else {
		logger.Warnf("auth handlers not registered because user/sessions services are unavailable")
	}

	// Minimal Swagger UI + JSON for API documentation
	handlers.RegisterSwagger(r)

	// Clinic API: bearer-token protected when a verifier is configured
	var api gin.IRouter = r
	if verifier != nil {
		api = r.Group("/", middleware.AuthMiddleware(verifier))
	} else {
		logger.Warnf("no OIDC verifier configured — clinic API is unauthenticated")
	}
	handler.RegisterRecordRoutes(api, recordSvc)
	handler.RegisterDoctorRoutes(api, doctorSvc)
	handler.RegisterPatientRoutes(api, patientSvc)

	v1 := r.Group("/api/v1")
	if verifier != nil {
		v1.GET("/me", middleware.AuthMiddleware(verifier), func(c *gin.Context) {
			claims, _ := c.Get("claims")
			if userSvc != nil {
				if cm, ok := claims.(map[string]interface{}); ok {
					u, err := userSvc.UpsertFromClaims(c.Request.Context(), cm)
					if err == nil && u != nil {
						c.JSON(http.StatusOK, gin.H{"user": u})
						return
					}
				}
			}
			// fallback: return claims
			c.JSON(http.StatusOK, gin.H{"claims": claims})
		})
	} else {
		v1.GET("/me", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "OIDC not configured"})
		})
	}

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Config summary: keycloak=%v mongo=%v redis=%v jwt_secret_set=%v", cfg.Keycloak.URL != "", mongoOK, cfg.Redis.Host != "", cfg.JWT.Secret != "")
	logger.Infof("Starting clinic record service on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
