package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/docvault/docvault/handlers"
	"github.com/docvault/docvault/internal/config"
	"github.com/docvault/docvault/internal/database"
	docrepo "github.com/docvault/docvault/internal/document/repository"
	docservice "github.com/docvault/docvault/internal/document/service"
	"github.com/docvault/docvault/internal/extract"
	"github.com/docvault/docvault/internal/ingestion/engine"
	ingrepo "github.com/docvault/docvault/internal/ingestion/repository"
	"github.com/docvault/docvault/internal/models"
	"github.com/docvault/docvault/internal/oidc"
	"github.com/docvault/docvault/internal/sessions"
	"github.com/docvault/docvault/internal/storage"
	"github.com/docvault/docvault/internal/tokens"
	"github.com/docvault/docvault/internal/users"
	"github.com/docvault/docvault/pkg/logger"
	"github.com/docvault/docvault/pkg/metrics"
	"github.com/docvault/docvault/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging level controlled with LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v minio=%v oidc=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", cfg.OIDC.Issuer != "")

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS for dev/test; production deployments sit behind a
	// stricter gateway policy.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	ctx := context.Background()

	// Connect to Redis early so the rate limiter and token blacklist can use it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			sessions.SetBlacklistClient(redisClient)
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Content store: MinIO when configured, in-memory otherwise (dev/test)
	var store storage.ContentStore
	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIOStore(&storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			logger.Fatalf("failed to initialize MinIO store: %v", err)
		}
		store = ms
		logger.Infof("using MinIO content store at %s (bucket %s)", cfg.MinIO.Endpoint, cfg.MinIO.Bucket)
	} else {
		store = storage.NewMemoryStore()
		logger.Warnf("MINIO_ENDPOINT not set; using in-memory content store")
	}

	// Repositories: MongoDB when configured, in-memory otherwise
	var (
		mongoClient *mongo.Client
		docRepo     docservice.Repository
		ingRepo     engine.ProcessRepository
		userRepo    users.UserRepository
		sessionRepo sessions.Repository
	)
	if cfg.MongoDB.URI != "" {
		// retry with backoff to tolerate container startup races
		const maxAttempts = 5
		backoff := time.Second
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			mongoClient, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
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
			logger.Fatalf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
		}
		defer func() { _ = mongoClient.Disconnect(ctx) }()
		db := mongoClient.Database(cfg.MongoDB.Database)
		docRepo = docrepo.NewMongoRepo(db.Collection("documents"))
		ingRepo = ingrepo.NewMongoRepo(db.Collection("ingestion_processes"))
		userRepo = users.NewMongoUserRepository(db.Collection("users"))
		sessionRepo = sessions.NewMongoRepository(db.Collection("sessions"))
		logger.Infof("connected to MongoDB database %s", cfg.MongoDB.Database)
	} else {
		docRepo = docrepo.NewMemoryRepo()
		ingRepo = ingrepo.NewMemoryRepo()
		userRepo = users.NewMemoryUserRepository()
		sessionRepo = sessions.NewMemoryRepository()
		logger.Warnf("MONGODB_URI not set; using in-memory repositories")
	}
	// prefer Redis for refresh sessions when available
	if redisClient != nil {
		sessionRepo = sessions.NewRedisRepository(redisClient, "session:")
		logger.Infof("using Redis for session storage")
	}

	userSvc := users.NewService(userRepo)
	sessionsSvc := sessions.NewService(sessionRepo)
	docSvc := docservice.NewService(docRepo, store)
	eng := engine.New(ingRepo, docSvc, extract.NewStubExtractor(store))

	// Token verification: external OIDC provider when configured, locally
	// issued HS256 otherwise. ALLOW_INSECURE_TOKEN skips signature checks for
	// integration tests only.
	var verifier middleware.Verifier
	if cfg.OIDC.Issuer != "" && cfg.OIDC.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil && cfg.JWT.Secret != "" {
		verifier = tokens.NewLocalVerifier(cfg.JWT.Secret)
	}
	if verifier == nil {
		if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
			logger.Warn("enabling insecure token verifier (integration mode)")
			verifier = oidc.NewInsecureVerifier()
		} else {
			logger.Fatalf("no token verifier available: set JWT_SECRET or OIDC_ISSUER")
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{
			"mongo":   cfg.MongoDB.URI == "" || mongoClient != nil,
			"redis":   cfg.Redis.Host == "" || redisClient != nil,
			"storage": store != nil,
		}
		for _, ok := range deps {
			if !ok {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterSwagger(r)

	lookup := func(ctx context.Context, id string) (*models.User, error) {
		return userSvc.GetByID(ctx, id)
	}

	api := r.Group("/api")
	authHandler := handlers.NewAuthHandler(cfg, userSvc, sessionsSvc)
	authHandler.Register(api)

	authed := api.Group("/")
	authed.Use(middleware.AuthMiddleware(verifier, lookup, sessions.IsAccessTokenBlacklisted))
	authHandler.RegisterProtected(authed)
	handlers.NewDocumentHandler(docSvc, store).Register(authed)
	handlers.NewIngestionHandler(eng).Register(authed)
	handlers.NewUsersHandler(userSvc).Register(authed)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("starting docvault on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	// drain in-flight ingestion workers before releasing resources
	eng.Wait()
	logger.Infof("shutdown complete")
}
