package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docvault/docvault/handlers"
	"github.com/docvault/docvault/internal/config"
	docrepo "github.com/docvault/docvault/internal/document/repository"
	docservice "github.com/docvault/docvault/internal/document/service"
	"github.com/docvault/docvault/internal/extract"
	"github.com/docvault/docvault/internal/ingestion/engine"
	ingrepo "github.com/docvault/docvault/internal/ingestion/repository"
	"github.com/docvault/docvault/internal/models"
	"github.com/docvault/docvault/internal/sessions"
	"github.com/docvault/docvault/internal/storage"
	"github.com/docvault/docvault/internal/tokens"
	"github.com/docvault/docvault/internal/users"
	"github.com/docvault/docvault/pkg/middleware"
)

// Standalone dev binary: runs the full API against in-memory repositories and
// an in-memory content store, with a seeded admin account. No external
// services required.
func main() {
	port := os.Getenv("DOC_SERVICE_PORT")
	if port == "" {
		port = "5010"
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-do-not-use-in-production"
	}

	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = 7 * 24 * time.Hour

	store := storage.NewMemoryStore()
	userSvc := users.NewService(users.NewMemoryUserRepository())
	sessionsSvc := sessions.NewService(sessions.NewMemoryRepository())
	docSvc := docservice.NewService(docrepo.NewMemoryRepo(), store)
	eng := engine.New(ingrepo.NewMemoryRepo(), docSvc, extract.NewStubExtractor(store))

	seedAdmin(userSvc)

	r := gin.New()
	r.Use(gin.Recovery())

	lookup := func(ctx context.Context, id string) (*models.User, error) {
		return userSvc.GetByID(ctx, id)
	}

	api := r.Group("/api")
	authHandler := handlers.NewAuthHandler(cfg, userSvc, sessionsSvc)
	authHandler.Register(api)

	authed := api.Group("/")
	authed.Use(middleware.AuthMiddleware(tokens.NewLocalVerifier(secret), lookup, nil))
	authHandler.RegisterProtected(authed)
	handlers.NewDocumentHandler(docSvc, store).Register(authed)
	handlers.NewIngestionHandler(eng).Register(authed)
	handlers.NewUsersHandler(userSvc).Register(authed)

	log.Printf("docvault dev service listening on :%s (admin@docvault.local / admin123!)", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

func seedAdmin(svc *users.Service) {
	_, err := svc.Register(context.Background(), users.RegisterInput{
		Email:     "admin@docvault.local",
		Password:  "admin123!",
		FirstName: "Admin",
		LastName:  "User",
		Role:      models.RoleAdmin,
	})
	if err != nil {
		log.Printf("warning: could not seed admin user: %v", err)
	}
}
