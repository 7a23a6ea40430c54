package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

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

const testSecret = "test-secret"

type testApp struct {
	router  *gin.Engine
	eng     *engine.Engine
	userSvc *users.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = time.Hour

	store := storage.NewMemoryStore()
	userSvc := users.NewService(users.NewMemoryUserRepository())
	sessionsSvc := sessions.NewService(sessions.NewMemoryRepository())
	docSvc := docservice.NewService(docrepo.NewMemoryRepo(), store)
	eng := engine.New(ingrepo.NewMemoryRepo(), docSvc, extract.NewStubExtractor(store))

	r := gin.New()
	lookup := func(ctx context.Context, id string) (*models.User, error) {
		return userSvc.GetByID(ctx, id)
	}

	api := r.Group("/api")
	authHandler := NewAuthHandler(cfg, userSvc, sessionsSvc)
	authHandler.Register(api)

	authed := api.Group("/")
	authed.Use(middleware.AuthMiddleware(tokens.NewLocalVerifier(testSecret), lookup, sessions.IsAccessTokenBlacklisted))
	authHandler.RegisterProtected(authed)
	NewDocumentHandler(docSvc, store).Register(authed)
	NewIngestionHandler(eng).Register(authed)
	NewUsersHandler(userSvc).Register(authed)

	return &testApp{router: r, eng: eng, userSvc: userSvc}
}

// signup creates an account through the API and returns its access token.
func (a *testApp) signup(t *testing.T, email, role string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": "password123", "role": role}
	w := a.doJSON(t, "POST", "/api/auth/register", body, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func (a *testApp) doJSON(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// rawUpload posts a multipart document and returns the recorder unchecked.
func (a *testApp) rawUpload(t *testing.T, token, title, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "upload.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("title", title))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// upload posts a multipart document and returns the decoded response body.
func (a *testApp) upload(t *testing.T, token, title, content string) map[string]interface{} {
	t.Helper()
	w := a.rawUpload(t, token, title, content)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	return doc
}
