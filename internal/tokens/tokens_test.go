package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/internal/models"
)

func TestGenerateAndVerifyRoundTrip(t *testing.T) {
	u := &models.User{ID: "user-1", Email: "a@b.co", Role: models.RoleEditor, Active: true}

	raw, err := GenerateAccessToken("sekret", u, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	ver := NewLocalVerifier("sekret")
	tok, err := ver.Verify(context.Background(), raw)
	require.NoError(t, err)

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "user-1", claims.Sub)
	require.Equal(t, "a@b.co", claims.Email)
	require.Equal(t, "editor", claims.Role)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	u := &models.User{ID: "user-1", Email: "a@b.co", Role: models.RoleViewer}
	raw, err := GenerateAccessToken("sekret", u, time.Minute)
	require.NoError(t, err)

	_, err = NewLocalVerifier("other").Verify(context.Background(), raw)
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	u := &models.User{ID: "user-1", Email: "a@b.co", Role: models.RoleViewer}
	raw, err := GenerateAccessToken("sekret", u, -time.Minute)
	require.NoError(t, err)

	_, err = NewLocalVerifier("sekret").Verify(context.Background(), raw)
	require.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewLocalVerifier("sekret").Verify(context.Background(), "not-a-jwt")
	require.Error(t, err)
}
