package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateAndValidateRefresh(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	refresh, err := svc.CreateSession(context.Background(), "user-1", time.Hour)
	require.NoError(t, err)
	require.Len(t, refresh, 64) // 32 random bytes hex-encoded

	sess, err := svc.ValidateRefresh(context.Background(), refresh)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "user-1", sess.UserID)
}

func TestValidateUnknownRefreshIsNil(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	sess, err := svc.ValidateRefresh(context.Background(), "does-not-exist")
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestExpiredSessionIsRejectedAndCleaned(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)

	refresh, err := svc.CreateSession(context.Background(), "user-1", -time.Minute)
	require.NoError(t, err)

	sess, err := svc.ValidateRefresh(context.Background(), refresh)
	require.NoError(t, err)
	require.Nil(t, sess)

	// the expired record was removed on validation
	got, err := repo.GetByRefresh(context.Background(), refresh)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeleteRefresh(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	refresh, err := svc.CreateSession(context.Background(), "user-1", time.Hour)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRefresh(context.Background(), refresh))

	sess, err := svc.ValidateRefresh(context.Background(), refresh)
	require.NoError(t, err)
	require.Nil(t, sess)
}
