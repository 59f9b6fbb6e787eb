package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/jobmarket-backend/internal/models"
)

func TestTokenManager_GenerateAndParse(t *testing.T) {
	m := NewTokenManager("access", "refresh", 15*time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleCustomer}

	pair, err := m.GeneratePair(user)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, pair.ExpiresIn)

	userID, role, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, models.RoleCustomer, role)

	claims, err := m.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	issuer := NewTokenManager("access", "refresh", 15*time.Minute, time.Hour)
	verifier := NewTokenManager("другой", "секрет", 15*time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleContractor}

	pair, err := issuer.GeneratePair(user)
	require.NoError(t, err)

	_, _, err = verifier.ParseAccess(pair.AccessToken)
	assert.Error(t, err)

	_, err = verifier.ParseRefresh(pair.RefreshToken)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	m := NewTokenManager("access", "refresh", -time.Minute, -time.Minute)
	user := &models.User{ID: uuid.New()}

	pair, err := m.GeneratePair(user)
	require.NoError(t, err)

	_, _, err = m.ParseAccess(pair.AccessToken)
	assert.Error(t, err)

	_, err = m.ParseRefresh(pair.RefreshToken)
	assert.Error(t, err)
}

func TestTokenManager_RefreshNotValidAsAccess(t *testing.T) {
	m := NewTokenManager("access", "refresh", 15*time.Minute, time.Hour)
	user := &models.User{ID: uuid.New()}

	pair, err := m.GeneratePair(user)
	require.NoError(t, err)

	// Токены подписаны разными секретами, подмена не проходит.
	_, _, err = m.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)
}
