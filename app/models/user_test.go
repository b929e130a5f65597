package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	u, err := CreateUser("maria", "maria@example.com", "secret123")
	require.NoError(t, err)

	assert.Equal(t, ROLE_USER, u.Role)
	assert.Equal(t, STATUS_INACTIVE, u.Status)
	assert.NotEqual(t, "secret123", u.Password)
	assert.True(t, CheckPasswordHash("secret123", u.Password))
	assert.False(t, CheckPasswordHash("wrong", u.Password))
}

func TestCreateUser_Invalid(t *testing.T) {
	_, err := CreateUser("ab", "not-an-email", "secret123")
	assert.Error(t, err)
}

func TestGenerateAPIKey(t *testing.T) {
	key1, err := GenerateAPIKey()
	require.NoError(t, err)
	key2, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.Len(t, key1, 64)
	assert.NotEqual(t, key1, key2)
}

func TestHashAPIKey(t *testing.T) {
	// Deterministic, 64 hex chars, and never the key itself
	h := HashAPIKey("my-key")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashAPIKey("my-key"))
	assert.NotEqual(t, h, HashAPIKey("other-key"))
	assert.NotEqual(t, "my-key", h)
}

func TestSubscription_IsEntitled(t *testing.T) {
	tests := []struct {
		status   string
		entitled bool
	}{
		{SubscriptionStatusPending, false},
		{SubscriptionStatusActive, true},
		{SubscriptionStatusExpired, false},
	}

	for _, tt := range tests {
		sub := &Subscription{Status: tt.status}
		assert.Equal(t, tt.entitled, sub.IsEntitled(), "status %s", tt.status)
	}
}
