package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestGenerateAndValidateToken(t *testing.T) {
	identity := Identity{ID: 9, Name: "Ravi Kumar", Role: "Sales", Permissions: []string{"project:view"}}

	token, err := GenerateToken(testSecret, identity, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, identity, claims.User)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken(testSecret, Identity{ID: 1, Role: "Sales"}, time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken([]byte("other-secret"), token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := GenerateToken(testSecret, Identity{ID: 1, Role: "Sales"}, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(testSecret, token)
	assert.Error(t, err)
}

func TestMissingSecret(t *testing.T) {
	_, err := GenerateToken(nil, Identity{}, time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = ValidateToken(nil, "anything")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := ValidateToken(testSecret, "not.a.token")
	assert.Error(t, err)
}
