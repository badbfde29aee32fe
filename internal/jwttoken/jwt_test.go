package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "admission/pkg/domain-errors"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := New("test-signing-key", "admission", time.Hour)
	adminID := uuid.New()

	token, err := svc.Generate(adminID, "reviewer")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, adminID.String(), claims.AdminID)
	assert.Equal(t, "reviewer", claims.Role)

	got, err := svc.AdminID(token)
	require.NoError(t, err)
	assert.Equal(t, adminID, got)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := New("test-signing-key", "admission", -time.Minute)

	token, err := svc.Generate(uuid.New(), "admin")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsWrongKey(t *testing.T) {
	token, err := New("key-one", "admission", time.Hour).Generate(uuid.New(), "admin")
	require.NoError(t, err)

	_, err = New("key-two", "admission", time.Hour).ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := New("test-signing-key", "admission", time.Hour)
	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
