package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/placementdesk/internal/app/models"
)

func newTestService(exp time.Duration) *JWTService {
	return NewJWTService(JWTConfig{SecretKey: "test-secret", AccessTokenExp: exp, TokenIssuer: "placementdesk"})
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestService(time.Hour)

	token, expiresAt, err := svc.GenerateToken(7, models.RoleStudent, 3)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateAndExtractClaims(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, string(models.RoleStudent), claims.RoleType)
	assert.Equal(t, int64(3), claims.StudentID)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := newTestService(time.Hour)
	other := NewJWTService(JWTConfig{SecretKey: "other", AccessTokenExp: time.Hour})

	foreign, _, err := other.GenerateToken(1, models.RoleAdmin, 0)
	require.NoError(t, err)
	expired, _, err := newTestService(-time.Minute).GenerateToken(1, models.RoleAdmin, 0)
	require.NoError(t, err)
	noStudent, _, err := svc.GenerateToken(1, models.RoleStudent, 0)
	require.NoError(t, err)
	badRole, _, err := svc.GenerateToken(1, models.RoleType("INSTRUCTOR"), 0)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: ErrInvalidToken},
		{name: "wrong secret", token: foreign, wantErr: ErrInvalidToken},
		{name: "expired", token: expired, wantErr: ErrExpiredToken},
		{name: "student without student id", token: noStudent, wantErr: ErrInvalidToken},
		{name: "unknown role", token: badRole, wantErr: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAndExtractClaims(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer a.b.c", want: "a.b.c"},
		{header: "a.b.c", want: "a.b.c"},
		{header: "", wantErr: true},
		{header: "Basic xyz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
