package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appAuth "github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/models/dto"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *dto.ErrorDetail {
	t.Helper()
	var body struct {
		Success bool             `json:"success"`
		Error   *dto.ErrorDetail `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	return body.Error
}

func TestHandleAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   dto.ErrorCode
		wantReason string
	}{
		{name: "validation", err: apperrors.ErrUnknownAssignment, wantStatus: http.StatusBadRequest, wantCode: dto.ErrorCodeValidationFailed, wantReason: "UNKNOWN_ASSIGNMENT"},
		{name: "permission", err: apperrors.NewForbiddenError("nope"), wantStatus: http.StatusForbidden, wantCode: dto.ErrorCodeForbidden},
		{name: "not found wrapped", err: fmt.Errorf("loading: %w", apperrors.ErrStudentNotFound), wantStatus: http.StatusNotFound, wantCode: dto.ErrorCodeResourceNotFound, wantReason: "STUDENT_NOT_FOUND"},
		{name: "locked", err: apperrors.ErrLockedAssignment, wantStatus: http.StatusLocked, wantCode: dto.ErrorCodeLockedAssignment},
		{name: "not eligible", err: apperrors.ErrEventClosed, wantStatus: http.StatusConflict, wantCode: dto.ErrorCodeNotEligible, wantReason: "EVENT_CLOSED"},
		{name: "already awarded", err: apperrors.ErrAlreadyAwarded, wantStatus: http.StatusConflict, wantCode: dto.ErrorCodeAlreadyAwarded},
		{name: "conflict", err: apperrors.ErrAlreadyApplied, wantStatus: http.StatusConflict, wantCode: dto.ErrorCodeConflict, wantReason: "ALREADY_APPLIED"},
		{name: "upstream", err: apperrors.ErrReadOnly, wantStatus: http.StatusServiceUnavailable, wantCode: dto.ErrorCodeExternalServiceError, wantReason: "READ_ONLY"},
		{name: "cancelled", err: context.Canceled, wantStatus: StatusClientClosedRequest, wantCode: dto.ErrorCodeExternalServiceError},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), wantStatus: http.StatusGatewayTimeout, wantCode: dto.ErrorCodeExternalServiceError},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: dto.ErrorCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			HandleAPIError(c, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			detail := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, detail.Code)
			assert.Equal(t, tt.wantReason, detail.Reason)
		})
	}
}

func TestHandleAPIError_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleAPIError(c, errors.New("pq: password authentication failed"))

	assert.Equal(t, "Internal server error", decodeError(t, rec).Message)
}

func newAuthRouter(t *testing.T, jwtService *auth.JWTService) *gin.Engine {
	t.Helper()
	m := NewAuthMiddleware(jwtService)
	router := gin.New()
	router.Use(m.JWTAuth())
	router.GET("/me", func(c *gin.Context) {
		p, ok := appAuth.PrincipalFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, p)
	})
	router.GET("/admin", m.AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestJWTAuth(t *testing.T) {
	jwtService := auth.NewJWTService(auth.JWTConfig{SecretKey: "secret", AccessTokenExp: time.Hour, TokenIssuer: "test"})
	expiredService := auth.NewJWTService(auth.JWTConfig{SecretKey: "secret", AccessTokenExp: -time.Minute, TokenIssuer: "test"})
	otherKey := auth.NewJWTService(auth.JWTConfig{SecretKey: "other", AccessTokenExp: time.Hour, TokenIssuer: "test"})

	admin, _, err := jwtService.GenerateToken(1, models.RoleAdmin, 0)
	require.NoError(t, err)
	student, _, err := jwtService.GenerateToken(107, models.RoleStudent, 7)
	require.NoError(t, err)
	expired, _, err := expiredService.GenerateToken(1, models.RoleAdmin, 0)
	require.NoError(t, err)
	forged, _, err := otherKey.GenerateToken(1, models.RoleAdmin, 0)
	require.NoError(t, err)
	studentless, _, err := jwtService.GenerateToken(107, models.RoleStudent, 0)
	require.NoError(t, err)

	router := newAuthRouter(t, jwtService)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantCode   dto.ErrorCode
	}{
		{name: "missing", path: "/me", wantStatus: http.StatusUnauthorized, wantCode: dto.ErrorCodeUnauthorized},
		{name: "bad format", path: "/me", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantCode: dto.ErrorCodeUnauthorized},
		{name: "expired", path: "/me", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized, wantCode: dto.ErrorCodeExpiredToken},
		{name: "wrong key", path: "/me", header: "Bearer " + forged, wantStatus: http.StatusUnauthorized, wantCode: dto.ErrorCodeInvalidToken},
		{name: "student without id", path: "/me", header: "Bearer " + studentless, wantStatus: http.StatusUnauthorized, wantCode: dto.ErrorCodeInvalidToken},
		{name: "raw token", path: "/me", header: student, wantStatus: http.StatusOK},
		{name: "query token", path: "/me?token=" + student, wantStatus: http.StatusOK},
		{name: "student on admin route", path: "/admin", header: "Bearer " + student, wantStatus: http.StatusForbidden, wantCode: dto.ErrorCodeForbidden},
		{name: "admin on admin route", path: "/admin", header: "Bearer " + admin, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			}
		})
	}

	t.Run("principal from claims", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+student)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var p appAuth.Principal
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		assert.Equal(t, appAuth.Principal{UserID: 107, Role: models.RoleStudent, StudentID: 7}, p)
	})
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://desk.college.edu/"}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{name: "allowed origin", method: http.MethodGet, origin: "https://desk.college.edu", wantStatus: http.StatusOK, wantAllow: "https://desk.college.edu"},
		{name: "foreign origin", method: http.MethodGet, origin: "https://evil.example", wantStatus: http.StatusOK},
		{name: "preflight", method: http.MethodOptions, origin: "https://desk.college.edu", wantStatus: http.StatusNoContent, wantAllow: "https://desk.college.edu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/ping", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, OriginAllowed(nil, "https://anything"))
	assert.True(t, OriginAllowed([]string{"*"}, "https://anything"))
	assert.True(t, OriginAllowed([]string{"HTTPS://Desk.College.edu"}, "https://desk.college.edu"))
	assert.False(t, OriginAllowed([]string{"https://desk.college.edu"}, "https://other.edu"))
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger(zerolog.Nop()))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}
