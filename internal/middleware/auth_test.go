package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func init() {
	log.SetOutput(io.Discard)
}

func signToken(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func driverClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"user_id": "driver-3",
		"email":   "driver@example.com",
		"role":    RoleDriver,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
}

func TestParseToken(t *testing.T) {
	claims, err := ParseToken(secret, signToken(t, secret, driverClaims()))
	require.NoError(t, err)
	assert.Equal(t, UserClaims{UserID: "driver-3", Email: "driver@example.com", Role: RoleDriver}, claims)
}

func TestParseTokenRejects(t *testing.T) {
	expired := driverClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	noRole := driverClaims()
	delete(noRole, "role")

	tests := []struct {
		name  string
		token string
	}{
		{"wrong key", signToken(t, "other-secret", driverClaims())},
		{"expired", signToken(t, secret, expired)},
		{"missing role", signToken(t, secret, noRole)},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(secret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err := ParseToken("", signToken(t, secret, driverClaims()))
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestAuthAndRequireRole(t *testing.T) {
	var seen UserClaims
	handler := Auth(secret)(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserFromContext(r)
		w.WriteHeader(http.StatusNoContent)
	})))

	admin := driverClaims()
	admin["role"] = RoleAdmin

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Token abc", http.StatusUnauthorized},
		{"bad token", "Bearer abc", http.StatusUnauthorized},
		{"wrong role", "Bearer " + signToken(t, secret, driverClaims()), http.StatusForbidden},
		{"admin", "Bearer " + signToken(t, secret, admin), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/manager/active-trips", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, RoleAdmin, seen.Role)
}
