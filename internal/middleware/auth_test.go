package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestAuthenticate(t *testing.T) {
	m := NewAuthMiddleware(testSecret)
	userID := uuid.New()

	var gotUserID uuid.UUID
	var gotOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, gotOK = GetUserID(r.Context())
	})

	token := signToken(t, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	m.Authenticate(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, gotOK)
	require.Equal(t, userID, gotUserID)
}

func TestAuthenticateRejects(t *testing.T) {
	m := NewAuthMiddleware(testSecret)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage token":  "Bearer not-a-jwt",
		"no subject": "Bearer " + signToken(t, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}),
		"expired": "Bearer " + signToken(t, jwt.MapClaims{
			"sub": uuid.NewString(),
			"exp": time.Now().Add(-time.Hour).Unix(),
		}),
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		m.Authenticate(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestRequireAdmin(t *testing.T) {
	m := NewAuthMiddleware(testSecret)
	var ran bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { ran = true })
	chain := m.Authenticate(m.RequireAdmin(next))

	plain := signToken(t, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/factory/fetch-arxiv", nil)
	req.Header.Set("Authorization", "Bearer "+plain)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, ran)

	admin := signToken(t, jwt.MapClaims{
		"sub":   uuid.NewString(),
		"exp":   time.Now().Add(time.Hour).Unix(),
		"admin": true,
	})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/factory/fetch-arxiv", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ran)
}
