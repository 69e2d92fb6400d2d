package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signedToken(t *testing.T, s *Session, ttl time.Duration) string {
	t.Helper()
	token, err := NewVerifier(testSecret).Sign(s, ttl)
	require.NoError(t, err)
	return token
}

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier(testSecret)
	token := signedToken(t, &Session{UserID: "u1", StoreID: "s1", Role: "MANAGER"}, time.Hour)

	got, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "s1", got.StoreID)
	assert.Equal(t, "MANAGER", got.Role)
}

func TestVerifier_WrongSecret(t *testing.T) {
	token := signedToken(t, &Session{UserID: "u1", StoreID: "s1"}, time.Hour)

	_, err := NewVerifier([]byte("other-secret")).Parse(token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifier_Expired(t *testing.T) {
	token := signedToken(t, &Session{UserID: "u1", StoreID: "s1"}, -time.Minute)

	_, err := NewVerifier(testSecret).Parse(token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifier_MissingStoreClaim(t *testing.T) {
	token := signedToken(t, &Session{UserID: "u1"}, time.Hour)

	_, err := NewVerifier(testSecret).Parse(token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifier_Garbage(t *testing.T) {
	_, err := NewVerifier(testSecret).Parse("not-a-token")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestMiddleware_InjectsSession(t *testing.T) {
	v := NewVerifier(testSecret)
	token := signedToken(t, &Session{UserID: "u1", StoreID: "s1"}, time.Hour)

	var seen *Session
	h := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "s1", seen.StoreID)
}

func TestMiddleware_RejectsMissingOrBadToken(t *testing.T) {
	v := NewVerifier(testSecret)
	h := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	for _, header := range []string{"", "Bearer ", "Bearer bogus", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}
