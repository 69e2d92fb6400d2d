package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveWithHeader(t *testing.T, incoming string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	var fromCtx string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set("X-Request-ID", incoming)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, fromCtx
}

func TestRequestID_ReusesValidUUID(t *testing.T) {
	id := uuid.NewString()
	w, fromCtx := serveWithHeader(t, id)

	assert.Equal(t, id, w.Header().Get("X-Request-ID"))
	assert.Equal(t, id, fromCtx)
}

func TestRequestID_ReplacesNonUUID(t *testing.T) {
	w, fromCtx := serveWithHeader(t, "console.log('pwn')")

	echoed := w.Header().Get("X-Request-ID")
	require.NotEmpty(t, echoed)
	assert.NotEqual(t, "console.log('pwn')", echoed)
	_, err := uuid.Parse(echoed)
	require.NoError(t, err)
	assert.Equal(t, echoed, fromCtx)
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	w, fromCtx := serveWithHeader(t, "")

	echoed := w.Header().Get("X-Request-ID")
	_, err := uuid.Parse(echoed)
	require.NoError(t, err)
	assert.Equal(t, echoed, fromCtx)
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
