package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecoveryWritesEnvelope(t *testing.T) {
	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("feed exploded")
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	req.Header.Set(ViewerHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "req-42", body.Error.RequestID)
	assert.NotContains(t, rec.Body.String(), "feed exploded")
	assert.NotContains(t, rec.Body.String(), "alice")
}

func TestRecoveryRepanicsOnAbort(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestPanicFieldsCarryViewer(t *testing.T) {
	var fields []zap.Field
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Delete("/v1/posts/{postID}", func(w http.ResponseWriter, req *http.Request) {
		fields = panicFields(req, "boom", []byte("stack"))
	})

	req := httptest.NewRequest(http.MethodDelete, "/v1/posts/p1", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	req.Header.Set(ViewerHeader, " bob ")
	r.ServeHTTP(httptest.NewRecorder(), req)

	values := make(map[string]string, len(fields))
	for _, field := range fields {
		values[field.Key] = field.String
	}
	assert.Equal(t, "boom", values["panic"])
	assert.Equal(t, http.MethodDelete, values["method"])
	assert.Equal(t, "/v1/posts/{postID}", values["endpoint"])
	assert.Equal(t, "req-7", values["requestID"])
	assert.Equal(t, "bob", values["viewer"])
}

func TestRequestIDRejectsMalformedHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\nwith newline")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEqual(t, "bad id\nwith newline", seen)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}
