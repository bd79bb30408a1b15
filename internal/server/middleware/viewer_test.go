package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewer(t *testing.T) {
	var seen string
	handler := Viewer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ViewerID(r.Context())
	}))

	t.Run("HeaderPresent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
		req.Header.Set(ViewerHeader, "  user-1 ")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "user-1", seen)
	})

	t.Run("Anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Empty(t, seen)
	})
}

func TestViewerIDNilContext(t *testing.T) {
	//nolint:staticcheck // exercising the nil guard
	assert.Empty(t, ViewerID(nil))
	assert.Equal(t, "u", ViewerID(WithViewer(context.Background(), "u")))
}

func TestRequestViewer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	assert.Empty(t, RequestViewer(req))

	req.Header.Set(ViewerHeader, " header-user ")
	assert.Equal(t, "header-user", RequestViewer(req))

	req = req.WithContext(WithViewer(req.Context(), "ctx-user"))
	assert.Equal(t, "ctx-user", RequestViewer(req))
}
