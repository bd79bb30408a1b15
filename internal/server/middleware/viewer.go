package middleware

import (
	"context"
	"net/http"
	"strings"
)

// ViewerHeader carries the id of the signed-in user making the request.
// Authentication happens upstream; the API trusts this header.
const ViewerHeader = "X-User-ID"

type viewerContextKey struct{}

// Viewer stores the request's viewer id in the context.
func Viewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer := strings.TrimSpace(r.Header.Get(ViewerHeader))
		if viewer == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), viewer)))
	})
}

// WithViewer returns a context carrying viewer.
func WithViewer(ctx context.Context, viewer string) context.Context {
	return context.WithValue(ctx, viewerContextKey{}, viewer)
}

// RequestViewer returns the viewer for middleware that runs outside Viewer,
// reading the header when the context does not carry one yet.
func RequestViewer(r *http.Request) string {
	if viewer := ViewerID(r.Context()); viewer != "" {
		return viewer
	}
	return strings.TrimSpace(r.Header.Get(ViewerHeader))
}

// ViewerID returns the viewer id, or "" for anonymous requests.
func ViewerID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	viewer, _ := ctx.Value(viewerContextKey{}).(string)
	return viewer
}
