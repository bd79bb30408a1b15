package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/blockstreet/blockstreet/internal/metrics"
	"github.com/blockstreet/blockstreet/internal/observability"
)

// Recovery turns a handler panic into a 500 envelope. The stack trace and the
// viewer go to the server log only; clients see the request id.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			metrics.RecordPanic()
			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("Handler panicked", panicFields(r, recovered, debug.Stack())...)
			}

			envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", "An internal error occurred").
				WithCorrelationID(GetRequestID(r.Context()))
			envelope, _ = envelope.WithSeverity(errors.SeverityCritical)
			writeErrorResponse(w, envelope, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

func panicFields(r *http.Request, recovered any, stack []byte) []zap.Field {
	return []zap.Field{
		zap.String("panic", fmt.Sprint(recovered)),
		zap.String("method", r.Method),
		zap.String("endpoint", EndpointPattern(r)),
		zap.String("requestID", GetRequestID(r.Context())),
		zap.String("viewer", RequestViewer(r)),
		zap.ByteString("stack", stack),
	}
}

// ErrorResponse mirrors the API error body so middleware can write one
// without importing the server package.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the body of ErrorResponse.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		Details:   envelope.Context,
		RequestID: envelope.CorrelationID,
	}})
}
