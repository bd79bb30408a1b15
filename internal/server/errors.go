package server

import (
	"net/http"

	apperrors "github.com/blockstreet/blockstreet/internal/errors"
)

// HandleError writes err as the standard JSON error envelope.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
