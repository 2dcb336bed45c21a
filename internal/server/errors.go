package server

import (
	"net/http"

	apperrors "github.com/loggate/loggate/internal/errors"
)

// HandleError writes every HTTP error as a gofulmen envelope.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
