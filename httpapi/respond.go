package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/userstore"
)

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func reject(status int, code, message string) *middleware.Rejection {
	return &middleware.Rejection{Status: status, Code: goSession.ErrorKind(code), Message: message}
}

var (
	errNotFound         = reject(http.StatusNotFound, "NOT_FOUND", "Not found")
	errOriginNotAllowed = reject(http.StatusForbidden, "ORIGIN_NOT_ALLOWED", "Origin not allowed")
	errSessionRequired  = reject(http.StatusUnauthorized, string(goSession.KindNoSession), "Session required")
	errProfileNotFound  = reject(http.StatusNotFound, string(goSession.KindUserNotFound), "User not found")
	errInternal         = reject(http.StatusInternalServerError, string(goSession.KindInternal), goSession.MessageOf(goSession.KindInternal))
)

// rejectionFor maps store and engine errors onto a client-safe rejection.
func rejectionFor(err error) *middleware.Rejection {
	switch {
	case errors.Is(err, userstore.ErrNoUpdates):
		return reject(http.StatusBadRequest, "NO_UPDATES", "No valid fields to update")
	case errors.Is(err, userstore.ErrBioTooLong):
		return reject(http.StatusBadRequest, "BIO_TOO_LONG", "Bio is too long")
	case errors.Is(err, userstore.ErrNameRequired):
		return reject(http.StatusBadRequest, "NAME_REQUIRED", "Name is required")
	case errors.Is(err, userstore.ErrConnectionNotFound):
		return reject(http.StatusNotFound, "CONNECTION_NOT_FOUND", "Connection not found or access denied")
	case errors.Is(err, userstore.ErrUserNotFound):
		return middleware.Reject(goSession.ErrUserNotFound)
	case errors.Is(err, userstore.ErrInvalidEmail):
		return middleware.Reject(goSession.ErrInvalidInput)
	}
	return middleware.Reject(err)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rej := rejectionFor(err)
	if rej.Status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed",
			"code", rej.Code,
			"error", err,
		)
	}
	middleware.WriteRejection(w, rej)
}

func decodeBody(r *http.Request, value any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return goSession.ErrInvalidInput
	}
	if err := json.NewDecoder(r.Body).Decode(value); err != nil {
		return goSession.ErrInvalidInput
	}
	return nil
}
