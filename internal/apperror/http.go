package apperror

import (
	"encoding/json"
	"net/http"
)

// HTTPStatus is the single place failure kinds map to status codes.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest, KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type wireError struct {
	Error   Kind         `json:"error"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"validationErrors,omitempty"`
}

// WriteHTTP serializes the failure as {error, message, validationErrors?}.
// Internal failures are masked, every other kind is safe to echo verbatim.
func WriteHTTP(w http.ResponseWriter, err error) {
	appErr := From(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(appErr.Kind))

	msg := appErr.Message
	if appErr.Kind == KindInternal {
		msg = "internal server error"
	}

	_ = json.NewEncoder(w).Encode(wireError{
		Error:   appErr.Kind,
		Message: msg,
		Fields:  appErr.Fields,
	})
}
