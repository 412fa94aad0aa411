// Package codec converts canonical responses and errors into the OpenAI
// wire format served by the front door.
package codec

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmswain/switchboard/internal/domain"
)

// ToCanonicalError converts any error to a domain.APIError.
// If the error is already a domain.APIError, it returns it directly.
// Otherwise, it wraps the error in a generic server error.
func ToCanonicalError(err error) *domain.APIError {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return domain.NewAPIError(domain.ErrorTypeServer, err.Error())
}

func wireErrorType(t domain.ErrorType) string {
	switch t {
	case domain.ErrorTypeInvalidRequest:
		return "invalid_request_error"
	case domain.ErrorTypeAuthentication:
		return "authentication_error"
	case domain.ErrorTypeNotFound:
		return "not_found"
	case domain.ErrorTypeRateLimit:
		return "rate_limit_error"
	case domain.ErrorTypeServer:
		return "server_error"
	default:
		return "server_error"
	}
}

// ErrorBody renders the OpenAI error envelope for err.
func ErrorBody(err error) []byte {
	apiErr := ToCanonicalError(err)

	errObj := map[string]any{
		"message": apiErr.Message,
		"type":    wireErrorType(apiErr.Type),
	}
	if apiErr.Code != "" {
		errObj["code"] = string(apiErr.Code)
	}
	if apiErr.Param != "" {
		errObj["param"] = apiErr.Param
	}

	body, _ := json.Marshal(map[string]any{"error": errObj})
	return body
}

// WriteError writes err as an OpenAI error envelope with the taxonomy's
// HTTP status.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := ToCanonicalError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatusCode())
	w.Write(ErrorBody(apiErr))
}
