// Package httperror carries an HTTP status together with a user-facing
// message and writes both as a JSON body of the form {"error": "..."}.
package httperror

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/YashLadlapure/meme-vault/internal/logger"
)

const (
	msgBadRequest      = "Bad Request"
	msgNotFound        = "Resource not found"
	msgInternalServer  = "Internal Server Error"
	msgUnauthorized    = "Unauthorized"
	msgForbidden       = "Forbidden"
	msgConflict        = "Conflict"
	msgTooManyRequests = "Too Many Requests"
)

// HTTPError is an error with an associated HTTP status code.
type HTTPError struct {
	cause   error
	Code    int
	Message string
}

func (he *HTTPError) Error() string {
	return he.Message
}

func (he *HTTPError) Unwrap() error {
	return he.cause
}

func defaultMessageIfEmpty(message, defaultVal string) string {
	if message == "" {
		return defaultVal
	}
	return message
}

// New creates an HTTPError whose cause is the message itself.
func New(code int, message string) *HTTPError {
	return &HTTPError{
		cause:   errors.New(message),
		Code:    code,
		Message: message,
	}
}

// Wrap creates an HTTPError around an existing error.
func Wrap(code int, message string, cause error) *HTTPError {
	return &HTTPError{
		cause:   cause,
		Code:    code,
		Message: message,
	}
}

func BadRequest(message string, cause error) *HTTPError {
	return Wrap(http.StatusBadRequest, defaultMessageIfEmpty(message, msgBadRequest), cause)
}

func Unauthorized(message string) *HTTPError {
	return New(http.StatusUnauthorized, defaultMessageIfEmpty(message, msgUnauthorized))
}

func Forbidden(message string) *HTTPError {
	return New(http.StatusForbidden, defaultMessageIfEmpty(message, msgForbidden))
}

func NotFound(message string) *HTTPError {
	return New(http.StatusNotFound, defaultMessageIfEmpty(message, msgNotFound))
}

func Conflict(message string) *HTTPError {
	return New(http.StatusConflict, defaultMessageIfEmpty(message, msgConflict))
}

func TooManyRequests(message string) *HTTPError {
	return New(http.StatusTooManyRequests, defaultMessageIfEmpty(message, msgTooManyRequests))
}

// InternalServer hides the cause from the client.
func InternalServer(cause error) *HTTPError {
	return Wrap(http.StatusInternalServerError, msgInternalServer, cause)
}

// RespondWithError writes err. Anything that is not an *HTTPError becomes a 500.
func RespondWithError(response http.ResponseWriter, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = InternalServer(err)
	}
	if httpErr.Code >= http.StatusInternalServerError {
		logger.Log.Debugln("Responding with internal error: ", zap.Error(err))
	}

	RespondWithJSON(response, httpErr.Code, map[string]string{"error": httpErr.Message})
}

// RespondWithJSON encodes payload with the given status.
func RespondWithJSON(response http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Debugln("Error calling the `json.Marshal()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	_, err = response.Write(body)
	if err != nil {
		logger.Log.Debugln("Error calling the `response.Write()`: ", zap.Error(err))
	}
}
