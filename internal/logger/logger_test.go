package logger

import (
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	require.NoError(t, Init("debug"))
	assert.NotNil(t, Log)
	assert.NoError(t, Sync())

	assert.Error(t, Init("loud"), "unknown levels should be rejected")
}

func TestIgnoreUnsyncable(t *testing.T) {
	diskFull := &fs.PathError{Op: "sync", Path: "/var/log/memevault.log", Err: syscall.ENOSPC}

	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "No error", err: nil, expected: nil},
		{name: "Piped stderr", err: &fs.PathError{Op: "sync", Path: "/dev/stderr", Err: syscall.EINVAL}, expected: nil},
		{name: "Terminal stderr", err: &fs.PathError{Op: "sync", Path: "/dev/stderr", Err: syscall.ENOTTY}, expected: nil},
		{name: "Closed descriptor", err: &fs.PathError{Op: "sync", Path: "/dev/stdout", Err: syscall.EBADF}, expected: nil},
		{name: "Invalid file", err: fs.ErrInvalid, expected: nil},
		{name: "Real failure", err: diskFull, expected: diskFull},
		{name: "Unrelated error", err: errors.New("boom"), expected: errors.New("boom")},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, ignoreUnsyncable(test.err))
		})
	}
}

func TestWithLoggingHTTPMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "The explicit status is passed through",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte("created"))
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   "created",
		},
		{
			name: "A bare write means 200",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("ok"))
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "ok",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			WithLoggingHTTPMiddleware(test.handler).ServeHTTP(
				recorder,
				httptest.NewRequest(http.MethodGet, "/ping", nil),
			)

			assert.Equal(t, test.expectedStatus, recorder.Code)
			assert.Equal(t, test.expectedBody, recorder.Body.String())
		})
	}
}
