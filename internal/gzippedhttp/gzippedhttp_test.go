package gzippedhttp

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func TestGzipResponse(t *testing.T) {
	tests := []struct {
		name            string
		acceptEncoding  string
		contentType     string
		status          int
		expectedEncoded bool
	}{
		{
			name:            "JSON is compressed for gzip clients",
			acceptEncoding:  "gzip, deflate",
			contentType:     "application/json",
			status:          http.StatusOK,
			expectedEncoded: true,
		},
		{
			name:            "Errors are compressed too",
			acceptEncoding:  "gzip",
			contentType:     "application/json",
			status:          http.StatusNotFound,
			expectedEncoded: true,
		},
		{
			name:            "Images pass through",
			acceptEncoding:  "gzip",
			contentType:     "image/png",
			status:          http.StatusOK,
			expectedEncoded: false,
		},
		{
			name:            "Clients without gzip get plain bodies",
			contentType:     "application/json",
			status:          http.StatusOK,
			expectedEncoded: false,
		},
	}

	body := []byte(`{"message":"hello"}`)

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			handler := GzipResponse(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", test.contentType)
				w.WriteHeader(test.status)
				_, _ = w.Write(body)
			}))

			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if test.acceptEncoding != "" {
				request.Header.Set("Accept-Encoding", test.acceptEncoding)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			assert.Equal(t, test.status, recorder.Code)
			if !test.expectedEncoded {
				assert.Empty(t, recorder.Header().Get("Content-Encoding"))
				assert.Equal(t, body, recorder.Body.Bytes())
				return
			}

			assert.Equal(t, "gzip", recorder.Header().Get("Content-Encoding"))
			zr, err := gzip.NewReader(recorder.Body)
			require.NoError(t, err)
			decoded, err := io.ReadAll(zr)
			require.NoError(t, err)
			assert.Equal(t, body, decoded)
		})
	}
}

func TestUngzipJSONRequest(t *testing.T) {
	echo := UngzipJSONRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		_, _ = w.Write(data)
	}))

	t.Run("Gzipped JSON is decoded", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/api/folders", bytes.NewReader(gzipBytes(t, []byte(`{"name":"funny"}`))))
		request.Header.Set("Content-Type", "application/json")
		request.Header.Set("Content-Encoding", "gzip")
		recorder := httptest.NewRecorder()

		echo.ServeHTTP(recorder, request)

		assert.Equal(t, `{"name":"funny"}`, recorder.Body.String())
	})

	t.Run("A broken gzip body is a bad request", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/api/folders", bytes.NewReader([]byte("plain")))
		request.Header.Set("Content-Type", "application/json")
		request.Header.Set("Content-Encoding", "gzip")
		recorder := httptest.NewRecorder()

		echo.ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("Other content types are untouched", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/api/memes", bytes.NewReader([]byte("raw")))
		request.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		request.Header.Set("Content-Encoding", "gzip")
		recorder := httptest.NewRecorder()

		echo.ServeHTTP(recorder, request)

		assert.Equal(t, "raw", recorder.Body.String())
	})
}
