package ipchecker

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	checker, err := New("")
	require.NoError(t, err)
	assert.True(t, checker.IsTrustedSubnetEmpty())
	assert.False(t, checker.Check(net.ParseIP("127.0.0.1")))

	_, err = New("not-a-cidr")
	assert.Error(t, err)
}

func TestGetClientIP(t *testing.T) {
	checker, err := New("")
	require.NoError(t, err)

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
		expectErr  bool
	}{
		{
			name:       "X-Real-IP wins",
			headers:    map[string]string{"X-Real-IP": "10.0.0.7", "X-Forwarded-For": "10.0.0.8"},
			remoteAddr: "192.0.2.1:1234",
			expectedIP: "10.0.0.7",
		},
		{
			name:       "First X-Forwarded-For entry",
			headers:    map[string]string{"X-Forwarded-For": "10.0.0.8, 10.0.0.9"},
			remoteAddr: "192.0.2.1:1234",
			expectedIP: "10.0.0.8",
		},
		{
			name:       "Garbage headers fall back to RemoteAddr",
			headers:    map[string]string{"X-Forwarded-For": "garbage"},
			remoteAddr: "192.0.2.1:1234",
			expectedIP: "192.0.2.1",
		},
		{
			name:       "Unparsable RemoteAddr",
			remoteAddr: "pipe",
			expectErr:  true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			request.RemoteAddr = test.remoteAddr
			for key, value := range test.headers {
				request.Header.Set(key, value)
			}

			ip, err := checker.GetClientIP(request)
			if test.expectErr {
				assert.ErrorIs(t, err, ErrNoClientIP)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expectedIP, ip.String())
		})
	}
}

func TestClientKey(t *testing.T) {
	checker, err := New("")
	require.NoError(t, err)

	tests := []struct {
		name        string
		headers     map[string]string
		remoteAddr  string
		rewriteAddr string
		expectedKey string
	}{
		{
			name:        "Forwarding headers are ignored",
			headers:     map[string]string{"X-Real-IP": "203.0.113.1", "X-Forwarded-For": "203.0.113.2"},
			remoteAddr:  "192.0.2.1:1234",
			expectedKey: "192.0.2.1",
		},
		{
			name:        "Rewritten RemoteAddr is ignored",
			headers:     map[string]string{"X-Real-IP": "203.0.113.1"},
			remoteAddr:  "192.0.2.1:1234",
			rewriteAddr: "203.0.113.1",
			expectedKey: "192.0.2.1",
		},
		{
			name:        "IPv6 peer",
			remoteAddr:  "[2001:db8::1]:443",
			expectedKey: "2001:db8::1",
		},
		{
			name:        "Unparsable peer address",
			remoteAddr:  "pipe",
			expectedKey: "pipe",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			request.RemoteAddr = test.remoteAddr
			for key, value := range test.headers {
				request.Header.Set(key, value)
			}

			var key string
			handler := WithPeerIP(http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
				if test.rewriteAddr != "" {
					request.RemoteAddr = test.rewriteAddr
				}
				key = checker.ClientKey(request)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), request)

			assert.Equal(t, test.expectedKey, key)
		})
	}
}

func TestTrustedSubnetOnly(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	trusted, err := New("10.0.0.0/8")
	require.NoError(t, err)
	disabled, err := New("")
	require.NoError(t, err)

	tests := []struct {
		name           string
		checker        *IPChecker
		realIP         string
		expectedStatus int
	}{
		{name: "Inside the subnet", checker: trusted, realIP: "10.1.2.3", expectedStatus: http.StatusOK},
		{name: "Outside the subnet", checker: trusted, realIP: "192.168.1.1", expectedStatus: http.StatusForbidden},
		{name: "No subnet configured", checker: disabled, realIP: "10.1.2.3", expectedStatus: http.StatusForbidden},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/api/internal/stats", nil)
			request.Header.Set("X-Real-IP", test.realIP)
			recorder := httptest.NewRecorder()

			test.checker.TrustedSubnetOnly(ok).ServeHTTP(recorder, request)

			assert.Equal(t, test.expectedStatus, recorder.Code)
		})
	}
}
