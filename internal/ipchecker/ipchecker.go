// Package ipchecker provides utilities for extracting and validating
// client IP addresses from HTTP requests. It supports checking whether
// a given IP falls within a trusted subnet.
package ipchecker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/YashLadlapure/meme-vault/internal/httperror"
)

// ErrNoClientIP is returned when none of the request sources hold a valid IP.
var ErrNoClientIP = errors.New("no client IP in the request")

type peerAddrKey struct{}

// WithPeerIP remembers the socket peer address of the request. It must run
// before any middleware that rewrites RemoteAddr from forwarding headers.
func WithPeerIP(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		ctx := context.WithValue(request.Context(), peerAddrKey{}, request.RemoteAddr)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// PeerAddr returns the socket peer address remembered by WithPeerIP,
// falling back to RemoteAddr.
func PeerAddr(request *http.Request) string {
	if addr, ok := request.Context().Value(peerAddrKey{}).(string); ok {
		return addr
	}
	return request.RemoteAddr
}

// IPChecker is responsible for extracting a client's IP address from
// an HTTP request and validating whether it belongs to a trusted subnet.
type IPChecker struct {
	trustedSubnet *net.IPNet
}

// New creates a new IPChecker instance configured with a trusted subnet.
// If the input trustedSubnet is an empty string, the IPChecker will be
// initialized in a disabled state - so the IsTrustedSubnetEmpty will return true
//
// The trustedSubnet must be in CIDR notation (e.g., "192.168.1.0/24").
// Returns an error if the CIDR string cannot be parsed.
func New(trustedSubnet string) (*IPChecker, error) {
	if trustedSubnet == "" {
		return &IPChecker{
			trustedSubnet: nil,
		}, nil
	}
	_, allowedNet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/New(): error while `net.ParseCIDR()` calling: %w", err)
	}
	return &IPChecker{
		trustedSubnet: allowedNet,
	}, nil
}

// Check verifies whether the given IP address belongs to the configured
// trusted subnet. If no trusted subnet is configured, it returns false.
func (checker *IPChecker) Check(clientIP net.IP) bool {
	return checker.trustedSubnet != nil && clientIP != nil && checker.trustedSubnet.Contains(clientIP)
}

// GetClientIP extracts the client's IP address from an HTTP request,
// checking in order: the "X-Real-IP" header, the "X-Forwarded-For" header,
// and finally the request's RemoteAddr field.
func (checker *IPChecker) GetClientIP(request *http.Request) (net.IP, error) {
	if ip := net.ParseIP(strings.TrimSpace(request.Header.Get("X-Real-IP"))); ip != nil {
		return ip, nil
	}
	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip, nil
		}
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		host = request.RemoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/GetClientIP(): %w: %q", ErrNoClientIP, request.RemoteAddr)
	}

	return ip, nil
}

// ClientKey is the IP of the connecting peer, or the raw peer address when
// it holds no IP. Client supplied X-Real-IP and X-Forwarded-For headers are
// ignored. Throttling uses it as the bucket key.
func (checker *IPChecker) ClientKey(request *http.Request) string {
	addr := PeerAddr(request)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return addr
}

// IsTrustedSubnetEmpty returns true if the IPChecker was initialized
// without a trusted subnet.
func (checker *IPChecker) IsTrustedSubnetEmpty() bool {
	return checker.trustedSubnet == nil
}

// TrustedSubnetOnly answers 403 to clients outside the trusted subnet,
// and to everyone when no subnet is configured.
func (checker *IPChecker) TrustedSubnetOnly(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if checker.IsTrustedSubnetEmpty() {
			httperror.RespondWithError(response, httperror.Forbidden("Trusted subnet is not configured"))
			return
		}
		clientIP, err := checker.GetClientIP(request)
		if err != nil || !checker.Check(clientIP) {
			httperror.RespondWithError(response, httperror.Forbidden("Access denied"))
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
