// Package device derives the client signals a session is bound to.
package device

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"healthbff/pkg/platform/middleware/metadata"
	"healthbff/pkg/requestcontext"
)

// ClientInfo is the request-side view of the bound client.
type ClientInfo struct {
	IPAddress         string
	UserAgent         string
	AcceptLanguage    string
	AcceptEncoding    string
	DeviceFingerprint string
}

// MatchesFingerprint compares against a stored fingerprint. A blank value on
// either side never matches.
func (c ClientInfo) MatchesFingerprint(stored string) bool {
	current := strings.TrimSpace(c.DeviceFingerprint)
	stored = strings.TrimSpace(stored)
	if current == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(current), []byte(stored)) == 1
}

// Service computes fingerprints. A disabled service yields empty fingerprints
// so binding falls back to IP / user-agent checks.
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// Enabled reports whether fingerprints are computed.
func (s *Service) Enabled() bool { return s != nil && s.enabled }

// ComputeFingerprint hashes the non-empty signals joined by "|".
func (s *Service) ComputeFingerprint(info ClientInfo) string {
	if !s.Enabled() {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, v := range []string{info.UserAgent, info.AcceptLanguage, info.AcceptEncoding} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// ClientInfoFromRequest collects signals and computes the fingerprint.
func (s *Service) ClientInfoFromRequest(r *http.Request) ClientInfo {
	ctx := r.Context()
	info := ClientInfo{
		IPAddress:      requestcontext.ClientIP(ctx),
		UserAgent:      r.Header.Get("User-Agent"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
	}
	if info.IPAddress == "" {
		info.IPAddress = metadata.ClientIPFromRequest(r)
	}
	if fp := requestcontext.DeviceFingerprint(ctx); fp != "" {
		info.DeviceFingerprint = fp
	} else {
		info.DeviceFingerprint = s.ComputeFingerprint(info)
	}
	return info
}

// Middleware stores the request fingerprint in the context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := ClientInfo{
			UserAgent:      r.Header.Get("User-Agent"),
			AcceptLanguage: r.Header.Get("Accept-Language"),
			AcceptEncoding: r.Header.Get("Accept-Encoding"),
		}
		if fp := s.ComputeFingerprint(info); fp != "" {
			r = r.WithContext(requestcontext.WithDeviceFingerprint(r.Context(), fp))
		}
		next.ServeHTTP(w, r)
	})
}

// HashUserAgent is the stored form of the user agent used by UA binding.
func HashUserAgent(ua string) string {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ua))
	return hex.EncodeToString(sum[:])
}

// ParseUserAgent renders a short display name such as "Chrome 120 on Linux x86_64".
func ParseUserAgent(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return "Unknown Device"
	}
	parsed := useragent.New(ua)

	browser, version := parsed.Browser()
	browser = strings.TrimSpace(browser)
	if browser == "" {
		browser = "Unknown Browser"
	}
	if major, _, _ := strings.Cut(version, "."); major != "" {
		browser += " " + major
	}

	os := strings.TrimSpace(parsed.OS())
	platform := strings.TrimSpace(parsed.Platform())
	switch {
	case os == "":
		os = platform
	case parsed.Mobile() && platform != "" && !strings.Contains(os, platform):
		os = platform + " (" + os + ")"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}
