// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package auth guards the mutating API routes with a static bearer token.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ManuGH/loopcast/internal/log"
)

// ExtractToken retrieves the API token from the request.
// 1. Authorization: Bearer <token>
// 2. Header: X-API-Token
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Token"))
}

// AuthorizeToken returns true if got matches expected using constant-time comparison.
// Empty tokens are always treated as unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// AuthorizeRequest extracts a token from r and validates it against expectedToken.
func AuthorizeRequest(r *http.Request, expectedToken string) bool {
	if r == nil {
		return false
	}
	return AuthorizeToken(ExtractToken(r), expectedToken)
}

// Require rejects requests without the expected token. With no token
// configured every request is refused.
func Require(expectedToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizeRequest(r, expectedToken) {
				next.ServeHTTP(w, r)
				return
			}
			code, msg := http.StatusUnauthorized, "missing or invalid API token"
			if strings.TrimSpace(expectedToken) == "" {
				code, msg = http.StatusForbidden, "no API token configured, mutating requests are disabled"
			}
			logger := log.WithContext(r.Context(), log.WithComponent("auth"))
			logger.Warn().
				Str(log.FieldEvent, "auth.denied").
				Str("method", r.Method).
				Str(log.FieldPath, r.URL.Path).
				Int("status", code).
				Msg("request denied")

			w.Header().Set("Content-Type", "application/json")
			if code == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", `Bearer realm="loopcast"`)
			}
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
		})
	}
}
