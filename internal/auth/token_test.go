// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"bearer", map[string]string{"Authorization": "Bearer abc "}, "abc"},
		{"legacy header", map[string]string{"X-API-Token": "xyz"}, "xyz"},
		{"bearer wins", map[string]string{"Authorization": "Bearer abc", "X-API-Token": "xyz"}, "abc"},
		{"basic ignored", map[string]string{"Authorization": "Basic Zm9vOmJhcg=="}, ""},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ExtractToken(r))
		})
	}
}

func TestAuthorizeToken(t *testing.T) {
	assert.True(t, AuthorizeToken("secret", "secret"))
	assert.False(t, AuthorizeToken("Secret", "secret"))
	assert.False(t, AuthorizeToken("", "secret"))
	assert.False(t, AuthorizeToken("", ""))
	assert.False(t, AuthorizeToken("x", "  "))
	assert.False(t, AuthorizeRequest(nil, "secret"))
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	serve := func(token, header string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
		if header != "" {
			r.Header.Set("Authorization", "Bearer "+header)
		}
		rec := httptest.NewRecorder()
		Require(token)(ok).ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, serve("secret", "secret").Code)

	rec := serve("secret", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	assert.Equal(t, http.StatusUnauthorized, serve("secret", "").Code)
	assert.Equal(t, http.StatusForbidden, serve("", "anything").Code)
}
