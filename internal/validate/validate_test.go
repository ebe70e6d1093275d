// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_AccumulatesErrors(t *testing.T) {
	v := New()
	v.NotEmpty("apiToken", "  ")
	v.Range("maxRestarts", 42, 0, 20)
	v.OneOf("store.backend", "mongo", []string{"json", "sqlite"})
	require.False(t, v.IsValid())

	err := v.Err()
	require.Error(t, err)
	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors(), 3)
	assert.Contains(t, err.Error(), "maxRestarts")
	assert.Contains(t, err.Error(), "; ")
}

func TestValidator_NoErrors(t *testing.T) {
	v := New()
	v.Range("x", 1, 0, 2)
	v.Fraction("rate", 0.5)
	v.PositiveDuration("tick", time.Second)
	assert.True(t, v.IsValid())
	assert.NoError(t, v.Err())
}

func TestURL(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"rtmp://a.rtmp.youtube.com/live2/key", true},
		{"http://collector:4318", true},
		{"", false},
		{"rtmp:///nohost", false},
		{"ftp://host/x", false},
	}
	for _, tt := range tests {
		v := New()
		v.URL("url", tt.value, []string{"rtmp", "rtmps", "http", "https"})
		assert.Equal(t, tt.ok, v.IsValid(), tt.value)
	}
}

func TestListenAddr(t *testing.T) {
	for addr, ok := range map[string]bool{
		":8080":          true,
		"127.0.0.1:3000": true,
		"8080":           false,
		":99999":         false,
	} {
		v := New()
		v.ListenAddr("listenAddr", addr)
		assert.Equal(t, ok, v.IsValid(), addr)
	}
}

func TestDirectory(t *testing.T) {
	root := t.TempDir()

	v := New()
	v.Directory("dataDir", filepath.Join(root, "new", "nested"), false)
	assert.True(t, v.IsValid())
	assert.DirExists(t, filepath.Join(root, "new", "nested"))

	v = New()
	v.Directory("dataDir", filepath.Join(root, "missing"), true)
	assert.False(t, v.IsValid())

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	v = New()
	v.Directory("dataDir", file, false)
	assert.False(t, v.IsValid())
}

func TestTimezone(t *testing.T) {
	v := New()
	v.Timezone("timezone", "")
	v.Timezone("timezone", "UTC")
	assert.True(t, v.IsValid())

	v.Timezone("timezone", "Mars/Olympus")
	assert.False(t, v.IsValid())
}
