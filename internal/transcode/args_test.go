// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexOfArg(args []string, want string) int {
	for i, a := range args {
		if a == want {
			return i
		}
	}
	return -1
}

func argAfter(t *testing.T, args []string, flag string) string {
	t.Helper()
	i := indexOfArg(args, flag)
	require.GreaterOrEqual(t, i, 0, "flag %s missing in %v", flag, args)
	require.Less(t, i+1, len(args))
	return args[i+1]
}

func TestBuildArgs_Defaults(t *testing.T) {
	args, err := BuildArgs(DefaultSettings(), "/data/uploads/1.mp4", "rtmp://live/app/key")
	require.NoError(t, err)

	assert.Equal(t, "/data/uploads/1.mp4", argAfter(t, args, "-i"))
	assert.Equal(t, "libx264", argAfter(t, args, "-c:v"))
	assert.Equal(t, "veryfast", argAfter(t, args, "-preset"))
	assert.Equal(t, "3000k", argAfter(t, args, "-b:v"))
	assert.Equal(t, "6000k", argAfter(t, args, "-bufsize"))
	assert.Equal(t, "yuv420p", argAfter(t, args, "-pix_fmt"))
	assert.Equal(t, "60", argAfter(t, args, "-g"))
	assert.Equal(t, "aac", argAfter(t, args, "-c:a"))
	assert.Equal(t, "44100", argAfter(t, args, "-ar"))
	assert.Equal(t, "pipe:2", argAfter(t, args, "-progress"))
	assert.Equal(t, "flv", argAfter(t, args, "-f"))
	assert.Equal(t, "rtmp://live/app/key", args[len(args)-1])

	// -re must precede the input
	assert.Less(t, indexOfArg(args, "-re"), indexOfArg(args, "-i"))
	assert.Equal(t, -1, indexOfArg(args, "-stream_loop"))
}

func TestBuildArgs_LoopAndExtra(t *testing.T) {
	s := DefaultSettings()
	s.Loop = true
	s.ReadRealtime = false
	s.ExtraArgs = []string{"-flvflags", "no_duration_filesize"}

	args, err := BuildArgs(s, "in.mp4", "rtmp://x")
	require.NoError(t, err)
	assert.Equal(t, "-1", argAfter(t, args, "-stream_loop"))
	assert.Equal(t, -1, indexOfArg(args, "-re"))
	assert.Less(t, indexOfArg(args, "-flvflags"), indexOfArg(args, "-f"))
}

func TestBuildArgs_ZeroSettingsFallBack(t *testing.T) {
	args, err := BuildArgs(Settings{}, "in.mp4", "rtmp://x")
	require.NoError(t, err)
	assert.Equal(t, "libx264", argAfter(t, args, "-c:v"))
	assert.Equal(t, "60", argAfter(t, args, "-g"))
}

func TestBuildArgs_MissingEnds(t *testing.T) {
	_, err := BuildArgs(DefaultSettings(), "", "rtmp://x")
	assert.ErrorIs(t, err, ErrMissingInput)
	_, err = BuildArgs(DefaultSettings(), "in.mp4", "")
	assert.ErrorIs(t, err, ErrMissingOutput)
}
