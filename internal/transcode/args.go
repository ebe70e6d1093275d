// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcode builds the ffmpeg invocation for a job and interprets
// what ffmpeg writes to stderr.
package transcode

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrMissingInput  = errors.New("missing input path")
	ErrMissingOutput = errors.New("missing output url")
)

// Settings is the encoder profile used for every job. The lifecycle code
// never looks inside it.
type Settings struct {
	Binary       string   `yaml:"binary"`
	LogLevel     string   `yaml:"logLevel"`
	ReadRealtime bool     `yaml:"readRealtime"` // -re: read input at native rate
	Loop         bool     `yaml:"loop"`         // -stream_loop -1: repeat input forever
	VideoCodec   string   `yaml:"videoCodec"`
	Preset       string   `yaml:"preset"`
	VideoBitrate string   `yaml:"videoBitrate"`
	MaxRate      string   `yaml:"maxRate"`
	BufSize      string   `yaml:"bufSize"`
	PixFmt       string   `yaml:"pixFmt"`
	GOP          int      `yaml:"gop"`
	AudioCodec   string   `yaml:"audioCodec"`
	AudioBitrate string   `yaml:"audioBitrate"`
	AudioRate    int      `yaml:"audioRate"`
	Format       string   `yaml:"format"`
	ExtraArgs    []string `yaml:"extraArgs"` // inserted before the output url
}

// DefaultSettings returns a 3 Mbit/s H.264 + AAC FLV profile suitable for
// RTMP ingest.
func DefaultSettings() Settings {
	return Settings{
		Binary:       "ffmpeg",
		LogLevel:     "info",
		ReadRealtime: true,
		VideoCodec:   "libx264",
		Preset:       "veryfast",
		VideoBitrate: "3000k",
		MaxRate:      "3000k",
		BufSize:      "6000k",
		PixFmt:       "yuv420p",
		GOP:          60,
		AudioCodec:   "aac",
		AudioBitrate: "128k",
		AudioRate:    44100,
		Format:       "flv",
	}
}

// BuildArgs constructs the ffmpeg arguments that push input to output.
// No shell is involved; every value is a separate argv element.
func BuildArgs(s Settings, input, output string) ([]string, error) {
	if input == "" {
		return nil, ErrMissingInput
	}
	if output == "" {
		return nil, ErrMissingOutput
	}
	d := DefaultSettings()

	logLevel := or(s.LogLevel, d.LogLevel)
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", logLevel,
	}
	if s.ReadRealtime {
		args = append(args, "-re")
	}
	if s.Loop {
		args = append(args, "-stream_loop", "-1")
	}
	args = append(args, "-i", input)

	args = append(args,
		"-c:v", or(s.VideoCodec, d.VideoCodec),
		"-preset", or(s.Preset, d.Preset),
		"-b:v", or(s.VideoBitrate, d.VideoBitrate),
		"-maxrate", or(s.MaxRate, d.MaxRate),
		"-bufsize", or(s.BufSize, d.BufSize),
		"-pix_fmt", or(s.PixFmt, d.PixFmt),
	)
	gop := s.GOP
	if gop <= 0 {
		gop = d.GOP
	}
	args = append(args, "-g", strconv.Itoa(gop))

	audioRate := s.AudioRate
	if audioRate <= 0 {
		audioRate = d.AudioRate
	}
	args = append(args,
		"-c:a", or(s.AudioCodec, d.AudioCodec),
		"-b:a", or(s.AudioBitrate, d.AudioBitrate),
		"-ar", strconv.Itoa(audioRate),
	)

	// Machine-readable progress on stderr keeps the liveness signal flowing
	// even at -loglevel error.
	args = append(args, "-progress", "pipe:2", "-stats_period", "5")
	args = append(args, s.ExtraArgs...)
	args = append(args, "-f", or(s.Format, d.Format), output)
	return args, nil
}

// Validate reports settings that would produce a broken command line.
func (s Settings) Validate() error {
	if s.Binary == "" {
		return fmt.Errorf("transcode: binary must not be empty")
	}
	if s.GOP < 0 {
		return fmt.Errorf("transcode: gop must be >= 0, got %d", s.GOP)
	}
	if s.AudioRate < 0 {
		return fmt.Errorf("transcode: audioRate must be >= 0, got %d", s.AudioRate)
	}
	return nil
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
