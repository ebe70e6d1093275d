// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"strconv"
	"strings"
)

// Progress is the latest state reported through -progress.
type Progress struct {
	Frame     int64
	OutTimeMs int64
	TotalSize int64
	Speed     string
	Ended     bool
}

// ParseLine folds one stderr line into p. It reports whether the line was a
// progress key.
func (p *Progress) ParseLine(line string) bool {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return false
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	switch key {
	case "frame":
		p.Frame = parseInt(val, p.Frame)
	case "out_time_ms", "out_time_us":
		// ffmpeg reports microseconds under both keys.
		p.OutTimeMs = parseInt(val, p.OutTimeMs*1000) / 1000
	case "total_size":
		p.TotalSize = parseInt(val, p.TotalSize)
	case "speed":
		p.Speed = val
	case "progress":
		p.Ended = val == "end"
	case "fps", "bitrate", "out_time", "dup_frames", "drop_frames", "stream_0_0_q":
	default:
		return false
	}
	return true
}

func parseInt(s string, fallback int64) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

// IsStatsLine matches the classic single-line stats output
// ("frame=  120 fps= 30 ... speed=1.0x").
func IsStatsLine(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "frame=") && strings.Contains(line, "time=")
}
