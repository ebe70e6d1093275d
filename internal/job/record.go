// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package job defines the job record, its patches and its phase machine.
package job

import "time"

const (
	// MaxRestarts caps consecutive automatic restarts.
	MaxRestarts = 5
	// RestartBackoff is the delay between an unexpected exit and the restart.
	RestartBackoff = 5 * time.Second
)

// Record is one streaming job. Runtime is never persisted.
type Record struct {
	ID        string
	Video     string
	Thumbnail string
	StreamURL string
	Metadata  Metadata
	Schedule  Schedule
	CreatedAt time.Time
	Runtime   Runtime
}

// Runtime is the volatile supervision state of a job.
type Runtime struct {
	Phase          Phase
	Running        bool
	PID            int
	Generation     uint64
	StartedAt      time.Time
	LastOutput     time.Time
	LastEndedAt    time.Time
	LastExitCode   *int
	LastExitSignal string
	AutoRestart    bool
	RestartCount   int
	StoppedByUser  bool
}

// Persisted is the durable subset of a Record.
type Persisted struct {
	ID        string    `json:"id"`
	Video     string    `json:"video"`
	Thumbnail string    `json:"thumbnail"`
	StreamURL string    `json:"streamUrl"`
	Metadata  Metadata  `json:"metadata"`
	Schedule  Schedule  `json:"schedule"`
	CreatedAt time.Time `json:"createdAt"`
}

// New returns a record with every default applied.
func New(id string, now time.Time) Record {
	return Record{
		ID:        id,
		Metadata:  DefaultMetadata(),
		Schedule:  DefaultSchedule(),
		CreatedAt: now,
		Runtime:   Runtime{Phase: PhaseIdle, AutoRestart: true},
	}
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.Metadata = r.Metadata.clone()
	r.Schedule = r.Schedule.clone()
	if r.Runtime.LastExitCode != nil {
		code := *r.Runtime.LastExitCode
		r.Runtime.LastExitCode = &code
	}
	return r
}

// Persisted returns the durable subset of r.
func (r Record) Persisted() Persisted {
	c := r.Clone()
	return Persisted{
		ID:        c.ID,
		Video:     c.Video,
		Thumbnail: c.Thumbnail,
		StreamURL: c.StreamURL,
		Metadata:  c.Metadata,
		Schedule:  c.Schedule,
		CreatedAt: c.CreatedAt,
	}
}

// FromPersisted rebuilds a record after a restart. The job is never running;
// missing nested values fall back to defaults.
func FromPersisted(p Persisted) Record {
	r := Record{
		ID:        p.ID,
		Video:     p.Video,
		Thumbnail: p.Thumbnail,
		StreamURL: p.StreamURL,
		Metadata:  p.Metadata.clone(),
		Schedule:  p.Schedule.clone(),
		CreatedAt: p.CreatedAt,
		Runtime:   Runtime{Phase: PhaseIdle, AutoRestart: true},
	}
	if r.Metadata.Visibility == "" {
		r.Metadata.Visibility = "public"
	}
	if r.Metadata.Latency == "" {
		r.Metadata.Latency = "normal"
	}
	if r.Metadata.CategoryID == "" {
		r.Metadata.CategoryID = "22"
	}
	return r
}

// Ready reports whether the job has everything it needs to start.
func (r Record) Ready() bool {
	return r.Video != "" && r.StreamURL != ""
}

// StatusView is the read-only snapshot handed to callers.
type StatusView struct {
	ID             string    `json:"id"`
	Video          string    `json:"video"`
	Thumbnail      string    `json:"thumbnail"`
	StreamURL      string    `json:"streamUrl"`
	Running        bool      `json:"running"`
	Phase          Phase     `json:"phase"`
	PID            int       `json:"pid,omitempty"`
	Generation     uint64    `json:"generation,omitempty"`
	StartedAt      time.Time `json:"startedAt,omitzero"`
	LastOutput     time.Time `json:"lastOutput,omitzero"`
	LastEndedAt    time.Time `json:"lastEndedAt,omitzero"`
	LastExitCode   *int      `json:"lastExitCode,omitempty"`
	LastExitSignal string    `json:"lastExitSignal,omitempty"`
	Frame          int64     `json:"frame,omitempty"`
	Speed          string    `json:"speed,omitempty"`
	RestartCount   int       `json:"restartCount"`
	AutoRestart    bool      `json:"autoRestart"`
	StoppedByUser  bool      `json:"stoppedByUser"`
	Metadata       Metadata  `json:"metadata"`
	Schedule       Schedule  `json:"schedule"`
	CreatedAt      time.Time `json:"createdAt"`
}

// View returns the status snapshot of r.
func (r Record) View() StatusView {
	c := r.Clone()
	return StatusView{
		ID:             c.ID,
		Video:          c.Video,
		Thumbnail:      c.Thumbnail,
		StreamURL:      c.StreamURL,
		Running:        c.Runtime.Running,
		Phase:          c.Runtime.Phase,
		PID:            c.Runtime.PID,
		Generation:     c.Runtime.Generation,
		StartedAt:      c.Runtime.StartedAt,
		LastOutput:     c.Runtime.LastOutput,
		LastEndedAt:    c.Runtime.LastEndedAt,
		LastExitCode:   c.Runtime.LastExitCode,
		LastExitSignal: c.Runtime.LastExitSignal,
		RestartCount:   c.Runtime.RestartCount,
		AutoRestart:    c.Runtime.AutoRestart,
		StoppedByUser:  c.Runtime.StoppedByUser,
		Metadata:       c.Metadata,
		Schedule:       c.Schedule,
		CreatedAt:      c.CreatedAt,
	}
}
