// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleRunes       = 100
	MaxDescriptionRunes = 5000
)

var (
	visibilities = []string{"public", "unlisted", "private"}
	latencies    = []string{"normal", "low", "ultraLow"}
)

// Audience holds the audience flags of a broadcast.
type Audience struct {
	MadeForKids bool `json:"madeForKids"`
}

// Chat holds live chat settings.
type Chat struct {
	Enabled bool `json:"enabled"`
}

// Metadata is descriptive information about a broadcast. The core stores it
// and never interprets it.
type Metadata struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	Visibility   string   `json:"visibility"`
	CategoryID   string   `json:"categoryId"`
	Audience     Audience `json:"audience"`
	Chat         Chat     `json:"chat"`
	DVR          bool     `json:"dvr"`
	Latency      string   `json:"latency"`
	Monetization bool     `json:"monetization"`
}

// DefaultMetadata returns the metadata every new job starts with.
func DefaultMetadata() Metadata {
	return Metadata{
		Tags:       []string{},
		Visibility: "public",
		CategoryID: "22",
		Chat:       Chat{Enabled: true},
		DVR:        true,
		Latency:    "normal",
	}
}

func (m Metadata) clone() Metadata {
	m.Tags = slices.Clone(m.Tags)
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return m
}

// AudiencePatch is a partial Audience.
type AudiencePatch struct {
	MadeForKids *bool `json:"madeForKids,omitempty"`
}

// ChatPatch is a partial Chat.
type ChatPatch struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// MetadataPatch carries the fields a caller wants to change. Nil fields are
// left alone. MadeForKids is the flat legacy spelling of
// Audience.MadeForKids; the nested form wins when both are set.
type MetadataPatch struct {
	Title        *string        `json:"title,omitempty"`
	Description  *string        `json:"description,omitempty"`
	Tags         *[]string      `json:"tags,omitempty"`
	Visibility   *string        `json:"visibility,omitempty"`
	CategoryID   *string        `json:"categoryId,omitempty"`
	Audience     *AudiencePatch `json:"audience,omitempty"`
	MadeForKids  *bool          `json:"madeForKids,omitempty"`
	Chat         *ChatPatch     `json:"chat,omitempty"`
	DVR          *bool          `json:"dvr,omitempty"`
	Latency      *string        `json:"latency,omitempty"`
	Monetization *bool          `json:"monetization,omitempty"`
}

// Validate checks the patch without applying it.
func (p MetadataPatch) Validate() error {
	if p.Title != nil && utf8.RuneCountInString(*p.Title) > MaxTitleRunes {
		return fmt.Errorf("%w: title longer than %d characters", ErrInvalidPatch, MaxTitleRunes)
	}
	if p.Description != nil && utf8.RuneCountInString(*p.Description) > MaxDescriptionRunes {
		return fmt.Errorf("%w: description longer than %d characters", ErrInvalidPatch, MaxDescriptionRunes)
	}
	if p.Visibility != nil && !slices.Contains(visibilities, *p.Visibility) {
		return fmt.Errorf("%w: visibility %q not one of %v", ErrInvalidPatch, *p.Visibility, visibilities)
	}
	if p.Latency != nil && !slices.Contains(latencies, *p.Latency) {
		return fmt.Errorf("%w: latency %q not one of %v", ErrInvalidPatch, *p.Latency, latencies)
	}
	return nil
}

// Apply returns m with the patch merged in. Nested audience and chat objects
// merge field by field. m is not modified.
func (p MetadataPatch) Apply(m Metadata) (Metadata, error) {
	if err := p.Validate(); err != nil {
		return m, err
	}
	out := m.clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Tags != nil {
		out.Tags = normalizeTags(*p.Tags)
	}
	if p.Visibility != nil {
		out.Visibility = *p.Visibility
	}
	if p.CategoryID != nil {
		out.CategoryID = *p.CategoryID
	}
	if p.MadeForKids != nil {
		out.Audience.MadeForKids = *p.MadeForKids
	}
	if p.Audience != nil && p.Audience.MadeForKids != nil {
		out.Audience.MadeForKids = *p.Audience.MadeForKids
	}
	if p.Chat != nil && p.Chat.Enabled != nil {
		out.Chat.Enabled = *p.Chat.Enabled
	}
	if p.DVR != nil {
		out.DVR = *p.DVR
	}
	if p.Latency != nil {
		out.Latency = *p.Latency
	}
	if p.Monetization != nil {
		out.Monetization = *p.Monetization
	}
	return out, nil
}

func normalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
