// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	ClockLayout = "15:04"
	DateLayout  = "2006-01-02"
)

// DayTags are the weekday tags indexed by time.Weekday.
var DayTags = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// DayTag returns the tag for t's weekday.
func DayTag(t time.Time) string {
	return DayTags[t.Weekday()]
}

// Schedule describes when a job should start (and optionally stop) itself.
// LastRun and LastStop hold the local date of the latest trigger and guard
// against firing twice on one day.
type Schedule struct {
	Enabled  bool     `json:"enabled"`
	EveryDay bool     `json:"everyDay"`
	Days     []string `json:"days"`
	Time     string   `json:"time,omitempty"`
	StopTime string   `json:"stopTime,omitempty"`
	LastRun  string   `json:"lastRun,omitempty"`
	LastStop string   `json:"lastStop,omitempty"`
}

// DefaultSchedule returns a disabled, every-day schedule.
func DefaultSchedule() Schedule {
	return Schedule{EveryDay: true, Days: []string{}}
}

// OnDay reports whether the schedule applies on the given weekday tag.
func (s Schedule) OnDay(tag string) bool {
	return s.EveryDay || slices.Contains(s.Days, tag)
}

func (s Schedule) clone() Schedule {
	s.Days = slices.Clone(s.Days)
	if s.Days == nil {
		s.Days = []string{}
	}
	return s
}

// SchedulePatch carries the schedule fields a caller wants to change.
type SchedulePatch struct {
	Enabled  *bool     `json:"enabled,omitempty"`
	EveryDay *bool     `json:"everyDay,omitempty"`
	Days     *[]string `json:"days,omitempty"`
	Time     *string   `json:"time,omitempty"`
	StopTime *string   `json:"stopTime,omitempty"`
	LastRun  *string   `json:"lastRun,omitempty"`
	LastStop *string   `json:"lastStop,omitempty"`
}

// Validate checks the patch without applying it.
func (p SchedulePatch) Validate() error {
	if p.Days != nil {
		for _, d := range *p.Days {
			if !slices.Contains(DayTags[:], strings.ToLower(strings.TrimSpace(d))) {
				return fmt.Errorf("%w: days: unknown day %q", ErrInvalidPatch, d)
			}
		}
	}
	if p.Time != nil && *p.Time != "" {
		if _, err := time.Parse(ClockLayout, *p.Time); err != nil {
			return fmt.Errorf("%w: time: %q is not HH:MM", ErrInvalidPatch, *p.Time)
		}
	}
	if p.StopTime != nil && *p.StopTime != "" {
		if _, err := time.Parse(ClockLayout, *p.StopTime); err != nil {
			return fmt.Errorf("%w: stopTime: %q is not HH:MM", ErrInvalidPatch, *p.StopTime)
		}
	}
	if p.LastRun != nil && *p.LastRun != "" {
		if _, err := time.Parse(DateLayout, *p.LastRun); err != nil {
			return fmt.Errorf("%w: lastRun: %q is not YYYY-MM-DD", ErrInvalidPatch, *p.LastRun)
		}
	}
	if p.LastStop != nil && *p.LastStop != "" {
		if _, err := time.Parse(DateLayout, *p.LastStop); err != nil {
			return fmt.Errorf("%w: lastStop: %q is not YYYY-MM-DD", ErrInvalidPatch, *p.LastStop)
		}
	}
	return nil
}

// Apply returns s with the patch merged in. s is not modified.
func (p SchedulePatch) Apply(s Schedule) (Schedule, error) {
	if err := p.Validate(); err != nil {
		return s, err
	}
	out := s.clone()
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.EveryDay != nil {
		out.EveryDay = *p.EveryDay
	}
	if p.Days != nil {
		days := make([]string, 0, len(*p.Days))
		for _, d := range *p.Days {
			d = strings.ToLower(strings.TrimSpace(d))
			if !slices.Contains(days, d) {
				days = append(days, d)
			}
		}
		out.Days = days
	}
	if p.Time != nil {
		out.Time = *p.Time
	}
	if p.StopTime != nil {
		out.StopTime = *p.StopTime
	}
	if p.LastRun != nil {
		out.LastRun = *p.LastRun
	}
	if p.LastStop != nil {
		out.LastStop = *p.LastStop
	}
	return out, nil
}
