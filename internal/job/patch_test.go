// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package job

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestMetadataPatch_DeepMergesNestedObjects(t *testing.T) {
	base := DefaultMetadata()
	base.Title = "Morning loop"

	out, err := MetadataPatch{
		Description: ptr("24/7"),
		Audience:    &AudiencePatch{MadeForKids: ptr(true)},
	}.Apply(base)
	require.NoError(t, err)

	want := base.clone()
	want.Description = "24/7"
	want.Audience.MadeForKids = true
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
	// Chat untouched by an audience-only patch.
	assert.True(t, out.Chat.Enabled)
	// Input not mutated.
	assert.Equal(t, "", base.Description)
}

func TestMetadataPatch_FlatMadeForKids(t *testing.T) {
	out, err := MetadataPatch{MadeForKids: ptr(true)}.Apply(DefaultMetadata())
	require.NoError(t, err)
	assert.True(t, out.Audience.MadeForKids)

	out, err = MetadataPatch{
		MadeForKids: ptr(true),
		Audience:    &AudiencePatch{MadeForKids: ptr(false)},
	}.Apply(DefaultMetadata())
	require.NoError(t, err)
	assert.False(t, out.Audience.MadeForKids, "nested form wins")
}

func TestMetadataPatch_NormalizesTags(t *testing.T) {
	out, err := MetadataPatch{Tags: ptr([]string{" lofi ", "", "lofi", "music"})}.Apply(DefaultMetadata())
	require.NoError(t, err)
	assert.Equal(t, []string{"lofi", "music"}, out.Tags)
}

func TestMetadataPatch_Rejects(t *testing.T) {
	cases := map[string]MetadataPatch{
		"visibility": {Visibility: ptr("secret")},
		"latency":    {Latency: ptr("instant")},
		"title":      {Title: ptr(strings.Repeat("x", MaxTitleRunes+1))},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			base := DefaultMetadata()
			out, err := p.Apply(base)
			require.ErrorIs(t, err, ErrInvalidPatch)
			assert.Equal(t, base, out)
		})
	}
}

func TestSchedulePatch_ShallowMerge(t *testing.T) {
	base := DefaultSchedule()
	out, err := SchedulePatch{
		Enabled:  ptr(true),
		EveryDay: ptr(false),
		Days:     ptr([]string{"MON", "fri", "mon"}),
		Time:     ptr("06:00"),
	}.Apply(base)
	require.NoError(t, err)
	assert.True(t, out.Enabled)
	assert.Equal(t, []string{"mon", "fri"}, out.Days)
	assert.Equal(t, "06:00", out.Time)
	assert.True(t, out.OnDay("fri"))
	assert.False(t, out.OnDay("sun"))
	assert.False(t, base.Enabled)
}

func TestSchedulePatch_Rejects(t *testing.T) {
	cases := map[string]SchedulePatch{
		"day":      {Days: ptr([]string{"someday"})},
		"time":     {Time: ptr("25:00")},
		"stopTime": {StopTime: ptr("6am")},
		"lastRun":  {LastRun: ptr("01/02/2025")},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Apply(DefaultSchedule())
			require.ErrorIs(t, err, ErrInvalidPatch)
		})
	}
}
