package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minyeamer/gspread/internal/jobs"
)

func TestIntervalShorthand(t *testing.T) {
	cases := map[string]time.Duration{
		"30s": 30 * time.Second,
		"15m": 15 * time.Minute,
		"4H":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, ok := intervalOf(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "m", "0h", "-1d", "5y", "@daily", "1 h"} {
		_, ok := intervalOf(bad)
		assert.False(t, ok, bad)
	}
}

func TestSyncKeepsOnlyScheduledEnabledJobs(t *testing.T) {
	s := New(context.Background(), func(context.Context, string) error { return nil }, time.UTC)
	err := s.Sync([]jobs.Definition{
		{Name: "prices-us", Kind: jobs.KindPrices, Segment: "us", Schedule: "0 0 7 * * 2-6"},
		{Name: "candles-us", Kind: jobs.KindCandles, Segment: "us", Schedule: "@daily", Disabled: true},
		{Name: "purge-trash", Kind: jobs.KindPurgeTrash, Schedule: "1w"},
		{Name: "sparklines-us", Kind: jobs.KindSparklines, Segment: "us"},
	})
	require.NoError(t, err)
	next := s.Next()
	require.Len(t, next, 2)
	assert.Equal(t, "prices-us", next[0].Name)
	assert.Equal(t, "purge-trash", next[1].Name)

	err = s.Sync([]jobs.Definition{{Name: "bad", Kind: jobs.KindPurgeTrash, Schedule: "every tuesday"}})
	assert.Error(t, err)
	assert.Len(t, s.Next(), 2)
}

func TestScheduledJobFires(t *testing.T) {
	var calls atomic.Int32
	s := New(context.Background(), func(_ context.Context, name string) error {
		if name == "purge-trash" {
			calls.Add(1)
		}
		return nil
	}, time.UTC)
	require.NoError(t, s.Sync([]jobs.Definition{{Name: "purge-trash", Kind: jobs.KindPurgeTrash, Schedule: "1s"}}))
	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()
	require.Eventually(t, func() bool { return calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
}
