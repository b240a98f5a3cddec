package epg

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"prismcast/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeShortEPG serves one upcoming program per channel and fails the ids in
// failing. It tracks call and concurrency counts.
type fakeShortEPG struct {
	failing map[string]bool

	calls          atomic.Int64
	inFlight       atomic.Int64
	maxConcurrency atomic.Int64

	mu   sync.Mutex
	seen map[string]int
}

func newFakeShortEPG(failing ...string) *fakeShortEPG {
	f := &fakeShortEPG{failing: make(map[string]bool), seen: make(map[string]int)}
	for _, id := range failing {
		f.failing[id] = true
	}
	return f
}

func (f *fakeShortEPG) ShortEPG(ctx context.Context, streamID int, channelID string, limit int) ([]models.GuideProgram, error) {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxConcurrency.Load()
		if cur <= max || f.maxConcurrency.CompareAndSwap(max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.seen[channelID]++
	f.mu.Unlock()

	if f.failing[channelID] {
		return nil, fmt.Errorf("channel %s unavailable", channelID)
	}

	start := time.Now().UTC().Truncate(time.Hour)
	return []models.GuideProgram{{
		ChannelID: channelID,
		Title:     "Upcoming on " + channelID,
		Start:     start,
		Stop:      start.Add(time.Hour),
	}}, nil
}

func makeTargets(n int) []FallbackTarget {
	targets := make([]FallbackTarget, n)
	for i := range targets {
		targets[i] = FallbackTarget{StreamID: i + 1, ChannelID: fmt.Sprintf("ch%03d", i)}
	}
	return targets
}

func TestFallbackBatchSplit(t *testing.T) {
	f := NewFallbackFetcher(newFakeShortEPG(), 50)

	batches := f.batches(makeTargets(120))
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 50)
	assert.Len(t, batches[1], 50)
	assert.Len(t, batches[2], 20)

	assert.Len(t, f.batches(makeTargets(50)), 1)
	assert.Empty(t, f.batches(nil))
}

func TestFallbackPartialSuccess(t *testing.T) {
	failing := []string{"ch003", "ch017", "ch042", "ch055", "ch060", "ch071", "ch088", "ch099", "ch104", "ch119"}
	source := newFakeShortEPG(failing...)
	f := NewFallbackFetcher(source, 50)
	f.batchDelay = time.Millisecond

	results := f.FetchAll(context.Background(), makeTargets(120))

	assert.Equal(t, int64(120), source.calls.Load(), "every channel gets exactly one request")
	assert.Len(t, results, 110, "failures are swallowed, the rest succeed")
	for _, id := range failing {
		_, ok := results[id]
		assert.False(t, ok, "failed channel %s must not appear", id)
	}
	assert.LessOrEqual(t, source.maxConcurrency.Load(), int64(50),
		"concurrency never exceeds the batch size")
}

func TestFallbackCapsPerChannelPrograms(t *testing.T) {
	source := &overflowingShortEPG{}
	f := NewFallbackFetcher(source, 10)
	f.batchDelay = time.Millisecond

	results := f.FetchAll(context.Background(), makeTargets(3))
	require.Len(t, results, 3)
	for id, programs := range results {
		assert.LessOrEqual(t, len(programs), defaultPerChannel, "channel %s exceeds cap", id)
	}
}

// overflowingShortEPG ignores the limit hint, as some providers do.
type overflowingShortEPG struct{}

func (o *overflowingShortEPG) ShortEPG(ctx context.Context, streamID int, channelID string, limit int) ([]models.GuideProgram, error) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	programs := make([]models.GuideProgram, 25)
	for i := range programs {
		programs[i] = models.GuideProgram{
			ChannelID: channelID,
			Title:     fmt.Sprintf("Slot %d", i),
			Start:     base.Add(time.Duration(i) * time.Hour),
			Stop:      base.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return programs, nil
}

func TestFallbackHonorsCancellation(t *testing.T) {
	source := newFakeShortEPG()
	f := NewFallbackFetcher(source, 10)
	f.batchDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := f.FetchAll(ctx, makeTargets(30))
	assert.Empty(t, results, "a cancelled pass issues no batches")
	assert.Zero(t, source.calls.Load())
}

func TestSnapshotFromProgramsRekeysProviderAliases(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	programs := map[string][]models.GuideProgram{
		"guide.id": {
			{ChannelID: "provider.alias", Title: "Show", Start: base, Stop: base.Add(time.Hour)},
		},
	}

	snap := SnapshotFromPrograms(programs)

	got := snap.ProgramsFor("guide.id")
	require.Len(t, got, 1)
	assert.Equal(t, "guide.id", got[0].ChannelID,
		"programs carry the requested guide id, not the provider's alias")
}

func TestSnapshotFromPrograms(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	programs := map[string][]models.GuideProgram{
		"a": {
			{ChannelID: "a", Title: "Late", Start: base.Add(2 * time.Hour), Stop: base.Add(3 * time.Hour)},
			{ChannelID: "a", Title: "Early", Start: base, Stop: base.Add(time.Hour)},
		},
		"empty": {},
	}

	snap := SnapshotFromPrograms(programs)

	assert.Equal(t, "fallback", snap.Source)
	require.Len(t, snap.Programs, 1)
	got := snap.ProgramsFor("a")
	require.Len(t, got, 2)
	assert.Equal(t, "Early", got[0].Title)
	assert.Equal(t, "a", snap.Channels["a"].ID)
	_, ok := snap.Channels["empty"]
	assert.False(t, ok)
}
