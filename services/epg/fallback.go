package epg

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"prismcast/models"

	"github.com/sourcegraph/conc/pool"
)

const (
	defaultBatchSize  = 50
	defaultBatchDelay = 500 * time.Millisecond
	defaultPerChannel = 10
)

// FallbackTarget names one channel for per-channel retrieval.
type FallbackTarget struct {
	StreamID  int
	ChannelID string
}

// ShortEPGSource is the per-channel listing surface of the provider client.
type ShortEPGSource interface {
	ShortEPG(ctx context.Context, streamID int, channelID string, limit int) ([]models.GuideProgram, error)
}

// FallbackFetcher retrieves schedules one channel at a time when the bulk
// document is unavailable. Channels are processed in fixed-size batches with
// a delay between batches; per-channel requests at provider scale risk
// throttling or account suspension, so this path must never be the default
// route when a bulk document can be had.
type FallbackFetcher struct {
	source     ShortEPGSource
	batchSize  int
	batchDelay time.Duration
	perChannel int
}

// NewFallbackFetcher creates a fetcher with the given batch size; zero or
// negative values select the defaults (batch 50, 500ms delay, 10 programs
// per channel).
func NewFallbackFetcher(source ShortEPGSource, batchSize int) *FallbackFetcher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &FallbackFetcher{
		source:     source,
		batchSize:  batchSize,
		batchDelay: defaultBatchDelay,
		perChannel: defaultPerChannel,
	}
}

// FetchAll retrieves upcoming programs for every target. Individual failures
// are counted and swallowed; the pass is optimized for partial success across
// thousands of channels, never all-or-nothing.
func (f *FallbackFetcher) FetchAll(ctx context.Context, targets []FallbackTarget) map[string][]models.GuideProgram {
	results := make(map[string][]models.GuideProgram)
	if len(targets) == 0 {
		return results
	}

	var (
		mu       sync.Mutex
		failures int
	)

	batches := f.batches(targets)
	for bi, batch := range batches {
		if ctx.Err() != nil {
			break
		}

		// All requests within a batch run concurrently; the batch completes
		// only once every sub-request has finished.
		p := pool.New().WithMaxGoroutines(len(batch))
		for _, target := range batch {
			target := target
			p.Go(func() {
				programs, err := f.source.ShortEPG(ctx, target.StreamID, target.ChannelID, f.perChannel)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures++
					return
				}
				if len(programs) > f.perChannel {
					programs = programs[:f.perChannel]
				}
				if len(programs) > 0 {
					results[target.ChannelID] = programs
				}
			})
		}
		p.Wait()

		if bi < len(batches)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(f.batchDelay):
			}
		}
	}

	log.Printf("[epg] fallback pass: %d channels over %d batches, %d with data, %d failures",
		len(targets), len(batches), len(results), failures)
	return results
}

// batches splits the targets into fixed-size chunks.
func (f *FallbackFetcher) batches(targets []FallbackTarget) [][]FallbackTarget {
	var out [][]FallbackTarget
	for start := 0; start < len(targets); start += f.batchSize {
		end := start + f.batchSize
		if end > len(targets) {
			end = len(targets)
		}
		out = append(out, targets[start:end])
	}
	return out
}

// SnapshotFromPrograms builds a snapshot out of per-channel fallback results.
// Channel metadata is synthesized from the ids; program lists are sorted.
func SnapshotFromPrograms(programs map[string][]models.GuideProgram) *Snapshot {
	snap := EmptySnapshot()
	snap.Source = "fallback"
	for channelID, list := range programs {
		if len(list) == 0 {
			continue
		}
		sorted := make([]models.GuideProgram, len(list))
		copy(sorted, list)
		// Per-channel responses may carry the provider's own channel alias;
		// the snapshot is keyed by the requested guide id, and the two must
		// agree or the programs regroup under the alias after a persist cycle.
		for i := range sorted {
			sorted[i].ChannelID = channelID
		}
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Start.Before(sorted[j].Start)
		})
		snap.Programs[channelID] = sorted
		snap.Channels[channelID] = models.GuideChannel{ID: channelID, Name: channelID}
	}
	return snap
}
