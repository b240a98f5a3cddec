package content

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"prismcast/models"
	"prismcast/services/epg"
)

// enricher runs the background pass that attaches now/next summaries to the
// cached live channel list. It starts only after the unenriched list has been
// handed to the caller, and a re-entrancy guard keeps two passes from running
// over the same channel set at once. Eventual consistency is the contract: a
// cold-start read may lack summaries, a later read observes them.
type enricher struct {
	guide *epg.Coordinator
	live  *Repository[models.LiveChannel]

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
	passes  atomic.Int64
}

func newEnricher(guide *epg.Coordinator, live *Repository[models.LiveChannel]) *enricher {
	return &enricher{guide: guide, live: live}
}

// kick starts an enrichment pass unless one is already running.
func (e *enricher) kick() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
		}()
		e.run(context.Background())
	}()
}

func (e *enricher) wait() {
	e.wg.Wait()
}

func (e *enricher) run(ctx context.Context) {
	pass := e.passes.Add(1)
	snap, err := e.guide.Snapshot(ctx)
	if err != nil || snap == nil || snap.IsEmpty() {
		if err != nil {
			log.Printf("[enrich] guide unavailable: %v", err)
		}
		return
	}

	channels, ok := e.live.Cached()
	if !ok || len(channels) == 0 {
		return
	}

	now := time.Now().UTC()
	enriched := make([]models.LiveChannel, len(channels))
	copy(enriched, channels)

	attached := 0
	for i := range enriched {
		ch := &enriched[i]
		guideID := snap.MatchChannelID(ch.EPGChannelID, ch.Name)
		if guideID == "" {
			continue
		}
		summary := summarize(snap, guideID, now)
		if summary == nil {
			continue
		}
		ch.Epg = summary
		attached++
	}

	// Full reference swap; readers never see a half-enriched list.
	e.live.Replace(enriched)
	log.Printf("[enrich] pass %d attached guide summaries to %d of %d channels",
		pass, attached, len(enriched))
}

// summarize computes the now/next summary for one guide channel, or nil when
// the guide has nothing airing.
func summarize(snap *epg.Snapshot, guideID string, now time.Time) *models.ChannelEpgSummary {
	cur := snap.CurrentProgram(guideID, now)
	if cur == nil {
		return nil
	}
	summary := &models.ChannelEpgSummary{
		NowTitle:    cur.Title,
		Description: cur.Description,
	}
	start := cur.Start
	stop := cur.Stop
	summary.Start = &start
	summary.Stop = &stop
	if next := snap.NextProgram(guideID, now); next != nil {
		summary.NextTitle = next.Title
	}
	return summary
}
