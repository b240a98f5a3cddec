package epg

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"prismcast/internal/store"
	"prismcast/models"
	"prismcast/services/provider"
)

const guideBucket = "guide"

// GuideSource is the provider surface the coordinator fetches through.
type GuideSource interface {
	DownloadGuide(ctx context.Context) ([]byte, error)
	GuideURL() string
	CacheKey() string
}

// TargetFunc supplies the channel list for the fallback fetcher. Wired to the
// live repository at construction; nil disables the fallback path.
type TargetFunc func(ctx context.Context) ([]FallbackTarget, error)

// Options configures a Coordinator.
type Options struct {
	TTL       time.Duration
	Retention time.Duration
	Fallback  *FallbackFetcher
	Targets   TargetFunc
}

// Coordinator owns the tiered guide cache: an in-memory snapshot slot, the
// persistent copy behind it, TTL staleness, and the single-flight guard that
// keeps concurrent readers from issuing duplicate bulk fetches. All mutable
// state lives here; nothing else touches the slot or the guard.
type Coordinator struct {
	source    GuideSource
	storage   store.Store
	ttl       time.Duration
	retention time.Duration
	fallback  *FallbackFetcher
	targets   TargetFunc
	cacheKey  string

	mu         sync.Mutex
	snapshot   *Snapshot
	refreshing bool
	lastError  string

	flushWG sync.WaitGroup
}

// NewCoordinator creates a coordinator for one provider account. The cache
// key is derived from the account identity so distinct accounts never share
// entries.
func NewCoordinator(source GuideSource, storage store.Store, opts Options) *Coordinator {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	sum := sha256.Sum256([]byte(source.CacheKey()))
	return &Coordinator{
		source:    source,
		storage:   storage,
		ttl:       ttl,
		retention: opts.Retention,
		fallback:  opts.Fallback,
		targets:   opts.Targets,
		cacheKey:  hex.EncodeToString(sum[:8]),
	}
}

// Snapshot serves the freshest available snapshot. The read path is: fresh
// memory, fresh persistent copy, network fetch — in that order. While a fetch
// is in flight, callers receive the last known snapshot instead of triggering
// a duplicate. Only an authentication failure is returned as an error; every
// other failure degrades to the best cached data, ending with a valid empty
// snapshot.
func (c *Coordinator) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	if c.snapshot != nil && time.Since(c.snapshot.FetchedAt) < c.ttl {
		snap := c.snapshot
		c.mu.Unlock()
		return snap, nil
	}
	if c.refreshing {
		snap := c.snapshot
		c.mu.Unlock()
		if snap != nil {
			return snap, nil
		}
		if loaded := c.loadPersistent(false); loaded != nil {
			return loaded, nil
		}
		return EmptySnapshot(), nil
	}
	c.refreshing = true
	c.mu.Unlock()

	return c.fetchAndInstall(ctx, false)
}

// Refresh unconditionally invalidates memory and persistent entries and
// fetches anew. A refresh already in flight absorbs the request.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		log.Println("[epg] refresh already in progress, skipping duplicate request")
		return nil
	}
	c.refreshing = true
	c.snapshot = nil
	c.mu.Unlock()

	c.removePersistent()
	_, err := c.fetchAndInstall(ctx, true)
	return err
}

// ClearCache invalidates memory and persistent entries without refetching.
func (c *Coordinator) ClearCache() {
	c.mu.Lock()
	c.snapshot = nil
	c.lastError = ""
	c.mu.Unlock()
	c.removePersistent()
	log.Println("[epg] guide cache cleared")
}

// Status reports the coordinator's current state.
func (c *Coordinator) Status() models.GuideStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := models.GuideStatus{
		Refreshing: c.refreshing,
		LastError:  c.lastError,
	}
	if c.snapshot != nil {
		status.ChannelCount = len(c.snapshot.Channels)
		status.ProgramCount = c.snapshot.CountPrograms()
		status.Source = c.snapshot.Source
		t := c.snapshot.FetchedAt
		status.LastRefresh = &t
	}
	return status
}

// Close waits for pending background flushes.
func (c *Coordinator) Close() {
	c.flushWG.Wait()
}

// fetchAndInstall runs the slow path. The caller must have set the
// refreshing flag; it is cleared here. force skips the persistent freshness
// shortcut.
func (c *Coordinator) fetchAndInstall(ctx context.Context, force bool) (*Snapshot, error) {
	defer func() {
		c.mu.Lock()
		c.refreshing = false
		c.mu.Unlock()
	}()

	if !force {
		if loaded := c.loadPersistent(true); loaded != nil {
			c.install(loaded, false)
			return loaded, nil
		}
	}

	data, err := c.source.DownloadGuide(ctx)
	if err == nil {
		snap := Parse(data, c.source.GuideURL())
		if !snap.IsEmpty() {
			snap.Source = "bulk"
			snap.prune(c.retention, time.Now().UTC())
			c.install(snap, true)
			c.setLastError("")
			log.Printf("[epg] guide refreshed: %d channels, %d programs",
				len(snap.Channels), snap.CountPrograms())
			return snap, nil
		}
		err = provider.ErrMalformedDocument
	}

	if errors.Is(err, provider.ErrAuthFailed) {
		// Broken credentials break every repository, not just the guide;
		// this is the one failure that propagates.
		c.setLastError(err.Error())
		return nil, err
	}

	log.Printf("[epg] bulk guide fetch failed: %v", err)
	c.setLastError(err.Error())

	if snap := c.fetchViaFallback(ctx); snap != nil {
		return snap, nil
	}

	// Best available data: persistent copy first, then whatever is still in
	// memory, then a valid empty snapshot. Guide absence is never an error.
	if loaded := c.loadPersistent(false); loaded != nil {
		c.install(loaded, false)
		return loaded, nil
	}
	c.mu.Lock()
	stale := c.snapshot
	c.mu.Unlock()
	if stale != nil {
		return stale, nil
	}
	return EmptySnapshot(), nil
}

// fetchViaFallback runs the batched per-channel path when configured.
func (c *Coordinator) fetchViaFallback(ctx context.Context) *Snapshot {
	if c.fallback == nil || c.targets == nil {
		return nil
	}
	targets, err := c.targets(ctx)
	if err != nil || len(targets) == 0 {
		if err != nil {
			log.Printf("[epg] fallback target lookup failed: %v", err)
		}
		return nil
	}
	log.Printf("[epg] falling back to per-channel retrieval for %d channels", len(targets))
	programs := c.fallback.FetchAll(ctx, targets)
	snap := SnapshotFromPrograms(programs)
	if snap.IsEmpty() {
		return nil
	}
	c.install(snap, true)
	c.setLastError("")
	return snap
}

// install atomically replaces the in-memory slot and, for newly fetched
// data, schedules the asynchronous flush to persistent storage.
func (c *Coordinator) install(snap *Snapshot, persist bool) {
	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	if !persist || c.storage == nil {
		return
	}
	c.flushWG.Add(1)
	go func() {
		defer c.flushWG.Done()
		c.persist(snap)
	}()
}

// persist writes the flattened snapshot plus its sync-status record.
func (c *Coordinator) persist(snap *Snapshot) {
	channels := make([]models.GuideChannel, 0, len(snap.Channels))
	for _, ch := range snap.Channels {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].ID < channels[j].ID })

	flat := make([]models.GuideProgram, 0, snap.CountPrograms())
	ids := make([]string, 0, len(snap.Programs))
	for id := range snap.Programs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		flat = append(flat, snap.Programs[id]...)
	}

	if err := c.storage.SetJSON(guideBucket, c.key("channels"), channels); err != nil {
		log.Printf("[epg] failed to persist guide channels: %v", err)
		return
	}
	if err := c.storage.SetJSON(guideBucket, c.key("programs"), flat); err != nil {
		log.Printf("[epg] failed to persist guide programs: %v", err)
		return
	}
	if err := c.storage.SetJSON(guideBucket, c.key("source"), snap.Source); err != nil {
		log.Printf("[epg] failed to persist guide source: %v", err)
	}
	if err := c.storage.SetInt64(guideBucket, c.key("itemCount"), int64(len(flat))); err != nil {
		log.Printf("[epg] failed to persist guide item count: %v", err)
	}
	if err := c.storage.SetInt64(guideBucket, c.key("lastSync"), snap.FetchedAt.Unix()); err != nil {
		log.Printf("[epg] failed to persist guide sync time: %v", err)
	}
}

// loadPersistent hydrates a snapshot from storage. When freshOnly is set, a
// copy older than the TTL is ignored.
func (c *Coordinator) loadPersistent(freshOnly bool) *Snapshot {
	if c.storage == nil {
		return nil
	}
	lastSync, ok := c.storage.GetInt64(guideBucket, c.key("lastSync"))
	if !ok {
		return nil
	}
	fetchedAt := time.Unix(lastSync, 0).UTC()
	if freshOnly && time.Since(fetchedAt) >= c.ttl {
		return nil
	}

	var channels []models.GuideChannel
	var flat []models.GuideProgram
	if !c.storage.GetJSON(guideBucket, c.key("channels"), &channels) {
		return nil
	}
	if !c.storage.GetJSON(guideBucket, c.key("programs"), &flat) {
		return nil
	}

	source := "bulk"
	c.storage.GetJSON(guideBucket, c.key("source"), &source)

	snap := &Snapshot{
		Channels:  make(map[string]models.GuideChannel, len(channels)),
		Programs:  make(map[string][]models.GuideProgram),
		FetchedAt: fetchedAt,
		Source:    source,
	}
	for _, ch := range channels {
		snap.Channels[ch.ID] = ch
	}
	for _, p := range flat {
		snap.Programs[p.ChannelID] = append(snap.Programs[p.ChannelID], p)
	}
	for id := range snap.Programs {
		programs := snap.Programs[id]
		sort.Slice(programs, func(i, j int) bool {
			return programs[i].Start.Before(programs[j].Start)
		})
	}
	if snap.IsEmpty() {
		return nil
	}
	log.Printf("[epg] hydrated guide from storage: %d channels, %d programs",
		len(snap.Channels), len(flat))
	return snap
}

func (c *Coordinator) removePersistent() {
	if c.storage == nil {
		return
	}
	for _, k := range []string{"channels", "programs", "source", "itemCount", "lastSync"} {
		if err := c.storage.Remove(guideBucket, c.key(k)); err != nil {
			log.Printf("[epg] failed to remove persisted %s: %v", k, err)
		}
	}
}

func (c *Coordinator) key(suffix string) string {
	return strings.Join([]string{c.cacheKey, suffix}, ":")
}

func (c *Coordinator) setLastError(msg string) {
	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()
}
