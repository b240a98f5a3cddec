// Package content provides the cache-first content repositories (live
// channels, movies, series) built on one generic skeleton, plus the
// enrichment pass that folds guide summaries into the live channel list.
package content

import (
	"context"
	"log"
	"sync"
	"time"

	"prismcast/internal/cache"
	"prismcast/internal/store"
)

const contentBucket = "content"

// FetchFunc retrieves the full listing from the provider.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Repository is the reusable cache-first/TTL/background-refresh skeleton the
// live, movie, and series repositories share. Reads prefer a fresh in-memory
// entry, then a fresh persistent copy, and only then the network; a fetch
// failure degrades to stale data when any exists.
type Repository[T any] struct {
	name    string
	fetch   FetchFunc[T]
	storage store.Store
	keyBase string
	ttl     time.Duration

	mu         sync.Mutex
	entry      *cache.Entry[[]T]
	refreshing bool

	flushWG sync.WaitGroup
}

// NewRepository creates a repository. keyBase scopes persistent entries per
// provider account; name is used for logging only.
func NewRepository[T any](name string, fetch FetchFunc[T], storage store.Store, keyBase string, ttl time.Duration) *Repository[T] {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Repository[T]{
		name:    name,
		fetch:   fetch,
		storage: storage,
		keyBase: keyBase + ":" + name,
		ttl:     ttl,
	}
}

// Items returns the listing, serving cached data whenever it is fresh enough
// and refreshing from the provider otherwise. When a refresh is already in
// flight the last known listing is returned as-is.
func (r *Repository[T]) Items(ctx context.Context) ([]T, error) {
	r.mu.Lock()
	if r.entry != nil && !r.entry.Expired() {
		items := r.entry.Data
		r.mu.Unlock()
		return items, nil
	}
	if r.refreshing {
		var items []T
		if r.entry != nil {
			items = r.entry.Data
		}
		r.mu.Unlock()
		return items, nil
	}
	r.refreshing = true
	r.mu.Unlock()

	return r.refresh(ctx, false)
}

// Refresh invalidates the cached listing and fetches anew.
func (r *Repository[T]) Refresh(ctx context.Context) ([]T, error) {
	r.mu.Lock()
	if r.refreshing {
		var items []T
		if r.entry != nil {
			items = r.entry.Data
		}
		r.mu.Unlock()
		return items, nil
	}
	r.refreshing = true
	r.entry = nil
	r.mu.Unlock()

	return r.refresh(ctx, true)
}

// Cached returns the current in-memory listing without any I/O.
func (r *Repository[T]) Cached() ([]T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entry == nil {
		return nil, false
	}
	return r.entry.Data, true
}

// Replace atomically swaps the cached listing without touching its age. Used
// by the enrichment pass so an enriched list never extends the TTL.
func (r *Repository[T]) Replace(items []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entry == nil {
		r.entry = cache.NewEntry(items, r.ttl)
		return
	}
	r.entry = &cache.Entry[[]T]{Data: items, CreatedAt: r.entry.CreatedAt, TTL: r.ttl}
}

// Invalidate drops memory and persistent entries.
func (r *Repository[T]) Invalidate() {
	r.mu.Lock()
	r.entry = nil
	r.mu.Unlock()
	if r.storage == nil {
		return
	}
	for _, k := range []string{":items", ":lastSync"} {
		if err := r.storage.Remove(contentBucket, r.keyBase+k); err != nil {
			log.Printf("[%s] failed to remove persisted entry: %v", r.name, err)
		}
	}
}

// Close waits for pending background flushes.
func (r *Repository[T]) Close() {
	r.flushWG.Wait()
}

// refresh runs the slow path; the caller must have set the refreshing flag.
func (r *Repository[T]) refresh(ctx context.Context, force bool) ([]T, error) {
	defer func() {
		r.mu.Lock()
		r.refreshing = false
		r.mu.Unlock()
	}()

	if !force {
		if items, ok := r.loadPersistent(true); ok {
			r.installMemory(items)
			return items, nil
		}
	}

	items, err := r.fetch(ctx)
	if err == nil {
		r.installMemory(items)
		r.flushWG.Add(1)
		go func() {
			defer r.flushWG.Done()
			r.persist(items)
		}()
		log.Printf("[%s] refreshed: %d items", r.name, len(items))
		return items, nil
	}

	log.Printf("[%s] fetch failed: %v", r.name, err)

	// Stale data beats no data; only a complete miss surfaces the error.
	r.mu.Lock()
	stale := r.entry
	r.mu.Unlock()
	if stale != nil {
		return stale.Data, nil
	}
	if items, ok := r.loadPersistent(false); ok {
		r.installMemory(items)
		return items, nil
	}
	return nil, err
}

func (r *Repository[T]) installMemory(items []T) {
	r.mu.Lock()
	r.entry = cache.NewEntry(items, r.ttl)
	r.mu.Unlock()
}

func (r *Repository[T]) persist(items []T) {
	if r.storage == nil {
		return
	}
	if err := r.storage.SetJSON(contentBucket, r.keyBase+":items", items); err != nil {
		log.Printf("[%s] failed to persist items: %v", r.name, err)
		return
	}
	if err := r.storage.SetInt64(contentBucket, r.keyBase+":lastSync", time.Now().Unix()); err != nil {
		log.Printf("[%s] failed to persist sync time: %v", r.name, err)
	}
}

// loadPersistent reads the stored listing; freshOnly rejects entries older
// than the TTL.
func (r *Repository[T]) loadPersistent(freshOnly bool) ([]T, bool) {
	if r.storage == nil {
		return nil, false
	}
	lastSync, ok := r.storage.GetInt64(contentBucket, r.keyBase+":lastSync")
	if !ok {
		return nil, false
	}
	if freshOnly && time.Since(time.Unix(lastSync, 0)) >= r.ttl {
		return nil, false
	}
	var items []T
	if !r.storage.GetJSON(contentBucket, r.keyBase+":items", &items) {
		return nil, false
	}
	if len(items) == 0 {
		return nil, false
	}
	log.Printf("[%s] hydrated %d items from storage", r.name, len(items))
	return items, true
}
