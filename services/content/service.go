package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"prismcast/config"
	"prismcast/internal/store"
	"prismcast/models"
	"prismcast/services/epg"
	"prismcast/services/provider"
)

// Service owns the three content repositories and the guide enrichment pass.
type Service struct {
	client *provider.Client
	guide  *epg.Coordinator

	live   *Repository[models.LiveChannel]
	movies *Repository[models.Movie]
	series *Repository[models.Series]

	enrich *enricher
}

// NewService builds the repositories over one provider account. The guide
// coordinator is attached separately (see AttachGuide) because it needs this
// service as its fallback target source.
func NewService(client *provider.Client, storage store.Store, settings config.Settings) *Service {
	keyBase := cacheKeyBase(client.CacheKey())
	s := &Service{client: client}
	s.live = NewRepository("live", client.LiveStreams, storage, keyBase,
		ttlHours(settings.Content.LiveTTLHours, 6))
	s.movies = NewRepository("movies", client.VODStreams, storage, keyBase,
		ttlHours(settings.Content.MovieTTLHours, 24))
	s.series = NewRepository("series", client.SeriesList, storage, keyBase,
		ttlHours(settings.Content.SeriesTTLHours, 24))
	return s
}

// AttachGuide wires the guide coordinator in and enables enrichment.
func (s *Service) AttachGuide(guide *epg.Coordinator) {
	s.guide = guide
	s.enrich = newEnricher(guide, s.live)
}

// Channels returns the live channel listing. The first call after a cold
// start returns the unenriched list immediately; a background pass then folds
// in now/next summaries, which later reads observe.
func (s *Service) Channels(ctx context.Context) ([]models.LiveChannel, error) {
	channels, err := s.live.Items(ctx)
	if err != nil {
		return nil, err
	}
	if s.enrich != nil {
		s.enrich.kick()
	}
	return channels, nil
}

// Movies returns the VOD listing.
func (s *Service) Movies(ctx context.Context) ([]models.Movie, error) {
	return s.movies.Items(ctx)
}

// Series returns the series listing.
func (s *Service) Series(ctx context.Context) ([]models.Series, error) {
	return s.series.Items(ctx)
}

// RefreshChannels forces a live listing refetch.
func (s *Service) RefreshChannels(ctx context.Context) ([]models.LiveChannel, error) {
	channels, err := s.live.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if s.enrich != nil {
		s.enrich.kick()
	}
	return channels, nil
}

// FallbackTargets supplies the per-channel fallback fetcher with the guide
// ids of the cached live channels. Channels with no guide mapping are
// skipped; per-channel requests are too expensive to spend on guesses.
func (s *Service) FallbackTargets(ctx context.Context) ([]epg.FallbackTarget, error) {
	channels, ok := s.live.Cached()
	if !ok {
		var err error
		channels, err = s.live.Items(ctx)
		if err != nil {
			return nil, err
		}
	}
	targets := make([]epg.FallbackTarget, 0, len(channels))
	for _, ch := range channels {
		if ch.EPGChannelID == "" {
			continue
		}
		targets = append(targets, epg.FallbackTarget{StreamID: ch.StreamID, ChannelID: ch.EPGChannelID})
	}
	return targets, nil
}

// Close waits for background work owned by the repositories.
func (s *Service) Close() {
	if s.enrich != nil {
		s.enrich.wait()
	}
	s.live.Close()
	s.movies.Close()
	s.series.Close()
}

func ttlHours(hours, fallback int) time.Duration {
	if hours <= 0 {
		hours = fallback
	}
	return time.Duration(hours) * time.Hour
}

// cacheKeyBase derives a short stable storage prefix from the account
// identity, so distinct accounts never share persisted listings.
func cacheKeyBase(accountKey string) string {
	sum := sha256.Sum256([]byte(accountKey))
	return hex.EncodeToString(sum[:8])
}
