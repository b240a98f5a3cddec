package epg

import (
	"time"

	"prismcast/models"
)

// Snapshot is an immutable point-in-time capture of guide data. A snapshot is
// never mutated after construction; refreshes install a whole new value, so
// readers holding a reference always see a consistent schedule.
type Snapshot struct {
	Channels  map[string]models.GuideChannel   `json:"channels"`
	Programs  map[string][]models.GuideProgram `json:"programs"` // sorted by start time per channel
	FetchedAt time.Time                        `json:"fetchedAt"`
	SourceURL string                           `json:"sourceUrl,omitempty"`
	Source    string                           `json:"source,omitempty"` // "bulk" or "fallback"
}

// EmptySnapshot returns a valid snapshot with no data. Guide absence is
// expressed this way rather than as an error.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Channels:  make(map[string]models.GuideChannel),
		Programs:  make(map[string][]models.GuideProgram),
		FetchedAt: time.Now().UTC(),
	}
}

// IsEmpty reports whether the snapshot carries no schedule data.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Channels) == 0 && len(s.Programs) == 0
}

// CountPrograms returns the total number of programs across all channels.
func (s *Snapshot) CountPrograms() int {
	count := 0
	for _, progs := range s.Programs {
		count += len(progs)
	}
	return count
}

// ProgramsFor returns the channel's programs sorted by start time, or an
// empty slice for an unknown channel.
func (s *Snapshot) ProgramsFor(channelID string) []models.GuideProgram {
	return s.Programs[channelID]
}

// CurrentProgram returns the program airing at the given instant, i.e. the
// one with start <= now < stop, or nil if none.
func (s *Snapshot) CurrentProgram(channelID string, now time.Time) *models.GuideProgram {
	programs := s.Programs[channelID]
	for i := range programs {
		p := &programs[i]
		if !p.Start.After(now) && p.Stop.After(now) {
			return p
		}
	}
	return nil
}

// NextProgram returns the earliest program starting at or after the current
// program's end, or nil when there is no current program or nothing follows.
func (s *Snapshot) NextProgram(channelID string, now time.Time) *models.GuideProgram {
	cur := s.CurrentProgram(channelID, now)
	if cur == nil {
		return nil
	}
	programs := s.Programs[channelID]
	for i := range programs {
		p := &programs[i]
		if !p.Start.Before(cur.Stop) {
			return p
		}
	}
	return nil
}

// NowNext computes the current/next pair for one channel.
func (s *Snapshot) NowNext(channelID string, now time.Time) models.GuideNowNext {
	return models.GuideNowNext{
		ChannelID: channelID,
		Current:   s.CurrentProgram(channelID, now),
		Next:      s.NextProgram(channelID, now),
	}
}

// ProgramsInRange returns all programs overlapping [from, to).
func (s *Snapshot) ProgramsInRange(channelID string, from, to time.Time) []models.GuideProgram {
	var result []models.GuideProgram
	for _, p := range s.Programs[channelID] {
		if p.Stop.After(from) && p.Start.Before(to) {
			result = append(result, p)
		}
	}
	return result
}

// DailySchedule returns all programs overlapping the calendar day containing
// the given date, in UTC.
func (s *Snapshot) DailySchedule(channelID string, date time.Time) []models.GuideProgram {
	year, month, day := date.UTC().Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return s.ProgramsInRange(channelID, start, start.Add(24*time.Hour))
}

// prune drops programs outside the retention window around now. Called only
// during construction, before the snapshot is published. Channel metadata is
// kept even when a channel ends up with no programs; it still matters for
// matching.
func (s *Snapshot) prune(retention time.Duration, now time.Time) {
	if retention <= 0 {
		return
	}
	cutoff := now.Add(-retention)
	futureLimit := now.Add(retention)
	for channelID, programs := range s.Programs {
		filtered := programs[:0]
		for _, p := range programs {
			if p.Stop.After(cutoff) && p.Start.Before(futureLimit) {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			delete(s.Programs, channelID)
			continue
		}
		s.Programs[channelID] = filtered
	}
}
