package epg

import (
	"testing"
	"time"

	"prismcast/models"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeChannelName(t *testing.T) {
	cases := map[string]string{
		"News One HD":     "newsone",
		"UK | Sports TV":  "sportstv",
		"cinema.us":       "cinema",
		"  Discovery 4K ": "discovery",
		"BBC ONE":         "bbcone",
		"":                "",
	}
	for input, want := range cases {
		assert.Equal(t, want, normalizeChannelName(input), "input %q", input)
	}
}

func matchSnapshot() *Snapshot {
	snap := EmptySnapshot()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	for _, ch := range []models.GuideChannel{
		{ID: "news.one", Name: "News One", DisplayNames: []string{"News One", "News One HD"}},
		{ID: "sports.tv", Name: "Sports TV", DisplayNames: []string{"Sports TV"}},
		{ID: "silent.channel", Name: "Silent Channel"},
	} {
		snap.Channels[ch.ID] = ch
		if ch.ID == "silent.channel" {
			continue
		}
		snap.Programs[ch.ID] = []models.GuideProgram{
			{ChannelID: ch.ID, Title: "Something", Start: base, Stop: base.Add(time.Hour)},
		}
	}
	return snap
}

func TestMatchChannelIDByTvgID(t *testing.T) {
	snap := matchSnapshot()

	assert.Equal(t, "news.one", snap.MatchChannelID("news.one", "ignored"))
	assert.Equal(t, "news.one", snap.MatchChannelID("News.One", "ignored"),
		"tvg ids match case-insensitively")
}

func TestMatchChannelIDByName(t *testing.T) {
	snap := matchSnapshot()

	// Exact after normalization: quality suffix and country prefix stripped.
	assert.Equal(t, "news.one", snap.MatchChannelID("", "News One FHD"))
	assert.Equal(t, "sports.tv", snap.MatchChannelID("", "UK | Sports TV HD"))

	// Unknown tvg id falls through to the name.
	assert.Equal(t, "news.one", snap.MatchChannelID("bogus.id", "News One"))
}

func TestMatchChannelIDNoMatch(t *testing.T) {
	snap := matchSnapshot()

	assert.Empty(t, snap.MatchChannelID("", ""))
	assert.Empty(t, snap.MatchChannelID("", "Completely Unrelated Network XYZ"))

	// "NO" is a letter-subsequence of "News One" but not a similar name.
	assert.Empty(t, snap.MatchChannelID("", "NO"))
}
