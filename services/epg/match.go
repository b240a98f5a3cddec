package epg

import (
	"regexp"
	"strings"

	"prismcast/utils/similarity"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// minFuzzySimilarity rejects fuzzy candidates that merely share letters with
// the wanted name.
const minFuzzySimilarity = 0.5

var (
	countryPrefixRe = regexp.MustCompile(`^[a-z]{2}\s*[\|\-]\s*`)
	countrySuffixRe = regexp.MustCompile(`\.[a-z]{2}$`)
	nonAlnumRe      = regexp.MustCompile(`[^a-z0-9]`)
)

// qualitySuffixes are stripped before comparing channel names; listing names
// carry them, guide ids rarely do.
var qualitySuffixes = []string{" hd", " sd", " fhd", " uhd", " 4k", "hd", "sd", "fhd", "uhd", "4k"}

// normalizeChannelName reduces a channel id or display name to a comparable
// form: lowercase, no quality suffixes, no country decorations, alphanumeric
// only.
func normalizeChannelName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, suffix := range qualitySuffixes {
		s = strings.TrimSuffix(s, suffix)
	}
	s = countryPrefixRe.ReplaceAllString(s, "")
	s = countrySuffixRe.ReplaceAllString(s, "")
	return nonAlnumRe.ReplaceAllString(s, "")
}

// MatchChannelID resolves a listing channel to a guide channel id. The tvg id
// wins when the snapshot knows it; otherwise the display name is matched
// against guide ids and aliases, exactly first, then fuzzily. Returns ""
// when nothing matches.
func (s *Snapshot) MatchChannelID(tvgID, channelName string) string {
	if tvgID != "" {
		id := strings.ToLower(tvgID)
		if _, ok := s.Channels[id]; ok {
			return id
		}
		if _, ok := s.Programs[id]; ok {
			return id
		}
	}
	if channelName == "" {
		return ""
	}

	want := normalizeChannelName(channelName)
	if want == "" {
		return ""
	}

	// Exact match on normalized ids and aliases.
	for id, ch := range s.Channels {
		if normalizeChannelName(id) == want {
			return id
		}
		for _, alias := range ch.DisplayNames {
			if normalizeChannelName(alias) == want {
				return id
			}
		}
	}

	// Fuzzy match as a last resort; candidates must also clear a similarity
	// threshold, and only channels the guide has programs for are considered.
	bestID := ""
	bestRank := -1
	bestScore := 0.0
	for id, ch := range s.Channels {
		if len(s.Programs[id]) == 0 {
			continue
		}
		for _, candidate := range append([]string{ch.Name}, ch.DisplayNames...) {
			rank := fuzzy.RankMatchNormalizedFold(channelName, candidate)
			if rank < 0 {
				continue
			}
			score := similarity.Score(channelName, candidate)
			if score < minFuzzySimilarity {
				continue
			}
			if bestRank < 0 || rank < bestRank || (rank == bestRank && score > bestScore) {
				bestRank = rank
				bestScore = score
				bestID = id
			}
		}
	}
	return bestID
}
