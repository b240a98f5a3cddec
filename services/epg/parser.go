// Package epg implements the guide engine: XMLTV parsing into immutable
// snapshots, snapshot queries, the tiered cache coordinator, and the batched
// per-channel fallback fetcher.
package epg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"prismcast/models"
)

// XMLTV structures for parsing.
type xmltvChannel struct {
	ID          string      `xml:"id,attr"`
	DisplayName []xmltvLang `xml:"display-name"`
	Icon        []xmltvIcon `xml:"icon"`
}

type xmltvProgramme struct {
	Start    string         `xml:"start,attr"`
	Stop     string         `xml:"stop,attr"`
	Channel  string         `xml:"channel,attr"`
	Title    []xmltvLang    `xml:"title"`
	SubTitle []xmltvLang    `xml:"sub-title"`
	Desc     []xmltvLang    `xml:"desc"`
	Category []xmltvLang    `xml:"category"`
	EpNum    []xmltvEpisode `xml:"episode-num"`
	Icon     []xmltvIcon    `xml:"icon"`
	Language xmltvLang      `xml:"language"`
}

type xmltvLang struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

type xmltvIcon struct {
	Src string `xml:"src,attr"`
}

type xmltvEpisode struct {
	System string `xml:"system,attr"`
	Value  string `xml:",chardata"`
}

// IsValidDocument reports whether the payload looks like an XMLTV document,
// letting callers short-circuit obviously wrong payloads before a full parse.
func IsValidDocument(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<tv"))
}

// Parse turns a raw guide document into a snapshot. It never fails: malformed
// elements are skipped and an unrecognized document yields an empty snapshot.
func Parse(data []byte, sourceURL string) *Snapshot {
	snap := &Snapshot{
		Channels:  make(map[string]models.GuideChannel),
		Programs:  make(map[string][]models.GuideProgram),
		FetchedAt: time.Now().UTC(),
		SourceURL: sourceURL,
	}

	if !IsValidDocument(data) {
		return snap
	}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	dropped := 0

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Salvage whatever parsed before the document broke.
			log.Printf("[epg] guide document truncated or malformed: %v", err)
			break
		}

		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "channel":
			var ch xmltvChannel
			if err := decoder.DecodeElement(&ch, &se); err != nil {
				log.Printf("[epg] error parsing channel: %v", err)
				continue
			}
			id := strings.ToLower(strings.TrimSpace(ch.ID))
			if id == "" {
				continue
			}
			channel := models.GuideChannel{ID: id}
			for _, dn := range ch.DisplayName {
				if v := strings.TrimSpace(dn.Value); v != "" {
					channel.DisplayNames = append(channel.DisplayNames, v)
				}
			}
			if len(channel.DisplayNames) > 0 {
				channel.Name = channel.DisplayNames[0]
			} else {
				channel.Name = id
			}
			if len(ch.Icon) > 0 {
				channel.Icon = ch.Icon[0].Src
			}
			snap.Channels[id] = channel

		case "programme":
			var prog xmltvProgramme
			if err := decoder.DecodeElement(&prog, &se); err != nil {
				log.Printf("[epg] error parsing programme: %v", err)
				continue
			}
			p, ok := buildProgram(prog)
			if !ok {
				dropped++
				continue
			}
			snap.Programs[p.ChannelID] = append(snap.Programs[p.ChannelID], p)
		}
	}

	for channelID := range snap.Programs {
		programs := snap.Programs[channelID]
		sort.Slice(programs, func(i, j int) bool {
			return programs[i].Start.Before(programs[j].Start)
		})
	}

	if dropped > 0 {
		log.Printf("[epg] dropped %d malformed programme entries", dropped)
	}

	return snap
}

// buildProgram validates one programme element. Entries missing channel,
// title, start, or stop, and entries where start >= stop, are dropped.
func buildProgram(prog xmltvProgramme) (models.GuideProgram, bool) {
	channelID := strings.ToLower(strings.TrimSpace(prog.Channel))
	title := firstLangValue(prog.Title)
	if channelID == "" || title == "" {
		return models.GuideProgram{}, false
	}

	start, err := parseXMLTVTime(prog.Start)
	if err != nil {
		return models.GuideProgram{}, false
	}
	stop, err := parseXMLTVTime(prog.Stop)
	if err != nil {
		return models.GuideProgram{}, false
	}
	if !start.Before(stop) {
		return models.GuideProgram{}, false
	}

	p := models.GuideProgram{
		ChannelID:   channelID,
		Title:       title,
		Subtitle:    firstLangValue(prog.SubTitle),
		Description: firstLangValue(prog.Desc),
		Category:    firstLangValue(prog.Category),
		Start:       start,
		Stop:        stop,
		Language:    strings.TrimSpace(prog.Language.Value),
	}
	if len(prog.Icon) > 0 {
		p.Icon = prog.Icon[0].Src
	}
	for _, ep := range prog.EpNum {
		if ep.System == "onscreen" && ep.Value != "" {
			p.Episode = strings.TrimSpace(ep.Value)
			break
		}
		if ep.System == "xmltv_ns" && ep.Value != "" {
			p.Episode = parseXMLTVNSEpisode(ep.Value)
		}
	}
	return p, true
}

// firstLangValue returns the first non-empty value from a slice of lang values.
func firstLangValue(values []xmltvLang) string {
	for _, v := range values {
		if v.Value != "" {
			return strings.TrimSpace(v.Value)
		}
	}
	return ""
}

// parseXMLTVTime parses the XMLTV time format (YYYYMMDDHHMMSS +/-HHMM).
// When the offset is absent the timestamp is read as local time; the result
// is always normalized to UTC.
var xmltvTimeRegex = regexp.MustCompile(`^(\d{14})(?:\s*([+-]\d{4}))?$`)

func parseXMLTVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	matches := xmltvTimeRegex.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("invalid XMLTV time format: %q", s)
	}

	dateStr := matches[1]
	tzStr := matches[2]

	loc := time.Local
	if tzStr != "" {
		sign := 1
		if tzStr[0] == '-' {
			sign = -1
		}
		hours := 0
		minutes := 0
		fmt.Sscanf(tzStr[1:], "%02d%02d", &hours, &minutes)
		loc = time.FixedZone(tzStr, sign*(hours*3600+minutes*60))
	}

	t, err := time.ParseInLocation("20060102150405", dateStr, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parseXMLTVNSEpisode converts the xmltv_ns episode format
// (season.episode.part, zero-based) to the onscreen form.
func parseXMLTVNSEpisode(s string) string {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return s
	}

	season := 0
	episode := 0
	if parts[0] != "" {
		fmt.Sscanf(strings.TrimSpace(parts[0]), "%d", &season)
		season++
	}
	if parts[1] != "" {
		epParts := strings.Split(parts[1], "/")
		fmt.Sscanf(strings.TrimSpace(epParts[0]), "%d", &episode)
		episode++
	}

	switch {
	case season > 0 && episode > 0:
		return fmt.Sprintf("S%02dE%02d", season, episode)
	case episode > 0:
		return fmt.Sprintf("E%02d", episode)
	}
	return s
}
