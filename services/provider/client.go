// Package provider implements the HTTP client for Xtream-style listing
// providers: authenticated JSON lookups with short timeouts, the bulk XMLTV
// guide download with a long timeout, and playback URL composition.
package provider

import (
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"prismcast/models"

	retry "github.com/avast/retry-go/v4"
)

const (
	// Lookups are small JSON payloads; the guide document can run to tens of
	// megabytes, so it gets its own generous timeout.
	lookupTimeout = 15 * time.Second
	guideTimeout  = 5 * time.Minute

	maxGuideSize  = 100 * 1024 * 1024 // 100 MB
	lookupRetries = 3
)

// Client talks to one provider account.
type Client struct {
	baseURL  string
	username string
	password string

	api  *http.Client // short-timeout client for JSON lookups
	bulk *http.Client // long-timeout client for the guide document
}

// New creates a client for the given account. Base URL is normalized to have
// no trailing slash.
func New(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		api:      &http.Client{Timeout: lookupTimeout},
		bulk:     &http.Client{Timeout: guideTimeout},
	}
}

// CacheKey identifies this account for cache scoping. Distinct accounts on
// the same provider must never share cached entries.
func (c *Client) CacheKey() string {
	return c.baseURL + "|" + c.username
}

// apiURL composes a player API URL. Credentials are URL-encoded here; stream
// paths deliberately are not (see StreamURL).
func (c *Client) apiURL(action string, extra url.Values) string {
	q := url.Values{}
	q.Set("username", c.username)
	q.Set("password", c.password)
	if action != "" {
		q.Set("action", action)
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return c.baseURL + "/player_api.php?" + q.Encode()
}

// GuideURL returns the bulk XMLTV endpoint for this account.
func (c *Client) GuideURL() string {
	return fmt.Sprintf("%s/xmltv.php?username=%s&password=%s",
		c.baseURL, url.QueryEscape(c.username), url.QueryEscape(c.password))
}

// StreamURL composes a live playback path. Playback clients expect the raw
// credentials in the path, so they are left unencoded; providers reject
// escaped forms here.
func (c *Client) StreamURL(streamID int) string {
	return fmt.Sprintf("%s/live/%s/%s/%d.ts", c.baseURL, c.username, c.password, streamID)
}

// MovieURL composes a VOD playback path with the container extension.
func (c *Client) MovieURL(streamID int, extension string) string {
	if extension == "" {
		extension = "mp4"
	}
	return fmt.Sprintf("%s/movie/%s/%s/%d.%s", c.baseURL, c.username, c.password, streamID, extension)
}

// Authenticate verifies the account against the provider. Transport failures
// are retried; an explicit rejection is not.
func (c *Client) Authenticate(ctx context.Context) error {
	var payload struct {
		UserInfo struct {
			Auth   int    `json:"auth"`
			Status string `json:"status"`
		} `json:"user_info"`
	}
	err := retry.Do(
		func() error { return c.getJSON(ctx, c.apiURL("", nil), &payload) },
		retry.Context(ctx),
		retry.Attempts(lookupRetries),
		retry.Delay(500*time.Millisecond),
		retry.RetryIf(Transient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}
	if payload.UserInfo.Auth != 1 {
		return fmt.Errorf("%w: account status %q", ErrAuthFailed, payload.UserInfo.Status)
	}
	return nil
}

// DownloadGuide fetches the bulk guide document, transparently handling gzip.
func (c *Client) DownloadGuide(ctx context.Context) ([]byte, error) {
	guideURL := c.GuideURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, guideURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create guide request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.bulk.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrMalformedDocument, err)
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxGuideSize+1))
	if err != nil {
		return nil, classifyTransport(err)
	}
	if len(data) > maxGuideSize {
		return nil, fmt.Errorf("%w: guide document exceeds %d bytes", ErrMalformedDocument, maxGuideSize)
	}
	return data, nil
}

// shortEPGListing is the provider's per-channel schedule entry. Title and
// description arrive base64-encoded.
type shortEPGListing struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	ChannelID      string `json:"channel_id"`
	StartTimestamp string `json:"start_timestamp"`
	StopTimestamp  string `json:"stop_timestamp"`
	Lang           string `json:"lang"`
}

// ShortEPG fetches the upcoming listings for one stream. Used only by the
// fallback path; the bulk document is always preferred at provider scale.
func (c *Client) ShortEPG(ctx context.Context, streamID int, channelID string, limit int) ([]models.GuideProgram, error) {
	extra := url.Values{}
	extra.Set("stream_id", strconv.Itoa(streamID))
	if limit > 0 {
		extra.Set("limit", strconv.Itoa(limit))
	}

	var payload struct {
		Listings []shortEPGListing `json:"epg_listings"`
	}
	err := retry.Do(
		func() error { return c.getJSON(ctx, c.apiURL("get_short_epg", extra), &payload) },
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(250*time.Millisecond),
		retry.RetryIf(Transient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	programs := make([]models.GuideProgram, 0, len(payload.Listings))
	for _, l := range payload.Listings {
		start, okStart := parseUnixString(l.StartTimestamp)
		stop, okStop := parseUnixString(l.StopTimestamp)
		if !okStart || !okStop || !start.Before(stop) {
			continue
		}
		title := decodeBase64(l.Title)
		if title == "" {
			continue
		}
		id := l.ChannelID
		if id == "" {
			id = channelID
		}
		programs = append(programs, models.GuideProgram{
			ChannelID:   id,
			Title:       title,
			Description: decodeBase64(l.Description),
			Start:       start,
			Stop:        stop,
			Language:    l.Lang,
		})
	}
	return programs, nil
}

// xtreamStream matches the provider's live/VOD listing entries. Numeric
// fields arrive as numbers or strings depending on the panel, hence the
// json.Number indirection.
type xtreamStream struct {
	StreamID     json.Number `json:"stream_id"`
	Name         string      `json:"name"`
	StreamIcon   string      `json:"stream_icon"`
	EPGChannelID string      `json:"epg_channel_id"`
	CategoryName string      `json:"category_name"`
	Rating       json.Number `json:"rating"`
	Extension    string      `json:"container_extension"`
}

type xtreamSeries struct {
	SeriesID     json.Number `json:"series_id"`
	Name         string      `json:"name"`
	Cover        string      `json:"cover"`
	CategoryName string      `json:"category_name"`
	Rating       json.Number `json:"rating"`
	Plot         string      `json:"plot"`
}

// LiveStreams fetches the live channel listing.
func (c *Client) LiveStreams(ctx context.Context) ([]models.LiveChannel, error) {
	var raw []xtreamStream
	if err := c.getJSON(ctx, c.apiURL("get_live_streams", nil), &raw); err != nil {
		return nil, err
	}
	channels := make([]models.LiveChannel, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.Atoi(s.StreamID.String())
		if err != nil {
			continue
		}
		channels = append(channels, models.LiveChannel{
			StreamID:     id,
			Name:         strings.TrimSpace(s.Name),
			Icon:         s.StreamIcon,
			Category:     s.CategoryName,
			EPGChannelID: strings.ToLower(strings.TrimSpace(s.EPGChannelID)),
			StreamURL:    c.StreamURL(id),
		})
	}
	return channels, nil
}

// VODStreams fetches the movie listing.
func (c *Client) VODStreams(ctx context.Context) ([]models.Movie, error) {
	var raw []xtreamStream
	if err := c.getJSON(ctx, c.apiURL("get_vod_streams", nil), &raw); err != nil {
		return nil, err
	}
	movies := make([]models.Movie, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.Atoi(s.StreamID.String())
		if err != nil {
			continue
		}
		rating, _ := s.Rating.Float64()
		movies = append(movies, models.Movie{
			StreamID:  id,
			Name:      strings.TrimSpace(s.Name),
			Icon:      s.StreamIcon,
			Category:  s.CategoryName,
			Rating:    rating,
			Extension: s.Extension,
			StreamURL: c.MovieURL(id, s.Extension),
		})
	}
	return movies, nil
}

// SeriesList fetches the series listing.
func (c *Client) SeriesList(ctx context.Context) ([]models.Series, error) {
	var raw []xtreamSeries
	if err := c.getJSON(ctx, c.apiURL("get_series", nil), &raw); err != nil {
		return nil, err
	}
	series := make([]models.Series, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.Atoi(s.SeriesID.String())
		if err != nil {
			continue
		}
		rating, _ := s.Rating.Float64()
		series = append(series, models.Series{
			SeriesID: id,
			Name:     strings.TrimSpace(s.Name),
			Cover:    s.Cover,
			Category: s.CategoryName,
			Rating:   rating,
			Plot:     s.Plot,
		})
	}
	return series, nil
}

// getJSON performs one GET and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, reqURL string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.api.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return nil
}

func decodeBase64(s string) string {
	if s == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some panels send plain text here.
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(decoded))
}

func parseUnixString(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Printf("[provider] bad timestamp %q", s)
		return time.Time{}, false
	}
	return time.Unix(n, 0).UTC(), true
}
