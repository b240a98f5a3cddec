package provider

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsEncodedInAPIURLs(t *testing.T) {
	c := New("http://host.example", "user name", "p@ss&word")

	apiURL := c.apiURL("get_live_streams", nil)
	parsed, err := url.Parse(apiURL)
	require.NoError(t, err)
	assert.Equal(t, "user name", parsed.Query().Get("username"))
	assert.Equal(t, "p@ss&word", parsed.Query().Get("password"))
	assert.NotContains(t, apiURL, "p@ss&word", "raw reserved characters never appear in query strings")

	guide, err := url.Parse(c.GuideURL())
	require.NoError(t, err)
	assert.Equal(t, "/xmltv.php", guide.Path)
	assert.Equal(t, "p@ss&word", guide.Query().Get("password"))
}

func TestStreamPathsKeepRawCredentials(t *testing.T) {
	c := New("http://host.example/", "user name", "p@ss")

	assert.Equal(t, "http://host.example/live/user name/p@ss/42.ts", c.StreamURL(42))
	assert.Equal(t, "http://host.example/movie/user name/p@ss/7.mkv", c.MovieURL(7, "mkv"))
	assert.Equal(t, "http://host.example/movie/user name/p@ss/7.mp4", c.MovieURL(7, ""),
		"missing container extension defaults to mp4")
}

func TestCacheKeyDistinguishesAccounts(t *testing.T) {
	a := New("http://host.example", "alice", "x")
	b := New("http://host.example", "bob", "x")
	assert.NotEqual(t, a.CacheKey(), b.CacheKey())

	sameTrailing := New("http://host.example/", "alice", "x")
	assert.Equal(t, a.CacheKey(), sameTrailing.CacheKey(), "trailing slash is normalized away")
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/player_api.php", r.URL.Path)
		if r.URL.Query().Get("password") == "good" {
			fmt.Fprint(w, `{"user_info":{"auth":1,"status":"Active"}}`)
			return
		}
		fmt.Fprint(w, `{"user_info":{"auth":0,"status":"Expired"}}`)
	}))
	defer srv.Close()

	good := New(srv.URL, "u", "good")
	assert.NoError(t, good.Authenticate(context.Background()))

	bad := New(srv.URL, "u", "bad")
	err := bad.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrAuthFailed)
	assert.Contains(t, err.Error(), "Expired")
}

func TestAuthenticateRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "u", "p")
	assert.ErrorIs(t, c.Authenticate(context.Background()), ErrAuthFailed)
}

func TestDownloadGuide(t *testing.T) {
	doc := []byte(`<tv><channel id="c1"><display-name>C1</display-name></channel></tv>`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/xmltv.php", r.URL.Path)
		require.Equal(t, "u", r.URL.Query().Get("username"))
		w.Write(doc)
	}))
	defer srv.Close()

	c := New(srv.URL, "u", "p")
	got, err := c.DownloadGuide(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestDownloadGuideGzip(t *testing.T) {
	doc := []byte(`<tv><channel id="c1"><display-name>C1</display-name></channel></tv>`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write(doc)
		gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c := New(srv.URL, "u", "p")
	got, err := c.DownloadGuide(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestDownloadGuideErrors(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := New(srv.URL, "u", "p")

	_, err := c.DownloadGuide(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)

	status = http.StatusNotFound
	_, err = c.DownloadGuide(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	srv.Close()
	_, err = c.DownloadGuide(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestShortEPGDecodesListings(t *testing.T) {
	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "get_short_epg", q.Get("action"))
		require.Equal(t, "42", q.Get("stream_id"))
		require.Equal(t, "10", q.Get("limit"))
		fmt.Fprintf(w, `{"epg_listings":[
			{"title":%q,"description":%q,"channel_id":"news.one","start_timestamp":"%d","stop_timestamp":"%d","lang":"en"},
			{"title":"Plain Text Show","channel_id":"","start_timestamp":"%d","stop_timestamp":"%d"},
			{"title":%q,"start_timestamp":"not-a-number","stop_timestamp":"%d"},
			{"title":%q,"start_timestamp":"%d","stop_timestamp":"%d"}
		]}`,
			b64("Morning Report"), b64("The news."), start.Unix(), start.Add(time.Hour).Unix(),
			start.Add(time.Hour).Unix(), start.Add(2*time.Hour).Unix(),
			b64("Broken"), start.Unix(),
			b64("Backwards"), start.Add(time.Hour).Unix(), start.Unix())
	}))
	defer srv.Close()

	c := New(srv.URL, "u", "p")
	programs, err := c.ShortEPG(context.Background(), 42, "fallback.id", 10)
	require.NoError(t, err)
	require.Len(t, programs, 2, "invalid timestamps and backwards intervals are dropped")

	assert.Equal(t, "Morning Report", programs[0].Title)
	assert.Equal(t, "The news.", programs[0].Description)
	assert.Equal(t, "news.one", programs[0].ChannelID)
	assert.True(t, programs[0].Start.Equal(start))
	assert.Equal(t, "en", programs[0].Language)

	// Plain text titles pass through; an empty channel_id falls back to the
	// requested channel.
	assert.Equal(t, "Plain Text Show", programs[1].Title)
	assert.Equal(t, "fallback.id", programs[1].ChannelID)
}

func TestLiveStreamsParsesMixedNumbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "get_live_streams", r.URL.Query().Get("action"))
		fmt.Fprint(w, `[
			{"stream_id":1,"name":" News One ","stream_icon":"http://x/1.png","epg_channel_id":"News.One","category_name":"News"},
			{"stream_id":"2","name":"Sports","epg_channel_id":"","category_name":"Sports"},
			{"stream_id":"junk","name":"Broken"}
		]`)
	}))
	defer srv.Close()

	c := New(srv.URL, "u", "p")
	channels, err := c.LiveStreams(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 2, "entries with unparseable ids are dropped")

	assert.Equal(t, 1, channels[0].StreamID)
	assert.Equal(t, "News One", channels[0].Name)
	assert.Equal(t, "news.one", channels[0].EPGChannelID, "guide ids are lowercased")
	assert.Equal(t, srv.URL+"/live/u/p/1.ts", channels[0].StreamURL)

	assert.Equal(t, 2, channels[1].StreamID, "string-typed ids are accepted")
	assert.Empty(t, channels[1].EPGChannelID)
}

func TestVODStreamsAndSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "get_vod_streams":
			fmt.Fprint(w, `[{"stream_id":9,"name":"A Film","rating":"7.5","container_extension":"mkv"}]`)
		case "get_series":
			fmt.Fprint(w, `[{"series_id":"3","name":"A Show","rating":8,"plot":"Things happen."}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "u", "p")

	movies, err := c.VODStreams(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, 7.5, movies[0].Rating)
	assert.Equal(t, srv.URL+"/movie/u/p/9.mkv", movies[0].StreamURL)

	series, err := c.SeriesList(context.Background())
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 3, series[0].SeriesID)
	assert.Equal(t, 8.0, series[0].Rating)
}

func TestGetJSONMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>provider portal</html>`)
	}))
	defer srv.Close()

	c := New(srv.URL, "u", "p")
	_, err := c.LiveStreams(context.Background())
	assert.ErrorIs(t, err, ErrMalformedDocument)
}
