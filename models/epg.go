package models

import (
	"time"
)

// GuideChannel represents a channel's metadata from guide data.
type GuideChannel struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Icon         string   `json:"icon,omitempty"`
	DisplayNames []string `json:"displayNames,omitempty"` // all known aliases; Name is the first
}

// GuideProgram represents a single program in the guide schedule.
type GuideProgram struct {
	ChannelID   string    `json:"channelId"` // links to LiveChannel.EPGChannelID
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Episode     string    `json:"episode,omitempty"` // standard format, e.g. "S01E05"
	Start       time.Time `json:"start"`             // UTC
	Stop        time.Time `json:"stop"`              // UTC
	Language    string    `json:"language,omitempty"`
}

// ChannelEpgSummary is the now/next summary attached to a live channel by the
// enrichment pass. It is recomputed from a snapshot and never persisted on its own.
type ChannelEpgSummary struct {
	NowTitle    string     `json:"nowTitle,omitempty"`
	NextTitle   string     `json:"nextTitle,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	Stop        *time.Time `json:"stop,omitempty"`
	Description string     `json:"description,omitempty"`
}

// GuideNowNext represents the current and next program for a channel.
type GuideNowNext struct {
	ChannelID string        `json:"channelId"`
	Current   *GuideProgram `json:"current,omitempty"`
	Next      *GuideProgram `json:"next,omitempty"`
}

// GuideStatus represents the status of the guide coordinator.
type GuideStatus struct {
	Enabled      bool       `json:"enabled"`
	LastRefresh  *time.Time `json:"lastRefresh,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	ChannelCount int        `json:"channelCount"`
	ProgramCount int        `json:"programCount"`
	Refreshing   bool       `json:"refreshing"`
	Source       string     `json:"source,omitempty"` // "bulk" or "fallback"
}
