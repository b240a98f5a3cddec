package models

// LiveChannel represents a single live stream from the provider listing.
type LiveChannel struct {
	StreamID     int    `json:"streamId"`
	Name         string `json:"name"`
	Icon         string `json:"icon,omitempty"`
	Category     string `json:"category,omitempty"`
	EPGChannelID string `json:"epgChannelId,omitempty"` // links to GuideChannel.ID when known
	StreamURL    string `json:"streamUrl,omitempty"`

	// Epg is attached (not owned) by the enrichment pass; nil until a guide
	// snapshot has been folded in.
	Epg *ChannelEpgSummary `json:"epg,omitempty"`
}

// Movie represents a single VOD entry from the provider listing.
type Movie struct {
	StreamID  int     `json:"streamId"`
	Name      string  `json:"name"`
	Icon      string  `json:"icon,omitempty"`
	Category  string  `json:"category,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	Extension string  `json:"extension,omitempty"`
	StreamURL string  `json:"streamUrl,omitempty"`
}

// Series represents a series entry from the provider listing.
type Series struct {
	SeriesID int     `json:"seriesId"`
	Name     string  `json:"name"`
	Cover    string  `json:"cover,omitempty"`
	Category string  `json:"category,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Plot     string  `json:"plot,omitempty"`
}
