package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Provider ProviderSettings `json:"provider"`
	Guide    GuideSettings    `json:"guide"`
	Content  ContentSettings  `json:"content"`
	Cache    CacheSettings    `json:"cache"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ProviderSettings identifies the remote listing provider. Credentials are
// sent as query parameters; avoid special characters in them since playback
// paths embed them unencoded.
type ProviderSettings struct {
	BaseURL  string `json:"baseUrl"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type GuideSettings struct {
	Enabled         bool `json:"enabled"`
	TTLHours        int  `json:"ttlHours"`
	RetentionDays   int  `json:"retentionDays"`
	FallbackEnabled bool `json:"fallbackEnabled"`
	// FallbackBatchSize caps per-channel requests issued concurrently before
	// the inter-batch delay kicks in.
	FallbackBatchSize int `json:"fallbackBatchSize"`
}

type ContentSettings struct {
	LiveTTLHours   int `json:"liveTtlHours"`
	MovieTTLHours  int `json:"movieTtlHours"`
	SeriesTTLHours int `json:"seriesTtlHours"`
}

type CacheSettings struct {
	Directory string `json:"directory"`
}

type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"` // megabytes
	MaxBackups int    `json:"maxBackups"`
	MaxAge     int    `json:"maxAge"` // days
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the settings written on first run.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 8585,
		},
		Guide: GuideSettings{
			Enabled:           true,
			TTLHours:          12,
			RetentionDays:     7,
			FallbackEnabled:   true,
			FallbackBatchSize: 50,
		},
		Content: ContentSettings{
			LiveTTLHours:   6,
			MovieTTLHours:  24,
			SeriesTTLHours: 24,
		},
		Cache: CacheSettings{
			Directory: "cache",
		},
		Log: LogConfig{
			File:       "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		},
	}
}

// GuideTTL returns the guide staleness window as a duration.
func (s Settings) GuideTTL() time.Duration {
	hours := s.Guide.TTLHours
	if hours <= 0 {
		hours = 12
	}
	return time.Duration(hours) * time.Hour
}

// GuideRetention returns the program retention window as a duration.
func (s Settings) GuideRetention() time.Duration {
	days := s.Guide.RetentionDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures the parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Settings{}, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	settings.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(settings.Provider.BaseURL), "/")
	return settings, nil
}

// Save writes settings atomically (tmp file + rename).
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
