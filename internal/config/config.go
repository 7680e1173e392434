// internal/config/config.go
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	// DataPath is the SQLite file holding connections, metadata and history.
	DataPath               string `toml:"data_path"`
	RowLimit               int    `toml:"row_limit"`
	QueryTimeoutSeconds    int    `toml:"query_timeout_seconds"`
	MetadataTimeoutSeconds int    `toml:"metadata_timeout_seconds"`
	HistoryRetentionDays   int    `toml:"history_retention_days"`
	// Remote is the base URL of an `ezquery serve` instance. Empty runs the
	// backend in process.
	Remote string   `toml:"remote"`
	Listen string   `toml:"listen"`
	AI     AIConfig `toml:"ai"`
	Theme  Theme    `toml:"theme_colors"`
	Keys   KeyMap   `toml:"keys"`
}

// AIConfig configures the OpenAI-compatible SQL generator
type AIConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	// APIKey only ever comes from the environment
	APIKey string `toml:"-"`
}

// Theme defines the color palette
type Theme struct {
	TextPrimary   string `toml:"text_primary"`
	TextSecondary string `toml:"text_secondary"`
	TextFaint     string `toml:"text_faint"`
	Accent        string `toml:"accent"`
	Success       string `toml:"success"`
	Error         string `toml:"error"`
	Highlight     string `toml:"highlight"`
	Warning       string `toml:"warning"`
	BgPrimary     string `toml:"bg_primary"`
	BgSecondary   string `toml:"bg_secondary"`
	CardBg        string `toml:"card_bg"`
	PopupBg       string `toml:"popup_bg"`
	BorderColor   string `toml:"border_color"`
	SelectedBg    string `toml:"selected_bg"`
}

// KeyMap defines key bindings
type KeyMap struct {
	Execute  []string `toml:"execute"`
	Generate []string `toml:"generate"`
	Cancel   []string `toml:"cancel"`
	Refresh  []string `toml:"refresh"`
	Clear    []string `toml:"clear"`
	Focus    []string `toml:"focus"`
	Schema   []string `toml:"schema"`
	Help     []string `toml:"help"`
	Exit     []string `toml:"exit"`
}

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		RowLimit:               100,
		QueryTimeoutSeconds:    60,
		MetadataTimeoutSeconds: 30,
		HistoryRetentionDays:   90,
		Listen:                 "127.0.0.1:7788",
		AI: AIConfig{
			BaseURL: DefaultBaseURL,
			Model:   DefaultModel,
		},
		Theme: Theme{
			// Nord Theme Defaults
			TextPrimary:   "#D8DEE9",
			TextSecondary: "#81A1C1",
			TextFaint:     "#4C566A",
			Accent:        "#88C0D0",
			Success:       "#A3BE8C",
			Error:         "#BF616A",
			Highlight:     "#8FBCBB",
			Warning:       "#D08770",
			BgPrimary:     "#2E3440",
			BgSecondary:   "#3B4252",
			CardBg:        "#434C5E",
			PopupBg:       "#3B4252",
			BorderColor:   "#4C566A",
			SelectedBg:    "#434C5E",
		},
		Keys: KeyMap{
			Execute:  []string{"ctrl+d"},
			Generate: []string{"ctrl+g"},
			Cancel:   []string{"esc"},
			Refresh:  []string{"ctrl+r"},
			Clear:    []string{"ctrl+l"},
			Focus:    []string{"tab"},
			Schema:   []string{"ctrl+o"},
			Help:     []string{"f1"},
			Exit:     []string{"ctrl+q", "ctrl+c"},
		},
	}
}

// QueryTimeout returns the per-query deadline
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// MetadataTimeout returns the deadline of one metadata extraction
func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.MetadataTimeoutSeconds) * time.Second
}

// ConfigPath returns the XDG-compliant config file path
func ConfigPath() (string, error) {
	return xdg.ConfigFile("ezquery/config.toml")
}

// Load loads the config from the default path, creating it on first run
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the config at path. A missing file is created with defaults.
// Environment variables, including those from a .env file in the working
// directory, override file values.
func LoadFrom(path string) (*Config, error) {
	// A missing .env is the common case
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if err := cfg.SaveTo(path); err != nil {
			return nil, err
		}
	}

	cfg.fillDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// fillDefaults populates fields missing from older config files
func (c *Config) fillDefaults() {
	defaults := DefaultConfig()
	if c.RowLimit <= 0 {
		c.RowLimit = defaults.RowLimit
	}
	if c.QueryTimeoutSeconds <= 0 {
		c.QueryTimeoutSeconds = defaults.QueryTimeoutSeconds
	}
	if c.MetadataTimeoutSeconds <= 0 {
		c.MetadataTimeoutSeconds = defaults.MetadataTimeoutSeconds
	}
	if c.HistoryRetentionDays <= 0 {
		c.HistoryRetentionDays = defaults.HistoryRetentionDays
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = defaults.AI.BaseURL
	}
	if c.AI.Model == "" {
		c.AI.Model = defaults.AI.Model
	}
	if c.Theme.TextPrimary == "" {
		c.Theme = defaults.Theme
	}
	if c.Theme.PopupBg == "" {
		c.Theme.PopupBg = c.Theme.BgSecondary
	}
	if c.Theme.BorderColor == "" {
		c.Theme.BorderColor = c.Theme.TextFaint
	}
	if c.Theme.SelectedBg == "" {
		c.Theme.SelectedBg = c.Theme.CardBg
	}
	if len(c.Keys.Execute) == 0 {
		c.Keys = defaults.Keys
	}
	if len(c.Keys.Schema) == 0 {
		c.Keys.Schema = defaults.Keys.Schema
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_BASE"); v != "" {
		c.AI.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.AI.Model = v
	}
	if v := os.Getenv("EZQUERY_DB_PATH"); v != "" {
		c.DataPath = v
	}
	if v := os.Getenv("EZQUERY_REMOTE"); v != "" {
		c.Remote = v
	}
}

// SaveTo writes the config to path
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists with secure permissions
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	// Create/truncate file with secure permissions (owner read/write only)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}
