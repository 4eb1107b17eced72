package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	DownloadRoot     string  `json:"download_root"`
	MaxWorkers       int     `json:"max_workers"`
	MaxRetries       int     `json:"max_retries"`
	RetryBackoffBase float64 `json:"retry_backoff_base"`
	RequestTimeout   float64 `json:"request_timeout_seconds"`

	// Filename filters: substring matches against the resolved filename.
	// A filename matching any Ignore entry is skipped; when Include is
	// non-empty, a filename matching no Include entry is skipped.
	Ignore  []string `json:"ignore"`
	Include []string `json:"include"`

	// Ledger settings
	LedgerDir string `json:"ledger_dir"`

	// Host status settings
	StatusURL string `json:"status_url"`

	// HTTP settings
	UserAgent string `json:"user_agent"`
	Referer   string `json:"referer"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadRoot:     filepath.Join(homeDir, "Downloads"),
		MaxWorkers:       3,
		MaxRetries:       5,
		RetryBackoffBase: 3.0,
		RequestTimeout:   30,

		LedgerDir: "session",

		UserAgent: "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:136.0) Gecko/20100101 Firefox/136.0",
	}
}

// Load reads settings from a JSON file. A missing file yields defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Timeout returns the per-request timeout as a duration.
func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout * float64(time.Second))
}

// LedgerPath returns the ledger file path for an album. Each album gets its
// own ledger so concurrent runs over different albums never contend.
func (s *Settings) LedgerPath(albumID string) string {
	name := albumID
	if name == "" {
		name = "session_" + time.Now().Format("20060102_150405")
	}
	return filepath.Join(s.LedgerDir, name+".txt")
}
