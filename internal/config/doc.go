// Package config provides configuration management for bunkr-downloader.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Default configuration values
//   - Derived paths such as the per-album retry ledger location
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Downloads
//	// 3 concurrent transfers, 5 in-process attempts per item
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.json")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// # Saving Settings
//
//	settings.DownloadRoot = "/mnt/archive"
//	err := settings.Save("/path/to/config.json")
package config
