// Package resolve turns a pre-resolved album manifest into the model the
// download engine consumes.
//
// A manifest is a JSON document produced by whatever resolved the album's
// file locations upstream:
//
//	{
//	  "id": "gbz5trqs",
//	  "name": "Vacation 2024",
//	  "files": [
//	    {"url": "https://cdn4.example.cr/v/beach.mp4", "name": "beach.mp4"},
//	    {"url": "https://cdn9.example.cr/v/sunset.mp4"}
//	  ]
//	}
//
// Entries without a name fall back to the last path segment of their URL.
// Entries without a URL are skipped.
package resolve

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"

	"github.com/handiism/bunkr-downloader/internal/model"
)

type jsonManifest struct {
	ID    string             `json:"id"`
	Name  string             `json:"name"`
	Files []jsonManifestFile `json:"files"`
}

type jsonManifestFile struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Load reads the manifest at manifestPath and builds the album under
// downloadRoot.
func Load(manifestPath, downloadRoot string) (*model.Album, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return Parse(f, downloadRoot)
}

// Parse decodes a manifest from r and builds the album under downloadRoot.
// Ordinals follow manifest order and are assigned once.
func Parse(r io.Reader, downloadRoot string) (*model.Album, error) {
	var manifest jsonManifest
	if err := json.NewDecoder(r).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if manifest.ID == "" && manifest.Name == "" {
		return nil, fmt.Errorf("manifest has neither id nor name")
	}

	album := model.NewAlbum(manifest.ID, manifest.Name, downloadRoot)
	for _, file := range manifest.Files {
		if file.URL == "" {
			continue
		}
		name := file.Name
		if name == "" {
			name = fileNameFromURL(file.URL)
		}
		album.AddItem(file.URL, name)
	}
	if len(album.Items) == 0 {
		return nil, fmt.Errorf("manifest %q has no downloadable files", album.Name)
	}
	return album, nil
}

func fileNameFromURL(link string) string {
	if u, err := url.Parse(link); err == nil {
		if name := path.Base(u.Path); name != "." && name != "/" {
			return name
		}
	}
	return "downloaded"
}
