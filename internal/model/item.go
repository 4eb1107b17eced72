package model

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Item represents one downloadable file within an album.
//
// Item carries everything the download engine needs for a single transfer:
//   - Link is the resolved direct download URL
//   - Filename is the resolved target filename (before sanitization)
//   - Ordinal is the album-relative 1-based display position, assigned once
//     at resolution time and never renumbered, including through the
//     trailing retry pass
//   - Path is the computed final artifact path
//
// The staging artifact for an in-flight transfer lives at PartialPath(),
// which is always distinct from Path.
type Item struct {
	// Album is a reference to the owning album.
	Album *Album

	// Link is the direct download URL for this item.
	Link string

	// Filename is the resolved filename as supplied by the resolution layer.
	Filename string

	// Ordinal is the 1-based display position within the album.
	Ordinal int

	// Path is the computed final artifact path.
	Path string
}

// NewItem creates an Item with its final path computed under the album
// directory. The filename is sanitized and truncated to the filesystem-safe
// length limit.
func NewItem(album *Album, ordinal int, link, filename string) *Item {
	item := &Item{
		Album:    album,
		Link:     link,
		Filename: filename,
		Ordinal:  ordinal,
	}
	item.Path = filepath.Join(album.Path, TruncateFileName(SanitizeFileName(filename)))
	return item
}

// NewLedgerItem creates an Item for a ledger entry whose original descriptor
// is no longer available, deriving the filename from the link's last path
// segment. Used by the trailing retry pass for entries left over from a
// previous run.
func NewLedgerItem(album *Album, ordinal int, link string) *Item {
	return NewItem(album, ordinal, link, urlBasedFileName(link))
}

// PartialPath returns the staging path for this item's in-flight bytes.
// It is always distinct from the final artifact path.
func (i *Item) PartialPath() string {
	return i.Path + PartialSuffix
}

// PartialSuffix is appended to the final artifact path to form the staging
// path for incomplete transfer bytes.
const PartialSuffix = ".part"

// urlBasedFileName returns the last path segment of a link, or "downloaded"
// when the link has no usable path.
func urlBasedFileName(link string) string {
	if u, err := url.Parse(link); err == nil {
		if name := filepath.Base(u.Path); name != "." && name != "/" && name != "" {
			return name
		}
	}
	if idx := strings.LastIndex(link, "/"); idx >= 0 && idx+1 < len(link) {
		return link[idx+1:]
	}
	return "downloaded"
}
