package model

import (
	"fmt"
	"path/filepath"
)

// Album is a named collection of items sharing one destination directory.
//
// The directory name combines the human-readable album name with the album
// identifier so distinct albums with the same title never collide:
//
//	album := model.NewAlbum("a1b2c3", "Vacation 2024", "/downloads")
//	// album.Path = "/downloads/Vacation 2024 (a1b2c3)"
type Album struct {
	// ID is the album identifier from the hosting service.
	ID string

	// Name is the human-readable album title.
	Name string

	// Path is the computed destination directory for all items.
	Path string

	// Items are the album's items in resolution order. Ordinals are
	// 1-based and contiguous at creation time.
	Items []*Item
}

// NewAlbum creates an Album with its destination directory computed under
// downloadRoot.
func NewAlbum(id, name, downloadRoot string) *Album {
	album := &Album{
		ID:   id,
		Name: name,
	}
	album.Path = filepath.Join(downloadRoot, SanitizeFileName(album.dirName()))
	return album
}

// AddItem appends an item built from a resolved link and filename, assigning
// the next ordinal.
func (a *Album) AddItem(link, filename string) *Item {
	item := NewItem(a, len(a.Items)+1, link, filename)
	a.Items = append(a.Items, item)
	return item
}

// ItemByLink returns the item with the given source link, or nil. The
// trailing retry pass uses this to reuse the original descriptor (and its
// ordinal) for ledger entries produced in the same run.
func (a *Album) ItemByLink(link string) *Item {
	for _, item := range a.Items {
		if item.Link == link {
			return item
		}
	}
	return nil
}

func (a *Album) dirName() string {
	switch {
	case a.Name != "" && a.ID != "":
		return fmt.Sprintf("%s (%s)", a.Name, a.ID)
	case a.Name != "":
		return a.Name
	default:
		return a.ID
	}
}
