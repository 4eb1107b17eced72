// Package model defines the core data structures used throughout
// bunkr-downloader.
//
// # Album and Item
//
// Album is a named collection of items sharing one destination directory.
// Item is one downloadable file, carrying its resolved link, filename,
// immutable 1-based display ordinal, and computed final path:
//
//	album := model.NewAlbum("a1b2c3", "Vacation 2024", "/downloads")
//	item := album.AddItem("https://cdn4.example.cr/v/clip.mp4", "clip.mp4")
//	fmt.Println(item.Path)          // Final artifact path
//	fmt.Println(item.PartialPath()) // Staging path for in-flight bytes
//
// # Outcomes
//
// Every transfer ends in exactly one Outcome, a (Result, Reason) pair such
// as skipped (already exists) or failed (retries exhausted). Deferred is the
// tagged intermediate outcome that routes an item through the retry ledger
// to the trailing single-shot pass.
//
// # Transfer states
//
// TransferState encodes the per-item lifecycle and its legal transitions;
// the stats recorder uses it to reject out-of-order updates.
package model
