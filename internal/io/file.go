// Package ioutils provides file system utilities for the bunkr-downloader.
//
// This package contains functions for:
//   - Directory creation
//   - Existence checks
//   - Staging-file inspection and promotion
//
// The staging helpers operate on the ".part" files the download engine
// writes while a transfer is in flight.
package ioutils

import "os"

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
//
// Example:
//
//	err := EnsureDir("/downloads/Vacation 2024 (a1b2c3)")
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists reports whether path names an existing regular file.
//
// Directories do not count: the skip-if-present check must never mistake
// a directory for a finished download.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// PartialSize returns the size in bytes of the staging file at path, or 0
// when no staging file exists. The size doubles as the resume offset for
// the next transfer attempt.
func PartialSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return info.Size()
}

// PromotePartial atomically renames a completed staging file to its final
// path. Rename is atomic on POSIX filesystems, so a crash leaves either the
// staging file or the final file, never a half-promoted artifact.
func PromotePartial(partial, final string) error {
	return os.Rename(partial, final)
}

// DiscardPartial removes a stale staging file. A missing file is not an
// error: the transfer simply restarts from offset zero.
func DiscardPartial(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
