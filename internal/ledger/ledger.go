// Package ledger persists the set of items owed exactly one further
// download attempt, surviving process restarts.
//
// The ledger is a UTF-8 text file with one link per line. Appends during the
// main download pass are flushed to stable storage before returning; the
// trailing retry pass rewrites the whole file atomically, so a crash loses
// at most the single in-flight write. An absent file means zero outstanding
// deferred items.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Ledger is a file-backed record of links owed one more attempt. All methods
// serialize through an internal mutex and are safe for concurrent workers.
type Ledger struct {
	path string
	mu   sync.Mutex
	log  zerolog.Logger
}

// New creates a ledger backed by the file at path. The file is not created
// until the first append.
func New(path string, log zerolog.Logger) *Ledger {
	return &Ledger{path: path, log: log}
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Append adds a link unless it is already present, syncing the file before
// returning. Duplicate appends are no-ops.
func (l *Ledger) Append(link string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry == link {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	if _, err := f.WriteString(link + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("appending to ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("syncing ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing ledger: %w", err)
	}

	l.log.Debug().Str("link", link).Str("ledger", l.path).Msg("ledger entry appended")
	return nil
}

// Contains reports whether link is recorded. Read failures are treated as
// absence so a broken ledger degrades to re-attempting items rather than
// skipping them.
func (l *Ledger) Contains(link string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		l.log.Warn().Err(err).Str("ledger", l.path).Msg("ledger read failed")
		return false
	}
	for _, entry := range entries {
		if entry == link {
			return true
		}
	}
	return false
}

// Remove deletes a link from the ledger, rewriting the file atomically.
// Removing the last entry deletes the file.
func (l *Ledger) Remove(link string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}

	remaining := entries[:0]
	for _, entry := range entries {
		if entry != link {
			remaining = append(remaining, entry)
		}
	}
	if len(remaining) == len(entries) {
		return nil
	}
	return l.rewrite(remaining)
}

// Entries returns the recorded links in file order.
func (l *Ledger) Entries() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// Rewrite replaces the ledger contents with the given links, deduplicated
// in order. An empty set deletes the file. The replacement is atomic: the
// new contents are written to a temp file, synced, then renamed over the
// old file.
func (l *Ledger) Rewrite(links []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool, len(links))
	unique := links[:0]
	for _, link := range links {
		if link != "" && !seen[link] {
			seen[link] = true
			unique = append(unique, link)
		}
	}
	return l.rewrite(unique)
}

// read returns the non-empty lines of the backing file. A missing file is
// an empty ledger. Callers hold the mutex.
func (l *Ledger) read() ([]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return entries, nil
}

// rewrite replaces the file contents. Callers hold the mutex.
func (l *Ledger) rewrite(entries []string) error {
	if len(entries) == 0 {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing empty ledger: %w", err)
		}
		return nil
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("creating ledger temp file: %w", err)
	}
	tmpPath := tmp.Name()

	for _, entry := range entries {
		if _, err := tmp.WriteString(entry + "\n"); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("writing ledger temp file: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("syncing ledger temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing ledger temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod ledger temp file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}
