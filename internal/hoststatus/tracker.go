package hoststatus

import (
	"net/url"
	"strings"
	"sync"
)

// Tracker is the run-scoped record of which hosts are unusable.
//
// Hosts are keyed by the capitalized first label of the link's hostname
// (the per-file storage node, e.g. "Cdn4" for cdn4.example.cr). A record is
// created on first reference and lives for the run. All methods are safe for
// concurrent use; a mutation is visible to every caller as soon as it
// returns.
type Tracker struct {
	mu      sync.RWMutex
	offline map[string]bool
}

// NewTracker creates a tracker, optionally seeded with a host→offline map
// from a persisted cross-run status store.
func NewTracker(seed map[string]bool) *Tracker {
	offline := make(map[string]bool, len(seed))
	for host, down := range seed {
		offline[HostKey(host)] = down
	}
	return &Tracker{offline: offline}
}

// HostKey derives the tracker key for a link or bare hostname.
func HostKey(link string) string {
	host := link
	if u, err := url.Parse(link); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	if idx := strings.IndexByte(host, '.'); idx > 0 {
		host = host[:idx]
	}
	if host == "" {
		return ""
	}
	return strings.ToUpper(host[:1]) + strings.ToLower(host[1:])
}

// IsOffline reports whether the host serving link is flagged offline.
func (t *Tracker) IsOffline(link string) bool {
	key := HostKey(link)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.offline[key]
}

// MarkOffline flags the host serving link as offline and returns the host
// key. Marking an already-offline host is a no-op beyond returning the key.
func (t *Tracker) MarkOffline(link string) string {
	key := HostKey(link)
	t.mu.Lock()
	t.offline[key] = true
	t.mu.Unlock()
	return key
}

// Snapshot returns a copy of the current host→offline map, for feeding back
// into a persisted status store after the run.
func (t *Tracker) Snapshot() map[string]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]bool, len(t.offline))
	for host, down := range t.offline {
		out[host] = down
	}
	return out
}

// OfflineCount returns the number of hosts currently flagged offline.
func (t *Tracker) OfflineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, down := range t.offline {
		if down {
			n++
		}
	}
	return n
}
