package download

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/handiism/bunkr-downloader/internal/config"
	"github.com/handiism/bunkr-downloader/internal/hoststatus"
	"github.com/handiism/bunkr-downloader/internal/http"
	"github.com/handiism/bunkr-downloader/internal/ledger"
	"github.com/handiism/bunkr-downloader/internal/model"
	"github.com/handiism/bunkr-downloader/internal/stats"
)

type testEnv struct {
	settings *config.Settings
	hosts    *hoststatus.Tracker
	ledger   *ledger.Ledger
	stats    *stats.Recorder
	executor *Executor
	album    *model.Album
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	settings := config.DefaultSettings()
	settings.DownloadRoot = root
	settings.MaxWorkers = 3
	settings.MaxRetries = 3
	settings.RetryBackoffBase = 0.01
	settings.RequestTimeout = 5

	hosts := hoststatus.NewTracker(nil)
	led := ledger.New(filepath.Join(root, "session.txt"), zerolog.Nop())
	rec := stats.NewRecorder(zerolog.Nop())
	client := http.NewClient(settings.Timeout(), settings.UserAgent, settings.Referer)

	return &testEnv{
		settings: settings,
		hosts:    hosts,
		ledger:   led,
		stats:    rec,
		executor: NewExecutor(settings, client, hosts, led, rec, nil, zerolog.Nop()),
		album:    model.NewAlbum("alb1", "Test Album", root),
	}
}

func TestExecutor_DownloadsFile(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		io.WriteString(w, "file contents")
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")
	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)

	require.Equal(t, model.ResultCompleted, outcome.Result)
	data, err := os.ReadFile(item.Path)
	require.NoError(t, err)
	require.Equal(t, "file contents", string(data))
	_, err = os.Stat(item.PartialPath())
	require.True(t, os.IsNotExist(err), "staging file must be gone after promotion")
}

func TestExecutor_ResumesPartial(t *testing.T) {
	env := newTestEnv(t)
	const full = "hello world"

	var gotRange atomic.Value
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotRange.Store(r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 6-10/11")
		w.WriteHeader(nethttp.StatusPartialContent)
		io.WriteString(w, full[6:])
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")
	require.NoError(t, os.MkdirAll(env.album.Path, 0755))
	require.NoError(t, os.WriteFile(item.PartialPath(), []byte(full[:6]), 0644))

	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)

	require.Equal(t, model.ResultCompleted, outcome.Result)
	require.Equal(t, "bytes=6-", gotRange.Load())
	data, err := os.ReadFile(item.Path)
	require.NoError(t, err)
	require.Equal(t, full, string(data))
}

func TestExecutor_DiscardsStalePartial(t *testing.T) {
	env := newTestEnv(t)
	const full = "fresh full entity"

	// The server ignores the Range header and always sends the whole file.
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		io.WriteString(w, full)
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")
	require.NoError(t, os.MkdirAll(env.album.Path, 0755))
	require.NoError(t, os.WriteFile(item.PartialPath(), []byte("stale bytes"), 0644))

	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)

	require.Equal(t, model.ResultCompleted, outcome.Result)
	data, err := os.ReadFile(item.Path)
	require.NoError(t, err)
	require.Equal(t, full, string(data), "stale partial bytes must not survive")
}

func TestExecutor_ResumesAfterTruncatedBody(t *testing.T) {
	env := newTestEnv(t)
	const full = "hello world"

	var calls atomic.Int32
	var gotRange atomic.Value
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if calls.Add(1) == 1 {
			// Declare the full size but deliver only a prefix.
			w.Header().Set("Content-Length", "11")
			w.WriteHeader(nethttp.StatusOK)
			io.WriteString(w, full[:6])
			return
		}
		gotRange.Store(r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 6-10/11")
		w.WriteHeader(nethttp.StatusPartialContent)
		io.WriteString(w, full[6:])
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")
	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)

	require.Equal(t, model.ResultCompleted, outcome.Result)
	require.Equal(t, "bytes=6-", gotRange.Load())
	data, err := os.ReadFile(item.Path)
	require.NoError(t, err)
	require.Equal(t, full, string(data))
}

func TestExecutor_UnknownSizeEndIsNotPromoted(t *testing.T) {
	env := newTestEnv(t)

	var calls atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		calls.Add(1)
		// Flushing before the body completes forces a chunked response
		// with no Content-Length, so the client never learns the total.
		io.WriteString(w, "chunked body with no declared total")
		w.(nethttp.Flusher).Flush()
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")
	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)

	// The stream end is indistinguishable from truncation, so the item
	// defers instead of completing.
	require.Equal(t, model.ResultDeferred, outcome.Result)
	require.Equal(t, int32(env.settings.MaxRetries), calls.Load())
	_, err := os.Stat(item.Path)
	require.True(t, os.IsNotExist(err), "truncated stream must not become a final file")
	_, err = os.Stat(item.PartialPath())
	require.NoError(t, err, "staging file must survive for resumption")
	require.True(t, env.ledger.Contains(item.Link))
}

func TestExecutor_SkipsExistingFile(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")
	require.NoError(t, os.MkdirAll(env.album.Path, 0755))
	require.NoError(t, os.WriteFile(item.Path, []byte("already here"), 0644))

	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)

	require.Equal(t, model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonAlreadyExists}, outcome)
	require.Equal(t, int32(0), calls.Load(), "existing file must not touch the network")
}

func TestExecutor_Filters(t *testing.T) {
	env := newTestEnv(t)
	env.settings.Ignore = []string{".MP4"}
	env.settings.Include = []string{".jpg"}

	item := env.album.AddItem("https://cdn4.example.cr/v/clip.mp4", "clip.mp4")
	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)
	require.Equal(t, model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonIgnoreFilter}, outcome)

	env.settings.Ignore = nil
	item2 := env.album.AddItem("https://cdn4.example.cr/v/other.mp4", "other.mp4")
	outcome = env.executor.Download(context.Background(), item2, env.settings.MaxRetries)
	require.Equal(t, model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonIncludeFilter}, outcome)

	require.False(t, env.ledger.Contains(item.Link), "filtered items never enter the ledger")
}

func TestExecutor_LedgerEntryShortCircuitsMainPass(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")
	require.NoError(t, env.ledger.Append(item.Link))

	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)

	require.Equal(t, model.ResultDeferred, outcome.Result)
	require.Equal(t, int32(0), calls.Load(), "deferred items are owned by the trailing pass")
	require.Equal(t, 1, env.stats.DeferredCount())
}

func TestExecutor_OfflineHostSkips(t *testing.T) {
	env := newTestEnv(t)
	item := env.album.AddItem("https://cdn4.example.cr/v/clip.mp4", "clip.mp4")
	env.hosts.MarkOffline(item.Link)

	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)

	require.Equal(t, model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonHostOffline}, outcome)
	require.True(t, env.ledger.Contains(item.Link))
	require.Equal(t, 1, env.stats.DeferredCount())
}

func TestExecutor_RateLimitRetries(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(nethttp.StatusTooManyRequests)
			return
		}
		io.WriteString(w, "file contents")
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")
	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)

	require.Equal(t, model.ResultCompleted, outcome.Result)
	require.Equal(t, int32(2), calls.Load())
}

func TestExecutor_HostDownAbortsWithoutConsumingBudget(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		calls.Add(1)
		w.WriteHeader(nethttp.StatusServiceUnavailable)
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")
	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)

	require.Equal(t, model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonServiceUnavailable}, outcome)
	require.Equal(t, int32(1), calls.Load(), "host outage must not burn remaining attempts")
	require.True(t, env.hosts.IsOffline(item.Link))
	require.True(t, env.ledger.Contains(item.Link))
}

func TestExecutor_ClientErrorFailsWithoutRetry(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		calls.Add(1)
		w.WriteHeader(nethttp.StatusNotFound)
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")
	outcome := env.executor.Download(context.Background(), item, env.settings.MaxRetries)

	require.Equal(t, model.Outcome{Result: model.ResultFailed, Reason: model.ReasonRetriesExhausted}, outcome)
	require.Equal(t, int32(1), calls.Load())
	require.False(t, env.ledger.Contains(item.Link), "definitive failures are not retried next run")
}

func TestExecutor_ExhaustionDefersThenTrailingPassFails(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		calls.Add(1)
		w.WriteHeader(nethttp.StatusTooManyRequests)
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")

	outcome := env.executor.Download(context.Background(), item, 2)
	require.Equal(t, model.ResultDeferred, outcome.Result)
	require.Equal(t, int32(2), calls.Load())
	require.True(t, env.ledger.Contains(item.Link))

	// The trailing pass takes the same code path with a budget of one and
	// classifies exhaustion as a hard failure.
	outcome = env.executor.Download(context.Background(), item, 1)
	require.Equal(t, model.Outcome{Result: model.ResultFailed, Reason: model.ReasonRetriesExhausted}, outcome)
	require.Equal(t, int32(3), calls.Load())
}

func TestExecutor_TrailingPassOfflineHostFails(t *testing.T) {
	env := newTestEnv(t)
	item := env.album.AddItem("https://cdn4.example.cr/v/clip.mp4", "clip.mp4")
	env.hosts.MarkOffline(item.Link)

	outcome := env.executor.Download(context.Background(), item, 1)

	require.Equal(t, model.Outcome{Result: model.ResultFailed, Reason: model.ReasonRetriesExhausted}, outcome)
}

func TestExecutor_CancellationDefersAndKeepsPartial(t *testing.T) {
	env := newTestEnv(t)
	started := make(chan struct{})
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Length", "1048576")
		w.WriteHeader(nethttp.StatusOK)
		w.Write(make([]byte, 1024))
		w.(nethttp.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	item := env.album.AddItem(server.URL+"/f/clip.mp4", "clip.mp4")
	require.NoError(t, os.MkdirAll(env.album.Path, 0755))
	require.NoError(t, os.WriteFile(item.PartialPath(), nil, 0644))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	outcome := env.executor.Download(ctx, item, env.settings.MaxRetries)

	require.Equal(t, model.ResultDeferred, outcome.Result)
	require.True(t, env.ledger.Contains(item.Link))
	_, err := os.Stat(item.Path)
	require.True(t, os.IsNotExist(err), "an interrupted transfer must not be promoted")
	_, err = os.Stat(item.PartialPath())
	require.NoError(t, err, "the partial stays on disk for the next run")
}
