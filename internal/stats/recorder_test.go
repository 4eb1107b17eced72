package stats

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/handiism/bunkr-downloader/internal/model"
)

func testItem(ordinal int) *model.Item {
	album := model.NewAlbum("a1", "Test", "/tmp")
	return model.NewItem(album, ordinal, "https://cdn4.example.cr/v/file"+string(rune('a'+ordinal))+".mp4", "file.mp4")
}

func TestRecorder_HappyPath(t *testing.T) {
	r := NewRecorder(zerolog.Nop())
	item := testItem(1)

	require.True(t, r.Start(item))
	require.True(t, r.Record(item, model.Outcome{Result: model.ResultCompleted}))

	s := r.Summary()
	require.Equal(t, 1, s.Totals[model.ResultCompleted])
	require.Equal(t, 1, s.Total())
}

func TestRecorder_RejectsOutOfOrderUpdates(t *testing.T) {
	r := NewRecorder(zerolog.Nop())
	item := testItem(1)

	// Record before Start
	require.False(t, r.Record(item, model.Outcome{Result: model.ResultCompleted}))

	require.True(t, r.Start(item))
	// Double start while in progress
	require.False(t, r.Start(item))

	require.True(t, r.Record(item, model.Outcome{Result: model.ResultCompleted}))
	// Double record
	require.False(t, r.Record(item, model.Outcome{Result: model.ResultFailed, Reason: model.ReasonRetriesExhausted}))
	// Restart after completion
	require.False(t, r.Start(item))

	s := r.Summary()
	require.Equal(t, 1, s.Total())
	require.Equal(t, 0, s.Totals[model.ResultFailed])
}

func TestRecorder_DeferredThenResolved(t *testing.T) {
	r := NewRecorder(zerolog.Nop())
	item := testItem(1)

	require.True(t, r.Start(item))
	require.True(t, r.Record(item, model.Outcome{Result: model.ResultDeferred}))
	r.AddDeferred(1)

	s := r.Summary()
	require.Equal(t, 0, s.Total(), "deferred is not a final bucket")
	require.Equal(t, 1, s.Deferred)

	// Trailing pass resolves the item.
	require.True(t, r.Start(item))
	require.True(t, r.Record(item, model.Outcome{Result: model.ResultFailed, Reason: model.ReasonRetriesExhausted}))
	r.AddDeferred(-1)

	s = r.Summary()
	require.Equal(t, 1, s.Counts[model.ResultFailed][model.ReasonRetriesExhausted])
	require.Equal(t, 1, s.Total())
	require.Equal(t, 0, s.Deferred)
}

func TestRecorder_LedgerBoundSkipSuperseded(t *testing.T) {
	r := NewRecorder(zerolog.Nop())
	item := testItem(1)

	require.True(t, r.Start(item))
	require.True(t, r.Record(item, model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonHostOffline}))

	s := r.Summary()
	require.Equal(t, 1, s.Counts[model.ResultSkipped][model.ReasonHostOffline])

	// The trailing pass succeeds: the item moves buckets, it is not
	// double-counted.
	require.True(t, r.Start(item))
	require.True(t, r.Record(item, model.Outcome{Result: model.ResultCompleted}))

	s = r.Summary()
	require.Equal(t, 0, s.Counts[model.ResultSkipped][model.ReasonHostOffline])
	require.Equal(t, 1, s.Totals[model.ResultCompleted])
	require.Equal(t, 1, s.Total())
}

func TestRecorder_HardSkipIsFinal(t *testing.T) {
	r := NewRecorder(zerolog.Nop())
	item := testItem(1)

	require.True(t, r.Start(item))
	require.True(t, r.Record(item, model.Outcome{Result: model.ResultSkipped, Reason: model.ReasonIgnoreFilter}))

	// A filter skip is terminal; nothing may restart it.
	require.False(t, r.Start(item))

	s := r.Summary()
	require.Equal(t, 1, s.Counts[model.ResultSkipped][model.ReasonIgnoreFilter])
}

func TestRecorder_SetDeferred(t *testing.T) {
	r := NewRecorder(zerolog.Nop())

	r.SetDeferred(4)
	require.Equal(t, 4, r.DeferredCount())

	r.AddDeferred(-1)
	require.Equal(t, 3, r.DeferredCount())

	// Gauge never goes negative.
	r.AddDeferred(-10)
	require.Equal(t, 0, r.DeferredCount())
}

func TestRecorder_ConcurrentRecording(t *testing.T) {
	r := NewRecorder(zerolog.Nop())
	album := model.NewAlbum("a1", "Test", "/tmp")

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		item := album.AddItem("https://cdn4.example.cr/v/"+string(rune('a'+i%26))+string(rune('0'+i/26))+".mp4", "f.mp4")
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.True(t, r.Start(item))
			r.AddBytes(10)
			require.True(t, r.Record(item, model.Outcome{Result: model.ResultCompleted}))
		}()
	}
	wg.Wait()

	s := r.Summary()
	require.Equal(t, n, s.Totals[model.ResultCompleted])
	require.Equal(t, int64(10*n), s.BytesReceived)
}
