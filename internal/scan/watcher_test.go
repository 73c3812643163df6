package scan

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/TypeTerrors/rsum/internal/store"
	"github.com/TypeTerrors/rsum/pkg/rsum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherTracksChanges(t *testing.T) {
	sc, s, dir := newTestScanner(t)

	w := NewWatcher(sc)
	w.delay = 20 * time.Millisecond
	watcher, err := w.open()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.loop(ctx, watcher)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	path := filepath.Join(dir, "watched")
	writeFile(t, path, []byte("AB"))

	require.Eventually(t, func() bool {
		fh, err := s.Get("watched")
		return err == nil && fh.Rsum == rsum.Digest{0x00, 0x83, 0x00, 0xc4}
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		_, err := s.Get("watched")
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)

	_, err = s.Get("watched")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWatcherForgetsDirectoryMovedOut(t *testing.T) {
	sc, s, dir := newTestScanner(t)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	w := NewWatcher(sc)
	w.delay = 20 * time.Millisecond
	watcher, err := w.open()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.loop(ctx, watcher)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	writeFile(t, filepath.Join(sub, "f"), []byte("AB"))
	require.Eventually(t, func() bool {
		_, err := s.Get("sub/f")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Rename(sub, filepath.Join(t.TempDir(), "moved")))

	require.Eventually(t, func() bool {
		_, err := s.Get("sub/f")
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)

	_, err = s.Get("sub/f")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, s.List())
}

func TestDebounceCoalesces(t *testing.T) {
	sc, _, _ := newTestScanner(t)
	w := NewWatcher(sc)
	w.delay = 20 * time.Millisecond

	var mu sync.Mutex
	calls := 0
	for i := 0; i < 5; i++ {
		w.debounce("same", func() {
			mu.Lock()
			calls++
			mu.Unlock()
		})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}
