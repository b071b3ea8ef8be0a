package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_CallsOnChange(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w, err := New(dir, func() { calls.Add(1) }, ".yaml")
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"), []byte("a: b\n"), 0o600))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w, err := New(dir, func() { calls.Add(1) }, ".yaml")
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWatcher_Debounces(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w, err := New(dir, func() { calls.Add(1) }, ".yaml")
	require.NoError(t, err)
	w.SetDebounce(300 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	path := filepath.Join(dir, "fr.yaml")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("a: b\n"), 0o600))
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcher_MissingDir(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), func() {})
	require.NoError(t, err)
	assert.Error(t, w.Start())
	assert.NoError(t, w.Stop())
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), func() {})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
