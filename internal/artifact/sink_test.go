package artifact

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-io/ingest-agent/internal/frame"
)

type recordingBackend struct {
	mu     sync.Mutex
	writes map[string][]byte
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{writes: make(map[string][]byte)}
}

func (b *recordingBackend) Write(_ context.Context, path string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes[path] = data
	return nil
}

func (b *recordingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.writes)
}

func testFrame() *frame.Frame {
	img := image.NewYCbCr(image.Rect(0, 0, 8, 8), image.YCbCrSubsampleRatio420)
	return &frame.Frame{Pixels: img, CapturedAt: time.Now(), SeqNum: 1, Source: "cam-1"}
}

func TestSubmitReturnsPathImmediately(t *testing.T) {
	backend := newRecordingBackend()
	s := New(Config{BaseDir: "/artifacts", Device: "dock", Backends: []Backend{backend}})
	defer s.Close()

	path := s.Submit(testFrame(), time.Now(), 42, KindRaw)
	assert.Contains(t, path, "dock")
	assert.Contains(t, path, "raw")
	assert.Contains(t, path, "42-")
}

func TestSinkEventuallyWrites(t *testing.T) {
	backend := newRecordingBackend()
	s := New(Config{BaseDir: "/artifacts", Device: "dock", Backends: []Backend{backend}})

	s.Submit(testFrame(), time.Now(), 1, KindRaw)
	s.Submit(testFrame(), time.Now(), 2, KindPlotted)

	require.NoError(t, s.Close())
	assert.Equal(t, 2, backend.count())
}

func TestFilesystemBackendWritesFile(t *testing.T) {
	dir := t.TempDir()
	b := NewFilesystemBackend()
	path := filepath.Join(dir, "2026-07-30", "dock", "raw", "1-123.jpg")

	require.NoError(t, b.Write(context.Background(), path, []byte("fake-jpeg-bytes")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake-jpeg-bytes", string(data))
}

func TestSinkCloseIsIdempotentSafe(t *testing.T) {
	s := New(Config{BaseDir: t.TempDir(), Device: "dock"})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
