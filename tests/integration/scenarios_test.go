// Package integration exercises the concrete end-to-end scenarios the
// ingest agent's components must satisfy together: rate limiting feeding a
// detector, batch-boundary metadata flushes, shutdown-under-load draining,
// a fail-fast unknown stage selector, and corrupted-frame classification.
package integration

import (
	"context"
	"encoding/json"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-io/ingest-agent/internal/artifact"
	"github.com/argus-io/ingest-agent/internal/config"
	"github.com/argus-io/ingest-agent/internal/frame"
	"github.com/argus-io/ingest-agent/internal/health"
	"github.com/argus-io/ingest-agent/internal/metadata"
	"github.com/argus-io/ingest-agent/internal/pipeline"
	"github.com/argus-io/ingest-agent/internal/predictor"
	"github.com/argus-io/ingest-agent/internal/stage"
	"github.com/argus-io/ingest-agent/internal/store"
)

func syntheticFrame(seq uint64, at time.Time) *frame.Frame {
	return &frame.Frame{
		Pixels:     image.NewYCbCr(image.Rect(0, 0, 16, 16), image.YCbCrSubsampleRatio420),
		CapturedAt: at,
		SeqNum:     seq,
	}
}

// Scenario 1: rate_limit(5fps) -> detector over a simulated 25fps capture.
// Every 5th captured frame should reach the detector; the rest are aborted
// by the rate limiter before any metadata record is produced.
func TestScenarioRateLimitedDetectorOnlyRecordsPassedFrames(t *testing.T) {
	mem := store.NewMemStore()
	metaSink := metadata.New(metadata.Config{Store: mem, DeviceName: "cam-1", BatchSize: 100, FlushInterval: time.Minute})
	defer metaSink.Close()

	stub := predictor.NewStubPredictor(map[string]frame.Track{"0": {TrackID: "0"}})
	descriptor := &config.PipelineDescriptor{
		Modules: []config.StageSpec{
			{Name: "rl", ModulePath: "stages.ratelimit", ClassName: "RateLimit", Config: json.RawMessage(`{"target_fps":5}`)},
			{Name: "detect", ModulePath: "stages.detector", ClassName: "Detector"},
		},
	}
	runtime, err := pipeline.Build(descriptor, stage.Default, stage.Deps{Predictor: stub, MetadataSink: metaSink}, nil)
	require.NoError(t, err)
	defer runtime.Close(time.Second)

	start := time.Unix(0, 0)
	passed := 0
	for i := uint64(0); i < 50; i++ {
		at := start.Add(time.Duration(i) * (time.Second / 25))
		outcome := runtime.RunFrame(context.Background(), syntheticFrame(i, at))
		if !outcome.Aborted() {
			passed++
		}
	}

	assert.InDelta(t, 10, passed, 1)
	require.Eventually(t, func() bool {
		return len(mem.AllDetections()) == passed
	}, time.Second, 10*time.Millisecond)
}

// Scenario 2: 300 frames through a detector with no rate limit. Metadata
// batch_size=100 should produce exactly 3 flushes with no final partial
// flush, since 300 is an even multiple of the batch size.
func TestScenarioFileSourceBatchesInEvenMultiples(t *testing.T) {
	mem := store.NewMemStore()
	metaSink := metadata.New(metadata.Config{Store: mem, DeviceName: "cam-1", BatchSize: 100, FlushInterval: time.Minute})

	stub := predictor.NewStubPredictor(map[string]frame.Track{"0": {TrackID: "0"}})
	descriptor := &config.PipelineDescriptor{
		Modules: []config.StageSpec{
			{Name: "detect", ModulePath: "stages.detector", ClassName: "Detector"},
		},
	}
	runtime, err := pipeline.Build(descriptor, stage.Default, stage.Deps{Predictor: stub, MetadataSink: metaSink}, nil)
	require.NoError(t, err)
	defer runtime.Close(time.Second)

	start := time.Unix(0, 0)
	for i := uint64(0); i < 300; i++ {
		at := start.Add(time.Duration(i) * (time.Second / 30))
		outcome := runtime.RunFrame(context.Background(), syntheticFrame(i, at))
		require.False(t, outcome.Aborted())
	}

	require.Eventually(t, func() bool {
		return len(mem.AllDetections()) == 300
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, metaSink.Close())
	assert.Len(t, mem.AllDetections(), 300)
}

// Scenario 4: shutdown under load. Records below batch_size sit in the
// Metadata Sink buffer; Close must perform one final flush before it
// returns, and pending artifact writes must complete within the sink's
// own close budget.
func TestScenarioShutdownUnderLoadDrainsBothSinks(t *testing.T) {
	mem := store.NewMemStore()
	metaSink := metadata.New(metadata.Config{Store: mem, DeviceName: "cam-1", BatchSize: 100, FlushInterval: time.Minute})

	for i := uint64(0); i < 50; i++ {
		metaSink.Submit(metadata.Item{SeqNum: i, CapturedAt: time.Now(), Tracks: map[string]frame.Track{"0": {TrackID: "0"}}})
	}

	backend := newRecordingBackend()
	artifactSink := artifact.New(artifact.Config{BaseDir: "/artifacts", Device: "cam-1", Backends: []artifact.Backend{backend}})
	for i := 0; i < 20; i++ {
		artifactSink.Submit(&frame.Frame{Pixels: image.NewYCbCr(image.Rect(0, 0, 4, 4), image.YCbCrSubsampleRatio420)}, time.Now(), uint64(i), artifact.KindRaw)
	}

	require.NoError(t, metaSink.Close())
	require.NoError(t, artifactSink.Close())

	assert.Len(t, mem.AllDetections(), 50)
	assert.Equal(t, 20, backend.count())
}

// Scenario 5: an unknown stage selector fails pipeline construction before
// any stage starts, and any stage already built during the failed attempt
// is closed rather than leaked.
func TestScenarioUnknownStageSelectorFailsFast(t *testing.T) {
	descriptor := &config.PipelineDescriptor{
		Modules: []config.StageSpec{
			{Name: "detect", ModulePath: "stages.detector", ClassName: "Detector"},
			{Name: "ghost", ModulePath: "stages.nope", ClassName: "Ghost"},
		},
	}
	_, err := pipeline.Build(descriptor, stage.Default, stage.Deps{Predictor: predictor.NewStubPredictor(nil)}, nil)
	assert.Error(t, err)
}

// Scenario 6: a synthetic 95%-white frame is classified corrupted with the
// white-screen reason, while the health monitor otherwise reports healthy
// frames unaffected.
func TestScenarioCorruptedFrameDetection(t *testing.T) {
	width, height := 10, 10
	y := make([]byte, width*height)
	for i := range y {
		y[i] = 255
	}
	// Leave 5% of pixels dark so the plane isn't perfectly uniform.
	for i := 0; i < 5; i++ {
		y[i] = 0
	}

	reasons := health.CheckFrame(y, width, height, health.DefaultThresholds())
	assert.Contains(t, reasons, health.ReasonWhiteScreen)
}

type recordingBackend struct {
	mu     sync.Mutex
	writes int
}

func newRecordingBackend() *recordingBackend { return &recordingBackend{} }

func (b *recordingBackend) Write(_ context.Context, _ string, _ []byte) error {
	b.mu.Lock()
	b.writes++
	b.mu.Unlock()
	return nil
}

func (b *recordingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}
