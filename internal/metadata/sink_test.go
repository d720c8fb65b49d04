package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-io/ingest-agent/internal/frame"
	"github.com/argus-io/ingest-agent/internal/store"
)

func TestSinkFlushesOnBatchSize(t *testing.T) {
	mem := store.NewMemStore()
	s := New(Config{Store: mem, DeviceName: "cam-1", BatchSize: 3, FlushInterval: time.Minute})
	defer s.Close()

	for i := 0; i < 3; i++ {
		s.Submit(Item{SeqNum: uint64(i), CapturedAt: time.Now(), Tracks: map[string]frame.Track{
			"0": {TrackID: "0", Confidence: 0.9},
		}})
	}

	require.Eventually(t, func() bool {
		return len(mem.AllDetections()) == 3
	}, time.Second, 10*time.Millisecond)
}

func TestSinkFlushesOnInterval(t *testing.T) {
	mem := store.NewMemStore()
	s := New(Config{Store: mem, DeviceName: "cam-1", BatchSize: 100, FlushInterval: 50 * time.Millisecond})
	defer s.Close()

	s.Submit(Item{SeqNum: 1, CapturedAt: time.Now(), Tracks: map[string]frame.Track{"0": {TrackID: "0"}}})

	require.Eventually(t, func() bool {
		return len(mem.AllDetections()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSinkFinalFlushOnClose(t *testing.T) {
	mem := store.NewMemStore()
	s := New(Config{Store: mem, DeviceName: "cam-1", BatchSize: 100, FlushInterval: time.Minute})

	s.Submit(Item{SeqNum: 1, CapturedAt: time.Now(), Tracks: map[string]frame.Track{"0": {TrackID: "0"}}})
	require.NoError(t, s.Close())

	assert.Len(t, mem.AllDetections(), 1)
}

func TestSinkRecordsDeviceIDAlongsideDeviceName(t *testing.T) {
	mem := store.NewMemStore()
	s := New(Config{Store: mem, DeviceName: "cam-1", DeviceID: "abc123", BatchSize: 1, FlushInterval: time.Minute})
	defer s.Close()

	s.Submit(Item{SeqNum: 1, CapturedAt: time.Now(), Tracks: map[string]frame.Track{"0": {TrackID: "0"}}})

	require.Eventually(t, func() bool {
		return len(mem.AllDetections()) == 1
	}, time.Second, 10*time.Millisecond)

	rec := mem.AllDetections()[0]
	assert.Equal(t, "abc123", rec.DeviceID)
	assert.Equal(t, "cam-1", rec.DeviceName)
}

func TestSinkTracksZoneAttribution(t *testing.T) {
	mem := store.NewMemStore()
	s := New(Config{Store: mem, DeviceName: "cam-1", BatchSize: 1, FlushInterval: time.Minute})
	defer s.Close()

	s.Submit(Item{
		SeqNum:     1,
		CapturedAt: time.Now(),
		Tracks: map[string]frame.Track{
			"0": {
				TrackID: "0",
				BBox:    [4]int{1, 2, 3, 4},
				Zones: map[string]frame.ZoneAttribution{
					"entrance": {Location: frame.LocationInside},
				},
			},
		},
	})

	require.Eventually(t, func() bool {
		return len(mem.AllDetections()) == 1
	}, time.Second, 10*time.Millisecond)

	rec := mem.AllDetections()[0]
	require.Contains(t, rec.Tracks, "0")
	assert.Equal(t, frame.LocationInside, rec.Tracks["0"].Zones["entrance"].Location)
}
