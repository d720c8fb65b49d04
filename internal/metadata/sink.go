// Package metadata implements the Metadata Sink: it decouples the pipeline
// from the document store by accepting per-frame detection records on a
// queue and batch-inserting them on a background worker, so a slow or
// momentarily unreachable store never stalls frame processing.
package metadata

import (
	"context"
	"log/slog"
	"sync"
	"time"

	ingesterrors "github.com/argus-io/ingest-agent/internal/errors"
	"github.com/argus-io/ingest-agent/internal/frame"
	"github.com/argus-io/ingest-agent/internal/metrics"
	"github.com/argus-io/ingest-agent/internal/store"
)

// Item is the lightweight record queued per frame. It never carries the
// decoded frame itself, only paths and track summaries, so the queue stays
// cheap even under backlog.
type Item struct {
	SeqNum          uint64
	CapturedAt      time.Time
	Tracks          map[string]frame.Track
	RawPath         string
	PlottedPath     string
	InferenceTimeMs float64
}

// Config configures a Sink.
type Config struct {
	Store         store.Store
	DeviceName    string
	DeviceID      string // optional; recorded alongside DeviceName when set
	BatchSize     int           // default 100
	FlushInterval time.Duration // default 5s
	Logger        *slog.Logger
	Metrics       *metrics.Registry // optional
}

// Sink is the Metadata Sink. A single background worker owns the buffer; Submit
// only ever enqueues.
type Sink struct {
	store         store.Store
	deviceName    string
	deviceID      string
	batchSize     int
	flushInterval time.Duration
	log           *slog.Logger
	metrics       *metrics.Registry

	items chan Item
	done  chan struct{}

	closeOnce sync.Once
}

// New constructs a Sink and starts its batch worker.
func New(cfg Config) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Sink{
		store:         cfg.Store,
		deviceName:    cfg.DeviceName,
		deviceID:      cfg.DeviceID,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		log:           log,
		metrics:       cfg.Metrics,
		items:         make(chan Item, 4096),
		done:          make(chan struct{}),
	}

	log.Info("metadata sink started", "batch_size", s.batchSize, "flush_interval", s.flushInterval)
	go s.batchWorker()

	return s
}

// Submit enqueues a detection record for a frame that produced at least one
// track. Frames with no tracks are not submitted by callers, mirroring the
// original handler's decision to save space on empty frames.
func (s *Sink) Submit(item Item) {
	select {
	case s.items <- item:
	default:
		s.log.Warn("metadata queue full, dropping record", "seq_num", item.SeqNum)
	}
	if s.metrics != nil {
		s.metrics.QueueDepth.WithLabelValues("metadata").Set(float64(len(s.items)))
	}
}

// batchWorker accumulates records and flushes them to the store on whichever
// of two triggers fires first: the buffer reaches batchSize, or flushInterval
// has elapsed since the last flush. A 1-second poll timeout on the queue
// keeps the loop responsive to shutdown even with no traffic.
func (s *Sink) batchWorker() {
	defer close(s.done)

	buffer := make([]store.DetectionRecord, 0, s.batchSize)
	lastFlush := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	flush := func(trigger string) {
		if len(buffer) == 0 {
			return
		}
		s.flush(buffer, trigger)
		buffer = make([]store.DetectionRecord, 0, s.batchSize)
		lastFlush = time.Now()
	}

	for {
		select {
		case item, ok := <-s.items:
			if !ok {
				flush("close")
				return
			}
			buffer = append(buffer, s.toRecord(item))
			if len(buffer) >= s.batchSize {
				flush("size")
			}
		case <-ticker.C:
			if time.Since(lastFlush) >= s.flushInterval {
				flush("interval")
			}
		}
	}
}

func (s *Sink) flush(buffer []store.DetectionRecord, trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.InsertDetections(ctx, buffer); err != nil {
		s.log.Error("metadata batch insert failed", "count", len(buffer), "error", ingesterrors.NewSinkError("metadata", "bulkInsert", err))
		return
	}
	s.log.Debug("metadata batch flushed", "count", len(buffer), "trigger", trigger)
	if s.metrics != nil {
		s.metrics.BatchFlushes.WithLabelValues(trigger).Inc()
	}
}

// toRecord stamps device identity (device_name always, device_id when
// configured) and flattens the track map into its bson-tagged form.
func (s *Sink) toRecord(item Item) store.DetectionRecord {
	tracks := make(map[string]store.TrackRecord, len(item.Tracks))
	for key, t := range item.Tracks {
		zones := make(map[string]store.ZoneAttribution, len(t.Zones))
		for zone, attr := range t.Zones {
			zones[zone] = store.ZoneAttribution{Location: attr.Location}
		}
		tracks[key] = store.TrackRecord{
			TrackID:    t.TrackID,
			BBox:       t.BBox,
			Confidence: t.Confidence,
			ClassID:    t.ClassID,
			ClassName:  t.ClassName,
			Zones:      zones,
			CropPath:   t.CropPath,
		}
	}

	return store.DetectionRecord{
		SeqNum:          item.SeqNum,
		CapturedAt:      item.CapturedAt.UnixMilli(),
		DeviceName:      s.deviceName,
		DeviceID:        s.deviceID,
		InferenceTimeMs: item.InferenceTimeMs,
		RawPath:         item.RawPath,
		PlottedPath:     item.PlottedPath,
		Tracks:          tracks,
	}
}

// Close stops the batch worker, flushing any buffered records, and waits up
// to 5 seconds for it to exit.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		close(s.items)
	})

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.log.Error("metadata sink close exceeded budget")
	}
	return nil
}
