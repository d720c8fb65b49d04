// Package artifact implements the Frame Artifact Sink: it accepts frames to
// persist, computes the destination path synchronously, and encodes/writes
// asynchronously on an encode pool and an I/O pool so the pipeline never
// blocks on disk or network latency.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/argus-io/ingest-agent/internal/bufpool"
	ingesterrors "github.com/argus-io/ingest-agent/internal/errors"
	"github.com/argus-io/ingest-agent/internal/frame"
	"github.com/argus-io/ingest-agent/internal/metrics"
)

// Kind enumerates the three artifact categories the sink persists.
type Kind string

const (
	KindRaw     Kind = "raw"
	KindPlotted Kind = "plotted"
	KindCrop    Kind = "crop"
)

// Backend persists already-encoded bytes at a path. The default backend
// writes to the local filesystem; an optional Azure Blob backend mirrors
// the same bytes remotely.
type Backend interface {
	Write(ctx context.Context, path string, data []byte) error
}

type job struct {
	path  string
	frame *frame.Frame
	kind  Kind
}

// Sink is the Frame Artifact Sink.
type Sink struct {
	baseDir  string
	device   string
	quality  int
	backends []Backend
	log      *slog.Logger
	metrics  *metrics.Registry

	encodeJobs chan job
	ioJobs     chan encodedJob

	encodeWg sync.WaitGroup
	ioWg     sync.WaitGroup

	closeOnce sync.Once
}

type encodedJob struct {
	path string
	data []byte
}

// Config configures a Sink.
type Config struct {
	BaseDir        string
	Device         string
	JPEGQuality    int // default 90
	EncodePoolSize int // default 3
	IOPoolSize     int // default 2
	Backends       []Backend
	Logger         *slog.Logger
	Metrics        *metrics.Registry // optional
}

// New constructs a Sink and starts its worker pools.
func New(cfg Config) *Sink {
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 90
	}
	if cfg.EncodePoolSize <= 0 {
		cfg.EncodePoolSize = 3
	}
	if cfg.IOPoolSize <= 0 {
		cfg.IOPoolSize = 2
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	backends := cfg.Backends
	if len(backends) == 0 {
		backends = []Backend{NewFilesystemBackend()}
	}

	s := &Sink{
		baseDir:    cfg.BaseDir,
		device:     cfg.Device,
		quality:    cfg.JPEGQuality,
		backends:   backends,
		log:        log,
		metrics:    cfg.Metrics,
		encodeJobs: make(chan job, 4096),
		ioJobs:     make(chan encodedJob, 4096),
	}

	for i := 0; i < cfg.EncodePoolSize; i++ {
		s.encodeWg.Add(1)
		go s.encodeWorker()
	}
	for i := 0; i < cfg.IOPoolSize; i++ {
		s.ioWg.Add(1)
		go s.ioWorker()
	}

	return s
}

// Submit computes the artifact's final path synchronously and returns it
// immediately; encoding and writing happen asynchronously. The returned
// path is emitted even if the write has not completed yet.
func (s *Sink) Submit(f *frame.Frame, timestamp time.Time, frameNumber uint64, kind Kind) string {
	path := s.computePath(timestamp, frameNumber, kind)

	select {
	case s.encodeJobs <- job{path: path, frame: f, kind: kind}:
	default:
		s.log.Warn("artifact encode queue full, dropping submission", "path", path, "kind", kind)
	}
	if s.metrics != nil {
		s.metrics.QueueDepth.WithLabelValues("artifact_encode").Set(float64(len(s.encodeJobs)))
	}

	return path
}

func (s *Sink) computePath(timestamp time.Time, frameNumber uint64, kind Kind) string {
	day := timestamp.UTC().Format("2006-01-02")
	token := uuid.New().String()[:8]
	name := fmt.Sprintf("%d-%d-%s.jpg", frameNumber, timestamp.UTC().UnixMicro(), token)
	return filepath.Join(s.baseDir, day, s.device, string(kind), name)
}

func (s *Sink) encodeWorker() {
	defer s.encodeWg.Done()
	for j := range s.encodeJobs {
		scratch := bufpool.Get(65536)
		buf := bytes.NewBuffer(scratch[:0])
		if err := jpeg.Encode(buf, j.frame.Pixels, &jpeg.Options{Quality: s.quality}); err != nil {
			s.log.Error("artifact encode failed", "path", j.path, "error", ingesterrors.NewSinkError("artifact", "encode", err))
			bufpool.Put(scratch)
			continue
		}
		// buf may have grown past scratch's capacity and reallocated, so
		// copy the result out before scratch goes back to the pool.
		data := append([]byte(nil), buf.Bytes()...)
		bufpool.Put(scratch)

		ej := encodedJob{path: j.path, data: data}
		select {
		case s.ioJobs <- ej:
		default:
			s.log.Warn("artifact io queue full, dropping write", "path", j.path)
		}
		if s.metrics != nil {
			s.metrics.QueueDepth.WithLabelValues("artifact_io").Set(float64(len(s.ioJobs)))
		}
	}
}

func (s *Sink) ioWorker() {
	defer s.ioWg.Done()
	for j := range s.ioJobs {
		for _, backend := range s.backends {
			if err := backend.Write(context.Background(), j.path, j.data); err != nil {
				s.log.Error("artifact write failed", "path", j.path, "error", ingesterrors.NewSinkError("artifact", "write", err))
			}
		}
	}
}

// Close drains both pools in order (encode, then I/O) and joins within a
// bounded wait. Safe to call once; later calls are no-ops.
func (s *Sink) Close() error {
	first := false
	s.closeOnce.Do(func() {
		close(s.encodeJobs)
		first = true
	})
	if !first {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.encodeWg.Wait()
		close(s.ioJobs)
		s.ioWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.log.Error("artifact sink close exceeded budget")
	}
	return nil
}
