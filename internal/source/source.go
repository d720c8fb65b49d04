// Package source implements the Frame Source: a thread-safe,
// at-most-one-in-flight view of the newest decoded frame, backed by an
// ffmpeg subprocess reading RTSP/file input and publishing JPEG frames over
// a pipe. It owns the single-slot buffer, the reconnection protocol, and
// canonical-orientation rotation.
package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	ingesterrors "github.com/argus-io/ingest-agent/internal/errors"
	"github.com/argus-io/ingest-agent/internal/frame"
	"github.com/argus-io/ingest-agent/internal/metrics"
)

// Config configures a Source.
type Config struct {
	Address           string // RTSP URL or local file path
	CodecHint         string // "auto", "h264", "h265"
	Rotation          int    // 0, 90, 180, 270
	DeviceTag         string
	ReconnectInterval time.Duration
	MaxReadFailures   int
	Logger            *slog.Logger
	Metrics           *metrics.Registry // optional
}

// Source is the Frame Source. It exclusively owns the stream handle and
// the single-slot buffer.
type Source struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	latest  *frame.Frame
	lastSet time.Time

	state   StreamState
	stateMu sync.Mutex

	stream *frameStream

	seq atomic.Uint64

	stopCh chan struct{}
	doneCh chan struct{}

	newStream func(ctx context.Context, address, codecHint string) (*frameStream, string, error)
}

// New constructs a Source from cfg, applying defaults for zero-valued
// tunables.
func New(cfg Config) *Source {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}
	if cfg.MaxReadFailures <= 0 {
		cfg.MaxReadFailures = 10
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Source{cfg: cfg, log: log}
	s.newStream = s.defaultConnect
	return s
}

// defaultConnect tries each codec variant in turn and returns the first one
// whose ffmpeg process starts. It reads no frame itself: a variant whose
// process starts but never yields a frame is not followed by the next one.
func (s *Source) defaultConnect(ctx context.Context, address, codecHint string) (*frameStream, string, error) {
	var lastErr error
	for _, variant := range connectVariants(address, codecHint) {
		stream, err := spawnFFmpeg(ctx, variant.args)
		if err != nil {
			lastErr = err
			continue
		}
		return stream, variant.codec, nil
	}
	return nil, "", lastErr
}

// Connect establishes the underlying stream and performs a warm-up read that
// records the frame size and codec. The frame rate is not negotiated; FPS
// stays 0 (unknown). Returns a ConnectError if no codec variant's process
// starts or if the warm-up read on the started one fails; thereafter the
// reader goroutine retries on its own.
func (s *Source) Connect(ctx context.Context) error {
	stream, codec, err := s.newStream(ctx, s.cfg.Address, s.cfg.CodecHint)
	if err != nil {
		return ingesterrors.NewConnectError("source.connect", fmt.Errorf("all codec variants failed: %w", err))
	}

	warmupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	f, err := s.readOneFrame(warmupCtx, stream)
	if err != nil {
		stream.close()
		return ingesterrors.NewConnectError("source.connect", fmt.Errorf("warm-up read: %w", err))
	}

	s.stream = stream
	s.stateMu.Lock()
	s.state = StreamState{
		Open:      true,
		CodecHint: codec,
		Width:     f.Bounds().Dx(),
		Height:    f.Bounds().Dy(),
	}
	s.stateMu.Unlock()

	s.publish(f)
	return nil
}

// readOneFrame reads and decodes exactly one frame off stream, applying
// canonical rotation. A nil stream (the reader loop observed between a
// failed reconnect and the next retry) is reported as a stream error rather
// than dereferenced, so the caller's existing retry/backoff path handles it.
func (s *Source) readOneFrame(ctx context.Context, stream *frameStream) (*frame.Frame, error) {
	if stream == nil {
		return nil, ingesterrors.NewStreamError("source.read", fmt.Errorf("no active stream"))
	}

	type result struct {
		f   *frame.Frame
		err error
	}
	ch := make(chan result, 1)
	go func() {
		raw, err := stream.next()
		if err != nil {
			ch <- result{err: err}
			return
		}
		img, err := jpeg.Decode(bytes.NewReader(raw))
		if err != nil {
			ch <- result{err: err}
			return
		}
		rotated := rotateFrame(img, s.cfg.Rotation)
		ch <- result{f: &frame.Frame{
			Pixels:     rotated,
			CapturedAt: time.Now().UTC(),
			SeqNum:     s.seq.Add(1),
			Source:     s.cfg.DeviceTag,
		}}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.f, r.err
	}
}

func (s *Source) publish(f *frame.Frame) {
	s.mu.Lock()
	s.latest = f
	s.lastSet = f.CapturedAt
	s.mu.Unlock()

	s.stateMu.Lock()
	s.state.recordSuccess(f.CapturedAt)
	s.stateMu.Unlock()
}

// Read returns the most recent buffered frame as an independent copy. ok is
// false if the source is closed or has never produced a frame.
func (s *Source) Read() (f *frame.Frame, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, false
	}
	return s.latest.Clone(), true
}

// LatestY implements health.FrameReader: it returns the Y plane of the
// latest buffered frame without copying the chroma planes, since only
// luminance feeds the health checks.
func (s *Source) LatestY() (y []byte, width, height int, capturedAt time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, 0, 0, time.Time{}, false
	}
	b := s.latest.Bounds()
	return append([]byte(nil), s.latest.Pixels.Y...), b.Dx(), b.Dy(), s.latest.CapturedAt, true
}

// FPS returns the negotiated frame rate, or 0 if unknown. Connect does not
// set it, so it is 0 unless set elsewhere.
func (s *Source) FPS() float64 {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state.FPS
}

// State returns a snapshot of the current StreamState.
func (s *Source) State() StreamState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// StartReader launches the background capture goroutine. It runs until ctx
// is canceled or Close is called.
func (s *Source) StartReader(ctx context.Context) {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)
		s.readLoop(ctx)
	}()
}

func (s *Source) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		f, err := s.readOneFrame(ctx, s.stream)
		if err != nil {
			s.stateMu.Lock()
			s.state.recordFailure()
			failures := s.state.ConsecutiveErrors
			maxFailures := s.cfg.MaxReadFailures
			s.stateMu.Unlock()

			s.log.Warn("frame read failed", "error", err, "consecutive_failures", failures)

			if failures > maxFailures {
				s.reconnect(ctx)
			}
			continue
		}

		s.publish(f)

		if !isNetworkSource(s.cfg.Address) {
			s.paceToFPS()
		} else {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// reconnect marks the stream closed, releases the handle, waits
// reconnect_interval, and reconnects. The reader loop never exits on this
// path — only the shutdown signal ends it.
func (s *Source) reconnect(ctx context.Context) {
	s.log.Warn("too many consecutive read failures, reconnecting", "threshold", s.cfg.MaxReadFailures)

	s.stateMu.Lock()
	s.state.Open = false
	s.stateMu.Unlock()

	if s.stream != nil {
		s.stream.close()
		s.stream = nil
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.cfg.ReconnectInterval):
	}

	if err := s.Connect(ctx); err != nil {
		s.log.Error("reconnect failed, will retry", "error", err)
		return
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.Reconnects.Inc()
	}

	s.stateMu.Lock()
	s.state.ConsecutiveErrors = 0
	s.stateMu.Unlock()
}

// paceToFPS sleeps for roughly one frame interval, used by file sources so
// replay does not drain as fast as possible. It uses FPS() and falls back
// to 25 fps when that is 0, which is the case after Connect.
func (s *Source) paceToFPS() {
	fps := s.FPS()
	if fps <= 0 {
		fps = 25
	}
	time.Sleep(time.Duration(float64(time.Second) / fps))
}

// Close stops the reader goroutine, joins it within a 2-second budget,
// and releases the stream handle. Idempotent.
func (s *Source) Close() error {
	if s.stopCh != nil {
		select {
		case <-s.stopCh:
		default:
			close(s.stopCh)
		}
	}

	if s.doneCh != nil {
		select {
		case <-s.doneCh:
		case <-time.After(2 * time.Second):
			s.log.Error("frame source reader did not exit within budget")
		}
	}

	if s.stream != nil {
		err := s.stream.close()
		s.stream = nil
		return err
	}
	return nil
}

// DecodeImage exposes jpeg decode for detector stages that need to re-read
// raw bytes (e.g. a predictor expecting an encoded frame).
func DecodeImage(b []byte) (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(b))
}
