// Package predictor abstracts the inference step the detector stage calls:
// given a JPEG-encodable frame, return the set of tracked objects found in
// it. A stub implementation supports tests and dry runs; an HTTP
// implementation delegates to an external inference service so this agent
// never links a model runtime directly.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/argus-io/ingest-agent/internal/frame"
)

// Predictor runs inference on a decoded frame and returns the tracks found.
type Predictor interface {
	Predict(ctx context.Context, f *frame.Frame) (map[string]frame.Track, error)
	Close() error
}

// StubPredictor is a deterministic reference implementation: it returns a
// fixed set of tracks (or none) without doing any real inference, useful for
// integration tests and dry-run pipelines.
type StubPredictor struct {
	Tracks map[string]frame.Track
}

// NewStubPredictor returns a StubPredictor that reports tracks on every call.
func NewStubPredictor(tracks map[string]frame.Track) *StubPredictor {
	return &StubPredictor{Tracks: tracks}
}

func (p *StubPredictor) Predict(_ context.Context, _ *frame.Frame) (map[string]frame.Track, error) {
	out := make(map[string]frame.Track, len(p.Tracks))
	for k, v := range p.Tracks {
		out[k] = v
	}
	return out, nil
}

func (p *StubPredictor) Close() error { return nil }

// HTTPPredictor posts the frame's JPEG encoding to an external inference
// endpoint and decodes its JSON track response.
type HTTPPredictor struct {
	endpoint string
	client   *http.Client
	quality  int
}

// HTTPPredictorConfig configures an HTTPPredictor.
type HTTPPredictorConfig struct {
	Endpoint    string
	Timeout     time.Duration // default 5s
	JPEGQuality int           // default 90
}

// NewHTTPPredictor builds a Predictor backed by an HTTP inference endpoint.
func NewHTTPPredictor(cfg HTTPPredictorConfig) *HTTPPredictor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 90
	}
	return &HTTPPredictor{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		quality:  cfg.JPEGQuality,
	}
}

// inferenceResponse is the wire shape the external endpoint is expected to
// return: a flat map keyed by track id.
type inferenceResponse struct {
	Tracks map[string]wireTrack `json:"tracks"`
}

type wireTrack struct {
	TrackID    string  `json:"track_id"`
	BBox       [4]int  `json:"bbox"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
}

func (p *HTTPPredictor) Predict(ctx context.Context, f *frame.Frame) (map[string]frame.Track, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Pixels, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("predictor encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("predictor request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predictor call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("predictor returned status %d", resp.StatusCode)
	}

	var wire inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("predictor decode: %w", err)
	}

	tracks := make(map[string]frame.Track, len(wire.Tracks))
	for key, t := range wire.Tracks {
		tracks[key] = frame.Track{
			TrackID:    t.TrackID,
			BBox:       t.BBox,
			Confidence: t.Confidence,
			ClassID:    t.ClassID,
			ClassName:  t.ClassName,
		}
	}
	return tracks, nil
}

func (p *HTTPPredictor) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
