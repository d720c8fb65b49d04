package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/argus-io/ingest-agent/internal/artifact"
	"github.com/argus-io/ingest-agent/internal/frame"
	"github.com/argus-io/ingest-agent/internal/metadata"
	"github.com/argus-io/ingest-agent/internal/predictor"
	"github.com/argus-io/ingest-agent/internal/zone"
)

func init() {
	Default.Register("stages.detector.Detector", newDetectorStage)
}

// detectorConfig is the static per-stage configuration a descriptor can
// supply for a detector stage.
type detectorConfig struct {
	PlotZones bool `json:"plot_zones"`
}

// DetectorStage is the archetype stage: it runs inference on the incoming
// frame, submits raw and plotted artifacts, attributes each track to any
// configured zone, and queues a metadata record. It follows the
// payload-threaded predict() model: everything downstream reads tracks off
// the payload rather than the stage reaching back into engine state.
type DetectorStage struct {
	name      string
	predictor predictor.Predictor
	zones     zone.Manager
	artifacts *artifact.Sink
	meta      *metadata.Sink
	plotZones bool
	log       *slog.Logger
}

func newDetectorStage(name string, rawConfig json.RawMessage, deps Deps) (Stage, error) {
	var cfg detectorConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("detector stage %s: %w", name, err)
		}
	}
	if deps.Predictor == nil {
		return nil, fmt.Errorf("detector stage %s: no predictor configured", name)
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &DetectorStage{
		name:      name,
		predictor: deps.Predictor,
		zones:     deps.ZoneManager,
		artifacts: deps.ArtifactSink,
		meta:      deps.MetadataSink,
		plotZones: cfg.PlotZones,
		log:       log,
	}, nil
}

func (s *DetectorStage) Name() string { return s.name }

func (s *DetectorStage) Process(ctx context.Context, p *frame.Payload) frame.Outcome {
	start := time.Now()

	var rawPath, plottedPath string
	if s.artifacts != nil {
		rawPath = s.artifacts.Submit(p.Original, p.CapturedAt, p.SeqNum, artifact.KindRaw)
	}

	tracks, err := s.predictor.Predict(ctx, p.Current)
	if err != nil {
		s.log.Error("detector stage prediction failed", "stage", s.name, "error", err)
		return frame.Abort(fmt.Sprintf("predict: %v", err))
	}

	if s.zones != nil {
		for key, t := range tracks {
			t.Zones = s.zones.Attribute(t.BBox)
			tracks[key] = t
		}
	}

	if s.artifacts != nil {
		plottedPath = s.artifacts.Submit(p.Current, p.CapturedAt, p.SeqNum, artifact.KindPlotted)
		for key, t := range tracks {
			crop := p.Current.Crop(t.BBox)
			if crop == nil {
				continue
			}
			t.CropPath = s.artifacts.Submit(crop, p.CapturedAt, p.SeqNum, artifact.KindCrop)
			tracks[key] = t
		}
	}

	inferenceMs := float64(time.Since(start).Microseconds()) / 1000.0

	p.Meta[frame.MetaTracks] = tracks
	p.Meta[frame.MetaRawPath] = rawPath
	p.Meta[frame.MetaPlottedPath] = plottedPath
	p.Meta[frame.MetaInferenceTime] = inferenceMs

	if s.meta != nil && len(tracks) > 0 {
		s.meta.Submit(metadata.Item{
			SeqNum:          p.SeqNum,
			CapturedAt:      p.CapturedAt,
			Tracks:          tracks,
			RawPath:         rawPath,
			PlottedPath:     plottedPath,
			InferenceTimeMs: inferenceMs,
		})
	}

	return frame.Continue(p)
}

func (s *DetectorStage) Close() error {
	return s.predictor.Close()
}
