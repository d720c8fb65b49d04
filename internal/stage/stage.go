// Package stage defines the Stage contract every pipeline step implements,
// plus the compile-time Stage Registry that resolves a descriptor's
// module_path/class_name selector to a concrete factory. Dynamic import has
// no equivalent in a statically compiled binary, so every stage this agent
// can ever run must register itself here before main starts the pipeline.
package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/argus-io/ingest-agent/internal/artifact"
	"github.com/argus-io/ingest-agent/internal/frame"
	"github.com/argus-io/ingest-agent/internal/metadata"
	"github.com/argus-io/ingest-agent/internal/metrics"
	"github.com/argus-io/ingest-agent/internal/predictor"
	"github.com/argus-io/ingest-agent/internal/zone"
)

// Stage is one step of the frame-processing pipeline. Process must return
// either a Continue wrapping the (possibly mutated) payload, or an Abort;
// it must never return a bare nil outcome.
type Stage interface {
	Name() string
	Process(ctx context.Context, p *frame.Payload) frame.Outcome
	Close() error
}

// Factory builds a Stage instance from its static JSON configuration.
type Factory func(name string, rawConfig json.RawMessage, deps Deps) (Stage, error)

// Deps are the runtime dependencies a stage may need, injected by the
// pipeline builder in place of Python's ability to reach into engine
// globals at import time. Not every stage uses every field; a detector
// stage requires Predictor and uses ZoneManager, ArtifactSink, MetadataSink
// and Logger when set, a rate limiter needs none.
type Deps struct {
	DeviceName   string
	DeviceID     string
	Predictor    predictor.Predictor
	ZoneManager  zone.Manager
	ArtifactSink *artifact.Sink
	MetadataSink *metadata.Sink
	Metrics      *metrics.Registry
	Logger       *slog.Logger
}

// Registry resolves a selector string to a Factory. Safe for concurrent
// registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds selector to factory. Registering the same selector twice
// is a programmer error and panics, matching the registry's role as a
// build-time wiring table rather than a runtime one.
func (r *Registry) Register(selector string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[selector]; exists {
		panic(fmt.Sprintf("stage: selector %q already registered", selector))
	}
	r.factories[selector] = factory
}

// Build resolves selector and instantiates a Stage from it.
func (r *Registry) Build(name, selector string, rawConfig json.RawMessage, deps Deps) (Stage, error) {
	r.mu.RLock()
	factory, ok := r.factories[selector]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("stage: unknown selector %q", selector)
	}
	return factory(name, rawConfig, deps)
}

// Default is the process-wide registry populated by each stage package's
// init function, mirroring the Python engine's single global module
// namespace.
var Default = NewRegistry()
