// Package pipeline builds and runs the ordered stage chain a camera's
// service record points at. It resolves each descriptor entry through the
// Stage Registry, threads one Payload per captured frame through every
// stage in order, and honors the Abort outcome by stopping early for that
// frame without invoking later stages.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/argus-io/ingest-agent/internal/config"
	ingesterrors "github.com/argus-io/ingest-agent/internal/errors"
	"github.com/argus-io/ingest-agent/internal/frame"
	"github.com/argus-io/ingest-agent/internal/metrics"
	"github.com/argus-io/ingest-agent/internal/stage"
)

// Runtime is the built, ready-to-run stage chain for one camera.
type Runtime struct {
	stages  []stage.Stage
	log     *slog.Logger
	metrics *metrics.Registry
}

// Build resolves every entry in descriptor against registry in order,
// merging each stage's static config with the shared runtime deps. A
// failure to resolve or construct any stage aborts the whole build, per
// the original engine's fail-fast behavior on a bad module reference.
func Build(descriptor *config.PipelineDescriptor, registry *stage.Registry, deps stage.Deps, log *slog.Logger) (*Runtime, error) {
	if log == nil {
		log = slog.Default()
	}

	stages := make([]stage.Stage, 0, len(descriptor.Modules))
	for _, spec := range descriptor.Modules {
		log.Info("loading pipeline stage", "name", spec.Name, "selector", spec.Selector())
		st, err := registry.Build(spec.Name, spec.Selector(), spec.Config, deps)
		if err != nil {
			for _, built := range stages {
				_ = built.Close()
			}
			return nil, fmt.Errorf("pipeline: stage %s: %w", spec.Name, err)
		}
		stages = append(stages, st)
	}

	return &Runtime{stages: stages, log: log, metrics: deps.Metrics}, nil
}

// Run executes every stage in order on payload, stopping at the first
// Abort. It returns the outcome of whichever stage decided the frame's
// fate, or the final stage's Continue if all stages ran. A stage that
// panics is fatal to the current frame only: the panic is recovered,
// logged, and turned into an Abort so the runtime moves on to the next
// frame instead of crashing the process.
func (r *Runtime) Run(ctx context.Context, payload *frame.Payload) frame.Outcome {
	current := payload
	for _, st := range r.stages {
		outcome := r.runStage(ctx, st, current)
		if outcome.Aborted() {
			r.log.Debug("pipeline stage aborted frame", "stage", st.Name(), "reason", outcome.Reason(), "seq_num", payload.SeqNum)
			if r.metrics != nil {
				r.metrics.FramesDropped.WithLabelValues(st.Name()).Inc()
			}
			return outcome
		}
		current = outcome.Payload()
	}
	if r.metrics != nil {
		r.metrics.FramesProcessed.Inc()
	}
	return frame.Continue(current)
}

// runStage invokes a single stage's Process, converting any panic into an
// Abort outcome rather than letting it unwind past the pipeline.
func (r *Runtime) runStage(ctx context.Context, st stage.Stage, p *frame.Payload) (outcome frame.Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			err := ingesterrors.NewStageError(st.Name(), fmt.Errorf("%v", rec))
			r.log.Error("pipeline stage panicked", "stage", st.Name(), "error", err)
			outcome = frame.Abort(fmt.Sprintf("stage %s panicked: %v", st.Name(), rec))
		}
	}()
	return st.Process(ctx, p)
}

// RunFrame is a convenience wrapper that builds the payload from f and runs
// it through every stage.
func (r *Runtime) RunFrame(ctx context.Context, f *frame.Frame) frame.Outcome {
	return r.Run(ctx, frame.NewPayload(f))
}

// Close shuts down every stage in order, giving each closeBudget to finish.
// Stage close errors are logged, not propagated, so one misbehaving stage
// never blocks the rest from shutting down.
func (r *Runtime) Close(closeBudget time.Duration) {
	for _, st := range r.stages {
		done := make(chan error, 1)
		go func(s stage.Stage) { done <- s.Close() }(st)

		select {
		case err := <-done:
			if err != nil {
				r.log.Error("pipeline stage close failed", "stage", st.Name(), "error", err)
			}
		case <-time.After(closeBudget):
			r.log.Error("pipeline stage close exceeded budget", "stage", st.Name())
		}
	}
}
