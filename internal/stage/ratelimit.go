package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/argus-io/ingest-agent/internal/frame"
)

func init() {
	Default.Register("stages.ratelimit.RateLimit", newRateLimitStage)
}

type rateLimitConfig struct {
	TargetFPS float64 `json:"target_fps"`
}

// RateLimitStage drops frames that arrive faster than the configured
// target, mirroring the engine loop's own interval gate: a fixed
// processing cadence independent of capture fps.
type RateLimitStage struct {
	name     string
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func newRateLimitStage(name string, rawConfig json.RawMessage, _ Deps) (Stage, error) {
	cfg := rateLimitConfig{TargetFPS: 5}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("ratelimit stage %s: %w", name, err)
		}
	}
	if cfg.TargetFPS <= 0 {
		return nil, fmt.Errorf("ratelimit stage %s: target_fps must be positive", name)
	}

	return &RateLimitStage{
		name:     name,
		interval: time.Duration(float64(time.Second) / cfg.TargetFPS),
	}, nil
}

func (s *RateLimitStage) Name() string { return s.name }

func (s *RateLimitStage) Process(_ context.Context, p *frame.Payload) frame.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() && p.CapturedAt.Sub(s.last) < s.interval {
		return frame.Abort("rate limited")
	}
	s.last = p.CapturedAt
	return frame.Continue(p)
}

func (s *RateLimitStage) Close() error { return nil }
