package source

import "time"

// StreamState tracks the connection-level bookkeeping the reader goroutine
// advances: whether the handle is live, freshness, the consecutive-failure
// counter that drives reconnection, and the negotiated stream parameters.
type StreamState struct {
	Open              bool
	LastFrameTime     time.Time
	ConsecutiveErrors int
	FPS               float64
	Width             int
	Height            int
	CodecHint         string
}

// recordSuccess resets the failure counter and advances freshness: a
// successful read always clears the error budget.
func (s *StreamState) recordSuccess(at time.Time) {
	s.ConsecutiveErrors = 0
	s.LastFrameTime = at
}

func (s *StreamState) recordFailure() {
	s.ConsecutiveErrors++
}
