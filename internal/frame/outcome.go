package frame

// Outcome is the value every stage's Process returns: either Continue with
// the (possibly mutated) payload, or Abort with a reason. It replaces a
// "return nil to abort" sentinel with an explicit, testable tag so the
// runtime never has to guess whether nil means abort or programmer error.
type Outcome struct {
	payload  *Payload
	aborted  bool
	reason   string
}

// Continue wraps a payload that should proceed to the next stage.
func Continue(p *Payload) Outcome {
	return Outcome{payload: p}
}

// Abort halts processing of the current frame; later stages are not
// invoked and no further submissions are made on its behalf.
func Abort(reason string) Outcome {
	return Outcome{aborted: true, reason: reason}
}

// Aborted reports whether this outcome is an abort.
func (o Outcome) Aborted() bool { return o.aborted }

// Reason returns the abort reason, or "" if this outcome is not an abort.
func (o Outcome) Reason() string { return o.reason }

// Payload returns the carried payload. Callers must check Aborted first;
// Payload returns nil for an aborted outcome.
func (o Outcome) Payload() *Payload { return o.payload }
