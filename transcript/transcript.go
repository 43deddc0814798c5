// Package transcript accumulates per-segment transcription results into one
// ordered, append-only transcript.
package transcript

import (
	"strings"
	"sync"
)

// Result is the outcome of one segment's pipeline: either text or an error.
type Result struct {
	Text string
	Err  error
}

// Accumulator serializes concurrent per-segment results. Segments are
// numbered in emission order at recording time; completions may arrive in any
// order, so results are held back until every earlier segment has landed.
type Accumulator struct {
	mu        sync.Mutex
	next      int
	pending   map[int]Result
	fragments []string
}

func New() *Accumulator {
	return &Accumulator{pending: make(map[int]Result)}
}

// Append records the result for the segment with the given emission sequence
// number. Results arriving out of order are buffered and flushed once their
// predecessors have appended, so fragment order always matches emission order.
func (a *Accumulator) Append(seq int, res Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending[seq] = res
	for {
		ready, ok := a.pending[a.next]
		if !ok {
			return
		}
		delete(a.pending, a.next)
		a.next++
		a.fragments = append(a.fragments, render(ready))
	}
}

// render turns a result into its transcript fragment. Failures become inline
// markers so gaps stay diagnosable instead of disappearing silently.
func render(res Result) string {
	if res.Err != nil {
		return "Error: " + res.Err.Error()
	}
	return strings.TrimSpace(res.Text)
}

// Fragments returns the flushed fragments in emission order.
func (a *Accumulator) Fragments() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.fragments))
	copy(out, a.fragments)
	return out
}

// String joins the non-empty fragments with single spaces.
func (a *Accumulator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var b strings.Builder
	for _, f := range a.fragments {
		if f == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f)
	}
	return b.String()
}

// PendingCount reports buffered out-of-order results, for diagnostics.
func (a *Accumulator) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
