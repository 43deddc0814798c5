// Package chunker slices a continuous capture stream into fixed-duration
// audio segments, the unit of upload and transcription.
package chunker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mrsingh-rishi/voice-scribe/capture"
)

// Segment is one bounded slice of recorded audio. Name is globally unique
// within a session and stable for the segment's whole lifetime.
type Segment struct {
	Name     string
	Seq      int // emission order, zero-based
	Bytes    []byte
	Duration time.Duration
}

// Chunker drives a capture source in back-to-back windows. Every window is
// closed either by the fixed timer or by Stop, and every closed window with
// audio in it yields exactly one segment; nothing is dropped at boundaries.
type Chunker struct {
	source capture.Source
	window time.Duration

	out  chan Segment
	done chan struct{}

	mu        sync.Mutex
	started   bool
	stopped   bool
	lastStamp int64
}

// New builds a chunker over a capture source with the given window length.
func New(source capture.Source, window time.Duration) *Chunker {
	return &Chunker{
		source: source,
		window: window,
		out:    make(chan Segment, 64),
		done:   make(chan struct{}),
	}
}

// Segments delivers emitted segments in emission order. The channel is
// closed after Stop once the final partial window has been emitted.
func (c *Chunker) Segments() <-chan Segment {
	return c.out
}

// Start acquires the device and opens the first window. The device error, if
// any, is reported synchronously so a session never half-starts.
func (c *Chunker) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("chunker already started")
	}
	c.started = true
	c.mu.Unlock()

	if err := c.source.Start(ctx); err != nil {
		return err
	}
	go c.run()
	return nil
}

// Stop closes capture. The currently open window is finalized as a final,
// possibly short, segment rather than discarded. Stop returns after the
// segment channel has been closed.
func (c *Chunker) Stop() {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	_ = c.source.Stop()
	<-c.done
}

// run collects captured bytes into the open window. The ticker force-closes
// the window every period and immediately opens the next one, so windows
// stay back-to-back even if a downstream stage lags.
func (c *Chunker) run() {
	defer close(c.done)
	defer close(c.out)

	ticker := time.NewTicker(c.window)
	defer ticker.Stop()

	var buf []byte
	seq := 0
	openedAt := time.Now()

	for {
		select {
		case data, ok := <-c.source.Chunks():
			if !ok {
				// Capture closed: finalize the partial window.
				if len(buf) > 0 {
					c.emit(seq, buf, time.Since(openedAt))
				}
				return
			}
			buf = append(buf, data...)

		case <-ticker.C:
			c.emit(seq, buf, time.Since(openedAt))
			seq++
			buf = nil
			openedAt = time.Now()
		}
	}
}

func (c *Chunker) emit(seq int, buf []byte, dur time.Duration) {
	segment := Segment{
		Name:     fmt.Sprintf("audio_%d.wav", c.stamp()),
		Seq:      seq,
		Bytes:    buf,
		Duration: dur,
	}
	c.out <- segment
}

// stamp returns a unix-millisecond timestamp, nudged forward when two windows
// close within the same millisecond so segment names stay unique.
func (c *Chunker) stamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= c.lastStamp {
		now = c.lastStamp + 1
	}
	c.lastStamp = now
	return now
}
