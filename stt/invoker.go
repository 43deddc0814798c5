package stt

import (
	"bytes"
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-scribe/store"
)

// Invoker looks up a named segment, submits it to the capability, and
// advances its lifecycle: saved -> transcribing -> processed.
type Invoker struct {
	store      *store.FileStore
	capability Capability
}

// NewInvoker wires an invoker. A nil capability is allowed and makes every
// Transcribe call fail with ErrNotConfigured.
func NewInvoker(st *store.FileStore, capability Capability) *Invoker {
	return &Invoker{store: st, capability: capability}
}

// Configured reports whether a capability is wired.
func (inv *Invoker) Configured() bool {
	// A typed nil still counts as unconfigured.
	if inv.capability == nil {
		return false
	}
	if w, ok := inv.capability.(*Whisper); ok && w == nil {
		return false
	}
	return true
}

// Transcribe runs one segment through the remote capability.
//
// Invoking it again on a segment that is already processed returns the cached
// transcript; once the segment has expired it is gone and the caller gets
// store.ErrNotFound. A capability failure leaves the record where it was so
// the segment is neither relocated nor lost.
func (inv *Invoker) Transcribe(ctx context.Context, name string) (string, error) {
	if !inv.Configured() {
		return "", ErrNotConfigured
	}

	rec, ok := inv.store.Lookup(name)
	if !ok || rec.State == store.StateDeleted {
		return "", errors.Wrap(store.ErrNotFound, name)
	}
	if rec.State == store.StateProcessed {
		return rec.Text, nil
	}

	if err := inv.store.Begin(name); err != nil {
		return "", err
	}
	data, err := inv.store.Get(name)
	if err != nil {
		return "", err
	}

	log.Printf("Transcribing segment: %s (%d bytes)", name, len(data))
	text, err := inv.capability.Transcribe(ctx, name, bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	if err := inv.store.Relocate(name, text); err != nil {
		return "", err
	}
	log.Printf("Transcription completed for: %s", name)
	return text, nil
}
