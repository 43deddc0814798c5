// Package stt submits stored audio segments to a remote speech-to-text
// capability and drives each segment's lifecycle in the store.
package stt

import (
	"context"
	"io"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured means no transcription credential is present. It is a
// deployment problem, not a per-segment one, and is checked before any I/O.
var ErrNotConfigured = errors.New("transcription capability not configured")

// Capability converts one segment's audio bytes to plain text.
type Capability interface {
	Transcribe(ctx context.Context, name string, audio io.Reader) (string, error)
}

// Whisper is the OpenAI-backed Capability.
type Whisper struct {
	client *openai.Client
	model  string
}

// NewWhisper builds a Whisper capability, or nil when no API key is set so
// callers fail fast with ErrNotConfigured instead of burning a request.
func NewWhisper(apiKey, model string) *Whisper {
	if apiKey == "" {
		return nil
	}
	return &Whisper{client: openai.NewClient(apiKey), model: model}
}

// Transcribe streams audio to the Whisper endpoint and returns the plain-text
// transcript. The file name rides along so the API can infer the container
// format from its extension.
func (w *Whisper) Transcribe(ctx context.Context, name string, audio io.Reader) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: name,
		Reader:   audio,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", errors.Wrapf(err, "whisper transcription of %s", name)
	}
	return resp.Text, nil
}
