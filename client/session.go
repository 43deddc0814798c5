// Package client runs the recording side of the pipeline: it chunks live
// capture into segments and drives each one through upload and transcription,
// accumulating the results into an ordered transcript.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-scribe/capture"
	"github.com/mrsingh-rishi/voice-scribe/chunker"
	"github.com/mrsingh-rishi/voice-scribe/transcript"
)

// ErrUploadFailed means a segment could not be delivered to the server. The
// segment's transcription is skipped and the failure surfaces inline in the
// transcript; the session keeps going.
var ErrUploadFailed = errors.New("upload failed")

// Session owns one recording run: the device, the chunker, and the in-flight
// per-segment pipelines.
type Session struct {
	ID        string
	serverURL string
	http      *http.Client

	chunker    *chunker.Chunker
	transcript *transcript.Accumulator

	wg       sync.WaitGroup
	dispatch chan struct{}
}

// NewSession builds a session recording from source in windows of the given
// length, uploading to the server at serverURL.
func NewSession(serverURL string, source capture.Source, window time.Duration) *Session {
	return &Session{
		ID:         uuid.NewString(),
		serverURL:  serverURL,
		http:       &http.Client{},
		chunker:    chunker.New(source, window),
		transcript: transcript.New(),
		dispatch:   make(chan struct{}),
	}
}

// Transcript returns the session's accumulator.
func (s *Session) Transcript() *transcript.Accumulator {
	return s.transcript
}

// Start acquires the device and begins pipelining segments. Each segment's
// upload and transcription run independently; ordering is restored by the
// accumulator, so a slow round-trip stalls only its own fragment.
func (s *Session) Start(ctx context.Context) error {
	if err := s.chunker.Start(ctx); err != nil {
		return err
	}
	log.Printf("Recording session started: %s", s.ID)

	go func() {
		defer close(s.dispatch)
		for seg := range s.chunker.Segments() {
			s.wg.Add(1)
			go s.pipeline(ctx, seg)
		}
	}()
	return nil
}

// Stop closes capture, lets the final partial segment emit, and waits for
// every in-flight pipeline to append its result.
func (s *Session) Stop() {
	s.chunker.Stop()
	<-s.dispatch
	s.wg.Wait()
	log.Printf("Recording session stopped: %s", s.ID)
}

// pipeline carries one segment through upload and transcription and appends
// the outcome at the segment's emission slot.
func (s *Session) pipeline(ctx context.Context, seg chunker.Segment) {
	defer s.wg.Done()

	if err := s.upload(ctx, seg); err != nil {
		log.Printf("Error saving audio %s: %v", seg.Name, err)
		s.transcript.Append(seg.Seq, transcript.Result{Err: err})
		return
	}

	text, err := s.requestTranscription(ctx, seg.Name)
	if err != nil {
		log.Printf("Error transcribing audio %s: %v", seg.Name, err)
		s.transcript.Append(seg.Seq, transcript.Result{Err: err})
		return
	}
	s.transcript.Append(seg.Seq, transcript.Result{Text: text})
}

// upload posts the segment bytes as a multipart form under the field "audio".
func (s *Session) upload(ctx context.Context, seg chunker.Segment) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", seg.Name)
	if err != nil {
		return errors.Wrap(ErrUploadFailed, err.Error())
	}
	if _, err := part.Write(seg.Bytes); err != nil {
		return errors.Wrap(ErrUploadFailed, err.Error())
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(ErrUploadFailed, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/api/save-audio", &body)
	if err != nil {
		return errors.Wrap(ErrUploadFailed, err.Error())
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.http.Do(req)
	if err != nil {
		return errors.Wrap(ErrUploadFailed, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrUploadFailed, "server returned %d", resp.StatusCode)
	}
	return nil
}

// requestTranscription asks the server to transcribe an uploaded segment and
// returns the plain-text transcript.
func (s *Session) requestTranscription(ctx context.Context, name string) (string, error) {
	payload, err := json.Marshal(map[string]string{"fileName": name})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/api/transcribe", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			if body.Details != "" {
				return "", errors.Errorf("%s: %s", body.Error, body.Details)
			}
			return "", errors.New(body.Error)
		}
		return "", errors.Errorf("transcription failed with status %d", resp.StatusCode)
	}
	return string(raw), nil
}
