package capture

import (
	"context"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/pkg/errors"
)

const sampleRate = 16000

// PulseSource records 16kHz mono s16 PCM from a PulseAudio source. The
// source hint matches by name; empty picks the server default.
type PulseSource struct {
	hint string

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

func NewPulseSource(hint string) *PulseSource {
	return &PulseSource{
		hint:   hint,
		chunks: make(chan []byte, 128),
		stopCh: make(chan struct{}),
	}
}

// Start connects to the Pulse server and begins recording. Any acquisition
// failure is reported as ErrDeviceUnavailable.
func (p *PulseSource) Start(ctx context.Context) error {
	client, err := pulse.NewClient(pulse.ClientApplicationName("voice-scribe"))
	if err != nil {
		return errors.Wrap(ErrDeviceUnavailable, err.Error())
	}

	source, err := p.resolveSource(client)
	if err != nil {
		client.Close()
		return errors.Wrap(ErrDeviceUnavailable, err.Error())
	}

	writer := pulse.NewWriter(writerFunc(p.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordMediaName("voice-scribe capture"),
	)
	if err != nil {
		client.Close()
		return errors.Wrap(ErrDeviceUnavailable, err.Error())
	}

	p.client = client
	p.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = p.Stop()
	}()
	return nil
}

func (p *PulseSource) resolveSource(client *pulse.Client) (*pulse.Source, error) {
	if p.hint == "" {
		return client.DefaultSource()
	}
	return client.SourceByID(p.hint)
}

// Chunks returns the PCM stream.
func (p *PulseSource) Chunks() <-chan []byte {
	return p.chunks
}

// Stop halts the record stream and closes Chunks exactly once.
func (p *PulseSource) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()

	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
	}
	if p.client != nil {
		p.client.Close()
	}

	p.inflight.Wait()
	close(p.chunks)
	return nil
}

// onPCM receives raw frames from Pulse and forwards them downstream.
func (p *PulseSource) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	// Guard Add under the same mutex as p.stopped so Stop cannot close the
	// channel while a send is still in flight.
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return 0, io.EOF
	}
	p.inflight.Add(1)
	p.mu.Unlock()
	defer p.inflight.Done()

	chunk := make([]byte, len(buffer))
	copy(chunk, buffer)

	select {
	case <-p.stopCh:
		return 0, io.EOF
	case p.chunks <- chunk:
		return len(buffer), nil
	}
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
