// Package capture wraps an audio input device as a continuous byte stream.
package capture

import (
	"context"

	"github.com/pkg/errors"
)

// ErrDeviceUnavailable means the capture device could not be acquired, for
// example because it is missing, busy, or access was denied.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Source is a continuous stream of raw audio bytes. Start acquires the
// device; Chunks delivers audio until Stop is called, after which the channel
// is closed with no captured bytes dropped.
type Source interface {
	Start(ctx context.Context) error
	Chunks() <-chan []byte
	Stop() error
}
