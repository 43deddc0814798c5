package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, retention time.Duration) *FileStore {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "tmp", "audio")
	s := New(dir, retention)
	t.Cleanup(s.Close)
	return s
}

func TestPutCreatesDirectoryLazily(t *testing.T) {
	s := newStore(t, time.Hour)

	_, err := os.Stat(s.Dir())
	require.True(t, os.IsNotExist(err), "staging dir must not exist before first write")

	require.NoError(t, s.Put("audio_1.wav", []byte("pcm")))
	require.FileExists(t, filepath.Join(s.Dir(), "audio_1.wav"))
}

func TestGetReturnsSavedBytes(t *testing.T) {
	s := newStore(t, time.Hour)
	require.NoError(t, s.Put("audio_1.wav", []byte("pcm-bytes")))

	data, err := s.Get("audio_1.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("pcm-bytes"), data)
}

func TestGetMissingName(t *testing.T) {
	s := newStore(t, time.Hour)
	_, err := s.Get("audio_missing.wav")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutIsIdempotent(t *testing.T) {
	s := newStore(t, time.Hour)
	require.NoError(t, s.Put("audio_1.wav", []byte("pcm")))
	require.NoError(t, s.Put("audio_1.wav", []byte("pcm")))

	require.Equal(t, 1, s.LiveCount())
	data, err := s.Get("audio_1.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("pcm"), data)
}

func TestPutRefusesAdvancedName(t *testing.T) {
	s := newStore(t, time.Hour)
	require.NoError(t, s.Put("audio_1.wav", []byte("pcm")))
	require.NoError(t, s.Relocate("audio_1.wav", "text"))

	err := s.Put("audio_1.wav", []byte("other"))
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLifecycle(t *testing.T) {
	s := newStore(t, time.Hour)
	require.NoError(t, s.Put("audio_1.wav", []byte("pcm")))

	rec, ok := s.Lookup("audio_1.wav")
	require.True(t, ok)
	require.Equal(t, StateSaved, rec.State)

	require.NoError(t, s.Begin("audio_1.wav"))
	rec, _ = s.Lookup("audio_1.wav")
	require.Equal(t, StateTranscribing, rec.State)

	// Transcribing records are still readable.
	data, err := s.Get("audio_1.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("pcm"), data)

	require.NoError(t, s.Relocate("audio_1.wav", "hello"))
	rec, _ = s.Lookup("audio_1.wav")
	require.Equal(t, StateProcessed, rec.State)
	require.Equal(t, "hello", rec.Text)
	require.FileExists(t, filepath.Join(s.Dir(), "processed", "audio_1.wav"))

	// Processed records are no longer offered for transcription reads.
	_, err = s.Get("audio_1.wav")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Expire("audio_1.wav"))
	rec, _ = s.Lookup("audio_1.wav")
	require.Equal(t, StateDeleted, rec.State)
	require.NoFileExists(t, filepath.Join(s.Dir(), "processed", "audio_1.wav"))

	_, err = s.Get("audio_1.wav")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 0, s.LiveCount())
}

func TestBeginIsRetryable(t *testing.T) {
	s := newStore(t, time.Hour)
	require.NoError(t, s.Put("audio_1.wav", []byte("pcm")))
	require.NoError(t, s.Begin("audio_1.wav"))
	require.NoError(t, s.Begin("audio_1.wav"))
}

func TestRelocateFromSavedNeverSkipsTranscribing(t *testing.T) {
	s := newStore(t, time.Hour)
	require.NoError(t, s.Put("audio_1.wav", []byte("pcm")))

	// Relocate on a saved record routes through transcribing internally; the
	// bare transition table still rejects the skip edge.
	_, err := Transition(StateSaved, StateProcessed)
	require.Error(t, err)

	require.NoError(t, s.Relocate("audio_1.wav", "text"))
	rec, _ := s.Lookup("audio_1.wav")
	require.Equal(t, StateProcessed, rec.State)
}

func TestTransitionTable(t *testing.T) {
	valid := []struct{ from, to State }{
		{StateSaved, StateTranscribing},
		{StateTranscribing, StateProcessed},
		{StateProcessed, StateDeleted},
	}
	for _, tc := range valid {
		next, err := Transition(tc.from, tc.to)
		require.NoError(t, err)
		require.Equal(t, tc.to, next)
	}

	invalid := []struct{ from, to State }{
		{StateSaved, StateProcessed},
		{StateSaved, StateDeleted},
		{StateTranscribing, StateDeleted},
		{StateTranscribing, StateSaved},
		{StateProcessed, StateSaved},
		{StateDeleted, StateSaved},
		{StateDeleted, StateProcessed},
	}
	for _, tc := range invalid {
		_, err := Transition(tc.from, tc.to)
		require.Error(t, err, "transition %s -> %s must be rejected", tc.from, tc.to)
	}
}

func TestExpireRequiresProcessed(t *testing.T) {
	s := newStore(t, time.Hour)
	require.NoError(t, s.Put("audio_1.wav", []byte("pcm")))
	require.ErrorIs(t, s.Expire("audio_1.wav"), ErrNotFound)
	require.ErrorIs(t, s.Expire("audio_missing.wav"), ErrNotFound)
}

func TestRetentionTimerExpires(t *testing.T) {
	s := newStore(t, 20*time.Millisecond)
	require.NoError(t, s.Put("audio_1.wav", []byte("pcm")))
	require.NoError(t, s.Relocate("audio_1.wav", "text"))

	require.Eventually(t, func() bool {
		rec, _ := s.Lookup("audio_1.wav")
		return rec.State == StateDeleted
	}, time.Second, 5*time.Millisecond)

	_, err := s.Get("audio_1.wav")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestZeroRetentionExpiresImmediately(t *testing.T) {
	s := newStore(t, 0)
	require.NoError(t, s.Put("audio_1.wav", []byte("pcm")))
	require.NoError(t, s.Relocate("audio_1.wav", "text"))

	rec, _ := s.Lookup("audio_1.wav")
	require.Equal(t, StateDeleted, rec.State)
}

func TestExpiredHookFires(t *testing.T) {
	s := newStore(t, 0)
	var expired []string
	s.Expired = func(name string) { expired = append(expired, name) }

	require.NoError(t, s.Put("audio_1.wav", []byte("pcm")))
	require.NoError(t, s.Relocate("audio_1.wav", "text"))
	require.Equal(t, []string{"audio_1.wav"}, expired)
}

func TestErrorsWrapSentinels(t *testing.T) {
	s := newStore(t, time.Hour)
	_, err := s.Get("nope")
	require.True(t, errors.Is(err, ErrNotFound))
}
