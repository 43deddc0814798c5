package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything read from the environment at startup.
type Config struct {
	Port          string        // server listen port
	AudioDir      string        // staging directory for uploaded segments
	OpenAIKey     string        // empty means transcription is not configured
	WhisperModel  string        // transcription model identifier
	Retention     time.Duration // how long processed segments are kept; 0 deletes immediately
	ChunkDuration time.Duration // recording window length
	ServerURL     string        // base URL the recording client talks to
	PulseSource   string        // optional PulseAudio source hint, empty picks the default
}

// Load reads .env if present, then the environment, applying defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to environment variables")
	}

	return Config{
		Port:          getenv("PORT", "3000"),
		AudioDir:      getenv("AUDIO_DIR", "tmp/audio"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		WhisperModel:  getenv("WHISPER_MODEL", "whisper-1"),
		Retention:     millisEnv("RETENTION_MS", 3600000),
		ChunkDuration: millisEnv("CHUNK_DURATION_MS", 7000),
		ServerURL:     getenv("SERVER_URL", "http://localhost:3000"),
		PulseSource:   os.Getenv("PULSE_SOURCE"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func millisEnv(key string, fallback int64) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(fallback) * time.Millisecond
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms < 0 {
		log.Printf("Invalid %s=%q, using default %dms", key, raw, fallback)
		return time.Duration(fallback) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}
