// Package server exposes the upload and transcription endpoints plus the
// live transcript stream.
package server

import (
	"io"
	"log"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrsingh-rishi/voice-scribe/hub"
	"github.com/mrsingh-rishi/voice-scribe/metrics"
	"github.com/mrsingh-rishi/voice-scribe/store"
	"github.com/mrsingh-rishi/voice-scribe/stt"
)

// Server bundles the handler dependencies.
type Server struct {
	store     *store.FileStore
	invoker   *stt.Invoker
	hub       *hub.Hub
	metrics   *metrics.Metrics
	startTime time.Time
}

// New assembles the Fiber app with all routes wired.
func New(st *store.FileStore, invoker *stt.Invoker, h *hub.Hub, m *metrics.Metrics, reg *prometheus.Registry) *fiber.App {
	s := &Server{
		store:     st,
		invoker:   invoker,
		hub:       h,
		metrics:   m,
		startTime: time.Now(),
	}
	st.Expired = func(string) {
		m.SegmentsExpired.Inc()
		m.LiveSegments.Set(float64(st.LiveCount()))
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Post("/api/save-audio", s.handleSaveAudio)
	app.Post("/api/transcribe", s.handleTranscribe)

	app.Use("/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/stream", websocket.New(h.Serve))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	app.Get("/health", s.handleHealth)

	return app
}

// handleSaveAudio accepts one multipart segment and stages it in the store.
func (s *Server) handleSaveAudio(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No audio file provided"})
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No audio file provided"})
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No audio file provided"})
	}

	if err := s.store.Put(fileHeader.Filename, data); err != nil {
		log.Printf("Error saving audio file %s: %v", fileHeader.Filename, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save audio file"})
	}

	s.metrics.SegmentsSaved.Inc()
	s.metrics.BytesSaved.Add(float64(len(data)))
	s.metrics.LiveSegments.Set(float64(s.store.LiveCount()))
	return c.JSON(fiber.Map{"message": "Audio file saved successfully"})
}

// handleTranscribe runs one stored segment through the transcription invoker
// and answers with the raw transcript text.
func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	var req struct {
		FileName string `json:"fileName"`
	}
	if err := c.BodyParser(&req); err != nil || req.FileName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No file name provided"})
	}

	s.metrics.TranscriptionRequests.Inc()

	text, err := s.invoker.Transcribe(c.Context(), req.FileName)
	switch {
	case err == nil:
	case errors.Is(err, stt.ErrNotConfigured):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "OpenAI API key is not configured"})
	case errors.Is(err, store.ErrNotFound):
		log.Printf("Audio file not found: %s", req.FileName)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Audio file not found"})
	default:
		log.Printf("Error transcribing audio %s: %v", req.FileName, err)
		s.metrics.TranscriptionFailures.Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to transcribe audio",
			"details": err.Error(),
		})
	}

	s.metrics.TranscriptionSuccesses.Inc()
	s.metrics.LiveSegments.Set(float64(s.store.LiveCount()))
	s.hub.Broadcast(hub.Fragment{FileName: req.FileName, Text: text})

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(text)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
	})
}
