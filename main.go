package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrsingh-rishi/voice-scribe/capture"
	"github.com/mrsingh-rishi/voice-scribe/client"
	"github.com/mrsingh-rishi/voice-scribe/config"
	"github.com/mrsingh-rishi/voice-scribe/hub"
	"github.com/mrsingh-rishi/voice-scribe/metrics"
	"github.com/mrsingh-rishi/voice-scribe/server"
	"github.com/mrsingh-rishi/voice-scribe/store"
	"github.com/mrsingh-rishi/voice-scribe/stt"
)

func main() {
	cfg := config.Load()

	mode := "serve"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "serve":
		runServer(cfg)
	case "record":
		runRecorder(cfg)
	default:
		log.Fatalf("unknown mode %q (want serve or record)", mode)
	}
}

// runServer starts the HTTP side: transient store, transcription invoker,
// live stream hub, and metrics.
func runServer(cfg config.Config) {
	st := store.New(cfg.AudioDir, cfg.Retention)
	defer st.Close()

	capability := stt.NewWhisper(cfg.OpenAIKey, cfg.WhisperModel)
	if capability == nil {
		log.Println("OPENAI_API_KEY is not set; transcription requests will fail until it is")
	}
	invoker := stt.NewInvoker(st, capability)

	h := hub.New(64)
	m, reg := metrics.New()
	app := server.New(st, invoker, h, m, reg)

	addr := ":" + cfg.Port
	fmt.Printf("voice-scribe server listening on %s (audio dir %s)\n", addr, cfg.AudioDir)
	log.Fatal(app.Listen(addr))
}

// runRecorder starts the capture side against a running server and prints
// the accumulated transcript when the user interrupts.
func runRecorder(cfg config.Config) {
	source := capture.NewPulseSource(cfg.PulseSource)
	session := client.NewSession(cfg.ServerURL, source, cfg.ChunkDuration)

	if err := session.Start(context.Background()); err != nil {
		log.Fatalf("Error starting recording: %v", err)
	}
	fmt.Printf("Recording in %s chunks, press Ctrl-C to stop\n", cfg.ChunkDuration)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	session.Stop()
	fmt.Println("\nTranscription:")
	fmt.Println(session.Transcript().String())
}
