// Package hub fans transcript fragments out to WebSocket subscribers so a
// running transcription can be watched live.
package hub

import (
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/mrsingh-rishi/voice-scribe/queue"
)

// Fragment is one broadcast transcript piece.
type Fragment struct {
	FileName string `json:"fileName"`
	Text     string `json:"text"`
}

// Hub tracks subscriber connections and keeps a bounded backlog of recent
// fragments that is replayed to each new subscriber.
type Hub struct {
	mu      sync.Mutex
	conns   map[string]*websocket.Conn
	backlog *queue.Queue[Fragment]
}

// New creates a hub replaying at most backlogSize fragments to newcomers.
func New(backlogSize int) *Hub {
	return &Hub{
		conns:   make(map[string]*websocket.Conn),
		backlog: queue.NewBounded[Fragment](backlogSize),
	}
}

// Broadcast records a fragment in the backlog and pushes it to every
// subscriber. A subscriber whose write fails is dropped.
func (h *Hub) Broadcast(frag Fragment) {
	h.backlog.Enqueue(frag)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.conns {
		if err := conn.WriteJSON(frag); err != nil {
			log.Printf("Dropping stream subscriber %s: %v", id, err)
			conn.Close()
			delete(h.conns, id)
		}
	}
}

// Serve handles one subscriber connection: replays the backlog, then holds
// the connection open until the peer goes away. Meant to be wrapped with
// websocket.New on the /stream route.
func (h *Hub) Serve(conn *websocket.Conn) {
	id := uuid.NewString()

	for _, frag := range h.backlog.Snapshot() {
		if err := conn.WriteJSON(frag); err != nil {
			conn.Close()
			return
		}
	}

	h.mu.Lock()
	h.conns[id] = conn
	h.mu.Unlock()
	log.Printf("Stream subscriber connected: %s", id)

	// Reads are discarded; the read loop only notices disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
	conn.Close()
	log.Printf("Stream subscriber disconnected: %s", id)
}

// SubscriberCount reports connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
