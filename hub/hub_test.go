package hub

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startStreamServer(t *testing.T, h *Hub) string {
	t.Helper()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use("/stream", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/stream", fiberws.New(h.Serve))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return ln.Addr().String()
}

func dial(t *testing.T, addr string) *gws.Conn {
	t.Helper()
	var conn *gws.Conn
	require.Eventually(t, func() bool {
		c, _, err := gws.DefaultDialer.Dial("ws://"+addr+"/stream", nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFragment(t *testing.T, conn *gws.Conn) Fragment {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frag Fragment
	require.NoError(t, conn.ReadJSON(&frag))
	return frag
}

func TestBacklogReplayThenLiveBroadcast(t *testing.T) {
	h := New(4)
	addr := startStreamServer(t, h)

	h.Broadcast(Fragment{FileName: "audio_1.wav", Text: "first"})
	h.Broadcast(Fragment{FileName: "audio_2.wav", Text: "second"})

	conn := dial(t, addr)

	require.Equal(t, "first", readFragment(t, conn).Text)
	require.Equal(t, "second", readFragment(t, conn).Text)

	require.Eventually(t, func() bool { return h.SubscriberCount() == 1 },
		2*time.Second, 20*time.Millisecond)

	h.Broadcast(Fragment{FileName: "audio_3.wav", Text: "third"})
	frag := readFragment(t, conn)
	require.Equal(t, "audio_3.wav", frag.FileName)
	require.Equal(t, "third", frag.Text)
}

func TestBacklogIsBounded(t *testing.T) {
	h := New(2)
	addr := startStreamServer(t, h)

	h.Broadcast(Fragment{Text: "one"})
	h.Broadcast(Fragment{Text: "two"})
	h.Broadcast(Fragment{Text: "three"})

	conn := dial(t, addr)
	require.Equal(t, "two", readFragment(t, conn).Text)
	require.Equal(t, "three", readFragment(t, conn).Text)
}

func TestPlainGETRequiresUpgrade(t *testing.T) {
	h := New(4)
	addr := startStreamServer(t, h)

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://" + addr + "/stream")
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()

	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
