package ws

import (
	"net/http"

	"github.com/coder/websocket"

	"github.com/oshokin/smokewatch/internal/logger"
)

// ServeHTTP upgrades the request and streams hub messages until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Dashboards and maps are served from other origins.
		InsecureSkipVerify: true,
	})
	if err != nil {
		logger.ErrorKV(h.ctx, "WebSocket accept failed", "error", err)
		return
	}

	client := &Client{
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan Message, sendBufferSize),
	}

	h.Register(client)

	ctx := r.Context()
	done := make(chan struct{})

	go func() {
		client.writePump(ctx)
		close(done)
	}()

	client.readPump(ctx)

	h.Unregister(client)
	_ = conn.Close(websocket.StatusNormalClosure, "")

	<-done
}
