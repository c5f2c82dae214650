package live

import (
	"net/http"

	"github.com/coder/websocket"
)

// Handler upgrades an HTTP request to a WebSocket and delegates to the
// Manager. It is framework-agnostic so it can be mounted from either
// gin (pkg/adminapi) or echo (pkg/ingestapi) without adapting Manager
// itself.
func (m *Manager) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	m.HandleConnection(r.Context(), conn)
}
