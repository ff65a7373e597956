package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/allowance/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and streams the
// caller's family events until the connection closes. originPatterns
// lists cross-origin hosts allowed to connect.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			hub.logger.Warn("accept websocket", "error", err)
			return
		}
		defer conn.CloseNow()

		hub.logger.Debug("client connected", "family_id", ac.FamilyID, "user_id", ac.UserID)
		NewClient(hub, conn, ac.FamilyID, ac.UserID).Run(r.Context())
	}
}
