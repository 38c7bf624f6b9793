package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/chorechamp/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and streams the caller's
// family change feed. With no origin patterns every origin is accepted.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns:     originPatterns,
			InsecureSkipVerify: len(originPatterns) == 0,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("websocket connected", "family_id", a.FamilyID, "member_id", a.MemberID)
		NewClient(hub, conn, a.FamilyID, a.MemberID).Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}
