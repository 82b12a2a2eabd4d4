package rest

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	domainerrors "github.com/praxisops/crisis-exercise-backend/internal/domain/errors"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy belongs to the fronting proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket registers a live inject feed for one participant. The
// hub re-applies the scope check per broadcast, so a connection only ever
// sees injects its identity covers.
func (h *Handler) handleWebSocket(hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exerciseID, ok := h.pathID(w, r, "id")
		if !ok {
			return
		}
		caller, err := identityFromRequest(r)
		if err != nil {
			h.writeError(w, r, domainerrors.NewValidationError("INVALID_IDENTITY", err.Error()))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		hub.Register(conn, events.Identity{
			UserID:     caller.UserID,
			Role:       caller.Role,
			Team:       caller.Team,
			ExerciseID: exerciseID,
		})
	}
}
