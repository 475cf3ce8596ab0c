package handlers

import (
	"net/http"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/services/tetris"
)

// PublicHandler handles public API endpoints
type PublicHandler struct {
	sessionManager *tetris.SessionManager
}

// NewPublicHandler creates a new instance of PublicHandler
func NewPublicHandler(sm *tetris.SessionManager) *PublicHandler {
	return &PublicHandler{sessionManager: sm}
}

// Health は稼働確認用のエンドポイントです。
// GET /api/public
func (h *PublicHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.sessionManager.SessionCount(),
	})
}
