package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/services/leaderboard"
)

// LeaderboardHandler はランキング関連のハンドラーを管理する構造体です。
type LeaderboardHandler struct {
	service leaderboard.LeaderboardService
}

// NewLeaderboardHandler は新しいLeaderboardHandlerインスタンスを作成します。
func NewLeaderboardHandler(service leaderboard.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

// GetLeaderboard は上位10件を返します。
// GET /api/leaderboard
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Top(r.Context())
	if err != nil {
		log.Printf("[LeaderboardHandler] ランキング取得エラー: %v", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "ランキングの取得に失敗しました")
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// CheckHighScore はスコアがランキングに入るかを返します。
// GET /api/leaderboard/check?score=1200
func (h *LeaderboardHandler) CheckHighScore(w http.ResponseWriter, r *http.Request) {
	score, err := strconv.Atoi(r.URL.Query().Get("score"))
	if err != nil || score < 0 {
		WriteErrorResponse(w, http.StatusBadRequest, "scoreは0以上の整数で指定してください")
		return
	}

	ok, err := h.service.IsHighScore(r.Context(), score)
	if err != nil {
		log.Printf("[LeaderboardHandler] ハイスコア判定エラー: %v", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "ランキングの取得に失敗しました")
		return
	}
	WriteJSONResponse(w, http.StatusOK, models.HighScoreCheckResponse{Score: score, IsHighScore: ok})
}

// PostScore はスコアを登録します。認証ミドルウェアの後ろで使います。
// POST /api/leaderboard {"name": "abc", "score": 1200, "level": 3, "lines": 14}
func (h *LeaderboardHandler) PostScore(w http.ResponseWriter, r *http.Request) {
	var req models.LeaderboardEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "無効なリクエストボディです")
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())

	res, err := h.service.AddScore(r.Context(), req)
	if errors.Is(err, leaderboard.ErrInvalidEntry) {
		WriteErrorResponse(w, http.StatusBadRequest, "score, level, lines は0以上である必要があります")
		return
	}
	if err != nil {
		log.Printf("[LeaderboardHandler] スコア登録エラー (user=%s): %v", userID, err)
		WriteErrorResponse(w, http.StatusInternalServerError, "スコアの登録に失敗しました")
		return
	}

	log.Printf("[LeaderboardHandler] user %s submitted score %d (rank=%d)", userID, req.Score, res.Rank)
	WriteJSONResponse(w, http.StatusCreated, res)
}
