package handlers

import (
	"errors"
	"log"
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket" // WebSocketライブラリ

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/services/tetris"
)

// GameHandler はゲーム関連のHTTPリクエスト（開始、再開、状態取得、WebSocket接続）を処理します。
type GameHandler struct {
	sessionManager *tetris.SessionManager
	upgrader       websocket.Upgrader
}

// NewGameHandler は新しい GameHandler インスタンスを作成します。
//
// Parameters:
//
//	sm             : セッションマネージャーへのポインタ
//	allowedOrigins : WebSocket接続を許可するOrigin（空なら同一オリジンのみ）
//
// Returns:
//
//	*GameHandler: 新しく作成された GameHandler のポインタ
func NewGameHandler(sm *tetris.SessionManager, allowedOrigins []string) *GameHandler {
	return &GameHandler{
		sessionManager: sm,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// ブラウザ以外のクライアントはOriginを送らない
				if origin == "" {
					return true
				}
				return slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

type createGameRequest struct {
	Difficulty string `json:"difficulty"`
	SaveKey    string `json:"save_key"`
}

type resumeGameRequest struct {
	SaveKey string `json:"save_key"`
}

type inputRequest struct {
	Action string `json:"action"`
}

type gameResponse struct {
	GameID  string                       `json:"game_id"`
	SaveKey string                       `json:"save_key"` // 再開時に指定するキー
	State   *tetris.LightweightGameState `json:"state"`
}

// CreateGame は新しいゲームを開始します。
// POST /api/games {"difficulty": "easy|medium|hard", "save_key": "..."}
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディのパースに失敗しました")
		return
	}

	difficulty := tetris.DifficultyEasy
	if req.Difficulty != "" {
		d, ok := tetris.ParseDifficulty(req.Difficulty)
		if !ok {
			WriteErrorResponse(w, http.StatusBadRequest, "difficultyは easy, medium, hard のいずれかです")
			return
		}
		difficulty = d
	}

	gameID, err := h.sessionManager.CreateSession(r.Context(), difficulty, req.SaveKey)
	if err != nil {
		log.Printf("[GameHandler] Failed to create game: %v", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "ゲームの作成に失敗しました")
		return
	}
	h.writeGame(w, http.StatusCreated, gameID)
}

// ResumeGame はセーブデータからゲームを再開します。
// POST /api/games/resume {"save_key": "..."}
func (h *GameHandler) ResumeGame(w http.ResponseWriter, r *http.Request) {
	var req resumeGameRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディのパースに失敗しました")
		return
	}
	if req.SaveKey == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "save_keyが必要です")
		return
	}

	gameID, err := h.sessionManager.ResumeSession(r.Context(), req.SaveKey)
	if errors.Is(err, tetris.ErrNoSnapshot) {
		WriteErrorResponse(w, http.StatusNotFound, "再開できるセーブデータがありません")
		return
	}
	if err != nil {
		log.Printf("[GameHandler] Failed to resume game (save_key=%q): %v", req.SaveKey, err)
		WriteErrorResponse(w, http.StatusInternalServerError, "ゲームの再開に失敗しました")
		return
	}
	h.writeGame(w, http.StatusOK, gameID)
}

// GetSave はセーブデータを消費せずに概要を返します。再開ボタンを出すかどうかの判定に使います。
// GET /api/games/saves/{saveKey}
func (h *GameHandler) GetSave(w http.ResponseWriter, r *http.Request) {
	saveKey := mux.Vars(r)["saveKey"]

	summary, err := h.sessionManager.PeekSave(r.Context(), saveKey)
	if errors.Is(err, tetris.ErrNoSnapshot) {
		WriteErrorResponse(w, http.StatusNotFound, "セーブデータがありません")
		return
	}
	if err != nil {
		log.Printf("[GameHandler] Failed to load save %q: %v", saveKey, err)
		WriteErrorResponse(w, http.StatusInternalServerError, "セーブデータの取得に失敗しました")
		return
	}
	WriteJSONResponse(w, http.StatusOK, summary)
}

// GetGame はゲームの現在の状態を返します。
// GET /api/games/{gameID}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]
	h.writeGame(w, http.StatusOK, gameID)
}

// ApplyInput はWebSocketを使わないクライアント向けの操作エンドポイントです。
// POST /api/games/{gameID}/input {"action": "move_left"}
func (h *GameHandler) ApplyInput(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	var req inputRequest
	if err := decodeOptionalBody(r, &req); err != nil || req.Action == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "actionが必要です")
		return
	}

	changed, err := h.sessionManager.ApplyInput(gameID, req.Action)
	if errors.Is(err, tetris.ErrSessionNotFound) {
		WriteErrorResponse(w, http.StatusNotFound, "ゲームが見つかりません")
		return
	}
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, "操作の適用に失敗しました")
		return
	}

	state, err := h.sessionManager.GetGameState(gameID)
	if err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "ゲームが見つかりません")
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"changed": changed, "state": state})
}

// EndGame はゲームセッションを終了します。
// DELETE /api/games/{gameID}
func (h *GameHandler) EndGame(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]
	if _, err := h.sessionManager.GetGameState(gameID); err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "ゲームが見つかりません")
		return
	}
	h.sessionManager.EndGameSession(gameID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleWebSocket はHTTP接続をWebSocketにアップグレードし、クライアントをゲームに登録します。
// GET /ws/games/{gameID}
func (h *GameHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]
	if _, err := h.sessionManager.GetGameState(gameID); err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "ゲームが見つかりません")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade が失敗時のレスポンスを書き込み済み
		log.Printf("[GameHandler] WebSocket upgrade failed for game %s: %v", gameID, err)
		return
	}

	if err := h.sessionManager.RegisterClient(gameID, conn); err != nil {
		log.Printf("[GameHandler] Failed to register client for game %s: %v", gameID, err)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
	}
}

func (h *GameHandler) writeGame(w http.ResponseWriter, status int, gameID string) {
	state, err := h.sessionManager.GetGameState(gameID)
	if err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "ゲームが見つかりません")
		return
	}
	saveKey, err := h.sessionManager.GetSaveKey(gameID)
	if err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "ゲームが見つかりません")
		return
	}
	WriteJSONResponse(w, status, gameResponse{GameID: gameID, SaveKey: saveKey, State: state})
}
