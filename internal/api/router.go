package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/services/leaderboard"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/services/tetris"
)

// RouterOptions はルーター構築に必要な依存関係です。
type RouterOptions struct {
	SessionManager *tetris.SessionManager
	Leaderboard    leaderboard.LeaderboardService
	JWTSecret      string
	BypassAuth     bool
	AllowedOrigins []string
}

// NewRouter はすべてのエンドポイントを登録した http.Handler を返します。
func NewRouter(opts RouterOptions) http.Handler {
	gameHandler := handlers.NewGameHandler(opts.SessionManager, opts.AllowedOrigins)
	leaderboardHandler := handlers.NewLeaderboardHandler(opts.Leaderboard)
	publicHandler := handlers.NewPublicHandler(opts.SessionManager)

	r := mux.NewRouter()
	// 認証不要な公開エンドポイント
	r.HandleFunc("/api/public", publicHandler.Health).Methods("GET")

	r.HandleFunc("/api/games", gameHandler.CreateGame).Methods("POST")
	r.HandleFunc("/api/games/resume", gameHandler.ResumeGame).Methods("POST")
	r.HandleFunc("/api/games/saves/{saveKey}", gameHandler.GetSave).Methods("GET")
	r.HandleFunc("/api/games/{gameID}", gameHandler.GetGame).Methods("GET")
	r.HandleFunc("/api/games/{gameID}", gameHandler.EndGame).Methods("DELETE")
	r.HandleFunc("/api/games/{gameID}/input", gameHandler.ApplyInput).Methods("POST")
	r.HandleFunc("/ws/games/{gameID}", gameHandler.HandleWebSocket).Methods("GET")

	r.HandleFunc("/api/leaderboard", leaderboardHandler.GetLeaderboard).Methods("GET")
	r.HandleFunc("/api/leaderboard/check", leaderboardHandler.CheckHighScore).Methods("GET")

	// スコア登録は認証が必要
	auth := middleware.NewAuthMiddleware(opts.JWTSecret, opts.BypassAuth)
	r.Handle("/api/leaderboard", auth(http.HandlerFunc(leaderboardHandler.PostScore))).Methods("POST")

	return middleware.CORSHandler(opts.AllowedOrigins)(r)
}
