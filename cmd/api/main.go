package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/api"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/database"
	modeltetris "github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/services/leaderboard"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/services/tetris"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// DATABASE_URL が無ければメモリ上に保存する（開発用）
	var (
		snapshots database.SnapshotRepository
		scores    database.LeaderboardRepository
	)
	if cfg.DatabaseURL != "" {
		dbService, err := database.NewDatabaseService(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("データベースへの接続に失敗しました: %v", err)
		}
		defer dbService.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = dbService.EnsureSchema(ctx)
		cancel()
		if err != nil {
			log.Fatalf("スキーマの作成に失敗しました: %v", err)
		}
		snapshots = database.NewSnapshotRepository(dbService.DB)
		scores = database.NewLeaderboardRepository(dbService.DB)
	} else {
		log.Println("warning: DATABASE_URL is not set, using in-memory stores")
		snapshots = database.NewMemorySnapshotRepository(time.Now)
		scores = database.NewMemoryLeaderboardRepository()
	}

	sm := tetris.NewSessionManager(snapshots, managerConfig(cfg))

	handler := api.NewRouter(api.RouterOptions{
		SessionManager: sm,
		Leaderboard:    leaderboard.NewLeaderboardService(scores),
		JWTSecret:      cfg.JWTSecret,
		BypassAuth:     cfg.BypassAuth,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	// プレイ中のゲームはここで保存される
	sm.Shutdown()
}

func managerConfig(cfg *config.Config) tetris.ManagerConfig {
	mc := tetris.ManagerConfig{
		TickInterval:        cfg.TickInterval,
		ClearDuration:       cfg.ClearDuration,
		TetrisClearDuration: cfg.TetrisClearDuration,
		AutosaveInterval:    cfg.AutosaveInterval,
	}
	if cfg.Randomizer == config.RandomizerBag {
		mc.NewProvider = func() modeltetris.KindProvider {
			return modeltetris.NewBagProvider(time.Now().UnixNano())
		}
	}
	return mc
}
