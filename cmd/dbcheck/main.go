package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/database"
)

// データベース接続とスキーマを確認するためのツールです。
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("エラー: 設定の読み込みに失敗しました: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("エラー: DATABASE_URL 環境変数が設定されていません。")
	}

	fmt.Println("テスト開始: データベース接続を試行中...")
	dbService, err := database.NewDatabaseService(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("エラー: %v", err)
	}
	defer dbService.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := dbService.EnsureSchema(ctx); err != nil {
		log.Fatalf("エラー: %v", err)
	}
	stats, err := dbService.Stats(ctx)
	if err != nil {
		log.Fatalf("エラー: %v", err)
	}

	fmt.Println("成功: データベースに正常に接続し、スキーマを確認しました！")
	fmt.Printf("セーブデータ: %d 件, ランキング: %d 件\n", stats.Saves, stats.LeaderboardEntries)
}
