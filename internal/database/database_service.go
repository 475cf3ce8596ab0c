package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQLドライバー
)

// schemaStatements はアプリケーションが使うテーブルを作成します。何度実行しても安全です。
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS game_saves (
		save_key   TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		saved_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS leaderboard_entries (
		id         BIGSERIAL PRIMARY KEY,
		name       VARCHAR(10) NOT NULL,
		score      INTEGER NOT NULL,
		level      INTEGER NOT NULL,
		lines      INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS leaderboard_entries_rank_idx ON leaderboard_entries (score DESC, id ASC)`,
}

// DatabaseService provides methods for interacting with the database.
type DatabaseService struct {
	DB *sql.DB
}

// NewDatabaseService creates a new instance of DatabaseService and establishes a database connection.
func NewDatabaseService(databaseURL string) (*DatabaseService, error) {
	log.Printf("データベース接続を試行中: URLの最初の50文字: %s...", databaseURL[:min(len(databaseURL), 50)]) // URLの冒頭をログ出力
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Printf("DatabaseService Error: sql.Openに失敗しました: %v", err)
		return nil, fmt.Errorf("データベースへの接続オブジェクト作成に失敗しました: %w", err)
	}

	// データベース接続の確認 (Ping)
	if err := db.Ping(); err != nil {
		log.Printf("DatabaseService Error: db.Pingに失敗しました: %v", err)
		db.Close()
		return nil, fmt.Errorf("データベースのPingに失敗しました。接続情報やネットワークを確認してください: %w", err)
	}

	log.Println("データベースに正常に接続しました。")
	return &DatabaseService{DB: db}, nil
}

// EnsureSchema は必要なテーブルとインデックスを作成します。
func (s *DatabaseService) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("スキーマの作成に失敗しました: %w", err)
		}
	}
	log.Println("DatabaseService Info: スキーマを確認しました。")
	return nil
}

// Close はデータベース接続を閉じます。
func (s *DatabaseService) Close() error {
	return s.DB.Close()
}

// Stats はテーブルごとの件数です。接続確認ツールで表示します。
type Stats struct {
	Saves              int
	LeaderboardEntries int
}

// Stats は game_saves と leaderboard_entries の件数を返します。
func (s *DatabaseService) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM game_saves`).Scan(&st.Saves); err != nil {
		return nil, fmt.Errorf("game_savesの件数取得に失敗しました: %w", err)
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM leaderboard_entries`).Scan(&st.LeaderboardEntries); err != nil {
		return nil, fmt.Errorf("leaderboard_entriesの件数取得に失敗しました: %w", err)
	}
	return &st, nil
}
