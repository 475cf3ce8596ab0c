package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models"
)

// LeaderboardRepository はランキング関連のデータベース操作を定義するインターフェースです。
type LeaderboardRepository interface {
	// AddEntry はエントリを追加し、上位 keep 件だけを残します。
	// 追加したエントリの順位（ランキング外なら0）と、残った上位エントリを返します
	AddEntry(ctx context.Context, entry models.LeaderboardEntry, keep int) (int, []models.LeaderboardEntry, error)

	// GetTopEntries は上位N件のエントリをスコアの高い順に取得します（同点は登録順）
	GetTopEntries(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// leaderboardRepositoryImpl はLeaderboardRepositoryインターフェースの実装です。
type leaderboardRepositoryImpl struct {
	db *sql.DB
}

// NewLeaderboardRepository はLeaderboardRepositoryの新しいインスタンスを作成します。
func NewLeaderboardRepository(db *sql.DB) LeaderboardRepository {
	return &leaderboardRepositoryImpl{db: db}
}

const selectTopEntriesQuery = `
	SELECT id, name, score, level, lines, created_at
	FROM leaderboard_entries
	ORDER BY score DESC, id ASC
	LIMIT $1
`

// AddEntry はトランザクション内で挿入・上位取得・切り詰めを行います。
func (r *leaderboardRepositoryImpl) AddEntry(ctx context.Context, entry models.LeaderboardEntry, keep int) (int, []models.LeaderboardEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO leaderboard_entries (name, score, level, lines, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		entry.Name, entry.Score, entry.Level, entry.Lines, entry.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, nil, fmt.Errorf("ランキングエントリの作成に失敗しました: %w", err)
	}

	entries, err := queryEntries(ctx, tx, keep)
	if err != nil {
		return 0, nil, err
	}

	// 上位 keep 件に入らなかったエントリを削除
	_, err = tx.ExecContext(ctx, `
		DELETE FROM leaderboard_entries
		WHERE id NOT IN (SELECT id FROM leaderboard_entries ORDER BY score DESC, id ASC LIMIT $1)
	`, keep)
	if err != nil {
		return 0, nil, fmt.Errorf("ランキングの切り詰めに失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	rank := 0
	for i, e := range entries {
		if e.ID == id {
			rank = i + 1
			break
		}
	}
	return rank, entries, nil
}

// GetTopEntries は上位N件のエントリを取得します（ランキング用）。
func (r *leaderboardRepositoryImpl) GetTopEntries(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return queryEntries(ctx, r.db, limit)
}

// queryer は *sql.DB と *sql.Tx の共通部分です。
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryEntries(ctx context.Context, q queryer, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := q.QueryContext(ctx, selectTopEntriesQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("ランキング取得に失敗しました: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0, max(limit, 0))
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Score, &e.Level, &e.Lines, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ランキングデータのスキャンに失敗しました: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ランキング取得中にエラーが発生しました: %w", err)
	}
	return entries, nil
}
