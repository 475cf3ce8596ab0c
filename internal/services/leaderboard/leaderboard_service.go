package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models"
)

// ErrInvalidEntry は負のスコアなど登録できないエントリを表します。
var ErrInvalidEntry = errors.New("invalid leaderboard entry")

// LeaderboardService はランキング関連のビジネスロジックを定義するインターフェースです。
type LeaderboardService interface {
	AddScore(ctx context.Context, req models.LeaderboardEntryRequest) (*models.AddScoreResponse, error)
	Top(ctx context.Context) ([]models.LeaderboardEntryResponse, error)
	IsHighScore(ctx context.Context, score int) (bool, error)
}

// leaderboardServiceImpl はLeaderboardServiceインターフェースの実装です。
type leaderboardServiceImpl struct {
	repo database.LeaderboardRepository
	now  func() time.Time
}

// NewLeaderboardService はLeaderboardServiceの新しいインスタンスを作成します。
func NewLeaderboardService(repo database.LeaderboardRepository) LeaderboardService {
	return &leaderboardServiceImpl{repo: repo, now: time.Now}
}

// AddScore はスコアをランキングに登録し、その順位を返します。
// 名前は先頭10文字を大文字にし、空なら "AAA" とします。上位10件に入らなければ順位は0です。
func (s *leaderboardServiceImpl) AddScore(ctx context.Context, req models.LeaderboardEntryRequest) (*models.AddScoreResponse, error) {
	if req.Score < 0 || req.Level < 0 || req.Lines < 0 {
		return nil, fmt.Errorf("%w: score=%d level=%d lines=%d", ErrInvalidEntry, req.Score, req.Level, req.Lines)
	}

	entry := models.LeaderboardEntry{
		Name:      models.NormalizePlayerName(req.Name),
		Score:     req.Score,
		Level:     req.Level,
		Lines:     req.Lines,
		CreatedAt: s.now(),
	}

	rank, entries, err := s.repo.AddEntry(ctx, entry, models.LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("スコアの登録に失敗しました: %w", err)
	}
	log.Printf("[LeaderboardService] %s が %d 点を登録しました (rank=%d)", entry.Name, entry.Score, rank)

	return &models.AddScoreResponse{Rank: rank, Entries: entries}, nil
}

// Top は上位10件を順位付きで返します。
func (s *leaderboardServiceImpl) Top(ctx context.Context) ([]models.LeaderboardEntryResponse, error) {
	entries, err := s.repo.GetTopEntries(ctx, models.LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("ランキングの取得に失敗しました: %w", err)
	}

	res := make([]models.LeaderboardEntryResponse, 0, len(entries))
	for i, e := range entries {
		res = append(res, models.LeaderboardEntryResponse{LeaderboardEntry: e, Rank: i + 1})
	}
	return res, nil
}

// IsHighScore は score がランキングに入るかを返します。
// 登録数が10件未満なら常に true、そうでなければ最下位より高い場合に true です（同点は入れない）。
func (s *leaderboardServiceImpl) IsHighScore(ctx context.Context, score int) (bool, error) {
	entries, err := s.repo.GetTopEntries(ctx, models.LeaderboardSize)
	if err != nil {
		return false, fmt.Errorf("ランキングの取得に失敗しました: %w", err)
	}
	if len(entries) < models.LeaderboardSize {
		return true, nil
	}
	return score > entries[len(entries)-1].Score, nil
}
