package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"
)

// MemorySnapshotRepository はDATABASE_URLが未設定のときに使うインメモリのSnapshotRepositoryです。
// PostgreSQL実装と同じくJSONで保持するので、保存時点の状態が後から書き換わることはありません。
type MemorySnapshotRepository struct {
	mu    sync.Mutex
	saves map[string][]byte
	now   func() time.Time
}

// NewMemorySnapshotRepository は空のインメモリ実装を作成します。now が nil なら time.Now を使います。
func NewMemorySnapshotRepository(now func() time.Time) *MemorySnapshotRepository {
	if now == nil {
		now = time.Now
	}
	return &MemorySnapshotRepository{saves: make(map[string][]byte), now: now}
}

func (r *MemorySnapshotRepository) SaveSnapshot(_ context.Context, key string, snap *tetris.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("スナップショットのシリアライズに失敗しました: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves[key] = payload
	return nil
}

func (r *MemorySnapshotRepository) LoadSnapshot(_ context.Context, key string) (*tetris.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload, ok := r.saves[key]
	if !ok {
		return nil, nil
	}
	snap, ok := decodeSnapshot(key, payload, r.now())
	if !ok {
		delete(r.saves, key)
		return nil, nil
	}
	return snap, nil
}

func (r *MemorySnapshotRepository) DeleteSnapshot(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.saves, key)
	return nil
}

// MemoryLeaderboardRepository はインメモリのLeaderboardRepositoryです。
type MemoryLeaderboardRepository struct {
	mu      sync.Mutex
	entries []models.LeaderboardEntry
	nextID  int64
}

// NewMemoryLeaderboardRepository は空のランキングを作成します。
func NewMemoryLeaderboardRepository() *MemoryLeaderboardRepository {
	return &MemoryLeaderboardRepository{nextID: 1}
}

func (r *MemoryLeaderboardRepository) AddEntry(_ context.Context, entry models.LeaderboardEntry, keep int) (int, []models.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, entry)

	// 安定ソートなので同点の場合は登録順が保たれる
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].Score > r.entries[j].Score
	})
	if keep >= 0 && len(r.entries) > keep {
		r.entries = r.entries[:keep]
	}

	rank := 0
	for i, e := range r.entries {
		if e.ID == entry.ID {
			rank = i + 1
			break
		}
	}
	return rank, append([]models.LeaderboardEntry(nil), r.entries...), nil
}

func (r *MemoryLeaderboardRepository) GetTopEntries(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	if limit >= 0 && limit < n {
		n = limit
	}
	return append([]models.LeaderboardEntry{}, r.entries[:n]...), nil
}
