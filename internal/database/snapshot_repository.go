package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"
)

// SnapshotRepository はゲームのセーブデータ（スナップショット）の永続化を定義するインターフェースです。
type SnapshotRepository interface {
	// SaveSnapshot は key にスナップショットを保存します（既存のものは上書き）
	SaveSnapshot(ctx context.Context, key string, snap *tetris.Snapshot) error

	// LoadSnapshot は key のスナップショットを取得します。
	// 存在しない・壊れている・24時間より古い場合は nil, nil を返します
	LoadSnapshot(ctx context.Context, key string) (*tetris.Snapshot, error)

	// DeleteSnapshot は key のスナップショットを削除します
	DeleteSnapshot(ctx context.Context, key string) error
}

// snapshotRepositoryImpl はSnapshotRepositoryインターフェースのPostgreSQL実装です。
type snapshotRepositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

// NewSnapshotRepository はSnapshotRepositoryの新しいインスタンスを作成します。
func NewSnapshotRepository(db *sql.DB) SnapshotRepository {
	return &snapshotRepositoryImpl{db: db, now: time.Now}
}

// SaveSnapshot はスナップショットをJSONとして game_saves に保存します。
func (r *snapshotRepositoryImpl) SaveSnapshot(ctx context.Context, key string, snap *tetris.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("スナップショットのシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO game_saves (save_key, payload, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (save_key) DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at
	`, key, payload, snap.Timestamp)
	if err != nil {
		return fmt.Errorf("スナップショットの保存に失敗しました: %w", err)
	}
	return nil
}

// LoadSnapshot は game_saves からスナップショットを読み込みます。
// 期限切れ・破損したものは削除したうえで nil を返します。
func (r *snapshotRepositoryImpl) LoadSnapshot(ctx context.Context, key string) (*tetris.Snapshot, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM game_saves WHERE save_key = $1`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil // セーブデータが存在しない場合はnilを返す
	}
	if err != nil {
		return nil, fmt.Errorf("スナップショットの取得に失敗しました: %w", err)
	}

	snap, ok := decodeSnapshot(key, payload, r.now())
	if !ok {
		if err := r.DeleteSnapshot(ctx, key); err != nil {
			log.Printf("SnapshotRepository Error: 無効なセーブデータ %s の削除に失敗しました: %v", key, err)
		}
		return nil, nil
	}
	return snap, nil
}

// DeleteSnapshot は key のスナップショットを削除します。存在しなくてもエラーにはしません。
func (r *snapshotRepositoryImpl) DeleteSnapshot(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM game_saves WHERE save_key = $1`, key); err != nil {
		return fmt.Errorf("スナップショットの削除に失敗しました: %w", err)
	}
	return nil
}

// decodeSnapshot は保存されたJSONを復元し、期限切れや構造の不正がないかを確認します。
func decodeSnapshot(key string, payload []byte, now time.Time) (*tetris.Snapshot, bool) {
	var snap tetris.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		log.Printf("SnapshotRepository Info: セーブデータ %s を読み込めないため破棄します: %v", key, err)
		return nil, false
	}
	if snap.IsStale(now) {
		log.Printf("SnapshotRepository Info: セーブデータ %s は24時間以上前のものなので破棄します (saved at %s)", key, snap.Timestamp.Format(time.RFC3339))
		return nil, false
	}
	if err := snap.Validate(); err != nil {
		log.Printf("SnapshotRepository Info: セーブデータ %s が不正なため破棄します: %v", key, err)
		return nil, false
	}
	return &snap, true
}
