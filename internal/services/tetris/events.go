package tetris

import "github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"

// EventKind はゲームセッションが発行するイベントの種類です。
type EventKind string

const (
	EventPieceLocked  EventKind = "piece_locked"
	EventPieceSpawned EventKind = "piece_spawned"
	EventLineCleared  EventKind = "line_cleared"
	EventLevelUp      EventKind = "level_up"
	EventScoreChanged EventKind = "score_changed"
	EventGameOver     EventKind = "game_over"
)

// Event は各操作の結果として返されるイベントです。描画や効果音などの外部コンシューマが処理します。
type Event struct {
	Kind    EventKind `json:"kind"`
	Payload any       `json:"payload,omitempty"`
}

type PieceLockedPayload struct {
	Kind  tetris.ShapeKind `json:"kind"`
	X     int              `json:"x"`
	Y     int              `json:"y"`
	Cells tetris.Matrix    `json:"cells"`
}

type PieceSpawnedPayload struct {
	Current tetris.ShapeKind `json:"current"`
	Next    tetris.ShapeKind `json:"next"`
}

// LineClearedPayload は揃った行が見つかった時点で発行されます。
// 実際の行の削除は FinishClearLines で行われます。
type LineClearedPayload struct {
	Rows      []int `json:"rows"`
	Count     int   `json:"count"`
	WasTetris bool  `json:"was_tetris"`
}

type LevelUpPayload struct {
	Level          int `json:"level"`
	DropIntervalMs int `json:"drop_interval_ms"`
}

type ScoreChangedPayload struct {
	Score int `json:"score"`
	Delta int `json:"delta"`
}

type GameOverPayload struct {
	FinalScore int `json:"final_score"`
	Level      int `json:"level"`
	Lines      int `json:"lines"`
}

// HasEvent は events に kind のイベントが含まれているかを返します。
func HasEvent(events []Event, kind EventKind) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
