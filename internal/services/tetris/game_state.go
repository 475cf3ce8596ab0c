package tetris

import (
	"fmt"
	"log"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"
)

// State はゲームセッションの状態です。
type State string

const (
	StateIdle     State = "idle"      // 開始前
	StateRunning  State = "running"   // プレイ中
	StatePaused   State = "paused"    // 一時停止中（状態は一切変化しない）
	StateClearing State = "clearing"  // ライン消去演出中（FinishClearLines 待ち）
	StateGameOver State = "game_over" // ゲームオーバー（終端）
)

// 入力アクション名（WebSocket / HTTP から受け取る文字列）
const (
	ActionMoveLeft  = "move_left"
	ActionMoveRight = "move_right"
	ActionSoftDrop  = "soft_drop"
	ActionRotate    = "rotate"
	ActionHardDrop  = "hard_drop"
	ActionPause     = "pause"
)

// PlayerInputEvent はクライアントから送られてくる操作入力です。
type PlayerInputEvent struct {
	GameID string `json:"game_id"` // 操作対象のゲームID
	Action string `json:"action"`  // "move_left", "move_right", "soft_drop", "rotate", "hard_drop", "pause"
}

// GameSession は1人用テトリスのゲーム状態です。
// 各メソッドは呼び出し元のゴルーチンで同期的に状態を変更し、発生したイベントを返します。
// 並行アクセスの排他は呼び出し側（SessionManager）が行います。
type GameSession struct {
	ID             string        `json:"id"`
	Board          tetris.Board  `json:"board"`            // 現在のゲームボード
	CurrentPiece   *tetris.Piece `json:"current_piece"`    // 現在操作中のテトリミノ
	NextPiece      *tetris.Piece `json:"next_piece"`       // 次に出現するテトリミノ
	Score          int           `json:"score"`            // 現在のスコア
	LinesCleared   int           `json:"lines_cleared"`    // クリアしたライン数
	Level          int           `json:"level"`            // 現在のレベル
	DropIntervalMs int           `json:"drop_interval_ms"` // 自動落下の間隔
	Difficulty     Difficulty    `json:"difficulty"`
	State          State         `json:"state"`

	clearingRows     []int               // 消去待ちの行
	provider         tetris.KindProvider // 次のピースの種類を決める
	lastDrop         time.Time           // 最後の自動落下時刻（ゼロ値なら次の Tick で再設定）
	gameOverNotified bool
	events           []Event
}

// NewGameSession は Idle 状態のゲームセッションを作成します。
// provider が nil の場合は一様ランダムに種類を選びます。
func NewGameSession(id string, provider tetris.KindProvider) *GameSession {
	if provider == nil {
		provider = tetris.KindProviderFunc(tetris.RandomKind)
	}
	return &GameSession{
		ID:             id,
		Board:          tetris.NewBoard(),
		Level:          1,
		DropIntervalMs: ComputeDropInterval(1, DifficultyEasy),
		Difficulty:     DifficultyEasy,
		State:          StateIdle,
		provider:       provider,
	}
}

// Start は新しいゲームを開始します。どの状態からでも呼び出せ、常にまっさらな状態から始まります。
func (s *GameSession) Start(d Difficulty) []Event {
	d = normalizeDifficulty(d)

	s.Board = tetris.NewBoard()
	s.CurrentPiece = nil
	s.NextPiece = nil
	s.Score = 0
	s.LinesCleared = 0
	s.Level = 1
	s.Difficulty = d
	s.DropIntervalMs = ComputeDropInterval(s.Level, d)
	s.State = StateRunning
	s.clearingRows = nil
	s.lastDrop = time.Time{}
	s.gameOverNotified = false

	s.spawnNext()
	return s.flush()
}

// IsRunning はプレイ中（一時停止・消去演出中を除く）かどうかを返します。
func (s *GameSession) IsRunning() bool { return s.State == StateRunning }

// IsPaused は一時停止中かどうかを返します。
func (s *GameSession) IsPaused() bool { return s.State == StatePaused }

// IsClearing はライン消去演出中かどうかを返します。
func (s *GameSession) IsClearing() bool { return s.State == StateClearing }

// IsGameOver はゲームオーバーかどうかを返します。
func (s *GameSession) IsGameOver() bool { return s.State == StateGameOver }

// ClearingRows は消去待ちの行を返します。
func (s *GameSession) ClearingRows() []int {
	return append([]int(nil), s.clearingRows...)
}

// TogglePause は Running と Paused を切り替えます。それ以外の状態では何もせず false を返します。
func (s *GameSession) TogglePause() bool {
	switch s.State {
	case StateRunning:
		s.State = StatePaused
		return true
	case StatePaused:
		s.State = StateRunning
		s.lastDrop = time.Time{}
		return true
	default:
		return false
	}
}

// canControl は操作入力を受け付けられるかを返します。
func (s *GameSession) canControl() bool {
	return s.State == StateRunning && s.CurrentPiece != nil
}

// Tick は外部のスケジューラから定期的に呼ばれ、落下間隔を超えていればピースを1行落とします。
// Running 以外では何もしません。
func (s *GameSession) Tick(now time.Time) []Event {
	if !s.canControl() {
		return nil
	}
	if s.lastDrop.IsZero() {
		s.lastDrop = now
		return nil
	}
	if now.Sub(s.lastDrop) > time.Duration(s.DropIntervalMs)*time.Millisecond {
		s.lastDrop = now
		s.moveDown()
	}
	return s.flush()
}

// MoveLeft はピースを左に1マス動かします。
func (s *GameSession) MoveLeft() bool {
	if !s.canControl() {
		return false
	}
	return s.Board.TryMove(s.CurrentPiece, -1, 0)
}

// MoveRight はピースを右に1マス動かします。
func (s *GameSession) MoveRight() bool {
	if !s.canControl() {
		return false
	}
	return s.Board.TryMove(s.CurrentPiece, 1, 0)
}

// Rotate はピースを時計回りに回転させます（壁蹴りあり）。
func (s *GameSession) Rotate() bool {
	if !s.canControl() {
		return false
	}
	return s.Board.TryRotate(s.CurrentPiece)
}

// MoveDown はピースを1行落とします。落とせなければその場で固定します。
// 固定した場合も受理されたものとして true を返します。スコアは加算しません。
func (s *GameSession) MoveDown() (bool, []Event) {
	if !s.canControl() {
		return false, nil
	}
	s.moveDown()
	return true, s.flush()
}

// SoftDrop はプレイヤー操作による1行落下です。落下できれば +1 点、自動落下のタイマーをリセットします。
func (s *GameSession) SoftDrop() (bool, []Event) {
	if !s.canControl() {
		return false, nil
	}
	if s.moveDown() {
		s.addScore(SoftDropBonus)
	}
	s.lastDrop = time.Time{}
	return true, s.flush()
}

// HardDrop はピースを落とせるところまで一気に落とし、1行あたり +2 点を加算して固定します。
func (s *GameSession) HardDrop() (bool, []Event) {
	if !s.canControl() {
		return false, nil
	}
	rows := 0
	for s.Board.TryMove(s.CurrentPiece, 0, 1) {
		rows++
	}
	if rows > 0 {
		s.addScore(rows * HardDropBonus)
	}
	s.lock()
	return true, s.flush()
}

// ApplyInput はアクション名に応じた操作を適用します。
// 状態が変化したかどうかと、その操作で発生したイベントを返します。
func (s *GameSession) ApplyInput(action string) (bool, []Event) {
	switch action {
	case ActionMoveLeft:
		return s.MoveLeft(), nil
	case ActionMoveRight:
		return s.MoveRight(), nil
	case ActionRotate:
		return s.Rotate(), nil
	case ActionSoftDrop:
		return s.SoftDrop()
	case ActionHardDrop:
		return s.HardDrop()
	case ActionPause:
		return s.TogglePause(), nil
	default:
		return false, nil
	}
}

// FinishClearLines はライン消去演出の終了を通知します。
// 揃った行を取り除き、スコア・ライン数・レベルを更新して次のピースを出現させます。
// Clearing 状態でなければ何もしません。
func (s *GameSession) FinishClearLines() []Event {
	if s.State != StateClearing {
		return nil
	}

	cleared := s.Board.RemoveRows(s.clearingRows)
	s.clearingRows = nil
	s.LinesCleared += cleared

	// スコアはレベルアップ前のレベルで計算
	points := CalculateScore(cleared, s.Level, s.Difficulty)
	s.addScore(points)

	if newLevel := LevelForLines(s.LinesCleared); newLevel > s.Level {
		s.Level = newLevel
		s.DropIntervalMs = ComputeDropInterval(s.Level, s.Difficulty)
		s.emit(EventLevelUp, LevelUpPayload{Level: s.Level, DropIntervalMs: s.DropIntervalMs})
		log.Printf("[GameSession] %s: level up to %d (interval %dms)", s.ID, s.Level, s.DropIntervalMs)
	}

	s.State = StateRunning
	s.lastDrop = time.Time{}
	s.spawnNext()
	return s.flush()
}

// GhostY は現在のピースをそのまま落とした場合の最終的な y 座標を返します。ピースがなければ -1。
func (s *GameSession) GhostY() int {
	if s.CurrentPiece == nil {
		return -1
	}
	return s.CurrentPiece.Y + s.Board.DropDistance(s.CurrentPiece)
}

// Snapshot は現在の状態を保存用に複製します。
// プレイ中（一時停止を含む）で操作中のピースがある場合のみ作成でき、消去演出中は作成しません。
func (s *GameSession) Snapshot(now time.Time) (*tetris.Snapshot, bool) {
	if s.State != StateRunning && s.State != StatePaused {
		return nil, false
	}
	if s.CurrentPiece == nil {
		return nil, false
	}

	snap := &tetris.Snapshot{
		Board:          s.Board,
		CurrentPiece:   s.CurrentPiece.Clone(),
		Score:          s.Score,
		Level:          s.Level,
		Lines:          s.LinesCleared,
		DropIntervalMs: s.DropIntervalMs,
		Difficulty:     string(s.Difficulty),
		Timestamp:      now,
	}
	if s.NextPiece != nil {
		snap.NextPiece = s.NextPiece.Clone()
	}
	return snap, true
}

// Restore はスナップショットからゲームを再開します。再開後は Running 状態になります。
// 落下間隔は保存された値ではなくレベルと難易度から再計算します。
func (s *GameSession) Restore(snap *tetris.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", tetris.ErrSnapshotInvalid)
	}
	if err := snap.Validate(); err != nil {
		return err
	}

	d, _ := ParseDifficulty(snap.Difficulty)

	s.Board = snap.Board
	s.CurrentPiece = snap.CurrentPiece.Clone()
	if snap.NextPiece != nil {
		s.NextPiece = snap.NextPiece.Clone()
	} else {
		s.NextPiece = s.newPiece()
	}
	s.Score = snap.Score
	s.Level = snap.Level
	s.LinesCleared = snap.Lines
	s.Difficulty = d
	s.DropIntervalMs = ComputeDropInterval(s.Level, d)
	s.State = StateRunning
	s.clearingRows = nil
	s.lastDrop = time.Time{}
	s.gameOverNotified = false
	s.events = nil
	return nil
}

// moveDown はピースを1行落とし、落とせなければ固定します。落下できたかどうかを返します。
func (s *GameSession) moveDown() bool {
	if s.Board.TryMove(s.CurrentPiece, 0, 1) {
		return true
	}
	s.lock()
	return false
}

// lock は現在のピースをボードに固定し、揃った行を調べます。
// 揃った行がなければすぐに次のピースを出し、あれば Clearing 状態に移ります。
func (s *GameSession) lock() {
	p := s.CurrentPiece
	s.Board.MergePiece(p)
	s.emit(EventPieceLocked, PieceLockedPayload{Kind: p.Kind, X: p.X, Y: p.Y, Cells: p.Cells.Clone()})
	s.CurrentPiece = nil

	rows := s.Board.FullRows()
	if len(rows) == 0 {
		s.spawnNext()
		return
	}

	s.State = StateClearing
	s.clearingRows = rows
	s.emit(EventLineCleared, LineClearedPayload{
		Rows:      append([]int(nil), rows...),
		Count:     len(rows),
		WasTetris: len(rows) == TetrisLines,
	})
}

// spawnNext は次のピースを出現させます。出現位置に置けなければゲームオーバーです。
func (s *GameSession) spawnNext() {
	if s.NextPiece != nil {
		s.CurrentPiece = s.NextPiece
	} else {
		s.CurrentPiece = s.newPiece()
	}
	s.NextPiece = s.newPiece()
	s.CurrentPiece.X, s.CurrentPiece.Y = tetris.SpawnPosition(s.CurrentPiece.Cells)

	if !s.Board.IsValidPlacement(s.CurrentPiece.Cells, s.CurrentPiece.X, s.CurrentPiece.Y) {
		s.gameOver()
		return
	}
	s.emit(EventPieceSpawned, PieceSpawnedPayload{Current: s.CurrentPiece.Kind, Next: s.NextPiece.Kind})
}

func (s *GameSession) newPiece() *tetris.Piece {
	return tetris.NewPiece(s.provider.Next())
}

func (s *GameSession) gameOver() {
	s.State = StateGameOver
	if s.gameOverNotified {
		return
	}
	s.gameOverNotified = true
	s.emit(EventGameOver, GameOverPayload{FinalScore: s.Score, Level: s.Level, Lines: s.LinesCleared})
	log.Printf("[GameSession] %s: game over (score=%d level=%d lines=%d)", s.ID, s.Score, s.Level, s.LinesCleared)
}

func (s *GameSession) addScore(delta int) {
	if delta <= 0 {
		return
	}
	s.Score += delta
	s.emit(EventScoreChanged, ScoreChangedPayload{Score: s.Score, Delta: delta})
}

func (s *GameSession) emit(kind EventKind, payload any) {
	s.events = append(s.events, Event{Kind: kind, Payload: payload})
}

// flush は溜まったイベントを取り出します。
func (s *GameSession) flush() []Event {
	events := s.events
	s.events = nil
	return events
}
