package tetris

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"
)

// newTestSession は決められた順序でピースを出すセッションを開始します。
func newTestSession(t *testing.T, d Difficulty, kinds ...tetris.ShapeKind) *GameSession {
	t.Helper()
	s := NewGameSession("test-game", tetris.NewSequenceProvider(kinds...))
	s.Start(d)
	require.True(t, s.IsRunning())
	require.NotNil(t, s.CurrentPiece)
	return s
}

// fillRowExcept は skip に含まれる列を除いて y 行を埋めます。
func fillRowExcept(b *tetris.Board, y int, skip ...int) {
	for x := 0; x < tetris.BoardWidth; x++ {
		skipped := false
		for _, s := range skip {
			if s == x {
				skipped = true
				break
			}
		}
		if skipped {
			continue
		}
		b.Occupied[y][x] = true
		b.Colors[y][x] = tetris.BlockZ
	}
}

func eventsOf(events []Event, kind EventKind) []Event {
	var out []Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestNewGameSession(t *testing.T) {
	s := NewGameSession("g1", nil)

	assert.Equal(t, "g1", s.ID)
	assert.Equal(t, StateIdle, s.State)
	assert.Nil(t, s.CurrentPiece)
	assert.Equal(t, 1, s.Level)

	// Idle では何も受け付けない
	assert.False(t, s.MoveLeft())
	assert.False(t, s.TogglePause())
	assert.Nil(t, s.Tick(time.Now()))
}

func TestStart(t *testing.T) {
	s := NewGameSession("g1", tetris.NewSequenceProvider(tetris.KindT, tetris.KindO))
	events := s.Start(DifficultyMedium)

	assert.Equal(t, StateRunning, s.State)
	assert.Equal(t, 0, s.Score)
	assert.Equal(t, 0, s.LinesCleared)
	assert.Equal(t, 1, s.Level)
	assert.Equal(t, DifficultyMedium, s.Difficulty)
	assert.Equal(t, 700, s.DropIntervalMs)

	require.NotNil(t, s.CurrentPiece)
	require.NotNil(t, s.NextPiece)
	assert.Equal(t, tetris.KindT, s.CurrentPiece.Kind)
	assert.Equal(t, tetris.KindO, s.NextPiece.Kind)
	assert.Equal(t, 3, s.CurrentPiece.X)
	assert.Equal(t, 0, s.CurrentPiece.Y)

	spawned := eventsOf(events, EventPieceSpawned)
	require.Len(t, spawned, 1)
	assert.Equal(t, PieceSpawnedPayload{Current: tetris.KindT, Next: tetris.KindO}, spawned[0].Payload)
}

func TestStart_UnknownDifficultyIsEasy(t *testing.T) {
	s := NewGameSession("g1", nil)
	s.Start(Difficulty("violent"))
	assert.Equal(t, DifficultyEasy, s.Difficulty)
	assert.Equal(t, 1000, s.DropIntervalMs)
}

func TestTick(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindO)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// 最初の Tick はタイマーを設定するだけ
	assert.Empty(t, s.Tick(t0))
	assert.Equal(t, 0, s.CurrentPiece.Y)

	// 間隔ちょうどでは落ちない
	s.Tick(t0.Add(1000 * time.Millisecond))
	assert.Equal(t, 0, s.CurrentPiece.Y)

	s.Tick(t0.Add(1001 * time.Millisecond))
	assert.Equal(t, 1, s.CurrentPiece.Y)

	// 落下時刻から再び間隔を数える
	s.Tick(t0.Add(1500 * time.Millisecond))
	assert.Equal(t, 1, s.CurrentPiece.Y)
	s.Tick(t0.Add(2002 * time.Millisecond))
	assert.Equal(t, 2, s.CurrentPiece.Y)
}

func TestTick_LocksOnFloor(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindO, tetris.KindT)
	s.CurrentPiece.Y = tetris.BoardHeight - 2
	t0 := time.Now()
	s.Tick(t0)

	events := s.Tick(t0.Add(2 * time.Second))
	require.True(t, HasEvent(events, EventPieceLocked))
	assert.True(t, s.Board.Occupied[19][4])
	assert.True(t, s.Board.Occupied[18][5])
	assert.Equal(t, tetris.BlockO, s.Board.Colors[19][4])
	assert.Equal(t, tetris.KindT, s.CurrentPiece.Kind)
	assert.True(t, s.Board.Consistent())
}

func TestMoveAndRotate(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindT)

	assert.True(t, s.MoveLeft())
	assert.Equal(t, 2, s.CurrentPiece.X)
	assert.True(t, s.MoveRight())
	assert.Equal(t, 3, s.CurrentPiece.X)

	for i := 0; i < 10; i++ {
		s.MoveLeft()
	}
	assert.Equal(t, 0, s.CurrentPiece.X)
	assert.False(t, s.MoveLeft())

	assert.True(t, s.Rotate())
	assert.Equal(t, tetris.Matrix{{1, 0}, {1, 1}, {1, 0}}, s.CurrentPiece.Cells)
}

func TestSoftDrop(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindO)
	t0 := time.Now()
	s.Tick(t0)

	ok, events := s.SoftDrop()
	assert.True(t, ok)
	assert.Equal(t, 1, s.CurrentPiece.Y)
	assert.Equal(t, SoftDropBonus, s.Score)
	require.Len(t, eventsOf(events, EventScoreChanged), 1)

	// ソフトドロップで自動落下のタイマーがリセットされる
	assert.Empty(t, s.Tick(t0.Add(5*time.Second)))
	assert.Equal(t, 1, s.CurrentPiece.Y)

	// 床ではボーナスなしで固定される
	s.CurrentPiece.Y = tetris.BoardHeight - 2
	ok, events = s.SoftDrop()
	assert.True(t, ok)
	assert.True(t, HasEvent(events, EventPieceLocked))
	assert.Equal(t, SoftDropBonus, s.Score)
}

func TestMoveDown_NoScore(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindO)
	ok, events := s.MoveDown()
	assert.True(t, ok)
	assert.Empty(t, events)
	assert.Equal(t, 1, s.CurrentPiece.Y)
	assert.Equal(t, 0, s.Score)
}

func TestHardDrop(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindO, tetris.KindI)

	ok, events := s.HardDrop()
	require.True(t, ok)

	// 0 から 18 まで18行落下
	assert.Equal(t, 18*HardDropBonus, s.Score)
	locked := eventsOf(events, EventPieceLocked)
	require.Len(t, locked, 1)
	assert.Equal(t, 18, locked[0].Payload.(PieceLockedPayload).Y)
	assert.Equal(t, tetris.KindI, s.CurrentPiece.Kind)
	assert.Equal(t, 0, s.CurrentPiece.Y)
}

func TestGhostY(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindO)
	assert.Equal(t, tetris.BoardHeight-2, s.GhostY())
	assert.Equal(t, 0, s.CurrentPiece.Y)

	fillRowExcept(&s.Board, 10, 0)
	assert.Equal(t, 8, s.GhostY())
}

func TestPause(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindT)
	t0 := time.Now()
	s.Tick(t0)

	require.True(t, s.TogglePause())
	assert.True(t, s.IsPaused())

	before := *s.CurrentPiece
	assert.False(t, s.MoveLeft())
	assert.False(t, s.MoveRight())
	assert.False(t, s.Rotate())
	ok, events := s.HardDrop()
	assert.False(t, ok)
	assert.Nil(t, events)
	ok, _ = s.SoftDrop()
	assert.False(t, ok)
	assert.Nil(t, s.Tick(t0.Add(10*time.Second)))
	assert.Equal(t, before.X, s.CurrentPiece.X)
	assert.Equal(t, before.Y, s.CurrentPiece.Y)
	assert.Equal(t, 0, s.Score)

	require.True(t, s.TogglePause())
	assert.True(t, s.IsRunning())
	// 再開直後の Tick はタイマーを設定し直すだけ
	s.Tick(t0.Add(11 * time.Second))
	assert.Equal(t, before.Y, s.CurrentPiece.Y)
}

func TestLineClear_Single(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindI, tetris.KindT)
	fillRowExcept(&s.Board, 19, 3, 4, 5, 6)

	ok, events := s.HardDrop()
	require.True(t, ok)
	assert.Equal(t, 19*HardDropBonus, s.Score)

	// 揃った行が見つかった時点で Clearing に入り、ピースはまだ出ない
	assert.True(t, s.IsClearing())
	assert.Nil(t, s.CurrentPiece)
	assert.Equal(t, []int{19}, s.ClearingRows())
	cleared := eventsOf(events, EventLineCleared)
	require.Len(t, cleared, 1)
	assert.Equal(t, LineClearedPayload{Rows: []int{19}, Count: 1, WasTetris: false}, cleared[0].Payload)
	assert.False(t, HasEvent(events, EventPieceSpawned))

	// 消去中は入力も Tick も一時停止も受け付けない
	assert.False(t, s.MoveLeft())
	assert.False(t, s.TogglePause())
	assert.Nil(t, s.Tick(time.Now()))
	_, snapOK := s.Snapshot(time.Now())
	assert.False(t, snapOK)

	events = s.FinishClearLines()
	assert.True(t, s.IsRunning())
	assert.Equal(t, 1, s.LinesCleared)
	assert.Equal(t, 1, s.Level)
	assert.Equal(t, 19*HardDropBonus+150, s.Score)

	scored := eventsOf(events, EventScoreChanged)
	require.Len(t, scored, 1)
	assert.Equal(t, 150, scored[0].Payload.(ScoreChangedPayload).Delta)
	assert.False(t, HasEvent(events, EventLevelUp))
	assert.True(t, HasEvent(events, EventPieceSpawned))
	require.NotNil(t, s.CurrentPiece)
	assert.Equal(t, tetris.KindT, s.CurrentPiece.Kind)

	// 消去された行は空行になり、ボードは20行のまま
	for x := 0; x < tetris.BoardWidth; x++ {
		assert.False(t, s.Board.Occupied[19][x])
		assert.False(t, s.Board.Occupied[0][x])
	}
	assert.True(t, s.Board.Consistent())

	// 2回目の完了通知は何もしない
	assert.Nil(t, s.FinishClearLines())
}

// easy でシングル → テトリスと消してレベル2に上がるまでの流れ
func TestLineClear_TetrisLevelUp(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindI)
	require.Equal(t, 1000, s.DropIntervalMs)

	fillRowExcept(&s.Board, 19, 3, 4, 5, 6)
	s.HardDrop()
	s.FinishClearLines()
	require.Equal(t, 38+150, s.Score)
	require.Equal(t, 1, s.LinesCleared)

	for y := 16; y < 20; y++ {
		fillRowExcept(&s.Board, y, 9)
	}
	require.True(t, s.Rotate())
	for i := 0; i < 6; i++ {
		require.True(t, s.MoveRight())
	}
	assert.Equal(t, 9, s.CurrentPiece.X)

	_, events := s.HardDrop()
	cleared := eventsOf(events, EventLineCleared)
	require.Len(t, cleared, 1)
	assert.Equal(t, LineClearedPayload{Rows: []int{16, 17, 18, 19}, Count: 4, WasTetris: true}, cleared[0].Payload)

	events = s.FinishClearLines()
	assert.Equal(t, 5, s.LinesCleared)
	assert.Equal(t, 2, s.Level)
	assert.Equal(t, 800, s.DropIntervalMs)
	// テトリスはレベルアップ前のレベル1で計算される
	assert.Equal(t, 38+150+32+6000, s.Score)

	levelUps := eventsOf(events, EventLevelUp)
	require.Len(t, levelUps, 1)
	assert.Equal(t, LevelUpPayload{Level: 2, DropIntervalMs: 800}, levelUps[0].Payload)

	for y := 0; y < tetris.BoardHeight; y++ {
		for x := 0; x < tetris.BoardWidth; x++ {
			assert.False(t, s.Board.Occupied[y][x], "(%d,%d)", x, y)
		}
	}
}

func TestGameOver(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindI)
	for y := 1; y < tetris.BoardHeight; y++ {
		fillRowExcept(&s.Board, y, 9)
	}

	ok, events := s.HardDrop()
	require.True(t, ok)
	assert.True(t, s.IsGameOver())
	over := eventsOf(events, EventGameOver)
	require.Len(t, over, 1)
	assert.Equal(t, GameOverPayload{FinalScore: 0, Level: 1, Lines: 0}, over[0].Payload)

	// 描画用に最後のピースは残るが、操作はできない
	assert.NotNil(t, s.CurrentPiece)
	assert.False(t, s.MoveLeft())
	ok, events = s.HardDrop()
	assert.False(t, ok)
	assert.Empty(t, events)
	assert.Nil(t, s.Tick(time.Now()))
	assert.False(t, s.TogglePause())
	assert.Nil(t, s.FinishClearLines())
	_, snapOK := s.Snapshot(time.Now())
	assert.False(t, snapOK)

	// 新しいゲームはまっさらな状態から
	s.Start(DifficultyHard)
	assert.True(t, s.IsRunning())
	assert.Equal(t, 0, s.Score)
	assert.False(t, s.Board.Occupied[19][0])
}

func TestApplyInput(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindT)

	ok, _ := s.ApplyInput(ActionMoveLeft)
	assert.True(t, ok)
	ok, _ = s.ApplyInput(ActionMoveRight)
	assert.True(t, ok)
	ok, _ = s.ApplyInput(ActionRotate)
	assert.True(t, ok)
	ok, _ = s.ApplyInput(ActionSoftDrop)
	assert.True(t, ok)
	ok, _ = s.ApplyInput("hold")
	assert.False(t, ok)

	ok, _ = s.ApplyInput(ActionPause)
	assert.True(t, ok)
	assert.True(t, s.IsPaused())
	ok, _ = s.ApplyInput(ActionHardDrop)
	assert.False(t, ok)
}

func TestSnapshotRestore(t *testing.T) {
	s := newTestSession(t, DifficultyMedium, tetris.KindL, tetris.KindS)
	s.MoveLeft()
	s.Rotate()
	fillRowExcept(&s.Board, 19, 0)
	s.Score = 4321
	s.LinesCleared = 12
	s.Level = 3

	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	snap, ok := s.Snapshot(now)
	require.True(t, ok)
	assert.Equal(t, now, snap.Timestamp)
	assert.Equal(t, "medium", snap.Difficulty)

	// スナップショットは元のセッションと共有しない
	s.CurrentPiece.X = 7
	assert.NotEqual(t, 7, snap.CurrentPiece.X)

	snap.DropIntervalMs = 5 // 保存値は使わず再計算される
	restored := NewGameSession("restored", tetris.NewSequenceProvider(tetris.KindZ))
	require.NoError(t, restored.Restore(snap))

	assert.True(t, restored.IsRunning())
	assert.Equal(t, 4321, restored.Score)
	assert.Equal(t, 12, restored.LinesCleared)
	assert.Equal(t, 3, restored.Level)
	assert.Equal(t, DifficultyMedium, restored.Difficulty)
	assert.Equal(t, ComputeDropInterval(3, DifficultyMedium), restored.DropIntervalMs)
	assert.Equal(t, snap.Board, restored.Board)
	assert.Equal(t, snap.CurrentPiece, restored.CurrentPiece)
	assert.Equal(t, tetris.KindS, restored.NextPiece.Kind)
}

func TestSnapshot_WhilePaused(t *testing.T) {
	s := newTestSession(t, DifficultyEasy, tetris.KindT)
	s.TogglePause()
	_, ok := s.Snapshot(time.Now())
	assert.True(t, ok)
}

func TestRestore_Invalid(t *testing.T) {
	s := NewGameSession("g", nil)
	assert.ErrorIs(t, s.Restore(nil), tetris.ErrSnapshotInvalid)

	snap := &tetris.Snapshot{Level: 1, Timestamp: time.Now()}
	assert.ErrorIs(t, s.Restore(snap), tetris.ErrSnapshotInvalid)
	assert.Equal(t, StateIdle, s.State)
}

func TestRestore_MissingNextPiece(t *testing.T) {
	src := newTestSession(t, DifficultyEasy, tetris.KindO)
	snap, ok := src.Snapshot(time.Now())
	require.True(t, ok)
	snap.NextPiece = nil
	snap.Difficulty = ""

	s := NewGameSession("g", tetris.NewSequenceProvider(tetris.KindJ))
	require.NoError(t, s.Restore(snap))
	require.NotNil(t, s.NextPiece)
	assert.Equal(t, tetris.KindJ, s.NextPiece.Kind)
	assert.Equal(t, DifficultyEasy, s.Difficulty)
}
