package tetris

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSnapshot(ts time.Time) *Snapshot {
	current := NewPiece(KindT)
	current.X, current.Y = 3, 4
	board := NewBoard()
	board.Occupied[19][0] = true
	board.Colors[19][0] = BlockI

	return &Snapshot{
		Board:          board,
		CurrentPiece:   current,
		NextPiece:      NewPiece(KindO),
		Score:          1200,
		Level:          2,
		Lines:          6,
		DropIntervalMs: 800,
		Difficulty:     "easy",
		Timestamp:      ts,
	}
}

func TestSnapshot_IsStale(t *testing.T) {
	saved := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := newTestSnapshot(saved)

	assert.False(t, snap.IsStale(saved.Add(time.Hour)))
	assert.False(t, snap.IsStale(saved.Add(SnapshotMaxAge)))
	assert.True(t, snap.IsStale(saved.Add(SnapshotMaxAge+time.Millisecond)))
	assert.True(t, snap.IsStale(saved.Add(25*time.Hour)))
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	snap := newTestSnapshot(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	b, err := json.Marshal(snap)
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, snap.Board, got.Board)
	assert.Equal(t, snap.CurrentPiece, got.CurrentPiece)
	assert.True(t, snap.Timestamp.Equal(got.Timestamp))
	assert.NoError(t, got.Validate())
}

func TestSnapshot_Validate(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
		valid  bool
	}{
		{"正常", func(s *Snapshot) {}, true},
		{"次のピースなし", func(s *Snapshot) { s.NextPiece = nil }, true},
		{"時刻なし", func(s *Snapshot) { s.Timestamp = time.Time{} }, false},
		{"レベル0", func(s *Snapshot) { s.Level = 0 }, false},
		{"負のスコア", func(s *Snapshot) { s.Score = -1 }, false},
		{"現在のピースなし", func(s *Snapshot) { s.CurrentPiece = nil }, false},
		{"グリッド不一致", func(s *Snapshot) { s.Board.Colors[19][0] = BlockEmpty }, false},
		{"ピースが壁の外", func(s *Snapshot) { s.CurrentPiece.X = 9 }, false},
		{"ピースがブロックと重なる", func(s *Snapshot) {
			s.Board.Occupied[5][4] = true
			s.Board.Colors[5][4] = BlockZ
		}, false},
		{"セルが4つでない", func(s *Snapshot) { s.CurrentPiece.Cells = Matrix{{1, 1, 1}} }, false},
		{"行列が不揃い", func(s *Snapshot) { s.CurrentPiece.Cells = Matrix{{1, 1, 1}, {1}} }, false},
		{"不明な種類", func(s *Snapshot) { s.NextPiece.Kind = ShapeKind(9) }, false},
		{"回転済みのピース", func(s *Snapshot) { s.CurrentPiece.Cells = RotateClockwise(s.CurrentPiece.Cells) }, true},
		{"種類と形が違う", func(s *Snapshot) { s.NextPiece.Cells = Matrix{{1, 1, 1, 1}} }, false},
		{"別の種類の形", func(s *Snapshot) { s.CurrentPiece.Cells = BaseMatrix(KindL) }, false},
		{"範囲外の色タグ", func(s *Snapshot) { s.Board.Colors[19][0] = BlockL + 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := newTestSnapshot(ts)
			tt.mutate(snap)
			err := snap.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrSnapshotInvalid)
			}
		})
	}
}
