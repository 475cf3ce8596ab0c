package tetris

import (
	"errors"
	"fmt"
	"time"
)

// SnapshotMaxAge を超えて古いスナップショットは存在しないものとして扱います。
const SnapshotMaxAge = 24 * time.Hour

// ErrSnapshotInvalid は壊れた（復元できない）スナップショットを表します。
var ErrSnapshotInvalid = errors.New("snapshot is invalid")

// Snapshot はゲームセッションを丸ごと保存・復元するための状態一式です。
// 永続化層からは不透明なJSONとして扱われます。
type Snapshot struct {
	Board          Board     `json:"board"`            // 占有グリッドと色タググリッド
	CurrentPiece   *Piece    `json:"current_piece"`    // 操作中のピース（種類・行列・位置）
	NextPiece      *Piece    `json:"next_piece"`       // 次のピース
	Score          int       `json:"score"`            // スコア
	Level          int       `json:"level"`            // レベル
	Lines          int       `json:"lines"`            // 累計ライン数
	DropIntervalMs int       `json:"drop_interval_ms"` // 保存時点の落下間隔
	Difficulty     string    `json:"difficulty"`       // 難易度タグ
	Timestamp      time.Time `json:"timestamp"`        // 保存時刻（期限切れ判定用）
}

// IsStale はスナップショットが now の時点で期限切れかどうかを返します。
func (s *Snapshot) IsStale(now time.Time) bool {
	return now.Sub(s.Timestamp) > SnapshotMaxAge
}

// Validate は復元前にスナップショットの構造を確認します。
// 問題があれば ErrSnapshotInvalid をラップしたエラーを返します。
func (s *Snapshot) Validate() error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is missing", ErrSnapshotInvalid)
	}
	if s.Level < 1 || s.Score < 0 || s.Lines < 0 {
		return fmt.Errorf("%w: score=%d level=%d lines=%d", ErrSnapshotInvalid, s.Score, s.Level, s.Lines)
	}
	if !s.Board.Consistent() {
		return fmt.Errorf("%w: occupancy and color grids disagree", ErrSnapshotInvalid)
	}
	if err := validatePiece(s.CurrentPiece); err != nil {
		return fmt.Errorf("%w: current piece: %v", ErrSnapshotInvalid, err)
	}
	if !s.Board.IsValidPlacement(s.CurrentPiece.Cells, s.CurrentPiece.X, s.CurrentPiece.Y) {
		return fmt.Errorf("%w: current piece overlaps the board", ErrSnapshotInvalid)
	}
	if s.NextPiece != nil {
		if err := validatePiece(s.NextPiece); err != nil {
			return fmt.Errorf("%w: next piece: %v", ErrSnapshotInvalid, err)
		}
	}
	return nil
}

func validatePiece(p *Piece) error {
	if p == nil {
		return errors.New("missing")
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("unknown kind %d", int(p.Kind))
	}
	if p.Cells.Height() == 0 || p.Cells.Width() == 0 {
		return errors.New("empty cell matrix")
	}
	width := p.Cells.Width()
	filled := 0
	for _, row := range p.Cells {
		if len(row) != width {
			return errors.New("ragged cell matrix")
		}
		for _, cell := range row {
			if cell < 0 || cell > 1 {
				return fmt.Errorf("cell value %d", cell)
			}
			if cell == 1 {
				filled++
			}
		}
	}
	if filled != 4 {
		return fmt.Errorf("%d filled cells", filled)
	}
	if !isRotationOf(p.Cells, p.Kind) {
		return fmt.Errorf("cells do not match kind %s", p.Kind)
	}
	return nil
}

// isRotationOf は cells が kind の基本形を0〜3回回転したものと一致するかを返します。
func isRotationOf(cells Matrix, kind ShapeKind) bool {
	m := BaseMatrix(kind)
	for i := 0; i < 4; i++ {
		if cells.Equal(m) {
			return true
		}
		m = RotateClockwise(m)
	}
	return false
}
