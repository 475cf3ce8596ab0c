package tetris

const (
	BoardWidth  = 10 // テトリスボードの幅
	BoardHeight = 20 // テトリスボードの高さ（表示部分）
)

// BlockType はボード上のマスの色タグです。どのテトリミノ由来のブロックかを示します。
type BlockType int

const (
	BlockEmpty BlockType = iota // 0: 空のマス
	BlockI                      // 1: I-テトリミノ由来のブロック (KindI + 1)
	BlockO                      // 2: O-テトリミノ由来のブロック (KindO + 1)
	BlockT                      // 3: T-テトリミノ由来のブロック (KindT + 1)
	BlockS                      // 4: S-テトリミノ由来のブロック (KindS + 1)
	BlockZ                      // 5: Z-テトリミノ由来のブロック (KindZ + 1)
	BlockJ                      // 6: J-テトリミノ由来のブロック (KindJ + 1)
	BlockL                      // 7: L-テトリミノ由来のブロック (KindL + 1)
)

// BlockFor は種類に対応する色タグを返します。
func BlockFor(kind ShapeKind) BlockType {
	return BlockType(kind + 1)
}

// Valid は色タグが BlockEmpty〜BlockL の範囲にあるかを返します。
func (b BlockType) Valid() bool {
	return b >= BlockEmpty && b <= BlockL
}

// Kind は色タグが指すテトリミノの種類を返します。空マスの場合は false。
func (b BlockType) Kind() (ShapeKind, bool) {
	if b <= BlockEmpty || b > BlockL {
		return KindI, false
	}
	return ShapeKind(b - 1), true
}

// WallKickOffsets は回転が衝突したときに試す横方向のずらし量です。
// 近いものから、同じ距離なら左を先に試します。
var WallKickOffsets = [...]int{-1, 1, -2, 2}

// Board はテトリスのゲームボードです。占有グリッドと色タググリッドを並行して持ちます。
// Occupied[y][x] / Colors[y][x] でアクセスします。yは行（0が最上段）、xは列です。
type Board struct {
	Occupied [BoardHeight][BoardWidth]bool      `json:"occupied"`
	Colors   [BoardHeight][BoardWidth]BlockType `json:"colors"`
}

// NewBoard は新しい空のボードを返します。
// Goの配列はゼロ値で初期化されるため、特別な初期化は不要です。
func NewBoard() Board {
	var board Board
	return board
}

// IsOccupied は (x, y) のマスが埋まっているかを返します。ボード外は false です。
func (b *Board) IsOccupied(x, y int) bool {
	if x < 0 || x >= BoardWidth || y < 0 || y >= BoardHeight {
		return false
	}
	return b.Occupied[y][x]
}

// IsValidPlacement は行列 m を (originX, originY) に置けるかを判定します。
// 左右の壁・床の外に出るセルがあれば false、ボード内で既存ブロックと重なれば false。
// y < 0 のセル（ボードより上）はX方向の範囲だけを確認し、占有は確認しません。
// スポーン直後にピースがボード上端からはみ出すことを許すためです。
func (b *Board) IsValidPlacement(m Matrix, originX, originY int) bool {
	for r, row := range m {
		for c, cell := range row {
			if cell == 0 {
				continue
			}
			x := originX + c
			y := originY + r

			if x < 0 || x >= BoardWidth || y >= BoardHeight {
				return false
			}
			if y >= 0 && b.Occupied[y][x] {
				return false
			}
		}
	}
	return true
}

// HasCollision はピースをオフセット (dx, dy) だけ動かした位置で衝突するかを判定します。
func (b *Board) HasCollision(p *Piece, dx, dy int) bool {
	return !b.IsValidPlacement(p.Cells, p.X+dx, p.Y+dy)
}

// TryMove はピースを (dx, dy) 動かします。動かせない場合はピースを変更せず false を返します。
func (b *Board) TryMove(p *Piece, dx, dy int) bool {
	if b.HasCollision(p, dx, dy) {
		return false
	}
	p.X += dx
	p.Y += dy
	return true
}

// TryRotate はピースを時計回りに回転させます。
// その場で回転できなければ WallKickOffsets の順に横へずらして再試行し、
// 最初に成功した位置で確定します。すべて失敗した場合はピースを変更しません。
func (b *Board) TryRotate(p *Piece) bool {
	rotated := RotateClockwise(p.Cells)

	if b.IsValidPlacement(rotated, p.X, p.Y) {
		p.Cells = rotated
		return true
	}

	for _, kick := range WallKickOffsets {
		if b.IsValidPlacement(rotated, p.X+kick, p.Y) {
			p.X += kick
			p.Cells = rotated
			return true
		}
	}
	return false
}

// DropDistance はピースが何行落下できるかを返します（ゴースト表示用）。
func (b *Board) DropDistance(p *Piece) int {
	dy := 0
	for b.IsValidPlacement(p.Cells, p.X, p.Y+dy+1) {
		dy++
	}
	return dy
}

// SpawnPosition は行列 m をスポーンさせる位置を返します。
// 横方向は中央（切り捨て）、縦方向は最上段です。
func SpawnPosition(m Matrix) (int, int) {
	return (BoardWidth - m.Width()) / 2, 0
}

// MergePiece は落下したピースをボードに固定します。
// y >= 0 のセルだけを占有グリッドと色タググリッドの両方に書き込みます。
func (b *Board) MergePiece(p *Piece) {
	block := BlockFor(p.Kind)
	for _, cell := range p.Blocks() {
		x := p.X + cell[0]
		y := p.Y + cell[1]

		if x >= 0 && x < BoardWidth && y >= 0 && y < BoardHeight {
			b.Occupied[y][x] = true
			b.Colors[y][x] = block
		}
	}
}

// FullRows は全マスが埋まっている行のインデックスを上から順に返します。
func (b *Board) FullRows() []int {
	var rows []int
	for y := 0; y < BoardHeight; y++ {
		full := true
		for x := 0; x < BoardWidth; x++ {
			if !b.Occupied[y][x] {
				full = false
				break
			}
		}
		if full {
			rows = append(rows, y)
		}
	}
	return rows
}

// RemoveRows は指定された行をまとめて取り除き、同じ数の空行を最上部に挿入します。
// 残りの行の相対的な順序は保たれます。取り除いた行数を返します。
func (b *Board) RemoveRows(rows []int) int {
	remove := make(map[int]bool, len(rows))
	for _, y := range rows {
		if y >= 0 && y < BoardHeight {
			remove[y] = true
		}
	}
	if len(remove) == 0 {
		return 0
	}

	newBoard := NewBoard()
	destY := BoardHeight - 1 // 新しいボードにコピーする際の最も下の行

	// ボードの最下部から上に向かって、残す行だけを詰めてコピー
	for y := BoardHeight - 1; y >= 0; y-- {
		if remove[y] {
			continue
		}
		newBoard.Occupied[destY] = b.Occupied[y]
		newBoard.Colors[destY] = b.Colors[y]
		destY--
	}
	*b = newBoard
	return len(remove)
}

// Consistent は占有グリッドと色タググリッドが同じマスを指しているかを返します。
func (b *Board) Consistent() bool {
	for y := 0; y < BoardHeight; y++ {
		for x := 0; x < BoardWidth; x++ {
			if !b.Colors[y][x].Valid() || b.Occupied[y][x] != (b.Colors[y][x] != BlockEmpty) {
				return false
			}
		}
	}
	return true
}
