package tetris

import "fmt"

// ShapeKind はテトリミノの種類を表します。
type ShapeKind int

const (
	KindI ShapeKind = iota // 0: I-ミノ (シアン)
	KindO                  // 1: O-ミノ (黄色)
	KindT                  // 2: T-ミノ (紫)
	KindS                  // 3: S-ミノ (緑)
	KindZ                  // 4: Z-ミノ (赤)
	KindJ                  // 5: J-ミノ (青)
	KindL                  // 6: L-ミノ (オレンジ)
)

// KindCount はテトリミノの種類数です。
const KindCount = 7

// AllKinds は全種類を定義順で返します。
var AllKinds = [KindCount]ShapeKind{KindI, KindO, KindT, KindS, KindZ, KindJ, KindL}

// Matrix はピースのセル行列です。Matrix[row][col] が 1 のマスが埋まっています。
type Matrix [][]int

// Palette はピースの描画用4色パレットです。エンジンは中身を解釈せず、そのまま描画側へ渡します。
type Palette struct {
	Main   string `json:"main"`
	Light  string `json:"light"`
	Dark   string `json:"dark"`
	Shadow string `json:"shadow"`
}

// baseMatrices は各種類の基本形（回転前の向き）です。
// I は 1x4、O は 2x2、それ以外は 2x3。
var baseMatrices = [KindCount]Matrix{
	KindI: {{1, 1, 1, 1}},
	KindO: {{1, 1}, {1, 1}},
	KindT: {{0, 1, 0}, {1, 1, 1}},
	KindS: {{0, 1, 1}, {1, 1, 0}},
	KindZ: {{1, 1, 0}, {0, 1, 1}},
	KindJ: {{1, 0, 0}, {1, 1, 1}},
	KindL: {{0, 0, 1}, {1, 1, 1}},
}

var palettes = [KindCount]Palette{
	KindI: {Main: "#00d9ff", Light: "#7fffff", Dark: "#0099b3", Shadow: "#006680"},
	KindO: {Main: "#ffdd00", Light: "#ffee77", Dark: "#b39900", Shadow: "#806d00"},
	KindT: {Main: "#cc66ff", Light: "#e6b3ff", Dark: "#9933cc", Shadow: "#662299"},
	KindS: {Main: "#66ff66", Light: "#b3ffb3", Dark: "#33cc33", Shadow: "#228822"},
	KindZ: {Main: "#ff6666", Light: "#ffb3b3", Dark: "#cc3333", Shadow: "#992222"},
	KindJ: {Main: "#6666ff", Light: "#b3b3ff", Dark: "#3333cc", Shadow: "#222299"},
	KindL: {Main: "#ff9933", Light: "#ffcc99", Dark: "#cc6600", Shadow: "#994d00"},
}

// Valid は k が7種類のいずれかであるかを返します。
func (k ShapeKind) Valid() bool {
	return k >= KindI && k <= KindL
}

// BaseMatrix は指定された種類の基本形のコピーを返します。
// 呼び出し側が書き換えても定義は壊れません。
func BaseMatrix(kind ShapeKind) Matrix {
	if !kind.Valid() {
		return nil
	}
	return baseMatrices[kind].Clone()
}

// PaletteOf は種類ごとの描画パレットを返します。
func PaletteOf(kind ShapeKind) Palette {
	if !kind.Valid() {
		return Palette{}
	}
	return palettes[kind]
}

// String は "I", "O" などの1文字表現を返します。
func (k ShapeKind) String() string {
	return PieceTypeToString(k)
}

// MarshalText はスナップショットやJSON上で種類を文字で表現するために使います。
func (k ShapeKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("不明なテトリミノ種類です: %d", int(k))
	}
	return []byte(PieceTypeToString(k)), nil
}

// UnmarshalText は "I" などの文字列から種類を復元します。
func (k *ShapeKind) UnmarshalText(text []byte) error {
	kind, ok := StringToPieceType(string(text))
	if !ok {
		return fmt.Errorf("不明なテトリミノ種類です: %q", string(text))
	}
	*k = kind
	return nil
}

// StringToPieceType は文字列のテトリミノタイプ（"I", "O", "T"など）をShapeKindに変換します。
func StringToPieceType(s string) (ShapeKind, bool) {
	switch s {
	case "I":
		return KindI, true
	case "O":
		return KindO, true
	case "T":
		return KindT, true
	case "S":
		return KindS, true
	case "Z":
		return KindZ, true
	case "J":
		return KindJ, true
	case "L":
		return KindL, true
	default:
		return KindI, false
	}
}

// PieceTypeToString はShapeKindを文字列表現に変換します。
func PieceTypeToString(t ShapeKind) string {
	switch t {
	case KindI:
		return "I"
	case KindO:
		return "O"
	case KindT:
		return "T"
	case KindS:
		return "S"
	case KindZ:
		return "Z"
	case KindJ:
		return "J"
	case KindL:
		return "L"
	default:
		return "?"
	}
}

// Clone は行列のディープコピーを返します。
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for r := range m {
		out[r] = append([]int(nil), m[r]...)
	}
	return out
}

// Width は行列の列数です（先頭行の長さ）。
func (m Matrix) Width() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Height は行列の行数です。
func (m Matrix) Height() int {
	return len(m)
}

// Equal は2つの行列がセル単位で等しいかを返します。
func (m Matrix) Equal(other Matrix) bool {
	if len(m) != len(other) {
		return false
	}
	for r := range m {
		if len(m[r]) != len(other[r]) {
			return false
		}
		for c := range m[r] {
			if m[r][c] != other[r][c] {
				return false
			}
		}
	}
	return true
}

// Blocks は埋まっているセルの相対座標 {x, y} の一覧を返します。
func (m Matrix) Blocks() [][2]int {
	blocks := make([][2]int, 0, 4)
	for r, row := range m {
		for c, cell := range row {
			if cell != 0 {
				blocks = append(blocks, [2]int{c, r})
			}
		}
	}
	return blocks
}

// RotateClockwise は行列を時計回りに90度回転させた新しい行列を返します。
// out[col][rows-1-row] = in[row][col] で、R×C の行列は C×R になります。入力は変更しません。
func RotateClockwise(m Matrix) Matrix {
	rows := m.Height()
	cols := m.Width()
	rotated := make(Matrix, cols)
	for c := 0; c < cols; c++ {
		rotated[c] = make([]int, rows)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			rotated[c][rows-1-r] = m[r][c]
		}
	}
	return rotated
}

// Piece はボード上に置かれたテトリミノです。
// X, Y はセル行列の左上がボードのどこにあるかを示します。
type Piece struct {
	Kind  ShapeKind `json:"kind"`  // テトリミノの種類
	Cells Matrix    `json:"cells"` // 現在の向きのセル行列（回転時は丸ごと置き換える）
	X     int       `json:"x"`     // ボード上のX座標
	Y     int       `json:"y"`     // ボード上のY座標
}

// NewPiece は基本形の向きでピースを作成します。位置はスポーン時に決まります。
func NewPiece(kind ShapeKind) *Piece {
	return &Piece{
		Kind:  kind,
		Cells: BaseMatrix(kind),
	}
}

// Blocks は現在の向きでのブロックの相対座標を返します。
func (p *Piece) Blocks() [][2]int {
	return p.Cells.Blocks()
}

// Palette はピースの描画パレットです。
func (p *Piece) Palette() Palette {
	return PaletteOf(p.Kind)
}

// Clone は現在のPieceオブジェクトのディープコピーを返します。
// セル行列もコピーするので、コピー側の回転が元のピースに影響しません。
func (p *Piece) Clone() *Piece {
	if p == nil {
		return nil
	}
	newP := *p
	newP.Cells = p.Cells.Clone()
	return &newP
}
