package tetris

import (
	"math/rand"
	"sync"
	"time"
)

// KindProvider は次に出現するテトリミノの種類を決めます。
type KindProvider interface {
	Next() ShapeKind
}

// KindProviderFunc は関数を KindProvider として使うためのアダプタです。
type KindProviderFunc func() ShapeKind

// Next は f を呼び出します。
func (f KindProviderFunc) Next() ShapeKind {
	return f()
}

// UniformProvider は7種類から一様ランダムに選びます。
type UniformProvider struct {
	r *rand.Rand
}

// NewUniformProvider は seed で初期化した一様ランダムプロバイダを返します。
func NewUniformProvider(seed int64) *UniformProvider {
	return &UniformProvider{r: rand.New(rand.NewSource(seed))}
}

// Next は一様ランダムな種類を返します。
func (p *UniformProvider) Next() ShapeKind {
	return AllKinds[p.r.Intn(KindCount)]
}

var (
	defaultRandMu sync.Mutex
	defaultRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RandomKind は7種類から一様ランダムに1つ返します。
func RandomKind() ShapeKind {
	defaultRandMu.Lock()
	defer defaultRandMu.Unlock()
	return AllKinds[defaultRand.Intn(KindCount)]
}

// BagProvider は一般的な7-bagシステムで種類を決めます。
// 7種類をシャッフルした袋を順に払い出し、前の袋の最後と次の袋の最初が同じにならないよう調整します。
type BagProvider struct {
	r       *rand.Rand
	queue   []ShapeKind
	last    ShapeKind
	hasLast bool
}

// NewBagProvider は seed で初期化した7-bagプロバイダを返します。
func NewBagProvider(seed int64) *BagProvider {
	return &BagProvider{r: rand.New(rand.NewSource(seed))}
}

// Next はキューから次の種類を取り出し、キューが空になれば新しい袋を補充します。
func (p *BagProvider) Next() ShapeKind {
	if len(p.queue) == 0 {
		p.refill()
	}
	kind := p.queue[0]
	p.queue = p.queue[1:]
	p.last = kind
	p.hasLast = true
	return kind
}

func (p *BagProvider) refill() {
	bag := AllKinds
	p.r.Shuffle(len(bag), func(i, j int) {
		bag[i], bag[j] = bag[j], bag[i]
	})

	// 連続防止：前の袋の最後と新しい袋の最初が同じなら、2番目以降のどれかと交換
	if p.hasLast && bag[0] == p.last {
		swapIndex := p.r.Intn(len(bag)-1) + 1
		bag[0], bag[swapIndex] = bag[swapIndex], bag[0]
	}
	p.queue = append(p.queue, bag[:]...)
}

// SequenceProvider は決められた順序を繰り返し払い出します。テストやリプレイ用です。
type SequenceProvider struct {
	kinds []ShapeKind
	pos   int
}

// NewSequenceProvider は kinds を順番に（末尾の次は先頭に戻って）返すプロバイダを作成します。
func NewSequenceProvider(kinds ...ShapeKind) *SequenceProvider {
	if len(kinds) == 0 {
		kinds = AllKinds[:]
	}
	return &SequenceProvider{kinds: kinds}
}

// Next は次の種類を返します。
func (p *SequenceProvider) Next() ShapeKind {
	kind := p.kinds[p.pos%len(p.kinds)]
	p.pos++
	return kind
}
