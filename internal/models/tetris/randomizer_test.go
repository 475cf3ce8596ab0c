package tetris

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomKind(t *testing.T) {
	seen := make(map[ShapeKind]bool)
	for i := 0; i < 1000; i++ {
		k := RandomKind()
		assert.True(t, k.Valid())
		seen[k] = true
	}
	assert.Len(t, seen, KindCount)
}

func TestUniformProvider_Deterministic(t *testing.T) {
	a := NewUniformProvider(42)
	b := NewUniformProvider(42)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestBagProvider(t *testing.T) {
	p := NewBagProvider(7)

	var prev ShapeKind
	for bag := 0; bag < 20; bag++ {
		counts := make(map[ShapeKind]int)
		for i := 0; i < KindCount; i++ {
			k := p.Next()
			if bag > 0 && i == 0 {
				assert.NotEqual(t, prev, k, "袋の境目で同じ種類が続いた")
			}
			counts[k]++
			prev = k
		}
		// 各袋に7種類が1つずつ
		assert.Len(t, counts, KindCount)
	}
}

func TestSequenceProvider(t *testing.T) {
	p := NewSequenceProvider(KindI, KindO)
	assert.Equal(t, []ShapeKind{KindI, KindO, KindI, KindO}, []ShapeKind{p.Next(), p.Next(), p.Next(), p.Next()})

	all := NewSequenceProvider()
	for _, want := range AllKinds {
		assert.Equal(t, want, all.Next())
	}
}

func TestKindProviderFunc(t *testing.T) {
	var p KindProvider = KindProviderFunc(func() ShapeKind { return KindL })
	assert.Equal(t, KindL, p.Next())
}
