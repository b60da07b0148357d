package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexing(t *testing.T) {
	{
		assert.Equal(t, Index{2, 3, 4}, NewRange(2, 4))
		assert.Equal(t, Index{}, NewRange(4, 3))
		assert.Equal(t, Index{3}, NewRange(2, 4).Filter(func(v int) bool { return v == 3 }))
	}
	{ // Layout is dense and the value index varies fastest
		l := NewLayout([3]int{3, 4, 5}, 2)
		assert.Equal(t, 120, l.Len())
		assert.Equal(t, 60, l.NumSites())
		assert.Equal(t, 1, l.Offset(0, 0, 0, 1))
		assert.Equal(t, 2, l.Offset(0, 0, 1, 0))
		assert.Equal(t, 10, l.Offset(0, 1, 0, 0))
		assert.Equal(t, 40, l.Offset(1, 0, 0, 0))
		seen := make(map[int]bool)
		for i := 0; i < 3; i++ {
			for j := 0; j < 4; j++ {
				for k := 0; k < 5; k++ {
					for v := 0; v < 2; v++ {
						off := l.Offset(i, j, k, v)
						assert.False(t, seen[off])
						seen[off] = true
					}
				}
			}
		}
		assert.Equal(t, l.Len(), len(seen))
		assert.Panics(t, func() { NewLayout([3]int{-1, 1, 1}, 1) })
	}
}
