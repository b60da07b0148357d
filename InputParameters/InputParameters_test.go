package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	fileInput := []byte(`
Title: Channel
Dims: 3
NX: 32
NY: 16
NZ: 16
BX: 2.
BY: 1.
BZ: 1.
NumLevels: 1
NumRegions: 1
Refinements:
  - - XMin: 0.5
      XMax: 1.5
      YMin: 0.25
      YMax: 0.75
      ZMin: 0.25
      ZMax: 0.75
RankDims: [2, 1, 1]
Periodic: [true, false, false]
Bodies:
  - Center: [1., 0.5, 0.5]
    Radius: 0.1
    NumMarkers: 40
`)
	var ip LBM
	require.NoError(t, ip.Parse(fileInput))
	assert.Equal(t, "Channel", ip.Title)
	assert.Equal(t, [3]int{32, 16, 16}, [3]int{ip.N, ip.M, ip.K})
	assert.Equal(t, 19, ip.NumVelocities)
	assert.Equal(t, 1.5, ip.Refinements[0][0].XMax)
	assert.Equal(t, [3]int{2, 1, 1}, ip.RankDims)
	assert.Equal(t, [3]bool{true, false, false}, ip.Periodic)
	assert.Equal(t, 40, ip.Bodies[0].NumMarkers)
	assert.InDelta(t, 1./16., ip.Dh(), 1.e-15)
	ip.Print()
}

func TestParseResolutionKeys(t *testing.T) {
	{ // Resolution keys reach the lattice sizes
		var ip LBM
		require.NoError(t, ip.Parse([]byte("Dims: 2\nNX: 64\nNY: 32\nBX: 2.\nBY: 1.\n")))
		assert.Equal(t, 64, ip.N)
		assert.Equal(t, 32, ip.M)
		assert.Equal(t, 1, ip.K)
	}
	{ // A bare N key is a YAML boolean and never sets the resolution
		var ip LBM
		err := ip.Parse([]byte("Dims: 2\nN: 64\nNY: 32\nBX: 2.\nBY: 1.\n"))
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, 0, ip.N)
	}
}

func TestValidate(t *testing.T) {
	{ // 2D defaults
		ip := LBM{Dims: 2, N: 10, M: 5, BX: 1, BY: 0.5}
		ip.SetDefaults()
		assert.NoError(t, ip.Validate())
		assert.Equal(t, 1, ip.K)
		assert.Equal(t, 9, ip.NumVelocities)
	}
	{ // Non cubic cells
		ip := LBM{Dims: 2, N: 10, M: 10, BX: 1, BY: 0.5}
		ip.SetDefaults()
		assert.ErrorIs(t, ip.Validate(), ErrInvalidInput)
	}
	{ // Missing refinement bounds
		ip := LBM{Dims: 2, N: 10, M: 10, BX: 1, BY: 1, NumLevels: 2}
		ip.SetDefaults()
		assert.ErrorIs(t, ip.Validate(), ErrInvalidInput)
		ip.AutoSubGrids = true
		ip.Refinements = [][]Bounds{{{XMin: .2, XMax: .8, YMin: .2, YMax: .8}}}
		assert.NoError(t, ip.Validate())
	}
	{ // Bad dimensionality
		ip := LBM{Dims: 4, N: 10, M: 10, K: 10, BX: 1, BY: 1, BZ: 1}
		assert.ErrorIs(t, ip.Validate(), ErrInvalidInput)
	}
}
