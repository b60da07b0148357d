package ibm

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/golbm/InputParameters"
	"github.com/notargets/golbm/comm"
	"github.com/notargets/golbm/hierarchy"
	"github.com/notargets/golbm/topology"
)

func newTopology(t *testing.T, ranks int, rankDims [3]int) *topology.Topology {
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)
	ip := &InputParameters.LBM{Dims: 2, N: 20, M: 10, BX: 20, BY: 10}
	ip.SetDefaults()
	h, err := hierarchy.New(ip)
	require.NoError(t, err)
	topo, err := topology.New(h, ranks, rankDims, [3]bool{})
	require.NoError(t, err)
	return topo
}

func TestNewBody(t *testing.T) {
	{ // Test ring markers sit on the circle
		b := NewBody(0, 2, InputParameters.Body{Center: [3]float64{10, 5, 0}, Radius: 3, NumMarkers: 16})
		require.Len(t, b.Markers, 16)
		for _, m := range b.Markers {
			assert.InDelta(t, 3., math.Hypot(m.Position[0]-10, m.Position[1]-5), 1.e-12)
			assert.Equal(t, 0., m.Position[2])
		}
		assert.InDelta(t, 13., b.Markers[0].Position[0], 1.e-12)
	}
	{ // Test sphere markers sit on the sphere
		b := NewBody(1, 3, InputParameters.Body{Center: [3]float64{1, 2, 3}, Radius: 2, NumMarkers: 50})
		for _, m := range b.Markers {
			dx, dy, dz := m.Position[0]-1, m.Position[1]-2, m.Position[2]-3
			assert.InDelta(t, 2., math.Sqrt(dx*dx+dy*dy+dz*dz), 1.e-12)
		}
	}
}

func TestDistribute(t *testing.T) {
	topo := newTopology(t, 4, [3]int{2, 2, 0})
	b := NewBody(0, 2, InputParameters.Body{Center: [3]float64{10, 5, 0}, Radius: 3, NumMarkers: 16})
	// Centroid sits on the corner shared by all four ranks, the upper one wins
	assert.Equal(t, 3, OwnerOf(b, topo))
	total := 0
	seen := make(map[int]bool)
	for r := 0; r < 4; r++ {
		local := Distribute(b, topo, r)
		assert.Equal(t, 3, local.OwningRank)
		assert.Equal(t, 16, local.NumMarkers)
		box := topo.Extent(r).Box()
		for _, m := range local.Markers {
			assert.True(t, box.Contains(m.Position, 2), "marker %d on rank %d", m.ID, r)
			assert.False(t, seen[m.ID])
			seen[m.ID] = true
		}
		total += len(local.Markers)
	}
	assert.Equal(t, 16, total)

	outside := NewBody(1, 2, InputParameters.Body{Center: [3]float64{-5, 5, 0}, Radius: 1, NumMarkers: 4})
	assert.Equal(t, 0, OwnerOf(outside, topo))
	assert.Empty(t, Distribute(outside, topo, 0).Markers)
}

// markersFor gives rank r the given number of markers, positions encode the
// rank and marker index
func markersFor(r, count int) (mm []Marker) {
	for i := 0; i < count; i++ {
		mm = append(mm, Marker{ID: 100*r + i, Position: [3]float64{float64(r), float64(i), -1}})
	}
	return
}

func TestGatherScatter(t *testing.T) {
	var (
		counts = []int{0, 3, 0, 5}
		mu     sync.Mutex
		result []RankCount
		layout *MarkerLayout
	)
	err := comm.Run(4, func(w *comm.Comm) (err error) {
		var (
			body = &Body{ID: 2, Dims: 2, OwningRank: 0, NumMarkers: 8,
				Markers: markersFor(w.Rank(), counts[w.Rank()])}
			rc        []RankCount
			ml        *MarkerLayout
			positions []float64
		)
		if rc, err = GatherMarkerCounts(w, body); err != nil {
			return
		}
		if w.Rank() == 0 {
			ml = NewMarkerLayout(body, rc)
			mu.Lock()
			result, layout = rc, ml
			mu.Unlock()
		} else if rc != nil {
			return fmt.Errorf("rank %d received counts", w.Rank())
		}
		if positions, err = GatherMarkerPositions(w, body, ml); err != nil {
			return
		}
		var forces []float64
		if w.Rank() == 0 {
			if len(positions) != 2*ml.Total {
				return fmt.Errorf("gathered %d values", len(positions))
			}
			// Force is twice the position
			forces = make([]float64, len(positions))
			for i, p := range positions {
				forces[i] = 2 * p
			}
		}
		if err = ScatterMarkerForces(w, body, ml, forces); err != nil {
			return
		}
		for _, m := range body.Markers {
			if m.Force[2] != 0 {
				return fmt.Errorf("rank %d marker %d received a z force", w.Rank(), m.ID)
			}
			for a := 0; a < 2; a++ {
				if m.Force[a] != 2*m.Position[a] {
					return fmt.Errorf("rank %d marker %d force %v", w.Rank(), m.ID, m.Force)
				}
			}
		}
		return
	})
	require.NoError(t, err)
	assert.Equal(t, []RankCount{{Rank: 1, Count: 3}, {Rank: 3, Count: 5}}, result)
	assert.Equal(t, []int{0, 1, 3}, layout.Ranks)
	assert.Equal(t, []int{0, 3, 5}, layout.Counts)
	assert.Equal(t, []int{0, 0, 3}, layout.Offsets)
	assert.Equal(t, 8, layout.Total)
}

func TestOwnerHoldsMarkers(t *testing.T) {
	topo := newTopology(t, 2, [3]int{2, 1, 0})
	full := NewBody(0, 2, InputParameters.Body{Center: [3]float64{10, 5, 0}, Radius: 2, NumMarkers: 12})
	err := comm.Run(2, func(w *comm.Comm) (err error) {
		var (
			body      = Distribute(full, topo, w.Rank())
			rc        []RankCount
			ml        *MarkerLayout
			positions []float64
		)
		if rc, err = GatherMarkerCounts(w, body); err != nil {
			return
		}
		if w.Rank() == body.OwningRank {
			ml = NewMarkerLayout(body, rc)
		}
		if positions, err = GatherMarkerPositions(w, body, ml); err != nil {
			return
		}
		if w.Rank() != body.OwningRank {
			return
		}
		if len(positions) != 2*12 {
			return fmt.Errorf("owner gathered %d values", len(positions))
		}
		// The owner's own markers come first
		for i, m := range body.Markers {
			if positions[2*i] != m.Position[0] || positions[2*i+1] != m.Position[1] {
				return fmt.Errorf("marker %d out of place", i)
			}
		}
		return
	})
	assert.NoError(t, err)
}

func TestMarkerStride(t *testing.T) {
	for _, dims := range []int{2, 3} {
		err := comm.Run(2, func(w *comm.Comm) (err error) {
			var (
				body = &Body{ID: 0, Dims: dims, OwningRank: 1, NumMarkers: 5,
					Markers: markersFor(w.Rank(), 2+w.Rank())}
				rc        []RankCount
				ml        *MarkerLayout
				positions []float64
			)
			if rc, err = GatherMarkerCounts(w, body); err != nil {
				return
			}
			if w.Rank() == 1 {
				ml = NewMarkerLayout(body, rc)
			}
			if positions, err = GatherMarkerPositions(w, body, ml); err != nil {
				return
			}
			if w.Rank() == 1 {
				if len(positions) != dims*ml.Total || ml.Total != 5 {
					return fmt.Errorf("%dD: gathered %d values for %d markers", dims, len(positions), ml.Total)
				}
				// Rank 0's markers follow the owner's three
				if positions[3*dims] != 0 || positions[3*dims+1] != 0 {
					return fmt.Errorf("%dD: rank 0 markers out of place: %v", dims, positions)
				}
			}
			return ScatterMarkerForces(w, body, ml, positions)
		})
		require.NoError(t, err)
	}
}
