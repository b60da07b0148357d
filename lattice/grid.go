// Package lattice holds the rank local part of every grid in the hierarchy.
// A rank's local block of a grid covers the rank's level 0 box widened by
// the halo, so every level shares the same physical halo layer.
package lattice

import (
	"fmt"
	"math"

	"github.com/notargets/golbm/hierarchy"
	"github.com/notargets/golbm/topology"
	"github.com/notargets/golbm/types"
	"github.com/notargets/golbm/utils"
)

type Grid struct {
	Spec             *hierarchy.GridSpec
	Dims             int
	N                [3]int     // Local sites, halo included
	First            [3]int     // Global index of local site 0, unwrapped
	Start, End       [3]int     // Global indices of the interior, half open
	StartPos, EndPos [3]float64 // Rank interior box, shared by every level
	Pos              [3][]float64
	NVel             int
	Layout           utils.Layout
	F                []float64
}

// NewGrid builds the local block of gs on rank, it returns nil when the
// rank holds no part of the grid
func NewGrid(gs *hierarchy.GridSpec, topo *topology.Topology, rank, nvel int) (g *Grid) {
	var (
		ext = topo.Extent(rank)
	)
	g = &Grid{
		Spec:     gs,
		Dims:     topo.Dims,
		NVel:     nvel,
		StartPos: ext.StartPos,
		EndPos:   ext.EndPos,
	}
	for a := 0; a < 3; a++ {
		var (
			ax      = types.Axis(a)
			gmin    = gs.Edges.Get(ax, types.Min)
			halo    = float64(topo.HaloWidth(a)) * topo.Dh
			first   int
			last    int
			iS, iE  int
			clamped = gs.Level > 0 && !gs.Periodic[a]
		)
		switch {
		case a >= topo.Dims:
			first, last, iS, iE = 0, 1, 0, 1
		case gs.Level == 0:
			first = ext.Start[a] - topo.HaloWidth(a)
			last = ext.End[a] + topo.HaloWidth(a)
			iS, iE = ext.Start[a], ext.End[a]
		default:
			first = index(ext.StartPos[a]-halo, gmin, gs.Dh)
			last = index(ext.EndPos[a]+halo, gmin, gs.Dh)
			iS = index(ext.StartPos[a], gmin, gs.Dh)
			iE = index(ext.EndPos[a], gmin, gs.Dh)
		}
		if clamped && a < topo.Dims {
			first, last = clamp(first, gs.Size[a]), clamp(last, gs.Size[a])
			iS, iE = clamp(iS, gs.Size[a]), clamp(iE, gs.Size[a])
		}
		if last <= first {
			return nil
		}
		g.First[a], g.N[a] = first, last-first
		g.Start[a], g.End[a] = iS, iE
		g.Pos[a] = make([]float64, g.N[a])
		for i := range g.Pos[a] {
			g.Pos[a][i] = gmin + (float64(first+i)+0.5)*gs.Dh
		}
	}
	g.Layout = utils.NewLayout(g.N, nvel)
	g.F = make([]float64, g.Layout.Len())
	return
}

func index(pos, gmin, dh float64) int { return int(math.Round((pos - gmin) / dh)) }

func clamp(i, size int) int {
	switch {
	case i < 0:
		return 0
	case i > size:
		return size
	}
	return i
}

func (g *Grid) Level() int { return g.Spec.Level }

func (g *Grid) Region() int { return g.Spec.Region }

func (g *Grid) Key() types.GridKey { return g.Spec.Key() }

func (g *Grid) Extent(a int) int { return g.N[a] }

func (g *Grid) Position(a, i int) float64 { return g.Pos[a][i] }

func (g *Grid) Spacing() float64 { return g.Spec.Dh }

func (g *Grid) GlobalEdges() types.Edges { return g.Spec.Edges }

func (g *Grid) TransitionLayer(a int, s types.Side) bool {
	return g.Spec.Level > 0 && g.Spec.TL[a][s]
}

// GlobalIndex maps local site i on axis a to the grid's global index,
// wrapped on periodic axes. Halo sites past a non-periodic boundary map
// outside [0, Size).
func (g *Grid) GlobalIndex(a, i int) (gi int) {
	gi = g.First[a] + i
	if g.Spec.Periodic[a] {
		n := g.Spec.Size[a]
		gi = ((gi % n) + n) % n
	}
	return
}

func (g *Grid) At(i, j, k, v int) float64 { return g.F[g.Layout.Offset(i, j, k, v)] }

func (g *Grid) Set(i, j, k, v int, val float64) { g.F[g.Layout.Offset(i, j, k, v)] = val }

func (g *Grid) String() string {
	return fmt.Sprintf("%s local %v first %v interior %v -- %v", g.Key(), g.N, g.First, g.Start, g.End)
}
