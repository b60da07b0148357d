package lattice

import (
	"github.com/notargets/golbm/hierarchy"
	"github.com/notargets/golbm/topology"
)

// Arena owns the local grids of one rank, indexed like the hierarchy
type Arena struct {
	H     *hierarchy.Hierarchy
	Topo  *topology.Topology
	Rank  int
	NVel  int
	grids []*Grid // Nil where the rank holds no part of the grid
}

func Build(h *hierarchy.Hierarchy, topo *topology.Topology, rank, nvel int) (ar *Arena) {
	ar = &Arena{
		H:     h,
		Topo:  topo,
		Rank:  rank,
		NVel:  nvel,
		grids: make([]*Grid, h.NumGrids()),
	}
	for idx := range ar.grids {
		ar.grids[idx] = NewGrid(h.SpecAt(idx), topo, rank, nvel)
	}
	return
}

// Grid returns the local block of (level, region), nil if absent
func (ar *Arena) Grid(level, region int) *Grid {
	idx := ar.H.Index(level, region)
	if idx < 0 {
		return nil
	}
	return ar.grids[idx]
}

// FieldValues is the number of field values stored by the local grids
func (ar *Arena) FieldValues() (n int) {
	for _, g := range ar.grids {
		if g != nil {
			n += len(g.F)
		}
	}
	return
}

// Grids lists the grids present on this rank in arena order
func (ar *Arena) Grids() (gg []*Grid) {
	for _, g := range ar.grids {
		if g != nil {
			gg = append(gg, g)
		}
	}
	return
}
