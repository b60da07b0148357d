package exchange

import (
	"fmt"
	"log"

	"github.com/notargets/golbm/comm"
)

// BuildSubCommunicators creates, for every grid, a communicator of the ranks
// whose halo inclusive box overlaps the grid and a communicator of the ranks
// that have writable sites on it. Every rank of the world must call it.
func (e *Engine) BuildSubCommunicators() (err error) {
	var (
		h    = e.Arena.H
		flag = make([]float64, 1)
	)
	e.grids = make([]*comm.Comm, h.NumGrids())
	e.writers = make([]*comm.Comm, h.NumGrids())
	for idx := 0; idx < h.NumGrids(); idx++ {
		var (
			gs      = h.SpecAt(idx)
			members []int
			all     []float64
		)
		for r := 0; r < e.Topo.RankCount; r++ {
			if e.Topo.Overlaps(r, gs.Edges.Box()) {
				members = append(members, r)
			}
		}
		label := gs.Key().String()
		if e.grids[idx], err = e.World.Create(members, label); err != nil {
			return
		}
		flag[0] = 0
		if g := e.Arena.Grid(gs.Level, gs.Region); g != nil && e.Descriptor(g).HasData() {
			flag[0] = 1
		}
		if (e.grids[idx] != nil) != (e.Arena.Grid(gs.Level, gs.Region) != nil) {
			return fmt.Errorf("rank %d: %s membership disagrees with the local grid", e.Rank, label)
		}
		if all, err = e.World.Allgather(flag); err != nil {
			return
		}
		var writers []int
		for r, f := range all {
			if f != 0 {
				writers = append(writers, r)
			}
		}
		if e.writers[idx], err = e.World.Create(writers, label+" writers"); err != nil {
			return
		}
		if e.Rank == 0 {
			log.Printf("%s: %d ranks hold the grid, %d write to it", label, len(members), len(writers))
		}
	}
	return
}

// GridComm returns the communicator of (level, region), nil when this rank
// holds no part of the grid or the communicators have not been built
func (e *Engine) GridComm(level, region int) *comm.Comm {
	if e.grids == nil {
		return nil
	}
	return e.grids[e.Arena.H.Index(level, region)]
}

func (e *Engine) WriterComm(level, region int) *comm.Comm {
	if e.writers == nil {
		return nil
	}
	return e.writers[e.Arena.H.Index(level, region)]
}
