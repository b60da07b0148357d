// Package exchange moves halo data between neighbouring ranks. Each grid
// present on a rank is exchanged independently: the send layer facing each
// neighbour is packed into a flat buffer, posted without blocking, and the
// matching buffer from the opposite neighbour is unpacked into the receive
// layer.
package exchange

import (
	"errors"
	"fmt"

	"github.com/notargets/golbm/comm"
	"github.com/notargets/golbm/halo"
	"github.com/notargets/golbm/lattice"
	"github.com/notargets/golbm/topology"
	"github.com/notargets/golbm/utils"
)

var ErrBufferSize = errors.New("buffer does not match the layer size")

// BufferDescriptor holds the number of values exchanged with the neighbour
// in each direction. Recv[d] is filled by the neighbour lying in direction d.
type BufferDescriptor struct {
	Level, Region int
	Send, Recv    [topology.MaxDirections]int
}

func (bd BufferDescriptor) TotalSend() (n int) {
	for _, s := range bd.Send {
		n += s
	}
	return
}

type Engine struct {
	World   *comm.Comm
	Topo    *topology.Topology
	Arena   *lattice.Arena
	Layers  *halo.Layers
	Rank    int
	nbr     [topology.MaxDirections]int
	buffers []BufferDescriptor // By arena index
	descs   []*halo.Descriptor
	grids   []*comm.Comm
	writers []*comm.Comm
}

func New(world *comm.Comm, topo *topology.Topology, arena *lattice.Arena) (e *Engine, err error) {
	if world.Size() != topo.RankCount {
		return nil, fmt.Errorf("communicator holds %d ranks, topology expects %d",
			world.Size(), topo.RankCount)
	}
	if arena.Rank != world.Rank() {
		return nil, fmt.Errorf("arena built for rank %d used on rank %d", arena.Rank, world.Rank())
	}
	e = &Engine{
		World:   world,
		Topo:    topo,
		Arena:   arena,
		Layers:  halo.NewLayers(topo, world.Rank()),
		Rank:    world.Rank(),
		nbr:     topo.Neighbours(world.Rank()),
		buffers: make([]BufferDescriptor, arena.H.NumGrids()),
		descs:   make([]*halo.Descriptor, arena.H.NumGrids()),
	}
	for idx := range e.buffers {
		gs := arena.H.SpecAt(idx)
		if g := arena.Grid(gs.Level, gs.Region); g != nil {
			e.buffers[idx] = e.SizeBuffers(g)
		} else {
			e.buffers[idx] = BufferDescriptor{Level: gs.Level, Region: gs.Region}
		}
	}
	return
}

func (e *Engine) Neighbours() [topology.MaxDirections]int { return e.nbr }

// Buffers returns the buffer sizes of (level, region) on this rank
func (e *Engine) Buffers(level, region int) BufferDescriptor {
	return e.buffers[e.Arena.H.Index(level, region)]
}

// Descriptor returns the writable range of (level, region), computed on
// first use
func (e *Engine) Descriptor(g *lattice.Grid) halo.Descriptor {
	idx := e.Arena.H.Index(g.Level(), g.Region())
	if e.descs[idx] == nil {
		d := halo.Writable(g, e.Layers)
		e.descs[idx] = &d
	}
	return *e.descs[idx]
}

// layer returns the local index lists of the send or receive layer of g in
// direction d
func (e *Engine) layer(g *lattice.Grid, d int, send bool) (lists [3]utils.Index) {
	dir := topology.Directions[d]
	for a := 0; a < 3; a++ {
		if send {
			lists[a] = halo.SendIndices(g, e.Layers, a, dir[a])
		} else {
			lists[a] = halo.RecvIndices(g, e.Layers, a, dir[a])
		}
	}
	return
}

func layerSize(lists [3]utils.Index, nv int) int {
	return len(lists[0]) * len(lists[1]) * len(lists[2]) * nv
}

// SizeBuffers counts the values sent to and received from every neighbour
// of g, zero where there is no neighbour
func (e *Engine) SizeBuffers(g *lattice.Grid) (bd BufferDescriptor) {
	bd = BufferDescriptor{Level: g.Level(), Region: g.Region()}
	for d := 0; d < topology.NumDirections(e.Topo.Dims); d++ {
		if e.nbr[d] < 0 {
			continue
		}
		bd.Send[d] = layerSize(e.layer(g, d, true), g.NVel)
		bd.Recv[d] = layerSize(e.layer(g, d, false), g.NVel)
	}
	return
}

// Pack serialises the send layer of g facing direction d, x outermost and
// the per site values innermost
func (e *Engine) Pack(d int, g *lattice.Grid) (buf []float64) {
	lists := e.layer(g, d, true)
	buf = make([]float64, 0, layerSize(lists, g.NVel))
	for _, i := range lists[0] {
		for _, j := range lists[1] {
			for _, k := range lists[2] {
				off := g.Layout.Site(i, j, k)
				buf = append(buf, g.F[off:off+g.NVel]...)
			}
		}
	}
	return
}

// Unpack writes buf into the receive layer of g facing direction d, in the
// order Pack produced it
func (e *Engine) Unpack(d int, g *lattice.Grid, buf []float64) (err error) {
	var (
		lists = e.layer(g, d, false)
		n     int
	)
	if size := layerSize(lists, g.NVel); size != len(buf) {
		return fmt.Errorf("%w: %s direction %d holds %d values, buffer has %d",
			ErrBufferSize, g.Key(), d, size, len(buf))
	}
	for _, i := range lists[0] {
		for _, j := range lists[1] {
			for _, k := range lists[2] {
				off := g.Layout.Site(i, j, k)
				copy(g.F[off:off+g.NVel], buf[n:n+g.NVel])
				n += g.NVel
			}
		}
	}
	return
}

func (e *Engine) tag(idx, d int) int { return idx*topology.MaxDirections + d }

// Communicate exchanges the halo of (level, region) with every neighbour.
// Ranks that hold no part of the grid return at once.
func (e *Engine) Communicate(level, region int) (err error) {
	var (
		idx  = e.Arena.H.Index(level, region)
		g    = e.Arena.Grid(level, region)
		reqs []*comm.Request
	)
	if g == nil {
		return
	}
	bd := e.buffers[idx]
	nd := topology.NumDirections(e.Topo.Dims)
	for d := 0; d < nd; d++ {
		if bd.Send[d] > 0 {
			reqs = append(reqs, e.World.Isend(e.Pack(d, g), e.nbr[d], e.tag(idx, d)))
		}
	}
	for d := 0; d < nd; d++ {
		od := topology.Opposite(d)
		if bd.Recv[od] == 0 {
			continue
		}
		buf := make([]float64, bd.Recv[od])
		if err = e.World.Recv(buf, e.nbr[od], e.tag(idx, d)); err != nil {
			return fmt.Errorf("%s from rank %d: %w", g.Key(), e.nbr[od], err)
		}
		if err = e.Unpack(od, g, buf); err != nil {
			return
		}
	}
	return comm.WaitAll(reqs)
}

// CommunicateAll exchanges every grid of the hierarchy in arena order
func (e *Engine) CommunicateAll() (err error) {
	h := e.Arena.H
	for idx := 0; idx < h.NumGrids(); idx++ {
		gs := h.SpecAt(idx)
		if err = e.Communicate(gs.Level, gs.Region); err != nil {
			return
		}
	}
	return
}
