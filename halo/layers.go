// Package halo classifies the lattice sites of a rank's grids into the
// interior, the send and receive layers shared with neighbouring ranks and
// the transition layer bordering a coarser grid.
package halo

import (
	"fmt"

	"github.com/notargets/golbm/topology"
	"github.com/notargets/golbm/types"
)

// Geometry is what the classifier needs to know about a local grid
type Geometry interface {
	Level() int
	Region() int
	Extent(a int) int
	Position(a, i int) float64
	Spacing() float64
	GlobalEdges() types.Edges
	TransitionLayer(a int, s types.Side) bool
}

// Layers holds the physical positions of the send and receive layers of one
// rank. The layers are one level 0 site thick and shared by every level.
type Layers struct {
	Dims   int
	Active bool // Layers only exist when running on more than one rank
	send   [3][2][2]float64 // [axis][side][lo, hi]
	recv   [3][2][2]float64
}

func NewLayers(topo *topology.Topology, rank int) (l *Layers) {
	var (
		ext = topo.Extent(rank)
		dh  = topo.Dh
	)
	l = &Layers{
		Dims:   topo.Dims,
		Active: topo.Distributed(),
	}
	for a := 0; a < topo.Dims; a++ {
		s, e := ext.StartPos[a], ext.EndPos[a]
		l.recv[a][types.Min] = [2]float64{s - dh, s}
		l.send[a][types.Min] = [2]float64{s, s + dh}
		l.send[a][types.Max] = [2]float64{e - dh, e}
		l.recv[a][types.Max] = [2]float64{e, e + dh}
	}
	return
}

func inside(pos float64, layer [2]float64) bool { return pos > layer[0] && pos < layer[1] }

func (l *Layers) OnSend(a int, s types.Side, pos float64) bool {
	return l.Active && a < l.Dims && inside(pos, l.send[a][s])
}

func (l *Layers) OnRecv(a int, s types.Side, pos float64) bool {
	return l.Active && a < l.Dims && inside(pos, l.recv[a][s])
}

func (l *Layers) OnAnySend(a int, pos float64) bool {
	return l.OnSend(a, types.Min, pos) || l.OnSend(a, types.Max, pos)
}

func (l *Layers) OnAnyRecv(a int, pos float64) bool {
	return l.OnRecv(a, types.Min, pos) || l.OnRecv(a, types.Max, pos)
}

// SendLayer returns the lo, hi positions of the send layer on one side
func (l *Layers) SendLayer(a int, s types.Side) [2]float64 { return l.send[a][s] }

func (l *Layers) RecvLayer(a int, s types.Side) [2]float64 { return l.recv[a][s] }

func (l *Layers) String() string {
	if !l.Active {
		return "no halo layers"
	}
	return fmt.Sprintf("send %v recv %v", l.send[:l.Dims], l.recv[:l.Dims])
}
