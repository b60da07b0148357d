package halo

import (
	"github.com/notargets/golbm/hierarchy"
	"github.com/notargets/golbm/types"
	"github.com/notargets/golbm/utils"
)

// SiteKind is ordered by priority, a site on several layers takes the
// highest kind
type SiteKind uint8

const (
	Interior SiteKind = iota
	Send
	Transition
	Recv
)

func (k SiteKind) String() string {
	switch k {
	case Interior:
		return "interior"
	case Send:
		return "send"
	case Transition:
		return "transition"
	case Recv:
		return "recv"
	}
	return "unknown"
}

// InTransitionLayer reports whether pos lies within the transition layer
// on either side of axis a. Level 0 has no transition layers.
func InTransitionLayer(g Geometry, a int, pos float64) bool {
	if g.Level() == 0 {
		return false
	}
	var (
		edges = g.GlobalEdges()
		width = hierarchy.TLWidth * g.Spacing()
		ax    = types.Axis(a)
	)
	if g.TransitionLayer(a, types.Min) && pos-edges.Get(ax, types.Min) < width {
		return true
	}
	if g.TransitionLayer(a, types.Max) && edges.Get(ax, types.Max)-pos < width {
		return true
	}
	return false
}

// Classify returns the kind of local site i along axis a
func Classify(g Geometry, l *Layers, a, i int) SiteKind {
	pos := g.Position(a, i)
	switch {
	case l.OnAnyRecv(a, pos):
		return Recv
	case InTransitionLayer(g, a, pos):
		return Transition
	case l.OnAnySend(a, pos):
		return Send
	}
	return Interior
}

// ClassifySite combines the per axis kinds of site (i, j, k)
func ClassifySite(g Geometry, l *Layers, i, j, k int) (kind SiteKind) {
	ijk := [3]int{i, j, k}
	for a := 0; a < l.Dims; a++ {
		if ak := Classify(g, l, a, ijk[a]); ak > kind {
			kind = ak
		}
	}
	return
}

// SendIndices lists the local sites along axis a that are sent to the
// neighbour lying in direction c (-1, 0 or +1) on that axis
func SendIndices(g Geometry, l *Layers, a, c int) utils.Index {
	all := utils.NewRange(0, g.Extent(a)-1)
	if a >= l.Dims {
		return all
	}
	return all.Filter(func(i int) bool {
		pos := g.Position(a, i)
		switch c {
		case 1:
			return l.OnSend(a, types.Max, pos)
		case -1:
			return l.OnSend(a, types.Min, pos)
		}
		return !l.OnAnyRecv(a, pos)
	})
}

// RecvIndices lists the local sites along axis a filled from the neighbour
// lying in direction c on that axis
func RecvIndices(g Geometry, l *Layers, a, c int) utils.Index {
	all := utils.NewRange(0, g.Extent(a)-1)
	if a >= l.Dims {
		return all
	}
	return all.Filter(func(i int) bool {
		pos := g.Position(a, i)
		switch c {
		case 1:
			return l.OnRecv(a, types.Max, pos)
		case -1:
			return l.OnRecv(a, types.Min, pos)
		}
		return !l.OnAnyRecv(a, pos)
	})
}
