// Package ibm distributes immersed boundary markers over the ranks and
// aggregates them on the rank that owns each body.
package ibm

import (
	"fmt"
	"math"

	"github.com/notargets/golbm/InputParameters"
	"github.com/notargets/golbm/topology"
)

// Marker is one Lagrangian point of a body surface
type Marker struct {
	ID       int
	Position [3]float64
	Force    [3]float64
}

type Body struct {
	ID         int
	Dims       int
	OwningRank int
	Centroid   [3]float64
	Radius     float64
	NumMarkers int      // Markers on the whole body
	Markers    []Marker // Markers held by this rank
}

// NewBody places the markers of a ring (2D) or of a sphere (3D) evenly on
// the surface. The returned body holds every marker.
func NewBody(id, dims int, b InputParameters.Body) (body *Body) {
	var (
		n = b.NumMarkers
	)
	body = &Body{
		ID:         id,
		Dims:       dims,
		Centroid:   b.Center,
		Radius:     b.Radius,
		NumMarkers: n,
		Markers:    make([]Marker, n),
	}
	golden := math.Pi * (3. - math.Sqrt(5.))
	for i := range body.Markers {
		var off [3]float64
		if dims == 2 {
			theta := 2. * math.Pi * float64(i) / float64(n)
			off = [3]float64{math.Cos(theta), math.Sin(theta), 0}
		} else {
			// Fibonacci lattice on the unit sphere
			z := 1. - (2.*float64(i)+1.)/float64(n)
			r := math.Sqrt(1. - z*z)
			phi := golden * float64(i)
			off = [3]float64{r * math.Cos(phi), r * math.Sin(phi), z}
		}
		body.Markers[i].ID = i
		for a := 0; a < 3; a++ {
			body.Markers[i].Position[a] = b.Center[a] + b.Radius*off[a]
		}
	}
	return
}

// OwnerOf designates the rank holding the body centroid, rank 0 when the
// centroid lies outside the domain
func OwnerOf(body *Body, topo *topology.Topology) int {
	if r := topo.RankAt(body.Centroid); r >= 0 {
		return r
	}
	return 0
}

// Distribute returns the part of body held by rank: the markers inside the
// rank's interior box, in their original order
func Distribute(body *Body, topo *topology.Topology, rank int) (local *Body) {
	local = &Body{
		ID:         body.ID,
		Dims:       body.Dims,
		OwningRank: OwnerOf(body, topo),
		Centroid:   body.Centroid,
		Radius:     body.Radius,
		NumMarkers: body.NumMarkers,
	}
	for _, m := range body.Markers {
		if topo.RankAt(m.Position) == rank {
			local.Markers = append(local.Markers, m)
		}
	}
	return
}

func (b *Body) String() string {
	return fmt.Sprintf("body %d: %d of %d markers, owner %d", b.ID, len(b.Markers), b.NumMarkers, b.OwningRank)
}
