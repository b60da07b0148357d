package ibm

import (
	"fmt"

	"github.com/notargets/golbm/comm"
)

const (
	tagPositions = iota
	tagForces
	tagsPerBody
)

// RankCount is the number of markers a rank contributes to a body
type RankCount struct {
	Rank, Count int
}

// MarkerLayout orders the markers of a body on its owner, the owner's own
// markers first and then each contributing rank in rank order
type MarkerLayout struct {
	Ranks   []int
	Counts  []int
	Offsets []int
	Total   int
}

func NewMarkerLayout(body *Body, contributors []RankCount) (ml *MarkerLayout) {
	ml = &MarkerLayout{}
	ml.add(body.OwningRank, len(body.Markers))
	for _, rc := range contributors {
		ml.add(rc.Rank, rc.Count)
	}
	return
}

func (ml *MarkerLayout) add(rank, count int) {
	ml.Ranks = append(ml.Ranks, rank)
	ml.Counts = append(ml.Counts, count)
	ml.Offsets = append(ml.Offsets, ml.Total)
	ml.Total += count
}

func tag(body *Body, kind int) int { return body.ID*tagsPerBody + kind }

// GatherMarkerCounts collects the marker count of every rank on the body
// owner. The owner receives the ranks other than itself holding at least
// one marker, the other ranks receive nil.
func GatherMarkerCounts(c *comm.Comm, body *Body) (counts []RankCount, err error) {
	var (
		all []float64
	)
	if all, err = c.Gather([]float64{float64(c.Rank()), float64(len(body.Markers))}, body.OwningRank); err != nil {
		return
	}
	if c.Rank() != body.OwningRank {
		return
	}
	for i := 0; i < len(all); i += 2 {
		rc := RankCount{Rank: int(all[i]), Count: int(all[i+1])}
		if rc.Count > 0 && rc.Rank != body.OwningRank {
			counts = append(counts, rc)
		}
	}
	return
}

// flatten serializes the first dims components of field for every marker
func flatten(markers []Marker, dims int, field func(m *Marker) *[3]float64) (buf []float64) {
	buf = make([]float64, dims*len(markers))
	for i := range markers {
		copy(buf[dims*i:dims*(i+1)], field(&markers[i])[:dims])
	}
	return
}

func position(m *Marker) *[3]float64 { return &m.Position }

func force(m *Marker) *[3]float64 { return &m.Force }

// GatherMarkerPositions returns the positions of every marker of body on
// the owner, body.Dims values per marker in layout order. Ranks holding
// markers send them to the owner, the owner receives one message per
// contributing rank. Only the owner needs the layout.
func GatherMarkerPositions(c *comm.Comm, body *Body, layout *MarkerLayout) (positions []float64, err error) {
	var (
		nd = body.Dims
	)
	if c.Rank() != body.OwningRank {
		if len(body.Markers) > 0 {
			err = c.Send(flatten(body.Markers, nd, position), body.OwningRank, tag(body, tagPositions))
		}
		return
	}
	positions = make([]float64, nd*layout.Total)
	for n, r := range layout.Ranks {
		seg := positions[nd*layout.Offsets[n] : nd*(layout.Offsets[n]+layout.Counts[n])]
		if r == c.Rank() {
			copy(seg, flatten(body.Markers, nd, position))
			continue
		}
		if err = c.Recv(seg, r, tag(body, tagPositions)); err != nil {
			return nil, fmt.Errorf("body %d positions from rank %d: %w", body.ID, r, err)
		}
	}
	return
}

// ScatterMarkerForces mirrors GatherMarkerPositions: the owner sends each
// contributing rank the forces on its markers, in the order the positions
// arrived, and every rank stores them on its local markers
func ScatterMarkerForces(c *comm.Comm, body *Body, layout *MarkerLayout, forces []float64) (err error) {
	var (
		nd = body.Dims
	)
	if c.Rank() != body.OwningRank {
		if len(body.Markers) == 0 {
			return
		}
		buf := make([]float64, nd*len(body.Markers))
		if err = c.Recv(buf, body.OwningRank, tag(body, tagForces)); err != nil {
			return fmt.Errorf("body %d forces: %w", body.ID, err)
		}
		store(body.Markers, nd, buf)
		return
	}
	if len(forces) != nd*layout.Total {
		return fmt.Errorf("body %d: %d force values for %d markers", body.ID, len(forces), layout.Total)
	}
	var reqs []*comm.Request
	for n, r := range layout.Ranks {
		seg := forces[nd*layout.Offsets[n] : nd*(layout.Offsets[n]+layout.Counts[n])]
		if r == c.Rank() {
			store(body.Markers, nd, seg)
			continue
		}
		reqs = append(reqs, c.Isend(seg, r, tag(body, tagForces)))
	}
	return comm.WaitAll(reqs)
}

func store(markers []Marker, dims int, buf []float64) {
	for i := range markers {
		copy(force(&markers[i])[:dims], buf[dims*i:dims*(i+1)])
	}
}

// Forces returns the force on every local marker, Dims values per marker
func (b *Body) Forces() []float64 { return flatten(b.Markers, b.Dims, force) }
