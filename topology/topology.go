package topology

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/golbm/hierarchy"
	"github.com/notargets/golbm/types"
	"github.com/notargets/golbm/utils"
)

var (
	ErrRankCount  = errors.New("rank count does not fit the level 0 lattice")
	ErrAsymmetric = errors.New("neighbour table is not symmetric")
)

// Extent is the level 0 block owned by one rank, halo excluded
type Extent struct {
	Start, End       [3]int // Global site indices, half open
	StartPos, EndPos [3]float64
}

func (e Extent) Box() types.Box { return types.Box{Lo: e.StartPos, Hi: e.EndPos} }

// Topology is the Cartesian arrangement of ranks over the level 0 lattice.
// Every rank builds the same Topology, so any rank can answer questions
// about any other without communicating.
type Topology struct {
	Dims      int
	RankCount int
	RankDims  [3]int
	Periodic  [3]bool
	Size      [3]int // Level 0 lattice sites
	Origin    [3]float64
	Dh        float64
	Halo      int // Halo width in level 0 sites on every side of the active axes
	parts     [3]*utils.PartitionMap
}

func New(h *hierarchy.Hierarchy, rankCount int, requested [3]int, periodic [3]bool) (t *Topology, err error) {
	var (
		base = h.Spec(0, 0)
	)
	if rankCount < 1 {
		return nil, fmt.Errorf("%w: %d ranks", ErrRankCount, rankCount)
	}
	t = &Topology{
		Dims:      h.Dims,
		RankCount: rankCount,
		Size:      base.Size,
		Dh:        h.BaseDh,
	}
	for a := 0; a < 3; a++ {
		t.Origin[a] = h.Domain.Get(types.Axis(a), types.Min)
		t.Periodic[a] = periodic[a] && a < h.Dims
	}
	t.RankDims = createDims(rankCount, h.Dims, t.Size, requested)
	for a := 0; a < 3; a++ {
		if t.RankDims[a] > t.Size[a] {
			return nil, fmt.Errorf("%w: %d ranks along %s for %d sites",
				ErrRankCount, t.RankDims[a], types.Axis(a), t.Size[a])
		}
		t.parts[a] = utils.NewPartitionMap(t.RankDims[a], t.Size[a])
	}
	if rankCount > 1 {
		t.Halo = 1
	}
	return
}

// createDims uses the requested rank grid when it holds exactly rankCount
// ranks, otherwise it hands out the prime factors of rankCount one at a time
// to the axis with the most sites per rank
func createDims(rankCount, dims int, size, requested [3]int) (rd [3]int) {
	rd = [3]int{1, 1, 1}
	prod := 1
	for a := 0; a < dims; a++ {
		prod *= requested[a]
	}
	if prod == rankCount && (dims == 3 || requested[2] <= 1) {
		for a := 0; a < dims; a++ {
			rd[a] = requested[a]
		}
		return
	}
	factors := primeFactors(rankCount)
	sort.Sort(sort.Reverse(sort.IntSlice(factors)))
	for _, p := range factors {
		best, bestLoad := 0, -1.
		for a := 0; a < dims; a++ {
			if load := float64(size[a]) / float64(rd[a]); load > bestLoad {
				best, bestLoad = a, load
			}
		}
		rd[best] *= p
	}
	return
}

func primeFactors(n int) (factors []int) {
	for p := 2; p*p <= n; p++ {
		for n%p == 0 {
			factors = append(factors, p)
			n /= p
		}
	}
	if n > 1 {
		factors = append(factors, n)
	}
	return
}

// HaloWidth is the halo on axis a, zero on the inactive z axis of a 2D run
func (t *Topology) HaloWidth(a int) int {
	if a >= t.Dims {
		return 0
	}
	return t.Halo
}

func (t *Topology) Distributed() bool { return t.RankCount > 1 }

// Coords places rank on the rank grid, z varies fastest
func (t *Topology) Coords(rank int) (c [3]int) {
	c[2] = rank % t.RankDims[2]
	c[1] = (rank / t.RankDims[2]) % t.RankDims[1]
	c[0] = rank / (t.RankDims[1] * t.RankDims[2])
	return
}

// RankOf is the inverse of Coords. Coordinates off the rank grid wrap on
// periodic axes and give -1 otherwise.
func (t *Topology) RankOf(c [3]int) int {
	for a := 0; a < 3; a++ {
		if c[a] < 0 || c[a] >= t.RankDims[a] {
			if !t.Periodic[a] {
				return -1
			}
			c[a] = ((c[a] % t.RankDims[a]) + t.RankDims[a]) % t.RankDims[a]
		}
	}
	return (c[0]*t.RankDims[1]+c[1])*t.RankDims[2] + c[2]
}

func (t *Topology) Neighbour(rank, d int) int {
	if d < 0 || d >= NumDirections(t.Dims) {
		return -1
	}
	c := t.Coords(rank)
	for a := 0; a < 3; a++ {
		c[a] += Directions[d][a]
	}
	return t.RankOf(c)
}

// Neighbours is the full table for rank, directions unused in 2D hold -1
func (t *Topology) Neighbours(rank int) (nb [MaxDirections]int) {
	for d := range nb {
		nb[d] = t.Neighbour(rank, d)
	}
	return
}

func (t *Topology) Extent(rank int) (e Extent) {
	c := t.Coords(rank)
	for a := 0; a < 3; a++ {
		e.Start[a], e.End[a] = t.parts[a].GetBucketRange(c[a])
		e.StartPos[a] = t.Origin[a] + float64(e.Start[a])*t.Dh
		e.EndPos[a] = t.Origin[a] + float64(e.End[a])*t.Dh
	}
	return
}

// Box is the physical box of rank, widened by the halo when withHalo is set
func (t *Topology) Box(rank int, withHalo bool) (b types.Box) {
	b = t.Extent(rank).Box()
	if withHalo {
		for a := 0; a < t.Dims; a++ {
			b.Lo[a] -= float64(t.Halo) * t.Dh
			b.Hi[a] += float64(t.Halo) * t.Dh
		}
	}
	return
}

// Overlaps reports whether the halo inclusive box of rank intersects b
func (t *Topology) Overlaps(rank int, b types.Box) (overlap bool) {
	_, overlap = t.Box(rank, true).Intersect(b, t.Dims)
	return
}

// RankAt returns the rank whose interior holds pos, or -1 outside a
// non-periodic domain
func (t *Topology) RankAt(pos [3]float64) int {
	var (
		c [3]int
	)
	for a := 0; a < t.Dims; a++ {
		idx := int(math.Floor((pos[a] - t.Origin[a]) / t.Dh))
		if t.Periodic[a] {
			idx = ((idx % t.Size[a]) + t.Size[a]) % t.Size[a]
		}
		bucket, _, _ := t.parts[a].GetBucket(idx)
		if bucket < 0 {
			return -1
		}
		c[a] = bucket
	}
	return t.RankOf(c)
}

// CheckSymmetry verifies that every rank is its neighbour's neighbour in the
// opposite direction
func (t *Topology) CheckSymmetry() (err error) {
	for r := 0; r < t.RankCount; r++ {
		for d := 0; d < NumDirections(t.Dims); d++ {
			n := t.Neighbour(r, d)
			if n < 0 {
				continue
			}
			if back := t.Neighbour(n, Opposite(d)); back != r {
				return fmt.Errorf("%w: rank %d direction %d reaches %d, which points back to %d",
					ErrAsymmetric, r, d, n, back)
			}
		}
	}
	return
}

// CommVolume accumulates volume(rank, d) into a RankCount square matrix,
// entry (i, j) holding the values rank i sends to rank j per exchange
func (t *Topology) CommVolume(volume func(rank, d int) int) *sparse.CSR {
	dok := sparse.NewDOK(t.RankCount, t.RankCount)
	for r := 0; r < t.RankCount; r++ {
		for d := 0; d < NumDirections(t.Dims); d++ {
			n := t.Neighbour(r, d)
			if n < 0 {
				continue
			}
			if v := volume(r, d); v > 0 {
				dok.Set(r, n, dok.At(r, n)+float64(v))
			}
		}
	}
	return dok.ToCSR()
}

// SendTotals sums each row of a CommVolume matrix
func SendTotals(m *sparse.CSR) (totals []float64) {
	nr, _ := m.Dims()
	totals = make([]float64, nr)
	m.DoNonZero(func(i, j int, v float64) {
		totals[i] += v
	})
	return
}

// Imbalance is the ratio of the largest load to the mean load, 1 when
// perfectly balanced
func Imbalance(loads []float64) float64 {
	if len(loads) == 0 {
		return 1
	}
	mean := floats.Sum(loads) / float64(len(loads))
	if mean == 0 {
		return 1
	}
	return floats.Max(loads) / mean
}

// SiteLoads returns the interior level 0 sites of every rank
func (t *Topology) SiteLoads() (loads []float64) {
	loads = make([]float64, t.RankCount)
	for r := range loads {
		n := t.LocalSize(r)
		loads[r] = float64(n[0] * n[1] * n[2])
	}
	return
}

// LocalSize is the number of interior level 0 sites of rank per axis
func (t *Topology) LocalSize(rank int) (n [3]int) {
	c := t.Coords(rank)
	for a := 0; a < 3; a++ {
		n[a] = t.parts[a].GetBucketDimension(c[a])
	}
	return
}

func (t *Topology) String() string {
	return fmt.Sprintf("%dD topology of %d ranks as %v, periodic %v, halo %d",
		t.Dims, t.RankCount, t.RankDims, t.Periodic, t.Halo)
}
