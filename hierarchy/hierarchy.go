package hierarchy

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/notargets/golbm/InputParameters"
	"github.com/notargets/golbm/types"
)

var (
	ErrInsufficientResolution = errors.New("not enough base resolution to support this level")
	ErrPeriodicSeam           = errors.New("sub-grid touches only one edge of a periodic axis")
	ErrNoSuchGrid             = errors.New("no such level / region combination")
)

// TLWidth is the thickness of a transition layer in fine lattice sites
const TLWidth = 2

// GridSpec is the decomposition independent description of one grid
type GridSpec struct {
	Level, Region int
	Edges         types.Edges
	Size          [3]int     // Global lattice sites per axis
	Dh            float64    // Lattice spacing on this grid
	Periodic      [3]bool    // Grid spans a periodic domain axis edge to edge
	TL            [3][2]bool // Transition layer present on [axis][side]
}

func (gs *GridSpec) Key() types.GridKey { return types.NewGridKey(gs.Level, gs.Region) }

func (gs *GridSpec) NumSites() (n int) {
	return gs.Size[0] * gs.Size[1] * gs.Size[2]
}

// Hierarchy holds the GridSpec of every (level, region) pair. It is built
// once from the input parameters and is read only afterwards.
type Hierarchy struct {
	Dims           int
	NumLevels      int
	NumRegions     int
	BaseDh         float64
	Domain         types.Edges
	DomainPeriodic [3]bool
	specs          []GridSpec
}

func New(ip *InputParameters.LBM) (h *Hierarchy, err error) {
	var (
		dh = ip.Dh()
	)
	h = &Hierarchy{
		Dims:       ip.Dims,
		NumLevels:  ip.NumLevels,
		NumRegions: ip.NumRegions,
		BaseDh:     dh,
		specs:      make([]GridSpec, 1+ip.NumLevels*ip.NumRegions),
	}
	h.Domain = types.Edges{0, ip.BX, 0, ip.BY, 0, ip.BZ}
	for a := 0; a < ip.Dims; a++ {
		h.DomainPeriodic[a] = ip.Periodic[a]
	}
	h.specs[0] = GridSpec{
		Edges:    h.Domain,
		Size:     [3]int{ip.N, ip.M, ip.K},
		Dh:       dh,
		Periodic: h.DomainPeriodic,
	}
	for lev := 1; lev <= ip.NumLevels; lev++ {
		for reg := 0; reg < ip.NumRegions; reg++ {
			var gs *GridSpec
			if gs, err = h.buildSubGrid(ip, lev, reg, dh); err != nil {
				return nil, err
			}
			h.specs[h.Index(lev, reg)] = *gs
		}
		// Resolution of the next level
		dh /= 2.
	}
	log.Printf("Global grid edges computed and stored as:\n%s", h.Report())
	return
}

// buildSubGrid places one sub-grid from its parent, dh is the parent spacing
func (h *Hierarchy) buildSubGrid(ip *InputParameters.LBM, lev, reg int,
	dh float64) (gs *GridSpec, err error) {
	var (
		parent = h.Parent(lev, reg)
		tol    = 1.e-9 * dh
		label  = fmt.Sprintf("Level %d Region %d", lev, reg)
	)
	gs = &GridSpec{
		Level:  lev,
		Region: reg,
		Dh:     dh / 2.,
		Size:   [3]int{1, 1, 1},
		Edges:  parent.Edges,
	}
	snap := func(val float64) float64 { return math.Round(val/dh) * dh }
	if ip.AutoSubGrids && lev > 1 {
		// Padding is measured inward from the parent's transition layer
		pad := ip.Padding.Array()
		for a := 0; a < h.Dims; a++ {
			ax := types.Axis(a)
			gs.Edges.Set(ax, types.Min, parent.Edges.Get(ax, types.Min)+2.*dh+snap(pad[2*a]))
			gs.Edges.Set(ax, types.Max, parent.Edges.Get(ax, types.Max)-2.*dh-snap(pad[2*a+1]))
		}
	} else {
		ref := ip.Refinements[lev-1][reg].Array()
		for a := 0; a < h.Dims; a++ {
			ax := types.Axis(a)
			gs.Edges.Set(ax, types.Min, snap(ref[2*a]))
			gs.Edges.Set(ax, types.Max, snap(ref[2*a+1]))
		}
	}
	for a := 0; a < h.Dims; a++ {
		var (
			ax        = types.Axis(a)
			lo, hi    = gs.Edges.Get(ax, types.Min), gs.Edges.Get(ax, types.Max)
			shorthand = math.Abs(hi-lo) < tol
		)
		if shorthand {
			// Coincident edges ask for a grid spanning the parent on this axis
			lo, hi = parent.Edges.Get(ax, types.Min), parent.Edges.Get(ax, types.Max)
			gs.Edges.Set(ax, types.Min, lo)
			gs.Edges.Set(ax, types.Max, hi)
			gs.Size[a] = 2 * parent.Size[a]
		} else {
			gs.Size[a] = int(math.Round(2. * (hi - lo) / dh))
		}
		if gs.Size[a] <= 0 {
			return nil, fmt.Errorf("%s sub-grid has size %d in %s-direction: %w",
				label, gs.Size[a], ax, ErrInsufficientResolution)
		}
		if !shorthand {
			if lo <= parent.Edges.Get(ax, types.Min)+tol {
				log.Printf("warning: %s %s grid start is coincident with or outside its parent grid",
					label, ax)
			}
			if hi >= parent.Edges.Get(ax, types.Max)-tol {
				log.Printf("warning: %s %s grid end is coincident with or outside its parent grid",
					label, ax)
			}
		}
		touchMin := math.Abs(lo-h.Domain.Get(ax, types.Min)) < tol
		touchMax := math.Abs(hi-h.Domain.Get(ax, types.Max)) < tol
		if h.DomainPeriodic[a] {
			switch {
			case touchMin && touchMax:
				gs.Periodic[a] = true
			case touchMin || touchMax:
				return nil, fmt.Errorf("%s on %s-axis: %w", label, ax, ErrPeriodicSeam)
			}
		}
		gs.TL[a][types.Min] = !touchMin
		gs.TL[a][types.Max] = !touchMax
	}
	return
}

// Index maps a (level, region) pair onto the flat grid arena
func (h *Hierarchy) Index(level, region int) (idx int) {
	switch {
	case level == 0 && region == 0:
		return 0
	case level < 1 || level > h.NumLevels || region < 0 || region >= h.NumRegions:
		return -1
	}
	return 1 + (level - 1) + region*h.NumLevels
}

func (h *Hierarchy) NumGrids() int { return len(h.specs) }

func (h *Hierarchy) Spec(level, region int) (gs *GridSpec) {
	idx := h.Index(level, region)
	if idx < 0 {
		return nil
	}
	return &h.specs[idx]
}

// SpecAt returns the grid spec stored at arena index idx
func (h *Hierarchy) SpecAt(idx int) *GridSpec { return &h.specs[idx] }

func (h *Hierarchy) Parent(level, region int) (gs *GridSpec) {
	if level <= 1 {
		return &h.specs[0]
	}
	return h.Spec(level-1, region)
}

// CellCount returns the approximate number of cells of a grid inside bounds.
// Bounds are not snapped to cell edges.
func (h *Hierarchy) CellCount(level, region int, bounds types.Edges) (count int64, err error) {
	var (
		gs = h.Spec(level, region)
	)
	if gs == nil {
		return 0, fmt.Errorf("L%d R%d: %w", level, region, ErrNoSuchGrid)
	}
	u, overlap := bounds.Box().Intersect(gs.Edges.Box(), h.Dims)
	if !overlap {
		return 0, nil
	}
	count = int64(math.Round(u.Volume(h.Dims) / math.Pow(gs.Dh, float64(h.Dims))))
	return
}

// ActiveCellCount sums the cells of every grid inside bounds, deducting the
// coarse cells that are covered by a finer grid.
func (h *Hierarchy) ActiveCellCount(bounds types.Edges) (count int64) {
	var (
		refine = int64(1) << uint(h.Dims)
	)
	count, _ = h.CellCount(0, 0, bounds)
	for lev := 1; lev <= h.NumLevels; lev++ {
		for reg := 0; reg < h.NumRegions; reg++ {
			c, _ := h.CellCount(lev, reg, bounds)
			count += c - c/refine
		}
	}
	return
}

func (h *Hierarchy) Report() string {
	var (
		sb strings.Builder
	)
	for idx := range h.specs {
		gs := &h.specs[idx]
		fmt.Fprintf(&sb, "L%d R%d\t%s\tsize %v\n", gs.Level, gs.Region, gs.Edges, gs.Size)
	}
	return sb.String()
}
