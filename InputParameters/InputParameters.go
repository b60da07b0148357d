package InputParameters

import (
	"errors"
	"fmt"
	"math"

	"github.com/ghodss/yaml"
)

var ErrInvalidInput = errors.New("invalid input parameters")

// Bounds of a refined region in physical units
type Bounds struct {
	XMin float64 `json:"XMin"`
	XMax float64 `json:"XMax"`
	YMin float64 `json:"YMin"`
	YMax float64 `json:"YMax"`
	ZMin float64 `json:"ZMin"`
	ZMax float64 `json:"ZMax"`
}

func (b Bounds) Array() [6]float64 {
	return [6]float64{b.XMin, b.XMax, b.YMin, b.YMax, b.ZMin, b.ZMax}
}

// Body is a ring (2D) or sphere (3D) of immersed boundary markers
type Body struct {
	Center     [3]float64 `json:"Center"`
	Radius     float64    `json:"Radius"`
	NumMarkers int        `json:"NumMarkers"`
}

// Parameters obtained from the YAML input file
type LBM struct {
	Title         string     `json:"Title"`
	Dims          int        `json:"Dims"`
	N             int        `json:"NX"` // Base lattice resolution in X, YAML 1.1 reads a bare N key as false
	M             int        `json:"NY"` // Base lattice resolution in Y
	K             int        `json:"NZ"` // Base lattice resolution in Z, 1 for 2D
	BX            float64    `json:"BX"`
	BY            float64    `json:"BY"`
	BZ            float64    `json:"BZ"`
	NumLevels     int        `json:"NumLevels"`
	NumRegions    int        `json:"NumRegions"`
	AutoSubGrids  bool       `json:"AutoSubGrids"`
	Padding       Bounds     `json:"Padding"`     // Auto sub-grid padding inside the parent TL
	Refinements   [][]Bounds `json:"Refinements"` // [level-1][region]
	RankDims      [3]int     `json:"RankDims"`    // Zero entries are chosen automatically
	Periodic      [3]bool    `json:"Periodic"`
	NumVelocities int        `json:"NumVelocities"`
	Bodies        []Body     `json:"Bodies"`
}

func (ip *LBM) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ip); err != nil {
		return err
	}
	ip.SetDefaults()
	return ip.Validate()
}

func (ip *LBM) SetDefaults() {
	if ip.Dims == 0 {
		ip.Dims = 3
	}
	if ip.Dims == 2 && ip.K == 0 {
		ip.K = 1
	}
	if ip.NumRegions == 0 {
		ip.NumRegions = 1
	}
	if ip.NumVelocities == 0 {
		if ip.Dims == 2 {
			ip.NumVelocities = 9
		} else {
			ip.NumVelocities = 19
		}
	}
}

// Dh is the level 0 lattice spacing
func (ip *LBM) Dh() float64 {
	return ip.BX / float64(ip.N)
}

func (ip *LBM) Validate() (err error) {
	switch {
	case ip.Dims != 2 && ip.Dims != 3:
		return fmt.Errorf("%w: Dims must be 2 or 3, have %d", ErrInvalidInput, ip.Dims)
	case ip.N <= 0 || ip.M <= 0 || ip.K <= 0:
		return fmt.Errorf("%w: base resolution must be positive, have NX, NY, NZ = %d, %d, %d",
			ErrInvalidInput, ip.N, ip.M, ip.K)
	case ip.Dims == 2 && ip.K != 1:
		return fmt.Errorf("%w: NZ must be 1 for a 2D lattice, have %d", ErrInvalidInput, ip.K)
	case ip.BX <= 0 || ip.BY <= 0 || (ip.Dims == 3 && ip.BZ <= 0):
		return fmt.Errorf("%w: domain extents must be positive", ErrInvalidInput)
	case ip.NumLevels < 0 || ip.NumRegions < 1:
		return fmt.Errorf("%w: NumLevels must be >= 0 and NumRegions >= 1, have %d, %d",
			ErrInvalidInput, ip.NumLevels, ip.NumRegions)
	case ip.NumVelocities <= 0:
		return fmt.Errorf("%w: NumVelocities must be positive", ErrInvalidInput)
	}
	var (
		dh   = ip.Dh()
		tol  = 1.e-9 * dh
		dhY  = ip.BY / float64(ip.M)
		dhZ  = ip.BZ / float64(ip.K)
		need = ip.NumLevels
	)
	if math.Abs(dhY-dh) > tol || (ip.Dims == 3 && math.Abs(dhZ-dh) > tol) {
		return fmt.Errorf("%w: lattice cells must be cubic, have dx, dy, dz = %g, %g, %g",
			ErrInvalidInput, dh, dhY, dhZ)
	}
	if ip.AutoSubGrids && need > 1 {
		need = 1 // Deeper levels are derived from the padding
	}
	if len(ip.Refinements) < need {
		return fmt.Errorf("%w: need refinement bounds for %d levels, have %d",
			ErrInvalidInput, need, len(ip.Refinements))
	}
	for lev := 0; lev < need; lev++ {
		if len(ip.Refinements[lev]) < ip.NumRegions {
			return fmt.Errorf("%w: level %d needs bounds for %d regions, have %d",
				ErrInvalidInput, lev+1, ip.NumRegions, len(ip.Refinements[lev]))
		}
	}
	for a := 0; a < 3; a++ {
		if ip.RankDims[a] < 0 {
			return fmt.Errorf("%w: negative rank dimension %v", ErrInvalidInput, ip.RankDims)
		}
	}
	for i, b := range ip.Bodies {
		if b.NumMarkers < 0 || b.Radius < 0 {
			return fmt.Errorf("%w: body %d has negative size", ErrInvalidInput, i)
		}
	}
	return
}

func (ip *LBM) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d]\t\t\t\t= Dimensions\n", ip.Dims)
	fmt.Printf("[%d, %d, %d]\t\t= Base Resolution\n", ip.N, ip.M, ip.K)
	fmt.Printf("[%g, %g, %g]\t\t= Domain Extents\n", ip.BX, ip.BY, ip.BZ)
	fmt.Printf("[%d]\t\t\t\t= Levels\n", ip.NumLevels)
	fmt.Printf("[%d]\t\t\t\t= Regions\n", ip.NumRegions)
	fmt.Printf("[%v]\t\t\t= Auto Sub-Grids\n", ip.AutoSubGrids)
	fmt.Printf("%v\t\t= Rank Dimensions\n", ip.RankDims)
	fmt.Printf("%v\t= Periodic\n", ip.Periodic)
	fmt.Printf("[%d]\t\t\t\t= Velocities\n", ip.NumVelocities)
	for lev, regs := range ip.Refinements {
		for reg, b := range regs {
			fmt.Printf("Refinements[L%d R%d] = %v\n", lev+1, reg, b.Array())
		}
	}
	for i, b := range ip.Bodies {
		fmt.Printf("Bodies[%d] = center %v, radius %g, %d markers\n",
			i, b.Center, b.Radius, b.NumMarkers)
	}
}
