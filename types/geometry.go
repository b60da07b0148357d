package types

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Axis labels a Cartesian direction of the lattice
type Axis uint8

const (
	X Axis = iota
	Y
	Z
)

var AxisNames = [3]string{"X", "Y", "Z"}

func (a Axis) String() string {
	if int(a) < len(AxisNames) {
		return AxisNames[a]
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// Side selects the lower or upper end of an axis
type Side uint8

const (
	Min Side = iota
	Max
)

func (s Side) String() string {
	if s == Min {
		return "Min"
	}
	return "Max"
}

// Edges stores min/max physical positions per axis in the order
// XMin, XMax, YMin, YMax, ZMin, ZMax
type Edges [6]float64

func (e Edges) Get(a Axis, s Side) float64 { return e[2*int(a)+int(s)] }

func (e *Edges) Set(a Axis, s Side, val float64) { e[2*int(a)+int(s)] = val }

func (e Edges) Length(a Axis) float64 { return e.Get(a, Max) - e.Get(a, Min) }

func (e Edges) Box() Box {
	return Box{
		Lo: [3]float64{e[0], e[2], e[4]},
		Hi: [3]float64{e[1], e[3], e[5]},
	}
}

func (e Edges) String() string {
	return fmt.Sprintf("%f -- %f\t%f -- %f\t%f -- %f", e[0], e[1], e[2], e[3], e[4], e[5])
}

// Box is an axis aligned box in physical space. Only the first Dims axes
// take part in intersection and volume calculations.
type Box struct {
	Lo, Hi [3]float64
}

// Intersect returns the overlap of two boxes over the first dims axes.
// Boxes that only touch on a face do not overlap.
func (b Box) Intersect(o Box, dims int) (u Box, overlap bool) {
	u = b
	for a := 0; a < dims; a++ {
		u.Lo[a] = math.Max(b.Lo[a], o.Lo[a])
		u.Hi[a] = math.Min(b.Hi[a], o.Hi[a])
		if u.Hi[a] <= u.Lo[a] {
			return Box{}, false
		}
	}
	overlap = true
	return
}

func (b Box) Volume(dims int) (vol float64) {
	var (
		lengths = make([]float64, dims)
	)
	for a := 0; a < dims; a++ {
		lengths[a] = b.Hi[a] - b.Lo[a]
		if lengths[a] <= 0 {
			return 0
		}
	}
	vol = floats.Prod(lengths)
	return
}

func (b Box) Contains(pos [3]float64, dims int) bool {
	for a := 0; a < dims; a++ {
		if pos[a] < b.Lo[a] || pos[a] >= b.Hi[a] {
			return false
		}
	}
	return true
}
