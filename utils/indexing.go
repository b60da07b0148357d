package utils

import "fmt"

type Index []int

func NewRange(rmin, rmax int) (r Index) {
	var (
		size = rmax - rmin + 1 // INCLUSIVE RANGE
	)
	if size < 0 {
		size = 0
	}
	r = make(Index, size)
	for i := range r {
		r[i] = i + rmin
	}
	return
}

// Filter returns the entries of I for which keep is true, order preserved
func (I Index) Filter(keep func(val int) bool) (r Index) {
	for _, val := range I {
		if keep(val) {
			r = append(r, val)
		}
	}
	return
}

/*
Layout addresses a flattened 4D array of lattice sites (i, j, k) carrying NV
values each. The value index varies fastest, then k, then j, then i, which is
also the order in which communication buffers are serialized.
*/
type Layout struct {
	N  [3]int
	NV int
}

func NewLayout(N [3]int, NV int) (l Layout) {
	for a := 0; a < 3; a++ {
		if N[a] < 0 {
			panic(fmt.Errorf("negative layout dimension: %v", N))
		}
	}
	return Layout{N: N, NV: NV}
}

func (l Layout) Len() int { return l.N[0] * l.N[1] * l.N[2] * l.NV }

func (l Layout) NumSites() int { return l.N[0] * l.N[1] * l.N[2] }

// Site is the offset of the first value stored at site (i, j, k)
func (l Layout) Site(i, j, k int) int {
	return ((i*l.N[1]+j)*l.N[2] + k) * l.NV
}

func (l Layout) Offset(i, j, k, v int) int {
	return l.Site(i, j, k) + v
}
