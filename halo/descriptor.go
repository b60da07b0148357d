package halo

import "fmt"

// Descriptor is the inclusive local index range of the sites a rank may
// write on one grid: neither receive layer nor transition layer.
type Descriptor struct {
	Level, Region int
	Start, End    [3]int
	WritableCount int
}

func (d Descriptor) HasData() bool { return d.WritableCount > 0 }

func (d Descriptor) String() string {
	return fmt.Sprintf("L%d R%d writable %v -- %v (%d sites)",
		d.Level, d.Region, d.Start, d.End, d.WritableCount)
}

// Writable computes the descriptor of g from its full local extent
func Writable(g Geometry, l *Layers) (d Descriptor) {
	d = Descriptor{Level: g.Level(), Region: g.Region()}
	for a := 0; a < 3; a++ {
		d.Start[a], d.End[a] = 0, g.Extent(a)-1
	}
	return Shift(g, l, d)
}

// Shift moves the bounds of d inward past receive layers and transition
// layers. Applying it to its own result changes nothing.
func Shift(g Geometry, l *Layers, d Descriptor) Descriptor {
	for a := 0; a < l.Dims; a++ {
		lo, hi := d.Start[a], d.End[a]
		for lo <= hi && l.OnAnyRecv(a, g.Position(a, lo)) {
			lo++
		}
		for hi >= lo && l.OnAnyRecv(a, g.Position(a, hi)) {
			hi--
		}
		for pass := 0; pass < 2; pass++ {
			if lo <= hi && InTransitionLayer(g, a, g.Position(a, lo)) {
				lo++
			}
			if hi >= lo && InTransitionLayer(g, a, g.Position(a, hi)) {
				hi--
			}
		}
		d.Start[a], d.End[a] = lo, hi
	}
	d.WritableCount = 1
	for a := 0; a < 3; a++ {
		if d.End[a] < d.Start[a] {
			d.WritableCount = 0
			break
		}
		d.WritableCount *= d.End[a] - d.Start[a] + 1
	}
	return d
}
