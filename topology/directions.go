package topology

// Direction is a unit offset between neighbouring ranks
type Direction [3]int

// Directions lists every neighbour direction in 3D. Pairs are adjacent so
// the opposite of direction d is d^1, and the first eight have no z
// component so they double as the 2D set.
var Directions = [26]Direction{
	{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0},
	{1, 1, 0}, {-1, -1, 0}, {1, -1, 0}, {-1, 1, 0},
	{0, 0, 1}, {0, 0, -1},
	{0, 1, 1}, {0, -1, -1}, {0, -1, 1}, {0, 1, -1},
	{1, 0, 1}, {-1, 0, -1}, {-1, 0, 1}, {1, 0, -1},
	{1, 1, 1}, {-1, -1, -1}, {-1, -1, 1}, {1, 1, -1},
	{1, -1, 1}, {-1, 1, -1}, {-1, 1, 1}, {1, -1, -1},
}

const MaxDirections = len(Directions)

func Opposite(d int) int { return d ^ 1 }

// NumDirections is 3^dims - 1
func NumDirections(dims int) int {
	if dims == 2 {
		return 8
	}
	return MaxDirections
}

// ActiveAxes returns the axes along which d moves
func (d Direction) ActiveAxes() (axes []int) {
	for a, c := range d {
		if c != 0 {
			axes = append(axes, a)
		}
	}
	return
}

// Kind is 1 for a face, 2 for an edge and 3 for a corner neighbour
func (d Direction) Kind() int { return len(d.ActiveAxes()) }
