package types

import (
	"fmt"
	"math"
)

/*
GridKey packs a (level, region) pair into one comparable value so the grids of
a hierarchy can be used as map keys and message tag offsets.
*/
type GridKey uint64

func NewGridKey(level, region int) (packed GridKey) {
	var (
		limit = math.MaxUint32
	)
	if level < 0 || level > limit || region < 0 || region > limit {
		panic(fmt.Errorf("unable to pack level %d and region %d into a grid key",
			level, region))
	}
	packed = GridKey(uint64(region) + uint64(level)<<32)
	return
}

func (gk GridKey) Level() int { return int(gk >> 32) }

func (gk GridKey) Region() int { return int(gk & math.MaxUint32) }

func (gk GridKey) String() string {
	return fmt.Sprintf("L%d R%d", gk.Level(), gk.Region())
}
