package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystem(t *testing.T) {
	assert.Equal(t, -1, FirstNaN(nil))
	assert.Equal(t, -1, FirstNaN([]float64{1, 2, math.Inf(1)}))
	assert.Equal(t, 1, FirstNaN([]float64{1, math.NaN(), math.NaN()}))
	assert.Contains(t, MemReport(1<<17), "fields 1.0 MiB")
	assert.Contains(t, MemReport(0), "fields 0.0 MiB")
}
