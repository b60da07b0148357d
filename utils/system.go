package utils

import (
	"fmt"
	"math"
	"runtime"
)

// MemReport sets the field storage of a rank, fieldValues float64 values,
// against the heap of the whole process
func MemReport(fieldValues int) string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return fmt.Sprintf("fields %s, heap %s, sys %s, %d GCs",
		mib(8*uint64(fieldValues)), mib(m.HeapAlloc), mib(m.Sys), m.NumGC)
}

func mib(b uint64) string { return fmt.Sprintf("%.1f MiB", float64(b)/(1<<20)) }

// FirstNaN returns the index of the first NaN in vals, or -1
func FirstNaN(vals []float64) int {
	for i, f := range vals {
		if math.IsNaN(f) {
			return i
		}
	}
	return -1
}
