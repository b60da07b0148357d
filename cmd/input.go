package cmd

import (
	"fmt"
	"os"

	"github.com/notargets/golbm/InputParameters"
	"github.com/notargets/golbm/hierarchy"
	"github.com/notargets/golbm/topology"
)

const exampleFile = `
########################################
Title: "Channel with refinement"
Dims: 2
NX: 64
NY: 32
BX: 2.
BY: 1.
NumLevels: 2
NumRegions: 1
AutoSubGrids: true
Padding: {XMin: 0.05, XMax: 0.05, YMin: 0.05, YMax: 0.05}
Refinements:
  - [{XMin: 0.5, XMax: 1.5, YMin: 0.25, YMax: 0.75}]
Periodic: [true, false, false]
RankDims: [0, 0, 0] # Zero entries are chosen automatically
Bodies:
  - {Center: [1., 0.5, 0.], Radius: 0.1, NumMarkers: 64}
########################################
`

func readInput(file string) (ip *InputParameters.LBM, err error) {
	var (
		data []byte
	)
	if len(file) == 0 {
		fmt.Printf("Example File:%s\n", exampleFile)
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputFile)")
	}
	if data, err = os.ReadFile(file); err != nil {
		return
	}
	ip = &InputParameters.LBM{}
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return
}

// decompose builds the objects every rank shares
func decompose(ip *InputParameters.LBM, ranks int) (h *hierarchy.Hierarchy, topo *topology.Topology, err error) {
	if h, err = hierarchy.New(ip); err != nil {
		return
	}
	if topo, err = topology.New(h, ranks, ip.RankDims, h.DomainPeriodic); err != nil {
		return
	}
	err = topo.CheckSymmetry()
	return
}
