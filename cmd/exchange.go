package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/golbm/InputParameters"
	"github.com/notargets/golbm/comm"
	"github.com/notargets/golbm/exchange"
	"github.com/notargets/golbm/hierarchy"
	"github.com/notargets/golbm/ibm"
	"github.com/notargets/golbm/lattice"
	"github.com/notargets/golbm/topology"
	"github.com/notargets/golbm/utils"
)

// ExchangeCmd represents the exchange command
var ExchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Run halo exchange cycles on in-process ranks and verify every halo site",
	Long: `Run a number of exchange cycles with one goroutine per rank. Each cycle
fills every grid with a field computed from global indices, exchanges the
halos and checks the received values, then gathers the markers of every
body on its owner and scatters a force back.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ip *InputParameters.LBM
		)
		file, _ := cmd.Flags().GetString("inputFile")
		if ip, err = readInput(file); err != nil {
			return
		}
		ip.Print()
		return Exchange(ip, viper.GetInt("exchange.ranks"), viper.GetInt("exchange.steps"))
	},
}

func init() {
	rootCmd.AddCommand(ExchangeCmd)
	ExchangeCmd.Flags().StringP("inputFile", "I", "", "YAML file describing the domain and its refinements")
	ExchangeCmd.Flags().IntP("ranks", "n", 4, "number of goroutine ranks")
	ExchangeCmd.Flags().IntP("steps", "s", 10, "number of exchange cycles")
	viper.BindPFlag("exchange.ranks", ExchangeCmd.Flags().Lookup("ranks"))
	viper.BindPFlag("exchange.steps", ExchangeCmd.Flags().Lookup("steps"))
}

func Exchange(ip *InputParameters.LBM, ranks, steps int) (err error) {
	h, topo, err := decompose(ip, ranks)
	if err != nil {
		return
	}
	log.Printf("%s", topo)
	return comm.Run(ranks, func(w *comm.Comm) error {
		return runRank(w, ip, h, topo, steps)
	})
}

// runRank is the work of one rank, whatever the transport
func runRank(w *comm.Comm, ip *InputParameters.LBM, h *hierarchy.Hierarchy,
	topo *topology.Topology, steps int) (err error) {
	var (
		e      *exchange.Engine
		mw     *comm.Comm
		bodies = make([]*ibm.Body, len(ip.Bodies))
		start  = time.Now()
	)
	if e, err = exchange.New(w, topo, lattice.Build(h, topo, w.Rank(), ip.NumVelocities)); err != nil {
		return
	}
	if err = e.BuildSubCommunicators(); err != nil {
		return
	}
	// Markers travel on their own context so their tags never meet the halo tags
	all := make([]int, w.Size())
	for r := range all {
		all[r] = r
	}
	if mw, err = w.Create(all, "markers"); err != nil {
		return
	}
	for i, b := range ip.Bodies {
		bodies[i] = ibm.Distribute(ibm.NewBody(i, ip.Dims, b), topo, w.Rank())
	}
	for step := 0; step < steps; step++ {
		var checked, markers int
		if checked, err = e.SyntheticCycle(step); err != nil {
			return
		}
		for _, body := range bodies {
			var n int
			if n, err = aggregate(mw, body); err != nil {
				return
			}
			markers += n
		}
		if w.Rank() == 0 {
			log.Printf("step %d: rank 0 verified %d halo values, owns %d markers, %s",
				step, checked, markers, utils.MemReport(e.Arena.FieldValues()))
		}
	}
	if err = w.Barrier(); err != nil {
		return
	}
	if w.Rank() == 0 {
		log.Printf("%d steps on %d ranks in %v", steps, w.Size(), time.Since(start))
	}
	return
}

// aggregate gathers the markers of body on its owner, which returns a
// restoring force toward the centroid to every marker. The owner reports
// the number of markers gathered.
func aggregate(w *comm.Comm, body *ibm.Body) (gathered int, err error) {
	var (
		counts    []ibm.RankCount
		layout    *ibm.MarkerLayout
		positions []float64
		forces    []float64
	)
	if counts, err = ibm.GatherMarkerCounts(w, body); err != nil {
		return
	}
	if w.Rank() == body.OwningRank {
		layout = ibm.NewMarkerLayout(body, counts)
	}
	if positions, err = ibm.GatherMarkerPositions(w, body, layout); err != nil {
		return
	}
	if w.Rank() == body.OwningRank {
		gathered = layout.Total
		forces = make([]float64, len(positions))
		for i := range positions {
			forces[i] = body.Centroid[i%body.Dims] - positions[i]
		}
	}
	if err = ibm.ScatterMarkerForces(w, body, layout, forces); err != nil {
		return
	}
	for _, m := range body.Markers {
		for a := 0; a < body.Dims; a++ {
			if m.Force[a] != body.Centroid[a]-m.Position[a] {
				return gathered, fmt.Errorf("rank %d body %d marker %d received force %v",
					w.Rank(), body.ID, m.ID, m.Force)
			}
		}
	}
	return
}
