package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/golbm/InputParameters"
	"github.com/notargets/golbm/comm"
	"github.com/notargets/golbm/exchange"
	"github.com/notargets/golbm/lattice"
	"github.com/notargets/golbm/topology"
)

// DecomposeCmd represents the decompose command
var DecomposeCmd = &cobra.Command{
	Use:   "decompose",
	Short: "Print the decomposition of a grid hierarchy over a number of ranks",
	Long: `Print, for every rank, the level 0 extent, the neighbour table, the
writable range and the exchange buffer sizes of every grid, followed by the
rank to rank communication volume`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ip *InputParameters.LBM
		)
		file, _ := cmd.Flags().GetString("inputFile")
		if ip, err = readInput(file); err != nil {
			return
		}
		ip.Print()
		return Decompose(os.Stdout, ip, viper.GetInt("decompose.ranks"))
	},
}

func init() {
	rootCmd.AddCommand(DecomposeCmd)
	DecomposeCmd.Flags().StringP("inputFile", "I", "", "YAML file describing the domain and its refinements")
	DecomposeCmd.Flags().IntP("ranks", "n", 4, "number of ranks")
	viper.BindPFlag("decompose.ranks", DecomposeCmd.Flags().Lookup("ranks"))
}

// Decompose writes the decomposition report of ip over ranks to w
func Decompose(w io.Writer, ip *InputParameters.LBM, ranks int) (err error) {
	h, topo, err := decompose(ip, ranks)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "%s\n", topo)
	// Engines only size buffers here, nothing is sent
	tt := comm.NewLocalTransports(ranks)
	engines := make([]*exchange.Engine, ranks)
	for r := 0; r < ranks; r++ {
		if engines[r], err = exchange.New(comm.NewWorld(tt[r]), topo, lattice.Build(h, topo, r, ip.NumVelocities)); err != nil {
			return
		}
		e := engines[r]
		ext := topo.Extent(r)
		fmt.Fprintf(w, "Rank %d at %v: sites %v -- %v (%v), %v -- %v\n",
			r, topo.Coords(r), ext.Start, ext.End, topo.LocalSize(r), ext.StartPos, ext.EndPos)
		nb := e.Neighbours()
		fmt.Fprintf(w, "\tneighbours %v\n", nb[:topology.NumDirections(topo.Dims)])
		fmt.Fprintf(w, "\t%s\n", e.Layers)
		for _, g := range e.Arena.Grids() {
			bd := e.Buffers(g.Level(), g.Region())
			fmt.Fprintf(w, "\t%s\n\t\t%s\n\t\tsend %d values, recv %d\n",
				g, e.Descriptor(g), bd.TotalSend(), total(bd.Recv[:]))
		}
	}
	cv := topo.CommVolume(func(rank, d int) (n int) {
		for _, g := range engines[rank].Arena.Grids() {
			n += engines[rank].Buffers(g.Level(), g.Region()).Send[d]
		}
		return
	})
	fmt.Fprintf(w, "Communication volume per exchange (row sends to column):\n")
	for i := 0; i < ranks; i++ {
		for j := 0; j < ranks; j++ {
			fmt.Fprintf(w, "%8.0f", cv.At(i, j))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Site imbalance %.3f, communication imbalance %.3f\n",
		topology.Imbalance(topo.SiteLoads()), topology.Imbalance(topology.SendTotals(cv)))
	fmt.Fprintf(w, "Active cells %d\n", h.ActiveCellCount(h.Domain))
	log.Printf("decomposition of %d ranks done", ranks)
	return
}

func total(vals []int) (n int) {
	for _, v := range vals {
		n += v
	}
	return
}
