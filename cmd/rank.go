package cmd

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/golbm/InputParameters"
	"github.com/notargets/golbm/comm"
	"github.com/notargets/golbm/comm/wsnet"
)

// RankCmd represents the rank command
var RankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Run one rank of a multi-process exchange over websockets",
	Long: `Run one rank of a multi-process exchange. Every process is given the
same input file and peer list, the peer at position r is the listen address
of rank r. Example for two ranks on one host:

	golbm rank -I run.yaml --rank 0 --peers localhost:7000,localhost:7001
	golbm rank -I run.yaml --rank 1 --peers localhost:7000,localhost:7001`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ip *InputParameters.LBM
		)
		file, _ := cmd.Flags().GetString("inputFile")
		if ip, err = readInput(file); err != nil {
			return
		}
		rank, _ := cmd.Flags().GetInt("rank")
		peers := viper.GetStringSlice("rank.peers")
		timeout := viper.GetDuration("rank.timeout")
		if rank == 0 {
			ip.Print()
		}
		return RunNetworkRank(ip, rank, peers, viper.GetInt("rank.steps"), timeout)
	},
}

func init() {
	rootCmd.AddCommand(RankCmd)
	RankCmd.Flags().StringP("inputFile", "I", "", "YAML file describing the domain and its refinements")
	RankCmd.Flags().Int("rank", 0, "rank of this process")
	RankCmd.Flags().StringSlice("peers", nil, "comma separated host:port of every rank, in rank order")
	RankCmd.Flags().IntP("steps", "s", 10, "number of exchange cycles")
	RankCmd.Flags().Duration("timeout", 30*time.Second, "time allowed for all peers to connect")
	viper.BindPFlag("rank.peers", RankCmd.Flags().Lookup("peers"))
	viper.BindPFlag("rank.steps", RankCmd.Flags().Lookup("steps"))
	viper.BindPFlag("rank.timeout", RankCmd.Flags().Lookup("timeout"))
}

// RunNetworkRank joins the websocket mesh of len(peers) ranks as rank
func RunNetworkRank(ip *InputParameters.LBM, rank int, peers []string, steps int,
	timeout time.Duration) (err error) {
	var (
		ln net.Listener
		tr *wsnet.Transport
	)
	if rank < 0 || rank >= len(peers) {
		return fmt.Errorf("rank %d needs a peer list of at least %d addresses, have %d",
			rank, rank+1, len(peers))
	}
	h, topo, err := decompose(ip, len(peers))
	if err != nil {
		return
	}
	if ln, err = net.Listen("tcp", peers[rank]); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if tr, err = wsnet.New(ctx, rank, ln, peers); err != nil {
		ln.Close()
		return
	}
	log.Printf("rank %d connected to %d peers", rank, len(peers)-1)
	if err = runRank(comm.NewWorld(tr), ip, h, topo, steps); err != nil {
		tr.Abort()
		return
	}
	return tr.Close()
}
