package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "putscan"
	version = "v0.4.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("putscan failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Rank weekly cash-secured puts across a ticker universe",
		Version: version,
		Long: `putscan fetches the weekly put chain for every ticker in a universe,
scores each out-of-the-money put by return on the cash set aside, keeps
puts with a high probability of expiring worthless, and prints the best
one per ticker ranked by annualized return.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the putscan version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	})
	return rootCmd
}
