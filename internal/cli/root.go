package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "zkgate",
	Short: "Spending-policy gateway with zero-knowledge compliance proofs",
	Long: "Resolves agent spending policies from ENS text records, proves that a private amount\n" +
		"stays within the policy limit (Groth16 over BN254) and executes simulated payments.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: ./config.yaml or ./configs/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
