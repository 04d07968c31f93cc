package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xela07ax/zkspend-gateway/internal/prover"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Compile the compliance circuit and generate Groth16 keys",
	Long: "Runs a single-party trusted setup and writes the constraint system, proving key\n" +
		"and verifying key to the paths from the prover config section.\n" +
		"For development only: the setup randomness is not destroyed verifiably.",
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	paths := a.artifacts().Paths()
	if err := prover.Setup(paths, a.logger); err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	fmt.Printf("circuit:       %s\nproving key:   %s\nverifying key: %s\n", paths.Circuit, paths.ProvingKey, paths.VerifyingKey)
	return nil
}
