package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"github.com/xela07ax/zkspend-gateway/internal/prover"
)

var verifySignals bool

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolVar(&verifySignals, "signals", false, "Also decode commitment and validity flag")
}

var verifyCmd = &cobra.Command{
	Use:   "verify <proof.json|->",
	Short: "Verify a proof produced by `zkgate prove` or the API",
	Long:  "Accepts either a bare proof or a {proof, policy} response. Exits non-zero if the proof is rejected.",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	raw, err := readInput(args[0])
	if err != nil {
		return err
	}
	proof, err := decodeProof(raw)
	if err != nil {
		return err
	}

	v := prover.NewVerifier(a.artifacts(), a.proverOptions(), a.logger)
	var res domain.VerificationResult
	if verifySignals {
		res, err = v.VerifyWithSignals(context.Background(), proof)
	} else {
		res, err = v.Verify(context.Background(), proof)
	}
	if err != nil {
		return err
	}

	if err := printJSON(res); err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("proof rejected: %s", res.Error)
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// decodeProof понимает и голый ZKProof, и ответ {proof, policy}
func decodeProof(raw []byte) (*domain.ZKProof, error) {
	var wrapped struct {
		Proof *domain.ZKProof `json:"proof"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Proof != nil {
		return wrapped.Proof, nil
	}

	var proof domain.ZKProof
	if err := json.Unmarshal(raw, &proof); err != nil {
		return nil, fmt.Errorf("%w: %v", prover.ErrMalformedProof, err)
	}
	return &proof, nil
}
