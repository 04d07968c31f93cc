package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"github.com/xela07ax/zkspend-gateway/internal/policy"
	"github.com/xela07ax/zkspend-gateway/internal/prover"
)

var (
	proveAmount   string
	provePolicy   string
	proveMaxSpend string
	proveActions  string
	proveVersion  string
	proveTimeout  time.Duration
)

func init() {
	rootCmd.AddCommand(proveCmd)
	proveCmd.Flags().StringVar(&proveAmount, "amount", "", "Private amount to prove (decimal)")
	proveCmd.Flags().StringVar(&provePolicy, "policy", "", "ENS name to resolve the policy from")
	proveCmd.Flags().StringVar(&proveMaxSpend, "max-spend", "", "Offline policy: spending limit (instead of --policy)")
	proveCmd.Flags().StringVar(&proveActions, "actions", domain.DefaultAction, "Offline policy: comma-separated allowed actions")
	proveCmd.Flags().StringVar(&proveVersion, "version", domain.DefaultPolicyVersion, "Offline policy: version")
	proveCmd.Flags().DurationVar(&proveTimeout, "timeout", 2*time.Minute, "Overall timeout")
	_ = proveCmd.MarkFlagRequired("amount")
	proveCmd.MarkFlagsMutuallyExclusive("policy", "max-spend")
	proveCmd.MarkFlagsOneRequired("policy", "max-spend")
}

var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "Generate a compliance proof and print it as JSON",
	Example: "  zkgate prove --amount 12.5 --policy agent.zkspend.eth\n" +
		"  zkgate prove --amount 12.5 --max-spend 100 --actions payment,swap > proof.json",
	RunE: runProve,
}

func runProve(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	amount, err := decimal.NewFromString(proveAmount)
	if err != nil {
		return fmt.Errorf("invalid --amount: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), proveTimeout)
	defer cancel()

	var p domain.Policy
	if provePolicy != "" {
		resolver, closeRPC, err := a.resolver(ctx, nil, nil)
		if err != nil {
			return err
		}
		defer closeRPC()
		if p, err = resolver.ResolvePolicy(ctx, provePolicy); err != nil {
			return err
		}
	} else {
		p, err = policy.BuildPolicy("offline", policy.DefaultKeys(), policy.RawRecords{
			MaxSpend:       proveMaxSpend,
			AllowedActions: proveActions,
			Version:        proveVersion,
		}, time.Now())
		if err != nil {
			return err
		}
	}

	if !policy.IsAmountWithinLimit(p, amount) {
		return &domain.ComplianceError{Reason: domain.ReasonLimitExceeded, Amount: amount, MaxSpend: p.MaxSpend}
	}

	gen := prover.NewGenerator(a.artifacts(), a.proverOptions(), a.logger)
	proof, err := gen.GenerateProof(ctx, domain.ProofInputs{Amount: amount, MaxSpend: p.MaxSpend, Fingerprint: p.Fingerprint})
	if err != nil {
		return err
	}
	if proof.IsMock() {
		fmt.Fprintf(os.Stderr, "warning: mock proof (%s)\n", strings.TrimSpace(proof.MockReason))
	}

	return printJSON(domain.ProofResponse{Proof: proof, Policy: p.Summary()})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
