package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"github.com/xela07ax/zkspend-gateway/internal/infra/auth"
)

var (
	tokenKeyPath  string
	tokenAgent    string
	tokenScopes   []string
	tokenTTL      time.Duration
	tokenIssuer   string
	tokenAudience string
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenKeyPath, "key", "", "Path to the RSA private key (PEM)")
	tokenCmd.Flags().StringVar(&tokenAgent, "agent", "", "Agent ID")
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", []string{domain.ScopeProofsWrite, domain.ScopeProofsVerify}, "Granted scopes")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", auth.DefaultIssuer, "Token issuer (must match auth.issuer)")
	tokenCmd.Flags().StringVar(&tokenAudience, "audience", auth.DefaultAudience, "Token audience (must match auth.audience)")
	_ = tokenCmd.MarkFlagRequired("key")
	_ = tokenCmd.MarkFlagRequired("agent")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an RS256 bearer token for an agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(tokenKeyPath)
		if err != nil {
			return err
		}
		key, err := auth.ParseRSAPrivateKey(data)
		if err != nil {
			return err
		}
		token, err := auth.IssueToken(key, auth.TokenRequest{
			AgentID:  tokenAgent,
			Scopes:   tokenScopes,
			TTL:      tokenTTL,
			Issuer:   tokenIssuer,
			Audience: tokenAudience,
		})
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}
