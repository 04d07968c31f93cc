package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xela07ax/zkspend-gateway/internal/ens"
	"github.com/xela07ax/zkspend-gateway/internal/policy"
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyGetCmd, policyInvalidateCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect ENS spending policies",
}

var policyGetCmd = &cobra.Command{
	Use:   "get <ens-name>",
	Short: "Resolve a policy from ENS text records and print it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		resolver, closeRPC, err := a.resolver(ctx, nil, nil)
		if err != nil {
			return err
		}
		defer closeRPC()

		p, err := resolver.ResolvePolicy(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

var policyInvalidateCmd = &cobra.Command{
	Use:   "invalidate <ens-name|*>",
	Short: "Drop a cached policy on every gateway instance",
	Long:  "Deletes the shared Redis entry and publishes an invalidation signal. \"*\" clears all in-memory caches.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		rdb := a.redis()
		if rdb == nil {
			return errors.New("redis is not configured")
		}
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		name := args[0]
		if name != "*" {
			if name, err = ens.Normalize(name); err != nil {
				return err
			}
			if err := policy.NewRedisStore(rdb).Delete(ctx, name); err != nil {
				return err
			}
		}
		if err := policy.PublishInvalidation(ctx, rdb, name); err != nil {
			return err
		}
		fmt.Printf("invalidated %s\n", name)
		return nil
	},
}
