package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// CreateRootCmd creates the single root member of an empty tree.
// Usage: ./engine create-root --email admin@example.com --name Admin
func CreateRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-root",
		Short: "Create the root member of an empty tree",
		RunE:  createRoot,
	}
	cmd.Flags().String("email", "", "Root member email")
	cmd.Flags().String("name", "", "Root member name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func createRoot(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	return withApp(cmd, func(ctx context.Context, a *app) error {
		root, err := a.tree.CreateRoot(ctx, email, name)
		if err != nil {
			return err
		}
		log.Info().Uint("member_id", root.ID).Str("email", root.Email).Msg("root created")
		return nil
	})
}

func RunMatchingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-matching",
		Short: "Run one daily matching cycle now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.matching.RunDaily(ctx)
				if err != nil {
					return err
				}
				for _, e := range res.Errors {
					log.Warn().Str("error", e).Msg("matching failure")
				}
				return nil
			})
		},
	}
}

// RetryFailedCmd re-submits a failed transaction under its original reference.
func RetryFailedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-failed <transaction-id>",
		Short: "Retry a failed transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid transaction id %q: %w", args[0], err)
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				txn, err := a.wallet.RetryFailed(ctx, uint(id))
				if err != nil {
					return err
				}
				log.Info().Uint("transaction_id", txn.ID).Str("status", string(txn.Status)).Msg("retry finished")
				return nil
			})
		},
	}
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg := loadConfig()
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	a.start(ctx)

	err = fn(ctx, a)
	cancel()
	a.close()
	return err
}
