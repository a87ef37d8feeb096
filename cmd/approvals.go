// File: cmd/approvals.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
	"github.com/archokshi/optiinfra-sub000/internal/config"
	"github.com/archokshi/optiinfra-sub000/internal/observability"
)

// newApprovalsCmd creates the `approvals` command group. Approvals live in the
// engine's approval store; this wiring builds the engine in-process, so the
// commands see only approvals created within the same invocation (for example
// a `coordinate` run driven through a config-scripted pipeline). A deployment
// that needs durable approvals plugs a shared approval.Store implementation
// into the same manager.
func newApprovalsCmd() *cobra.Command {
	approvalsCmd := &cobra.Command{
		Use:   "approvals",
		Short: "Inspect and decide pending human approvals",
	}

	approvalsCmd.AddCommand(newApprovalsListCmd())
	approvalsCmd.AddCommand(newApprovalsDecideCmd())
	return approvalsCmd
}

func newApprovalsListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists pending approvals for a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			customerID, _ := cmd.Flags().GetString("customer")

			components, err := initializeEngineComponents(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize engine components: %w", err)
			}
			defer components.Shutdown()

			pending := components.Approvals.ListPending(ctx, customerID)
			if len(pending) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No pending approvals for customer %s\n", customerID)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pending approvals for customer %s:\n", customerID)
			for _, a := range pending {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  recommendation=%s risk=%s requested=%s expires=%s\n",
					a.ID, a.RecommendationID, a.Risk,
					a.RequestedAt.Format("2006-01-02 15:04 MST"),
					a.ExpiresAt.Format("2006-01-02 15:04 MST"))
			}
			return nil
		},
	}

	listCmd.Flags().String("customer", "", "Customer whose approvals to list.")
	_ = listCmd.MarkFlagRequired("customer")
	return listCmd
}

func newApprovalsDecideCmd() *cobra.Command {
	decideCmd := &cobra.Command{
		Use:   "decide <approval-id>",
		Short: "Approves or rejects one pending approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			approve, _ := cmd.Flags().GetBool("approve")
			reject, _ := cmd.Flags().GetBool("reject")
			actor, _ := cmd.Flags().GetString("actor")
			reason, _ := cmd.Flags().GetString("reason")

			if approve == reject {
				return fmt.Errorf("exactly one of --approve or --reject is required")
			}
			decision := schemas.DecisionApprove
			if reject {
				decision = schemas.DecisionReject
			}

			components, err := initializeEngineComponents(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize engine components: %w", err)
			}
			defer components.Shutdown()

			if err := components.Approvals.ProcessApproval(ctx, args[0], decision, actor, reason); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Approval %s decided: %s by %s\n", args[0], decision, actor)
			return nil
		},
	}

	decideCmd.Flags().Bool("approve", false, "Approve the pending request.")
	decideCmd.Flags().Bool("reject", false, "Reject the pending request.")
	decideCmd.Flags().String("actor", "", "Identity of the human making the decision.")
	decideCmd.Flags().String("reason", "", "Free-form reason recorded with the decision.")
	_ = decideCmd.MarkFlagRequired("actor")
	return decideCmd
}
