// File: cmd/coordinate.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
	"github.com/archokshi/optiinfra-sub000/internal/approval"
	"github.com/archokshi/optiinfra-sub000/internal/audit"
	"github.com/archokshi/optiinfra-sub000/internal/config"
	"github.com/archokshi/optiinfra-sub000/internal/conflict"
	"github.com/archokshi/optiinfra-sub000/internal/coordinator"
	"github.com/archokshi/optiinfra-sub000/internal/execution"
	"github.com/archokshi/optiinfra-sub000/internal/observability"
	"github.com/archokshi/optiinfra-sub000/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newCoordinateCmd creates and configures the `coordinate` command.
func newCoordinateCmd() *cobra.Command {
	coordinateCmd := &cobra.Command{
		Use:   "coordinate",
		Short: "Runs one coordination pass over a recommendation batch",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line flags correctly
			// override values from the config file and environment.
			if err := viper.BindPFlag("engine.max_concurrent_plans", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			if err := viper.BindPFlag("engine.step_timeout", cmd.Flags().Lookup("step-timeout")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-load so the flag overrides bound in PreRunE take effect.
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			file, _ := cmd.Flags().GetString("file")
			customerID, _ := cmd.Flags().GetString("customer")
			autoApprove, _ := cmd.Flags().GetBool("auto-approve")
			executeNow, _ := cmd.Flags().GetBool("execute")

			recommendations, err := readBatch(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			logger.Info("Coordinating batch",
				zap.String("customer_id", customerID),
				zap.Int("recommendations", len(recommendations)),
				zap.Bool("auto_approve", autoApprove),
				zap.Bool("execute", executeNow))

			components, err := initializeEngineComponents(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize engine components: %w", err)
			}
			defer components.Shutdown()

			result := components.Coordinator.Coordinate(ctx, customerID, recommendations,
				coordinator.Options{AutoApprove: autoApprove, ExecuteNow: executeNow})

			// Plans run asynchronously; a short-lived process must not exit
			// while any are still in flight.
			components.Coordinator.Wait()

			if components.Store != nil {
				if err := components.Store.PersistCoordinationResult(ctx, result); err != nil {
					logger.Error("Failed to persist coordination result", zap.Error(err))
				}
			}

			return printSummary(cmd.OutOrStdout(), components, result)
		},
	}

	coordinateCmd.Flags().StringP("file", "f", "", "Path to the recommendation batch JSON ('-' for stdin).")
	coordinateCmd.Flags().String("customer", "", "Customer the batch belongs to.")
	coordinateCmd.Flags().Bool("auto-approve", false, "Let low-risk recommendations proceed without a human gate.")
	coordinateCmd.Flags().Bool("execute", false, "Create and run execution plans for approved recommendations.")
	coordinateCmd.Flags().IntP("concurrency", "j", 0, "Maximum concurrently executing plans. (Overrides config/env)")
	coordinateCmd.Flags().Duration("step-timeout", 0, "Per-step execution deadline. (Overrides config/env)")

	_ = coordinateCmd.MarkFlagRequired("file")
	_ = coordinateCmd.MarkFlagRequired("customer")

	return coordinateCmd
}

// readBatch decodes the recommendation batch from the given file path, or
// from stdin when the path is "-".
func readBatch(stdin io.Reader, path string) ([]*schemas.Recommendation, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}

	var recommendations []*schemas.Recommendation
	if err := json.Unmarshal(raw, &recommendations); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	return recommendations, nil
}

// engineComponents holds the wired coordination engine for one CLI invocation.
// Recommendation batches are coordinated entirely in-process; only the audit
// trail survives the process when the database store is enabled.
type engineComponents struct {
	Coordinator  *coordinator.Coordinator
	Approvals    *approval.Manager
	Orchestrator *execution.Orchestrator
	Store        *store.Store
	DBPool       *pgxpool.Pool
}

// Shutdown releases held resources.
func (ec *engineComponents) Shutdown() {
	if ec.DBPool != nil {
		ec.DBPool.Close()
	}
	observability.Sync()
}

// initializeEngineComponents handles dependency injection.
func initializeEngineComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*engineComponents, error) {
	components := &engineComponents{}

	// 1. Audit sink: always the log, plus the database store when enabled.
	var sink schemas.AuditSink = audit.NewLogger(logger)
	if cfg.Database().Enabled {
		dbPool, err := pgxpool.New(ctx, cfg.Database().URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		components.DBPool = dbPool

		dbStore, err := store.New(ctx, dbPool, logger)
		if err != nil {
			components.Shutdown()
			return nil, fmt.Errorf("failed to initialize audit store: %w", err)
		}
		components.Store = dbStore
		sink = audit.NewFanout(sink, dbStore)
	}

	// 2. Step executor. The CLI rehearses plans against the simulator; real
	// effectors plug in through the same interface.
	executor := execution.NewRateLimitedExecutor(
		execution.NewSimulatedExecutor(logger, 0),
		cfg.Engine().ExecutorRate,
		cfg.Engine().ExecutorBurst,
	)

	// 3. Execution orchestrator.
	orchestrator, err := execution.NewOrchestrator(
		cfg.Engine(), execution.NewMemoryPlanStore(), executor,
		execution.NewTemplateRegistry(), sink, logger)
	if err != nil {
		components.Shutdown()
		return nil, fmt.Errorf("failed to initialize orchestrator: %w", err)
	}
	components.Orchestrator = orchestrator

	// 4. Approval manager.
	components.Approvals = approval.NewManager(approval.NewMemoryStore(), sink, logger)

	// 5. Coordinator facade.
	c, err := coordinator.New(
		conflict.NewDetector(logger), conflict.NewResolver(logger),
		components.Approvals, orchestrator, sink, logger)
	if err != nil {
		components.Shutdown()
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}
	components.Coordinator = c

	return components, nil
}

// printSummary renders the human-facing outcome of one coordination run.
func printSummary(w io.Writer, components *engineComponents, result *schemas.CoordinationResult) error {
	fmt.Fprintf(w, "\nCoordination complete for customer %s\n", result.CustomerID)
	fmt.Fprintf(w, "  recommendations: %d submitted, %d invalid, %d kept\n",
		result.TotalRecommendations, result.Invalid, result.KeptRecommendations)
	fmt.Fprintf(w, "  conflicts resolved: %d\n", len(result.Conflicts))
	for _, c := range result.Conflicts {
		fmt.Fprintf(w, "    [%s/%s] %s\n", c.Type, c.Severity, c.Resolution)
	}
	fmt.Fprintf(w, "  auto-approved: %d\n", result.AutoApproved)

	if len(result.Approvals) > 0 {
		fmt.Fprintf(w, "  pending approvals: %d\n", len(result.Approvals))
		for _, a := range result.Approvals {
			fmt.Fprintf(w, "    %s  recommendation=%s risk=%s expires=%s\n",
				a.ID, a.RecommendationID, a.Risk, a.ExpiresAt.Format("2006-01-02 15:04 MST"))
		}
	}

	if len(result.Plans) > 0 {
		fmt.Fprintf(w, "  plans: %d\n", len(result.Plans))
		for _, p := range result.Plans {
			final, err := components.Orchestrator.GetPlan(p.ID)
			if err != nil {
				return fmt.Errorf("failed to fetch plan %s: %w", p.ID, err)
			}
			fmt.Fprintf(w, "    %s  recommendation=%s status=%s steps=%d duration=%s\n",
				final.ID, final.RecommendationID, final.Status, len(final.Steps), final.Duration)
		}
	}

	return nil
}
