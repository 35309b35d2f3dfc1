package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/costlink/costlink/internal/engine"
)

func matchCmd() *cobra.Command {
	var (
		tenantID string
		workers  int
		actor    string
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Run a matching batch for a tenant",
		Long: `Match every unprocessed schedule item in a tenant against the price
book. Auto-accepted matches are written to the mapping memory; everything
else is queued for manual review or rejected, always with a reason.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.storage.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			eng := a.matchingEngine(engine.Options{
				Actor:        actor,
				Workers:      workers,
				ShowProgress: true,
			})

			stats, err := eng.Run(cmd.Context(), tenantID)
			if err != nil {
				return fmt.Errorf("matching run failed: %w", err)
			}

			cmd.Printf("Matched %d items in %s\n", stats.TotalItems, stats.Duration.Round(time.Millisecond))
			cmd.Printf("  auto-accepted: %d\n", stats.AutoAccepted)
			cmd.Printf("  manual review: %d\n", stats.ManualReview)
			cmd.Printf("  rejected:      %d\n", stats.Rejected)
			if stats.Failed > 0 {
				cmd.Printf("  failed:        %d (see log)\n", stats.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant to match (required)")
	cmd.Flags().IntVar(&workers, "workers", 4, "parallel evaluation workers")
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor recorded on results and mappings")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}
