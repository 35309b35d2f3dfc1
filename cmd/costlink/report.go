package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/costlink/costlink/internal/report"
)

func reportCmd() *cobra.Command {
	var (
		tenantID string
		asOfStr  string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Reconstruct the mapping state at a point in time",
		Long: `Print every item in a tenant joined to the mapping that was active
at the given instant and that mapping's price entry. The same tenant and
timestamp always produce identical output, including row order.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asOf := time.Now().UTC()
			if asOfStr != "" {
				parsed, err := time.Parse(time.RFC3339, asOfStr)
				if err != nil {
					return fmt.Errorf("invalid --as-of timestamp %q: %w", asOfStr, err)
				}
				asOf = parsed
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			eng := report.NewEngine(a.storage)
			summary, err := eng.Report(cmd.Context(), tenantID, asOf)
			if err != nil {
				return err
			}

			for _, row := range summary.Rows {
				if row.Mapped {
					cmd.Printf("%-20s %4d %-30s %s %s\n",
						row.ItemID, row.Code, row.Description, row.UnitPrice, row.Currency)
				} else {
					cmd.Printf("%-20s %4d %-30s (unmapped)\n", row.ItemID, row.Code, row.Family)
				}
			}

			cmd.Printf("\n%d mapped, %d unmapped as of %s\n",
				summary.MappedCount, summary.UnmappedCount, asOf.Format(time.RFC3339))
			currencies := make([]string, 0, len(summary.TotalByCurrency))
			for currency := range summary.TotalByCurrency {
				currencies = append(currencies, currency)
			}
			sort.Strings(currencies)
			for _, currency := range currencies {
				cmd.Printf("  total %s: %s\n", currency, summary.TotalByCurrency[currency].StringFixed(2))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant (required)")
	cmd.Flags().StringVar(&asOfStr, "as-of", "", "RFC3339 timestamp (default: now)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}
