package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify items without matching",
		Long: `Run only the classification hierarchy over a tenant's unprocessed
items and print the assigned codes. Useful for debugging rule tables
before a full matching run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.storage.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			items, err := a.storage.GetItemsToMatch(cmd.Context(), tenantID)
			if err != nil {
				return fmt.Errorf("failed to load items: %w", err)
			}

			for i := range items {
				item := &items[i]
				code, classifyErr := a.classifier.Classify(item)
				if classifyErr != nil {
					cmd.Printf("%-20s ERROR %v\n", item.ID, classifyErr)
					continue
				}
				cmd.Printf("%-20s %4d  %s / %s\n", item.ID, code, item.Family, item.TypeName)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant to classify (required)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}
