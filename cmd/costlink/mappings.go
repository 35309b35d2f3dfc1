package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/costlink/costlink/internal/model"
)

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect and correct the mapping memory",
	}

	cmd.AddCommand(mappingsListCmd())
	cmd.AddCommand(mappingsHistoryCmd())
	cmd.AddCommand(mappingsSetCmd())

	return cmd
}

func mappingsListCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active mappings for a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			records, err := a.storage.GetActiveMappings(cmd.Context(), tenantID)
			if err != nil {
				return fmt.Errorf("failed to list mappings: %w", err)
			}

			for _, r := range records {
				cmd.Printf("%s -> %s  (%s by %s, since %s)\n",
					shortKey(r.CanonicalKey), r.PriceEntryID, r.Actor, r.CreatedBy,
					r.StartTS.Format("2006-01-02"))
			}
			cmd.Printf("%d active mappings\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant (required)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func mappingsHistoryCmd() *cobra.Command {
	var (
		tenantID     string
		canonicalKey string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show every mapping version for a canonical key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			records, err := a.storage.GetMappingHistory(cmd.Context(), tenantID, canonicalKey)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}

			for _, r := range records {
				end := "active"
				if r.EndTS != nil {
					end = r.EndTS.Format(time.RFC3339)
				}
				cmd.Printf("%s .. %-25s %s  (%s: %s)\n",
					r.StartTS.Format(time.RFC3339), end, r.PriceEntryID, r.Actor, r.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant (required)")
	cmd.Flags().StringVar(&canonicalKey, "key", "", "canonical key (required)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func mappingsSetCmd() *cobra.Command {
	var (
		tenantID     string
		canonicalKey string
		priceEntryID string
		createdBy    string
		reason       string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Correct a mapping",
		Long: `Close the active mapping for a canonical key and insert a new one
pointing at the given price entry. History is preserved; the superseded
row keeps its interval and the as-of report still reproduces it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			// The target must exist before it becomes the memory's answer.
			if _, err := a.storage.GetPriceEntryByID(cmd.Context(), priceEntryID); err != nil {
				return fmt.Errorf("price entry %s: %w", priceEntryID, err)
			}

			record := &model.MappingRecord{
				TenantID:     tenantID,
				CanonicalKey: canonicalKey,
				PriceEntryID: priceEntryID,
				Actor:        model.ActorCorrection,
				CreatedBy:    createdBy,
				Reason:       reason,
			}
			if err := a.storage.WriteMapping(cmd.Context(), record); err != nil {
				return fmt.Errorf("failed to write mapping: %w", err)
			}

			cmd.Printf("Mapping %s -> %s recorded\n", shortKey(canonicalKey), priceEntryID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant (required)")
	cmd.Flags().StringVar(&canonicalKey, "key", "", "canonical key (required)")
	cmd.Flags().StringVar(&priceEntryID, "price-entry", "", "target price entry id (required)")
	cmd.Flags().StringVar(&createdBy, "by", "cli", "who is making the correction")
	cmd.Flags().StringVar(&reason, "reason", "", "reason for the correction (required)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("price-entry")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12] + "…"
	}
	return key
}
