package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func resetWeeklyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-weekly <familyID>",
		Short: "Zero every member's weekly points in a family",
		Long: `Zero weekly points for every member of a family. Total points are kept.

This is the same bulk reset the scheduler performs at the weekly rollover,
without crowning a champion.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := bootstrap()
			if err != nil {
				return err
			}
			defer st.Close()

			familyID := args[0]
			if _, err := st.GetFamily(cmd.Context(), familyID); err != nil {
				return err
			}
			n, err := st.ResetWeeklyPoints(cmd.Context(), familyID)
			if err != nil {
				return fmt.Errorf("reset weekly points: %w", err)
			}
			slog.Info("weekly points reset", "family_id", familyID, "members", n)
			fmt.Fprintf(cmd.OutOrStdout(), "reset weekly points for %d members\n", n)
			return nil
		},
	}
}
