package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAnalyzePendingCmd() *cobra.Command {
	var pageSize int
	cmd := &cobra.Command{
		Use:   "analyze-pending",
		Short: "Retry analysis for every file whose analyzed_at is still unset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Hour)
			defer cancel()

			rt, st, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			analyzed, pending, err := rt.AnalyzePending(ctx, pageSize)
			if err != nil {
				return fmt.Errorf("analyze-pending: %w", err)
			}
			fmt.Printf("analyzed=%d still-pending=%d\n", analyzed, pending)
			return nil
		},
	}
	cmd.Flags().IntVar(&pageSize, "page-size", 100, "number of pending files to fetch per store round trip")
	return cmd
}
