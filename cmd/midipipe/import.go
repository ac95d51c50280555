package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Michael-F-Ellis/midipipe/internal/model"
	"github.com/Michael-F-Ellis/midipipe/internal/report"
)

func newImportCmd() *cobra.Command {
	var (
		recursive bool
		category  string
		destDir   string
		reportOut string
	)
	cmd := &cobra.Command{
		Use:   "import <source-dir>",
		Short: "Walk a directory of MIDI files through the import pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Hour)
			defer cancel()

			rt, st, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			batch, err := rt.ImportDirectory(ctx, args[0], destDir, recursive, category)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			printBatchSummary(batch)
			if reportOut != "" {
				if err := writeReport(batch, reportOut); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recurse into subdirectories")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category label attached to every imported file")
	cmd.Flags().StringVarP(&destDir, "dest", "d", ".", "root directory for renamed, canonical output files")
	cmd.Flags().StringVar(&reportOut, "report", "", "write an HTML summary of the batch to this path")
	return cmd
}

func printBatchSummary(b *model.ImportBatch) {
	fmt.Printf("batch %s: imported=%d skipped=%d errors=%d\n", b.ID, b.Imported, b.Skipped, b.ErrorCount)
	for _, e := range b.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}

func writeReport(b *model.ImportBatch, path string) error {
	return os.WriteFile(path, report.RenderBatch(b), 0o644)
}
