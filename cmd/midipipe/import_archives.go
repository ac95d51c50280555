package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Michael-F-Ellis/midipipe/internal/archive"
)

func newImportArchivesCmd() *cobra.Command {
	var (
		category string
		destDir  string
		stageDir string
	)
	cmd := &cobra.Command{
		Use:   "import-archives <collection-dir>",
		Short: "Extract every archive in a collection directory, then import the extracted MIDI files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Hour)
			defer cancel()

			collectionDir := args[0]
			if stageDir == "" {
				stageDir = filepath.Join(destDir, ".staging")
			}

			entries, err := os.ReadDir(collectionDir)
			if err != nil {
				return fmt.Errorf("reading %s: %w", collectionDir, err)
			}

			extractor := archive.NewExtractor(".mid", ".midi")
			var extracted, failed int
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				archivePath := filepath.Join(collectionDir, e.Name())
				archiveStage := filepath.Join(stageDir, e.Name())
				result, err := extractor.Extract(archivePath, archiveStage)
				if err != nil {
					log.WithField("archive", archivePath).Warnf("could not open: %v", err)
					failed++
					continue
				}
				extracted += len(result.ExtractedFiles)
				for _, extractErr := range result.Errors {
					log.WithField("archive", archivePath).Warnf("%v", extractErr)
				}
			}
			fmt.Printf("extracted %d MIDI files from %s (%d archives unreadable)\n", extracted, collectionDir, failed)

			rt, st, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			batch, err := rt.ImportDirectory(ctx, stageDir, destDir, true, category)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			printBatchSummary(batch)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "category label attached to every imported file")
	cmd.Flags().StringVarP(&destDir, "dest", "d", ".", "root directory for renamed, canonical output files")
	cmd.Flags().StringVar(&stageDir, "stage", "", "directory to extract archives into before import (default: <dest>/.staging)")
	return cmd
}
