package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Michael-F-Ellis/midipipe/internal/jsonpattern"
	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

func newExportPatternCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-pattern <midi-file> <json-file>",
		Short: "Export a single MIDI file as a DAW pattern JSON document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			parsed, err := smf.Parse(raw)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			data, err := jsonpattern.Marshal(jsonpattern.FromSMF(parsed))
			if err != nil {
				return fmt.Errorf("marshaling pattern: %w", err)
			}
			return os.WriteFile(args[1], data, 0o644)
		},
	}
	return cmd
}
