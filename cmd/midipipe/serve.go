package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// newServeCmd is a placeholder for a future search API surface over the
// repository layer. It exists so the command surface's shape is stable
// even though nothing backs it yet.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Host the search API over the repository layer (not implemented)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("serve: search API surface is not implemented")
		},
	}
}
