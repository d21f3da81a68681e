package cli

import (
	"github.com/spf13/cobra"
)

// NewOperationsCommand lists the operation catalog.
func NewOperationsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "operations",
		Aliases: []string{"ops"},
		Short:   "List the available bulk operations and their fields",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newBase(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			return a.render.Catalog(a.catalog)
		},
	}
}
