package cli

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/bulkedge/edgeadmin/internal/mcpserver"
	"github.com/bulkedge/edgeadmin/internal/observability"
)

// NewMCPCommand serves the edgeadmin tools over MCP on stdio.
func NewMCPCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve edgeadmin tools to an MCP client over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			a.store.Validate(ctx)

			server := mcp.NewServer(&mcp.Implementation{
				Name:    "edgeadmin",
				Version: observability.ServiceVersion(),
			}, nil)
			mcpserver.RegisterTools(server, mcpserver.Deps{
				Catalog:   a.catalog,
				Store:     a.store,
				Submitter: a.submit,
			})

			if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
				return WrapExitError(ExitFailure, "mcp server", err)
			}
			return nil
		},
	}
}
