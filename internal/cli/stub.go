package cli

import (
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bulkedge/edgeadmin/internal/ratelimit"
	"github.com/bulkedge/edgeadmin/internal/stubapi"
)

const budgetWindow = time.Minute

// NewStubServerCommand serves the in-memory stand-in backend.
func NewStubServerCommand(opts *RootOptions) *cobra.Command {
	var (
		addr      string
		users     string
		budget    int
		keepAlive time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stub-server",
		Short: "Serve a local stand-in for the backend",
		Long: "Serve the auth, operation and log stream endpoints from memory. Operations are\n" +
			"checked and echoed but never applied. Users are name:password[:mfa-code] pairs.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newBase(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.StubAddr
			}
			if !cmd.Flags().Changed("users") {
				users = a.cfg.StubUsers
			}
			if !cmd.Flags().Changed("budget") {
				budget = a.cfg.StubBudget
			}
			accounts, err := stubapi.ParseUsers(users)
			if err != nil {
				return WrapExitError(ExitCommandError, "parse users", err)
			}

			srv := stubapi.New(stubapi.Options{
				Catalog:   a.catalog,
				Users:     accounts,
				Budget:    ratelimit.NewBudget(budget, budgetWindow),
				Logger:    a.logger,
				KeepAlive: keepAlive,
			})
			a.logger.Info("stub backend listening", "addr", addr, "users", len(accounts), "budget", budget)
			if a.cfg.OTelEnabled {
				return srv.ListenAndServe(ctx, addr, otelhttp.NewHandler(srv, "edgeadmin-stub"))
			}
			return srv.ListenAndServe(ctx, addr, nil)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default EDGEADMIN_STUB_ADDR)")
	cmd.Flags().StringVar(&users, "users", "", "accounts as name:password[:mfa],... (default EDGEADMIN_STUB_USERS)")
	cmd.Flags().IntVar(&budget, "budget", 0, "submissions per user and operation per minute; 0 disables")
	cmd.Flags().DurationVar(&keepAlive, "keepalive", 15*time.Second, "log stream keepalive interval")
	return cmd
}
