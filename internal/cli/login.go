package cli

import (
	"github.com/spf13/cobra"
)

// NewLoginCommand checks credentials, including the MFA step, against the
// backend.
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	var logout bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the backend and report the session",
		Long: "Log in to the backend, prompting for a username, password and MFA code as needed.\n" +
			"EDGEADMIN_USERNAME and EDGEADMIN_PASSWORD skip the matching prompts.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			p := newPrompter(newLineReader(opts.Stdin), opts.Stdin, opts.Stderr, a.cfg.Username, a.cfg.Password)
			sess, err := a.authenticate(ctx, p)
			if err != nil {
				return err
			}
			if logout {
				sess = a.store.Logout(ctx)
			}
			return a.render.Session(sess)
		},
	}

	cmd.Flags().BoolVar(&logout, "logout", false, "log out again after a successful login")
	return cmd
}
