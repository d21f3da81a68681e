package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bulkedge/edgeadmin/internal/catalog"
	"github.com/bulkedge/edgeadmin/internal/form"
	"github.com/bulkedge/edgeadmin/internal/submit"
)

type runFlags struct {
	file            string
	ids             []string
	tags            string
	profile         string
	thingDefinition string
	logout          bool
}

// NewRunCommand submits one operation.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <operation>",
		Short: "Submit a bulk operation",
		Long: "Submit a bulk operation by id or label. Device identifiers come from --file\n" +
			"(.csv or .txt, one per line) or, for operations that accept direct input, --ids.",
		Example: "  edgeadmin run add-tags --file devices.csv --tags blue,green\n" +
			"  edgeadmin run undeploy --ids 351234,351235\n" +
			"  edgeadmin run apply-profile --file devices.txt --profile \"Standard LwM2M\"",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := flags.form(a.catalog, args[0])
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: err.Error()}
			}

			p := newPrompter(newLineReader(opts.Stdin), opts.Stdin, opts.Stderr, a.cfg.Username, a.cfg.Password)
			if _, err := a.authenticate(ctx, p); err != nil {
				return err
			}

			res, err := form.Submit[submit.Result](ctx, f, a.submit)
			if err != nil {
				return WrapExitError(ExitFailure, "submit", err)
			}
			if err := a.render.Result(res); err != nil {
				return err
			}
			if flags.logout {
				a.store.Logout(ctx)
			}
			if !res.OK() {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%s failed (%s)", res.Operation, res.Outcome())}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.file, "file", "", "file of device identifiers (.csv or .txt)")
	cmd.Flags().StringSliceVar(&flags.ids, "ids", nil, "device identifiers, for operations with direct input")
	cmd.Flags().StringVar(&flags.tags, "tags", "", "comma-separated tags")
	cmd.Flags().StringVar(&flags.profile, "profile", "", "profile name")
	cmd.Flags().StringVar(&flags.thingDefinition, "thing-def", "", "thing definition name")
	cmd.Flags().BoolVar(&flags.logout, "logout", false, "log out after the submission")
	cmd.MarkFlagsMutuallyExclusive("file", "ids")
	return cmd
}

// form fills a form from the flags and applies its field rules.
func (rf runFlags) form(cat *catalog.Catalog, operation string) (*form.Form, error) {
	f := form.New(cat)
	op, err := f.Select(operation)
	if err != nil {
		return nil, err
	}

	if len(rf.ids) > 0 {
		if err := f.SetDirectInput(true); err != nil {
			return nil, fmt.Errorf("%s takes identifiers from --file only", op.ID)
		}
		f.SetIdentifiers(strings.Join(rf.ids, "\n"))
	} else {
		f.SetFile(rf.file)
	}

	if rf.tags != "" && !op.Tags {
		return nil, fmt.Errorf("%s does not take --tags", op.ID)
	}
	f.SetTags(rf.tags)

	if op.Profile {
		if err := f.SetProfile(rf.profile); err != nil {
			return nil, fmt.Errorf("--profile must be one of: %s", strings.Join(cat.Profiles().Names(), ", "))
		}
	} else if rf.profile != "" {
		return nil, fmt.Errorf("%s does not take --profile", op.ID)
	}

	if op.ThingDefinition {
		if err := f.SetThingDefinition(rf.thingDefinition); err != nil {
			return nil, fmt.Errorf("--thing-def must be one of: %s", strings.Join(cat.ThingDefinitions().Names(), ", "))
		}
	} else if rf.thingDefinition != "" {
		return nil, fmt.Errorf("%s does not take --thing-def", op.ID)
	}
	return f, nil
}
