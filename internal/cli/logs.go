package cli

import (
	"github.com/spf13/cobra"

	"github.com/bulkedge/edgeadmin/internal/logstream"
)

// NewLogsCommand follows the backend log feed.
func NewLogsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "Follow the live backend log feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			p := newPrompter(newLineReader(opts.Stdin), opts.Stdin, opts.Stderr, a.cfg.Username, a.cfg.Password)
			if _, err := a.authenticate(ctx, p); err != nil {
				return err
			}

			sub, err := a.logs.Open(ctx, logstream.NewFeed(),
				logstream.OnEntry(func(e logstream.Entry) {
					if err := a.render.Entry(e); err != nil {
						a.logger.Warn("render log entry", "error", err)
					}
				}),
				logstream.OnMalformed(func(err error) {
					if rerr := a.render.StreamError(err); rerr != nil {
						a.logger.Warn("render stream error", "error", rerr)
					}
				}),
			)
			if err != nil {
				return WrapExitError(ExitFailure, "open log stream", err)
			}
			defer sub.Close()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-sub.Done():
			}
			if feed := sub.Feed(); feed.Malformed() > 0 {
				a.logger.Info("log stream ended", "entries", feed.Len(), "malformed", feed.Malformed())
			}
			return sub.Err()
		},
	}
}
