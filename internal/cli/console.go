package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bulkedge/edgeadmin/internal/catalog"
	"github.com/bulkedge/edgeadmin/internal/form"
	"github.com/bulkedge/edgeadmin/internal/logstream"
	"github.com/bulkedge/edgeadmin/internal/present"
	"github.com/bulkedge/edgeadmin/internal/session"
	"github.com/bulkedge/edgeadmin/internal/submit"
)

const consoleHelp = `commands:
  ops                     list operations
  use <operation>         select an operation by id or label
  fields                  show the fields of the selected operation
  file <path>             set the identifier file (.csv or .txt)
  direct on|off           switch between file upload and typed identifiers
  ids <id> [id...]        type identifiers (turns direct input on)
  tags <a,b,...>          set tags
  profile <name>          choose a profile
  thingdef <name>         choose a thing definition
  show                    show the entered values
  reset                   clear entered values
  submit                  submit the selected operation
  logs on|off             follow or stop the live log feed
  whoami | login | logout session commands
  quit                    leave the console
`

// NewConsoleCommand starts the interactive console.
func NewConsoleCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive console with the operation form and live logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			return newConsole(a, opts).run(ctx)
		},
	}
}

// lockedWriter serializes console output written from background goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

type submitFunc func(context.Context, form.State) submit.Result

func (fn submitFunc) Submit(ctx context.Context, st form.State) submit.Result { return fn(ctx, st) }

type console struct {
	a      *app
	form   *form.Form
	out    io.Writer
	render *present.Renderer
	lines  *lineReader
	prompt session.Prompter

	feed *logstream.Feed
	sub  *feedWatch
	g    *errgroup.Group
}

// feedWatch is an open log subscription. stopped is set before a requested
// close so the watcher stays quiet.
type feedWatch struct {
	sub     *logstream.Subscription
	stopped atomic.Bool
}

// errFeedClosed is reported when the backend ends the log stream.
var errFeedClosed = errors.New("closed by the backend")

func newConsole(a *app, opts *RootOptions) *console {
	out := &lockedWriter{w: opts.Stdout}
	lines := newLineReader(opts.Stdin)
	return &console{
		a:      a,
		form:   form.New(a.catalog),
		out:    out,
		render: present.New(out, a.render.Format, a.render.Color),
		lines:  lines,
		prompt: newPrompter(lines, opts.Stdin, out, a.cfg.Username, a.cfg.Password),
		feed:   logstream.NewFeed(),
	}
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	c.g = g

	c.a.store.OnChange(func(s session.Session) {
		if s.State != session.StateValidating {
			c.printf("session: ")
			_ = c.render.Session(s)
		}
	})
	if _, err := c.a.authenticate(gctx, c.prompt); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.printf("error: %v\n", err)
	}

	for {
		c.printf("%s> ", c.form.Active().ID)
		line, err := c.lines.ReadLine(gctx)
		if errors.Is(err, io.EOF) {
			c.printf("\n")
			break
		}
		if err != nil {
			c.stopLogs()
			_ = g.Wait()
			return err
		}
		quit, err := c.exec(gctx, line)
		if err != nil {
			c.printf("error: %v\n", err)
		}
		if quit {
			break
		}
	}
	c.stopLogs()
	return g.Wait()
}

// exec runs one console line and reports whether the console should exit.
func (c *console) exec(ctx context.Context, line string) (bool, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return false, nil
	}
	name := strings.ToLower(words[0])
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), words[0]))

	switch name {
	case "help", "?":
		c.printf("%s", consoleHelp)
	case "quit", "exit":
		return true, nil
	case "ops", "operations":
		return false, c.render.Catalog(c.a.catalog)
	case "use":
		if rest == "" {
			return false, errors.New("usage: use <operation>")
		}
		op, err := c.form.Select(rest)
		if err != nil {
			return false, err
		}
		return false, c.render.Fields(op, c.form.VisibleFields())
	case "fields":
		return false, c.render.Fields(c.form.Active(), c.form.VisibleFields())
	case "file":
		c.form.SetFile(rest)
	case "direct":
		switch rest {
		case "on":
			return false, c.form.SetDirectInput(true)
		case "off":
			return false, c.form.SetDirectInput(false)
		}
		return false, errors.New("usage: direct on|off")
	case "ids":
		if err := c.form.SetDirectInput(true); err != nil {
			return false, err
		}
		c.form.SetIdentifiers(strings.Join(words[1:], "\n"))
	case "tags":
		c.form.SetTags(rest)
	case "profile":
		return false, c.form.SetProfile(rest)
	case "thingdef":
		return false, c.form.SetThingDefinition(rest)
	case "show":
		c.show()
	case "reset":
		c.form.Reset()
	case "submit":
		return false, c.submit(ctx)
	case "logs":
		switch rest {
		case "on":
			return false, c.startLogs(ctx)
		case "off":
			c.stopLogs()
			return false, nil
		}
		return false, errors.New("usage: logs on|off")
	case "whoami":
		return false, c.render.Session(c.a.store.Snapshot())
	case "login":
		_, err := c.a.authenticate(ctx, c.prompt)
		return false, err
	case "logout":
		c.stopLogs()
		c.a.store.Logout(ctx)
	default:
		return false, fmt.Errorf("unknown command %q (try help)", words[0])
	}
	return false, nil
}

func (c *console) show() {
	st := c.form.Snapshot()
	c.printf("operation: %s\n", st.Operation.ID)
	for _, field := range c.form.VisibleFields() {
		var value string
		switch field {
		case catalog.FieldFile:
			value = st.FilePath
		case catalog.FieldDirectInput:
			value = strings.ReplaceAll(st.Identifiers, "\n", " ")
		case catalog.FieldTags:
			value = st.Tags
		case catalog.FieldProfile:
			value = st.Profile
		case catalog.FieldThingDefinition:
			value = st.ThingDefinition
		}
		c.printf("  %s: %s\n", field, value)
	}
}

// submit starts the submission in the background. It returns once the form
// has taken its snapshot, so later edits do not leak into the request.
func (c *console) submit(ctx context.Context) error {
	if !c.a.store.Snapshot().Authenticated {
		return errors.New("not logged in (use login)")
	}
	started := make(chan error, 1)
	c.g.Go(func() error {
		res, err := form.Submit[submit.Result](ctx, c.form, submitFunc(func(ctx context.Context, st form.State) submit.Result {
			started <- nil
			return c.a.submit.Submit(ctx, st)
		}))
		if err != nil {
			started <- err
			return nil
		}
		if err := c.render.Result(res); err != nil {
			c.a.logger.Warn("render result", "error", err)
		}
		return nil
	})
	return <-started
}

func (c *console) startLogs(ctx context.Context) error {
	if c.sub != nil {
		select {
		case <-c.sub.sub.Done():
		default:
			return errors.New("log feed already on")
		}
	}
	if !c.a.store.Snapshot().Authenticated {
		return errors.New("not logged in (use login)")
	}
	sub, err := c.a.logs.Open(ctx, c.feed,
		logstream.OnEntry(func(e logstream.Entry) {
			if err := c.render.Entry(e); err != nil {
				c.a.logger.Warn("render log entry", "error", err)
			}
		}),
		logstream.OnMalformed(c.streamError),
	)
	if err != nil {
		return err
	}
	w := &feedWatch{sub: sub}
	c.sub = w
	c.g.Go(func() error {
		<-sub.Done()
		if w.stopped.Load() || ctx.Err() != nil {
			return nil
		}
		if err := sub.Err(); err != nil {
			c.streamError(err)
		} else {
			c.streamError(errFeedClosed)
		}
		return nil
	})
	return nil
}

func (c *console) streamError(err error) {
	if rerr := c.render.StreamError(err); rerr != nil {
		c.a.logger.Warn("render stream error", "error", rerr)
	}
}

func (c *console) stopLogs() {
	if c.sub != nil {
		c.sub.stopped.Store(true)
		c.sub.sub.Close()
		c.sub = nil
	}
}
