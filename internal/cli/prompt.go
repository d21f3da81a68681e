package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bulkedge/edgeadmin/internal/session"
)

type lineResult struct {
	line string
	err  error
}

// lineReader reads lines from r on demand. At most one read is outstanding,
// so a terminal can be handed to term.ReadPassword between lines.
type lineReader struct {
	req  chan struct{}
	resp chan lineResult
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{req: make(chan struct{}), resp: make(chan lineResult, 1)}
	go func() {
		sc := bufio.NewScanner(r)
		for range lr.req {
			if sc.Scan() {
				lr.resp <- lineResult{line: sc.Text()}
				continue
			}
			err := sc.Err()
			if err == nil {
				err = io.EOF
			}
			lr.resp <- lineResult{err: err}
		}
	}()
	return lr
}

// ReadLine returns the next line without its terminator.
func (lr *lineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case lr.req <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case res := <-lr.resp:
		return strings.TrimRight(res.line, "\r"), res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// terminalPrompter asks for credentials on the command streams. Preset
// credentials from the environment are used without prompting.
type terminalPrompter struct {
	lines *lineReader
	in    io.Reader
	out   io.Writer

	username string
	password string
}

func newPrompter(lines *lineReader, in io.Reader, out io.Writer, username, password string) *terminalPrompter {
	return &terminalPrompter{lines: lines, in: in, out: out, username: username, password: password}
}

func (p *terminalPrompter) Username(ctx context.Context) (string, error) {
	if p.username != "" {
		return p.username, nil
	}
	fmt.Fprint(p.out, "Username: ")
	line, err := p.lines.ReadLine(ctx)
	return strings.TrimSpace(line), promptErr(err)
}

func (p *terminalPrompter) Password(ctx context.Context, username string) (string, error) {
	if p.password != "" && username == p.username {
		return p.password, nil
	}
	fmt.Fprintf(p.out, "Password for %s: ", username)
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	line, err := p.lines.ReadLine(ctx)
	return line, promptErr(err)
}

func (p *terminalPrompter) MFACode(ctx context.Context, username string, attempt int) (string, error) {
	fmt.Fprintf(p.out, "MFA code for %s (attempt %d/%d): ", username, attempt, session.MaxMFAAttempts)
	line, err := p.lines.ReadLine(ctx)
	return strings.TrimSpace(line), promptErr(err)
}

// promptErr maps end of input to an empty answer, which aborts the flow.
func promptErr(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
