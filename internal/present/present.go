// Package present renders results, log entries, the catalog and the session
// for a terminal or as JSON documents.
package present

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bulkedge/edgeadmin/internal/catalog"
	"github.com/bulkedge/edgeadmin/internal/logstream"
	"github.com/bulkedge/edgeadmin/internal/session"
	"github.com/bulkedge/edgeadmin/internal/submit"
)

// Format is an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatText || f == FormatJSON
}

// Renderer writes one rendering per call to Out.
type Renderer struct {
	Format Format
	Out    io.Writer
	Color  bool

	styles styles
}

type styles struct {
	levels map[string]lipgloss.Style
	ok     lipgloss.Style
	failed lipgloss.Style
	dim    lipgloss.Style
}

// New returns a renderer. Colors only apply to text output.
func New(out io.Writer, format Format, color bool) *Renderer {
	r := &Renderer{Format: format, Out: out, Color: color && format == FormatText}
	lr := lipgloss.NewRenderer(out)
	r.styles = styles{
		levels: map[string]lipgloss.Style{
			"debug":   lr.NewStyle().Foreground(lipgloss.Color("8")),
			"info":    lr.NewStyle().Foreground(lipgloss.Color("12")),
			"warning": lr.NewStyle().Foreground(lipgloss.Color("11")),
			"warn":    lr.NewStyle().Foreground(lipgloss.Color("11")),
			"error":   lr.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		},
		ok:     lr.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		failed: lr.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		dim:    lr.NewStyle().Foreground(lipgloss.Color("8")),
	}
	return r
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.Color {
		return text
	}
	return s.Render(text)
}

// Result renders a submission outcome.
func (r *Renderer) Result(res submit.Result) error {
	if r.Format == FormatJSON {
		return r.json(map[string]any{
			"operation": res.Operation,
			"ok":        res.OK(),
			"outcome":   res.Outcome(),
			"result":    res.Display(),
		})
	}

	body, err := json.MarshalIndent(res.Display(), "", "  ")
	if err != nil {
		return fmt.Errorf("present: encode result: %w", err)
	}
	status := r.style(r.styles.ok, "ok")
	if !res.OK() {
		status = r.style(r.styles.failed, "failed")
	}
	_, err = fmt.Fprintf(r.Out, "%s %s %s\n%s\n", res.Operation, status,
		r.style(r.styles.dim, res.Duration.Round(time.Millisecond).String()), body)
	return err
}

// Entry renders one log entry.
func (r *Renderer) Entry(e logstream.Entry) error {
	if r.Format == FormatJSON {
		return r.json(e)
	}
	level := "[" + e.Level + "]"
	if s, ok := r.styles.levels[e.Level]; ok {
		level = r.style(s, level)
	}
	target := e.Target
	if target == "" {
		target = "-"
	}
	_, err := fmt.Fprintf(r.Out, "%s %s: %s\n", level, target, e.Message)
	return err
}

// StreamError renders a log feed problem: a discarded event, or the reason
// the feed stopped.
func (r *Renderer) StreamError(err error) error {
	if r.Format == FormatJSON {
		return r.json(map[string]string{"stream_error": err.Error()})
	}
	_, err = fmt.Fprintf(r.Out, "%s %v\n", r.style(r.styles.failed, "[log feed]"), err)
	return err
}

// Catalog renders the operation table.
func (r *Renderer) Catalog(cat *catalog.Catalog) error {
	ops := cat.Operations()
	if r.Format == FormatJSON {
		type opDoc struct {
			ID          string          `json:"id"`
			Label       string          `json:"label"`
			Endpoint    string          `json:"endpoint"`
			DirectInput bool            `json:"direct_input"`
			Fields      []catalog.Field `json:"fields"`
			Description string          `json:"description,omitempty"`
		}
		docs := make([]opDoc, 0, len(ops))
		for _, op := range ops {
			path, _ := cat.Route(op)
			docs = append(docs, opDoc{
				ID: op.ID, Label: op.Label, Endpoint: path, DirectInput: op.DirectInput,
				Fields: op.Fields(false), Description: op.Description,
			})
		}
		return r.json(map[string]any{
			"dispatch":          cat.Dispatch(),
			"tag_format":        cat.TagFormat(),
			"operations":        docs,
			"profiles":          cat.Profiles().Entries(),
			"thing_definitions": cat.ThingDefinitions().Entries(),
		})
	}

	rows := [][]string{{"OPERATION", "LABEL", "DIRECT", "FIELDS"}}
	for _, op := range ops {
		direct := "no"
		if op.DirectInput {
			direct = "yes"
		}
		rows = append(rows, []string{op.ID, op.Label, direct, joinFields(op.Fields(false))})
	}
	_, err := io.WriteString(r.Out, table(rows))
	return err
}

// Fields renders the visible fields of op.
func (r *Renderer) Fields(op catalog.Operation, fields []catalog.Field) error {
	if r.Format == FormatJSON {
		return r.json(map[string]any{"operation": op.ID, "fields": fields})
	}
	_, err := fmt.Fprintf(r.Out, "%s: %s\n", op.Label, joinFields(fields))
	return err
}

// Session renders the auth state.
func (r *Renderer) Session(s session.Session) error {
	if r.Format == FormatJSON {
		return r.json(s)
	}
	var line string
	switch s.State {
	case session.StateAuthenticated:
		line = "logged in as " + r.style(r.styles.ok, s.Username)
	case session.StateMFAPending:
		line = "mfa code required for " + s.PendingUser
	case session.StateValidating:
		line = "checking session"
	default:
		line = "not logged in"
	}
	if s.LastError != "" {
		line += " (" + r.style(r.styles.failed, s.LastError) + ")"
	}
	_, err := fmt.Fprintln(r.Out, line)
	return err
}

func (r *Renderer) json(v any) error {
	enc := json.NewEncoder(r.Out)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("present: encode: %w", err)
	}
	return nil
}

func joinFields(fields []catalog.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// table left-aligns rows into columns two spaces apart. The last column is
// not padded.
func table(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	var b strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			b.WriteString(cell)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
