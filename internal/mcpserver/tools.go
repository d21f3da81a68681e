// Package mcpserver exposes the operation catalog, the auth session and
// operation submission as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bulkedge/edgeadmin/internal/catalog"
	"github.com/bulkedge/edgeadmin/internal/form"
	"github.com/bulkedge/edgeadmin/internal/session"
	"github.com/bulkedge/edgeadmin/internal/submit"
)

// Deps are the collaborators the tools drive.
type Deps struct {
	Catalog   *catalog.Catalog
	Store     *session.Store
	Submitter form.Submitter[submit.Result]
}

// RegisterTools registers all edgeadmin MCP tools on the given server.
func RegisterTools(server *mcp.Server, d Deps) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_operations",
			Description: "List the bulk device operations with their fields, profiles and thing definitions",
		},
		listOperationsHandler(d),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "session_status",
			Description: "Show whether the backend session is authenticated and for which user",
		},
		sessionStatusHandler(d),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "login",
			Description: "Log in to the backend; the result says whether an MFA code is needed",
		},
		loginHandler(d),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "submit_mfa",
			Description: "Complete a pending login with a one-time MFA code",
		},
		submitMFAHandler(d),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "logout",
			Description: "End the backend session",
		},
		logoutHandler(d),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "run_operation",
			Description: "Submit a bulk device operation with identifiers or a CSV/TXT file of identifiers",
		},
		runOperationHandler(d),
	)
}

type emptyInput struct{}

type operationDoc struct {
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Description string          `json:"description,omitempty"`
	DirectInput bool            `json:"direct_input"`
	Fields      []catalog.Field `json:"fields"`
}

func listOperationsHandler(d Deps) mcp.ToolHandlerFor[emptyInput, any] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
		var ops []operationDoc
		for _, op := range d.Catalog.Operations() {
			ops = append(ops, operationDoc{
				ID: op.ID, Label: op.Label, Description: op.Description,
				DirectInput: op.DirectInput, Fields: op.Fields(false),
			})
		}
		return textResult(map[string]any{
			"operations":        ops,
			"profiles":          d.Catalog.Profiles().Names(),
			"thing_definitions": d.Catalog.ThingDefinitions().Names(),
		})
	}
}

func sessionStatusHandler(d Deps) mcp.ToolHandlerFor[emptyInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
		sess := d.Store.Snapshot()
		if sess.State == session.StateValidating {
			sess = d.Store.Validate(ctx)
		}
		return textResult(sess)
	}
}

type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func loginHandler(d Deps) mcp.ToolHandlerFor[loginInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input loginInput) (*mcp.CallToolResult, any, error) {
		if input.Username == "" || input.Password == "" {
			return errorResult("username and password are required"), nil, nil
		}
		sess := d.Store.Snapshot()
		if sess.State == session.StateValidating {
			sess = d.Store.Validate(ctx)
		}
		if sess.Authenticated {
			return textResult(sess)
		}
		sess, err := d.Store.Login(ctx, input.Username, input.Password)
		if err != nil {
			return errorResult("login failed: " + err.Error()), nil, nil
		}
		return textResult(sess)
	}
}

type mfaInput struct {
	Code string `json:"code"`
}

func submitMFAHandler(d Deps) mcp.ToolHandlerFor[mfaInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input mfaInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(input.Code) == "" {
			return errorResult("code is required"), nil, nil
		}
		sess, err := d.Store.SubmitMFA(ctx, input.Code)
		if err != nil {
			return errorResult("mfa failed: " + err.Error()), nil, nil
		}
		return textResult(sess)
	}
}

func logoutHandler(d Deps) mcp.ToolHandlerFor[emptyInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
		return textResult(d.Store.Logout(ctx))
	}
}

type runOperationInput struct {
	Operation       string   `json:"operation"`
	Identifiers     []string `json:"identifiers,omitempty"`
	File            string   `json:"file,omitempty"`
	Tags            string   `json:"tags,omitempty"`
	Profile         string   `json:"profile,omitempty"`
	ThingDefinition string   `json:"thing_definition,omitempty"`
}

func runOperationHandler(d Deps) mcp.ToolHandlerFor[runOperationInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input runOperationInput) (*mcp.CallToolResult, any, error) {
		if input.Operation == "" {
			return errorResult("operation is required"), nil, nil
		}
		if !d.Store.Snapshot().Authenticated {
			return errorResult("not logged in; call login first"), nil, nil
		}

		f, err := fill(d.Catalog, input)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		res, err := form.Submit(ctx, f, d.Submitter)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}

		out, _, err := textResult(map[string]any{
			"operation": res.Operation,
			"ok":        res.OK(),
			"result":    res.Display(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("run_operation: %w", err)
		}
		out.IsError = !res.OK()
		return out, nil, nil
	}
}

// fill builds a form from tool input so the form invariants apply.
func fill(cat *catalog.Catalog, input runOperationInput) (*form.Form, error) {
	f := form.New(cat)
	op, err := f.Select(input.Operation)
	if err != nil {
		return nil, err
	}
	switch {
	case len(input.Identifiers) > 0 && input.File != "":
		return nil, fmt.Errorf("give identifiers or file, not both")
	case len(input.Identifiers) > 0:
		if err := f.SetDirectInput(true); err != nil {
			return nil, fmt.Errorf("%s only accepts a file of identifiers", op.ID)
		}
		f.SetIdentifiers(strings.Join(input.Identifiers, "\n"))
	default:
		f.SetFile(input.File)
	}
	f.SetTags(input.Tags)
	if op.Profile {
		if err := f.SetProfile(input.Profile); err != nil {
			return nil, fmt.Errorf("profile must be one of %s", strings.Join(cat.Profiles().Names(), ", "))
		}
	}
	if op.ThingDefinition {
		if err := f.SetThingDefinition(input.ThingDefinition); err != nil {
			return nil, fmt.Errorf("thing_definition must be one of %s", strings.Join(cat.ThingDefinitions().Names(), ", "))
		}
	}
	return f, nil
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
