// Command edgeadmin submits bulk device-management operations to the edge
// backend, follows its log feed, and can serve a local stand-in backend.
//
// Usage:
//
//	edgeadmin operations
//	edgeadmin run add-tags --file devices.csv --tags blue,green
//	edgeadmin logs
//	edgeadmin console
//	edgeadmin stub-server --users admin:admin:123456
//	edgeadmin mcp
package main

import (
	"os"

	"github.com/bulkedge/edgeadmin/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
