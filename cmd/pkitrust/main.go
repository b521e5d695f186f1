// pkitrust is the single entrypoint binary for this module's subcommands,
// dispatching by name through the shared cmd.RegisterCommand registry, the
// way the teacher's own multi-service binary dispatches to each of its
// "notmain" packages.
package main

import (
	"fmt"
	"os"

	"github.com/pkitrust/pkitrust/cmd"

	_ "github.com/pkitrust/pkitrust/cmd/pkitrust-verify"
)

func main() {
	if len(os.Args) < 2 {
		cmd.Fail(fmt.Sprintf("Usage: %s <subcommand> [flags]\nAvailable subcommands: %v", os.Args[0], cmd.AvailableCommands()))
	}

	name := os.Args[1]
	f := cmd.LookupCommand(name)
	if f == nil {
		cmd.Fail(fmt.Sprintf("unknown subcommand %q; available: %v", name, cmd.AvailableCommands()))
	}

	// Shift argv so the subcommand's own flag.Parse() sees its own flags,
	// not "pkitrust" and the subcommand name.
	os.Args = os.Args[1:]
	f()
}
