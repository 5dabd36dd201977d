package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itisfoundation/osparc-tables/internal/resources"
)

// AddShortcuts adds one top-level command per built-in resource.
// Shortcuts provide convenient aliases for commonly-used operations.
func AddShortcuts(rootCmd *cobra.Command) {
	catalog, err := resources.Builtin()
	if err != nil {
		// The embedded definitions are covered by tests; without them
		// there is nothing to shortcut.
		return
	}
	for _, name := range catalog.Names() {
		rootCmd.AddCommand(newResourceShortcut(name, catalog.Aliases(name)))
	}
}

// newResourceShortcut creates a command that lists resource name.
// Shortcut for: list <name>
func newResourceShortcut(name string, aliases []string) *cobra.Command {
	cmd := newListCmd()
	run := cmd.RunE

	cmd.Use = name
	cmd.Aliases = aliases
	cmd.Short = fmt.Sprintf("List %s (shortcut for 'list %s')", name, name)
	cmd.Long = fmt.Sprintf(`Shortcut for listing %s.

Equivalent to: osparc-tables list %s

Examples:
  osparc-tables %s
  osparc-tables %s --first 20 --last 39 --json`, name, name, name, name)
	cmd.Args = cobra.NoArgs
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd, []string{name})
	}
	return cmd
}
