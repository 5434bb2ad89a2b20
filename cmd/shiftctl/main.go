// Command shiftctl is the operator CLI for shifthub: schema migrations and dev tokens.
package main

import (
	"fmt"
	"os"

	"github.com/geocoder89/shifthub/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(config.Load).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(load func() config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "shiftctl",
		Short:         "Operate a shifthub deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newMigrateCmd(load))
	root.AddCommand(newTokenCmd(load))
	return root
}
