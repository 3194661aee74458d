// Command coachpanel runs the CoachPanel API.
//
//	coachpanel          serve the API (same as "serve")
//	coachpanel serve    serve the API and run the background workers
//	coachpanel migrate  apply pending database migrations and exit
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := newServeCommand()

	root := &cobra.Command{
		Use:           "coachpanel",
		Short:         "CoachPanel API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	root.AddCommand(serve, newMigrateCommand())
	return root
}
