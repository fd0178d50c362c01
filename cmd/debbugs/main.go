// Command debbugs queries the Debian Bug Tracking System over SOAP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/smnsjas/go-debbugs"
)

func newRootCmd() *cobra.Command {
	flags := &clientFlags{}

	root := &cobra.Command{
		Use:   "debbugs",
		Short: "Query the Debian bug tracker",
		Long: `debbugs talks to the SOAP interface of a Debbugs server, by default
bugs.debian.org, and prints bug status, bug logs, usertags and search
results.`,
		Version:       debbugs.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newStatusCmd(flags),
		newBugsCmd(flags),
		newNewestCmd(flags),
		newUsertagCmd(flags),
		newLogCmd(flags),
	)
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "debbugs:", err)
		os.Exit(1)
	}
}
