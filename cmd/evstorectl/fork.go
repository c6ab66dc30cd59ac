package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/eventgraph/internal/eventstore"
)

var forkName string

var forkCmd = &cobra.Command{
	Use:     "fork <event-id>",
	GroupID: "store",
	Short:   "Create a new session rooted at an arbitrary ancestor event",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := store.Fork(rootCtx, eventstore.ForkOpts{FromEventID: args[0], Name: forkName})
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(res)
		}
		fmt.Printf("forked session %s from event %s (root %s)\n", res.Session.ID, args[0], res.RootEvent.ID)
		return nil
	},
}

func init() {
	forkCmd.Flags().StringVar(&forkName, "name", "", "name recorded on the session.fork event")
	rootCmd.AddCommand(forkCmd)
}
