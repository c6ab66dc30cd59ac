package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flushCmd = &cobra.Command{
	Use:     "flush [session-id]",
	GroupID: "store",
	Short:   "Wait for a session's append queue to drain (all sessions if omitted)",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			store.Flush(args[0])
			fmt.Printf("flushed session %s\n", args[0])
			return nil
		}
		store.FlushAll()
		fmt.Println("flushed all tracked sessions")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flushCmd)
}
