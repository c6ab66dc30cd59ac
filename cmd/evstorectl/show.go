package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var showAncestors bool

var showCmd = &cobra.Command{
	Use:     "show <event-id>",
	GroupID: "inspect",
	Short:   "Print one event, or its full ancestor chain with --ancestors",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer store.Close()

		if showAncestors {
			chain, err := store.GetAncestors(rootCtx, args[0])
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(chain)
			}
			for _, e := range chain {
				fmt.Printf("%3d  %-24s  %-22s  parent=%s\n", e.Sequence, e.ID, e.Type, derefOrNil(e.ParentID))
			}
			return nil
		}

		ev, err := store.GetEvent(rootCtx, args[0])
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(ev)
		}
		fmt.Printf("id:        %s\n", ev.ID)
		fmt.Printf("session:   %s\n", ev.SessionID)
		fmt.Printf("parent:    %s\n", derefOrNil(ev.ParentID))
		fmt.Printf("sequence:  %d\n", ev.Sequence)
		fmt.Printf("type:      %s\n", ev.Type)
		fmt.Printf("timestamp: %s\n", ev.Timestamp.Format("2006-01-02T15:04:05Z"))
		fmt.Printf("payload:   %s\n", strings.TrimSpace(string(ev.Payload)))
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showAncestors, "ancestors", false, "print the full root-to-event ancestor chain instead of just this event")
	rootCmd.AddCommand(showCmd)
}
