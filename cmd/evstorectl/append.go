package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/eventgraph/internal/eventstore"
	"github.com/untoldecay/eventgraph/internal/types"
)

var appendCmd = &cobra.Command{
	Use:     "append <session-id> <event-type> <json-payload>",
	GroupID: "store",
	Short:   "Append one event to a session through the linearized queue",
	Long: `Append writes test fixtures and debugging events directly through
the same Store.Append path the facade exposes to in-process callers; it
does not bypass the append queue or the session's commit chain.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, typ, rawPayload := args[0], args[1], args[2]

		if !json.Valid([]byte(rawPayload)) {
			return fmt.Errorf("payload is not valid JSON: %s", rawPayload)
		}

		store, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer store.Close()

		ev, err := store.Append(rootCtx, eventstore.AppendOpts{
			SessionID: sessionID,
			Type:      types.EventType(typ),
			Payload:   json.RawMessage(rawPayload),
		})
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(ev)
		}
		fmt.Printf("appended %s (seq %d) parent=%v\n", ev.ID, ev.Sequence, derefOrNil(ev.ParentID))
		return nil
	},
}

func derefOrNil(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func init() {
	rootCmd.AddCommand(appendCmd)
}
