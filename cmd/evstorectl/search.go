package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/eventgraph/internal/config"
	"github.com/untoldecay/eventgraph/internal/storage/sqlite"
)

var (
	searchWorkspace string
	searchSession   string
	searchTypes     []string
	searchLimit     int
)

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	GroupID: "inspect",
	Short:   "Full-text search over event payloads, with a LIKE-scan fallback",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer store.Close()

		limit := searchLimit
		if limit <= 0 {
			limit = config.SearchDefaultLimit()
		}
		if limit > config.SearchMaxLimit() {
			limit = config.SearchMaxLimit()
		}

		results, err := store.Search(rootCtx, args[0], sqlite.SearchOpts{
			WorkspaceID: searchWorkspace,
			SessionID:   searchSession,
			Types:       searchTypes,
			Limit:       limit,
		})
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(results)
		}
		for _, r := range results {
			fmt.Printf("%s  session=%s  type=%s  %s\n", r.Event.ID, r.SessionID, r.Event.Type, r.Snippet)
		}
		fmt.Printf("%d result(s)\n", len(results))
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchWorkspace, "workspace", "", "restrict to a workspace id")
	searchCmd.Flags().StringVar(&searchSession, "session", "", "restrict to a session id")
	searchCmd.Flags().StringSliceVar(&searchTypes, "type", nil, "restrict to one or more event types (repeatable)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (default from config, capped at search.max-limit)")
	rootCmd.AddCommand(searchCmd)
}
