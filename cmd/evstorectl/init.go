package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/eventgraph/internal/config"
	"github.com/untoldecay/eventgraph/internal/eventstore"
)

var (
	initModel  string
	initTitle  string
	initPrompt string
)

var initCmd = &cobra.Command{
	Use:     "init [workspace-path]",
	GroupID: "store",
	Short:   "Create the database for a workspace and seed its first session",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspacePath := "."
		if len(args) == 1 {
			workspacePath = args[0]
		}

		store, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := store.CreateSession(rootCtx, eventstore.CreateSessionOpts{
			WorkspacePath:    workspacePath,
			WorkingDirectory: workspacePath,
			Model:            initModel,
			Title:            initTitle,
			SystemPrompt:     initPrompt,
			ClientType:       "evstorectl",
		})
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(res)
		}
		fmt.Printf("initialized store at %s\nseed session: %s\nroot event: %s\n", config.DatabasePath(dbFlag), res.Session.ID, res.RootEvent.ID)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initModel, "model", "dev", "model recorded on the seed session.start event")
	initCmd.Flags().StringVar(&initTitle, "title", "", "title for the seed session")
	initCmd.Flags().StringVar(&initPrompt, "system-prompt", "", "system prompt recorded on the seed session.start event")
	rootCmd.AddCommand(initCmd)
}
