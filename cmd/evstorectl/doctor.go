package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: "inspect",
	Short:   "Run a schema/graph sanity sweep: FTS5 availability, orphaned blobs, dangling parents",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := store.RunDoctor(rootCtx)
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(report)
		}

		fmt.Printf("events:            %d\n", report.EventCount)
		fmt.Printf("sessions:          %d\n", report.SessionCount)
		fmt.Printf("fts5 available:    %v\n", report.FTS5Available)
		fmt.Printf("orphaned blobs:    %d\n", report.OrphanedBlobs)
		fmt.Printf("dangling parents:  %d\n", report.DanglingParents)
		fmt.Printf("stale open sessions: %d\n", report.StaleOpenSessions)
		fmt.Printf("multi-root sessions: %d\n", len(report.MultipleRoots))
		for _, sid := range report.MultipleRoots {
			fmt.Printf("  - %s\n", sid)
		}
		if report.Healthy() {
			fmt.Println("doctor: OK")
			return nil
		}
		return fmt.Errorf("doctor: found issues (see above)")
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
