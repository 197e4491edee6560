package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mapsjob/internal/core/domain"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Query the backend once for a job's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.backend.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			status := domain.StatusRunning
			if !report.Running {
				status = report.Outcome
			}
			fmt.Printf("Job ID:       %s\n", args[0])
			fmt.Printf("Status:       %s\n", status)
			if report.Progress != nil {
				fmt.Printf("Progress:     %.1f%%\n", *report.Progress)
			}
			fmt.Printf("Records:      %d\n", len(report.Records))
			if report.Message != "" {
				fmt.Printf("Message:      %s\n", report.Message)
			}
			return nil
		},
	}
}
