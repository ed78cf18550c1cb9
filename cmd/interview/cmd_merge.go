package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"interview-session-service/internal/models"
	"interview-session-service/internal/service/feedback"
)

func newMergeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <persisted.json> <instant.json>",
		Short: "Reconcile two copies of a feedback report",
		Long: `Merge prints the copy with the later generatedAt. A copy without a timestamp
loses to one that has it; the result keeps a timestamp whenever either copy had
one. Pass "-" for a missing copy.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadReport(args[0])
			if err != nil {
				return err
			}
			b, err := loadReport(args[1])
			if err != nil {
				return err
			}
			merged := feedback.Merge(a, b)
			if merged == nil {
				return errors.New("both reports are missing")
			}
			return printJSON(cmd.OutOrStdout(), merged)
		},
	}
}

func loadReport(path string) (*models.FeedbackReport, error) {
	if path == "-" {
		return nil, nil
	}
	var r models.FeedbackReport
	if err := readJSONFile(path, &r); err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	return &r, nil
}
