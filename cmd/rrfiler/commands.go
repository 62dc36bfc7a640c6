package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rrfiler/internal/filing/builder"
	id "rrfiler/pkg/domain"
)

func newSubmitCmd(e env, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submit RECORD_ID",
		Short: "Build and upload the report for a transaction record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := id.ParseRecordID(args[0])
			if err != nil {
				return err
			}
			s, err := opts.open(cmd, e, false)
			if err != nil {
				return err
			}
			defer s.close()

			sub, err := s.app.Service.Submit(s.ctx, recordID)
			if reasons := builder.Reasons(err); len(reasons) > 0 {
				for _, r := range reasons {
					fmt.Fprintln(cmd.ErrOrStderr(), "  -", r)
				}
			}
			if sub != nil {
				if werr := writeJSON(cmd, sub); werr != nil && err == nil {
					err = werr
				}
			}
			return err
		},
	}
}

func newPollCmd(e env, opts *rootOptions) *cobra.Command {
	var subID string
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run a poll cycle, or poll one submission with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd, e, true)
			if err != nil {
				return err
			}
			defer s.close()

			if subID == "" {
				report, err := s.app.Service.PollDue(s.ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd, report)
			}
			parsed, err := id.ParseSubmissionID(subID)
			if err != nil {
				return err
			}
			sub, err := s.app.Service.Poll(s.ctx, parsed)
			if err != nil {
				return err
			}
			return writeJSON(cmd, sub)
		},
	}
	cmd.Flags().StringVar(&subID, "id", "", "Submission id to poll")
	return cmd
}

func newRetryCmd(e env, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry SUBMISSION_ID",
		Short: "Re-queue a rejected or needs_review submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subID, err := id.ParseSubmissionID(args[0])
			if err != nil {
				return err
			}
			s, err := opts.open(cmd, e, true)
			if err != nil {
				return err
			}
			defer s.close()

			sub, err := s.app.Service.Retry(s.ctx, subID)
			if err != nil {
				return err
			}
			return writeJSON(cmd, sub)
		},
	}
}

func newStatusCmd(e env, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status RECORD_ID",
		Short: "Show a record's submission and its attempt history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := id.ParseRecordID(args[0])
			if err != nil {
				return err
			}
			s, err := opts.open(cmd, e, true)
			if err != nil {
				return err
			}
			defer s.close()

			sub, err := s.app.Service.LatestForRecord(s.ctx, recordID)
			if err != nil {
				return err
			}
			attempts, err := s.app.Service.History(s.ctx, recordID)
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]any{"submission": sub, "attempts": attempts})
		},
	}
}
