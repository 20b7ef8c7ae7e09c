package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lu-zhengda/mailtriage/internal/api"
	"github.com/lu-zhengda/mailtriage/internal/domain"
	"github.com/spf13/cobra"
)

func newReplyCmd() *cobra.Command {
	var bodyFlag string
	var ccFlag []string

	cmd := &cobra.Command{
		Use:   "reply <thread-id>",
		Short: "Reply to a thread",
		Long: "Reply to the sender of the latest message in a thread. " +
			"Reads the body from stdin when --body is \"-\".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := bodyFlag
			if body == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read body: %w", err)
				}
				body = string(data)
			}
			if strings.TrimSpace(body) == "" {
				return fmt.Errorf("reply body is empty")
			}

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLogin(); err != nil {
				return err
			}

			ctx := cmd.Context()
			dash := rt.dashboard(noBackgroundCapabilities())
			thread, err := dash.SelectMessage(ctx, domain.Message{ThreadID: args[0]})
			if err != nil {
				return explain(err)
			}
			sent, err := dash.Reply(ctx, body, ccFlag)
			if err != nil {
				return explain(err)
			}

			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), jsonAction{
					OK:        sent.Success,
					Action:    "reply",
					MessageID: sent.MessageID,
					ThreadID:  thread.ID,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reply sent (message %s).\n", sent.MessageID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&bodyFlag, "body", "b", "", "reply body, or - to read stdin")
	cmd.Flags().StringSliceVar(&ccFlag, "cc", nil, "CC recipients (comma-separated)")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func newSimilarCmd() *cobra.Command {
	var labelFlag string
	var topKFlag int

	cmd := &cobra.Command{
		Use:   "similar <thread-id>",
		Short: "Show threads similar to a thread",
		Long: "Ask the backend for threads similar to the given one. With --label only " +
			"threads in that category are considered. Output is the backend's JSON.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLogin(); err != nil {
				return err
			}

			var raw json.RawMessage
			if labelFlag != "" {
				cat, _ := domain.ParseCategory(labelFlag)
				raw, err = rt.client.Similar(cmd.Context(), args[0], string(cat), topKFlag)
			} else {
				raw, err = rt.client.SimilarMulti(cmd.Context(), args[0], topKFlag)
			}
			if err != nil {
				return explain(err)
			}
			return printRaw(cmd.OutOrStdout(), raw)
		},
	}

	cmd.Flags().StringVarP(&labelFlag, "label", "l", "", "restrict to one category")
	cmd.Flags().IntVarP(&topKFlag, "top-k", "k", 5, "number of results")
	return cmd
}

func newMatchesCmd() *cobra.Command {
	var jobsFlag bool
	var historyFlag bool
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "matches <thread-id>",
		Short: "Show job/candidate matches",
		Long: "For a job posting thread, list matching candidates. With --jobs, treat the " +
			"thread as a candidate and list matching jobs. With --history, show matches " +
			"generated earlier instead of computing new ones. Output is the backend's JSON.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLogin(); err != nil {
				return err
			}

			var raw json.RawMessage
			switch {
			case historyFlag:
				kind := api.MatchJobToCandidate
				if jobsFlag {
					kind = api.MatchCandidateToJob
				}
				raw, err = rt.client.MatchHistory(cmd.Context(), args[0], kind, limitFlag)
			case jobsFlag:
				raw, err = rt.client.CandidateJobs(cmd.Context(), args[0])
			default:
				raw, err = rt.client.JobCandidates(cmd.Context(), args[0])
			}
			if err != nil {
				return explain(err)
			}
			return printRaw(cmd.OutOrStdout(), raw)
		},
	}

	cmd.Flags().BoolVar(&jobsFlag, "jobs", false, "list jobs matching a candidate thread")
	cmd.Flags().BoolVar(&historyFlag, "history", false, "show previously generated matches")
	cmd.Flags().IntVar(&limitFlag, "limit", 10, "max history entries (with --history)")
	return cmd
}

// printRaw pretty-prints an undecoded backend payload.
func printRaw(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = w.Write(raw)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
