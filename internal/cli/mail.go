package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lu-zhengda/mailtriage/internal/domain"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var categoryFlag string
	var pageFlag int
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages in a category",
		Long:  "List messages in a category (defaults to All). Categories: " + categoryNames() + ".",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLogin(); err != nil {
				return err
			}

			cat, ok := domain.ParseCategory(categoryFlag)
			if !ok {
				rt.log.WithField("category", categoryFlag).Warn("unknown category, passing through")
			}
			if limitFlag <= 0 {
				limitFlag = rt.cfg.API.PageSize
			}

			msgs, err := rt.client.ListByCategory(cmd.Context(), cat, pageFlag, limitFlag)
			if err != nil {
				return explain(err)
			}
			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), toJSONMessages(msgs))
			}
			return printMessageTable(cmd.OutOrStdout(), msgs, time.Now())
		},
	}

	cmd.Flags().StringVarP(&categoryFlag, "category", "c", string(domain.CategoryAll), "category to list")
	cmd.Flags().IntVar(&pageFlag, "page", 1, "page number")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "messages per page (defaults to api.page_size)")
	return cmd
}

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <thread-id>",
		Short: "Read a thread",
		Long:  "Fetch a thread from the backend and print every message, oldest first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLogin(); err != nil {
				return err
			}

			thread, err := rt.client.GetThread(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), toJSONThreadDetail(thread))
			}
			printThread(cmd.OutOrStdout(), thread)
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search messages by meaning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLogin(); err != nil {
				return err
			}

			msgs, err := rt.client.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return explain(err)
			}
			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), toJSONMessages(msgs))
			}
			return printMessageTable(cmd.OutOrStdout(), msgs, time.Now())
		},
	}
}

func newSyncCmd() *cobra.Command {
	var waitFlag bool
	var timeoutFlag time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Ask the backend to resync the mailbox",
		Long: "Trigger a mailbox resync. The backend syncs asynchronously; with --wait " +
			"the command polls until the newest message changes or the timeout passes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLogin(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !waitFlag {
				if err := rt.client.Sync(cmd.Context()); err != nil {
					return explain(err)
				}
				if jsonFlag {
					return fprintJSON(out, jsonAction{OK: true, Action: "sync"})
				}
				fmt.Fprintln(out, "Sync started.")
				return nil
			}

			dash := rt.dashboard(noBackgroundCapabilities())
			changed, err := dash.WaitForSync(cmd.Context(), timeoutFlag)
			if err != nil {
				return explain(err)
			}
			if jsonFlag {
				return fprintJSON(out, jsonAction{OK: true, Action: "sync", Changed: &changed})
			}
			if changed {
				fmt.Fprintln(out, "Sync finished, new mail is available.")
			} else {
				fmt.Fprintf(out, "No new mail after %s.\n", timeoutFlag)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&waitFlag, "wait", false, "wait until new mail shows up")
	cmd.Flags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "how long --wait polls")
	return cmd
}

func printMessageTable(w io.Writer, msgs []domain.Message, now time.Time) error {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UNREAD\tFROM\tSUBJECT\tWHEN\tTHREAD_ID")
	for _, m := range msgs {
		unread := " "
		if !m.IsRead {
			unread = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			unread,
			clip(m.From.DisplayName(), 30),
			clip(m.Subject, 50),
			formatWhen(m.Date, now),
			m.ThreadID,
		)
	}
	return tw.Flush()
}

func printThread(w io.Writer, t *domain.Thread) {
	fmt.Fprintf(w, "Subject: %s\n", t.Subject)
	fmt.Fprintf(w, "Thread ID: %s\n", t.ID)
	fmt.Fprintf(w, "Messages: %d\n", t.MessageCount())
	if len(t.Participants) > 0 {
		fmt.Fprintf(w, "Participants: %s\n", strings.Join(t.Participants, ", "))
	}
	fmt.Fprintln(w, strings.Repeat("─", 60))

	for i, msg := range t.Messages {
		if i > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, strings.Repeat("─", 60))
		}
		fmt.Fprintf(w, "From: %s\n", msg.From)
		if len(msg.To) > 0 {
			to := make([]string, len(msg.To))
			for j, a := range msg.To {
				to[j] = a.String()
			}
			fmt.Fprintf(w, "To: %s\n", strings.Join(to, ", "))
		}
		if !msg.Date.IsZero() {
			fmt.Fprintf(w, "Date: %s\n", msg.Date.Local().Format("Mon, Jan 2, 2006 at 3:04 PM"))
		}
		if len(msg.Labels) > 0 {
			fmt.Fprintf(w, "Labels: %s\n", strings.Join(msg.Labels, ", "))
		}
		fmt.Fprintln(w)
		body := msg.Body
		if body == "" {
			body = msg.Snippet
		}
		fmt.Fprintln(w, body)
	}
}

func categoryNames() string {
	cats := domain.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
