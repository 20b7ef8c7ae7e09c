package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/lu-zhengda/mailtriage/internal/api"
	"github.com/lu-zhengda/mailtriage/internal/auth"
	"github.com/lu-zhengda/mailtriage/internal/domain"
	"github.com/lu-zhengda/mailtriage/internal/notifier"
	"github.com/lu-zhengda/mailtriage/internal/store"
	"github.com/spf13/cobra"
)

var (
	arrivalHeader = color.New(color.FgGreen, color.Bold)
	senderColor   = color.New(color.FgCyan)
	warnColor     = color.New(color.FgYellow)
)

func newWatchCmd() *cobra.Command {
	var onceFlag bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for new mail in the foreground",
		Long: "Check for new mail every poll interval and print arrivals as they come in. " +
			"Arrivals are also recorded for the notifications command. Stop with Ctrl+C.",
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
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			n := notifier.New(rt.client, rt.session,
				notifier.WithInterval(rt.cfg.PollInterval()),
				notifier.WithMaxResults(rt.cfg.Poll.MaxResults),
				notifier.WithRecorder(rt.db),
				notifier.WithLogger(rt.log),
				notifier.OnArrivals(func(na domain.NewArrivals) {
					printArrivals(out, na, time.Now())
				}),
				notifier.OnError(func(err error) {
					if errors.Is(err, api.ErrUnauthorized) {
						return
					}
					warnColor.Fprintf(out, "check failed: %v\n", err)
				}),
			)

			if onceFlag {
				na, err := n.Check(ctx)
				if err != nil {
					return explain(err)
				}
				if na.Count == 0 {
					fmt.Fprintln(out, "No new mail.")
				}
				return nil
			}

			fmt.Fprintf(out, "Watching for new mail every %s (Ctrl+C to stop)...\n", n.Interval())
			n.Start(ctx)
			defer n.Stop()

			select {
			case <-ctx.Done():
				return nil
			case <-rt.auth.Redirects():
				return auth.ErrSessionExpired
			}
		},
	}

	cmd.Flags().BoolVar(&onceFlag, "once", false, "check once and exit")
	return cmd
}

func printArrivals(w io.Writer, na domain.NewArrivals, now time.Time) {
	title := "1 new message"
	if na.Count != 1 {
		title = fmt.Sprintf("%d new messages", na.Count)
	}
	arrivalHeader.Fprintf(w, "[%s] %s\n", now.Format("15:04:05"), title)
	for _, m := range na.Messages {
		fmt.Fprintf(w, "  %s  %s\n", senderColor.Sprint(clip(m.From.DisplayName(), 30)), m.Subject)
	}
}

func newNotificationsCmd() *cobra.Command {
	var queryFlag string
	var limitFlag int
	var offsetFlag int

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show recent new-mail notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			recs, err := rt.db.ListNotifications(cmd.Context(), store.ListNotificationOptions{
				Query:  queryFlag,
				Limit:  limitFlag,
				Offset: offsetFlag,
			})
			if err != nil {
				return err
			}
			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), toJSONNotifications(recs))
			}
			return printNotifications(cmd.OutOrStdout(), recs, time.Now())
		},
	}

	cmd.Flags().StringVarP(&queryFlag, "query", "q", "", "filter by subject or sender")
	cmd.Flags().IntVar(&limitFlag, "limit", 20, "max notifications to show")
	cmd.Flags().IntVar(&offsetFlag, "offset", 0, "skip this many notifications")
	return cmd
}

func printNotifications(w io.Writer, recs []store.NotificationRecord, now time.Time) error {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NOTIFIED\tFROM\tSUBJECT\tTHREAD_ID")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			formatWhen(r.NotifiedAt, now),
			clip(r.Sender, 30),
			clip(r.Subject, 50),
			r.ThreadID,
		)
	}
	return tw.Flush()
}
