package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailtriage/internal/api"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show mailbox analytics",
		Long:  "Print totals, the busiest senders, and per-category counts as reported by the backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLogin(); err != nil {
				return err
			}

			s, err := rt.client.AnalyticsSummary(cmd.Context())
			if err != nil {
				return explain(err)
			}
			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), toJSONSummary(s))
			}
			printSummary(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func printSummary(w io.Writer, s api.Summary) {
	fmt.Fprintf(w, "Total:  %s\n", humanize.Comma(int64(s.TotalEmails)))
	fmt.Fprintf(w, "Unread: %s\n", humanize.Comma(int64(s.UnreadEmails)))
	fmt.Fprintf(w, "Weekly: %s\n", formatChange(s.WeeklyChange))

	if len(s.TopSenders) > 0 {
		fmt.Fprintln(w)
		tw := tablewriter.NewWriter(w)
		tw.SetHeader([]string{"Sender", "Emails"})
		for _, sc := range s.TopSenders {
			tw.Append([]string{sc.Email, humanize.Comma(int64(sc.Count))})
		}
		tw.Render()
	}

	if len(s.EmailCategories) > 0 {
		names := make([]string, 0, len(s.EmailCategories))
		for name := range s.EmailCategories {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			ci, cj := s.EmailCategories[names[i]], s.EmailCategories[names[j]]
			if ci != cj {
				return ci > cj
			}
			return names[i] < names[j]
		})

		fmt.Fprintln(w)
		tw := tablewriter.NewWriter(w)
		tw.SetHeader([]string{"Category", "Emails"})
		for _, name := range names {
			tw.Append([]string{name, humanize.Comma(int64(s.EmailCategories[name]))})
		}
		tw.Render()
	}
}

func formatChange(pct float64) string {
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return sign + strconv.FormatFloat(pct, 'f', 1, 64) + "%"
}
