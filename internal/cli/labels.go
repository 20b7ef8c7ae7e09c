package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailtriage/internal/api"
)

func newLabelsCmd() *cobra.Command {
	var confirmFlag int

	cmd := &cobra.Command{
		Use:   "labels <thread-id>",
		Short: "Show or confirm a thread's labels",
		Long: "List the labels the classifier applied to a thread with their confidence. " +
			"With --confirm, mark one suggested label as correct first.",
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

			ctx := cmd.Context()
			if cmd.Flags().Changed("confirm") {
				if err := rt.client.ConfirmLabel(ctx, args[0], confirmFlag); err != nil {
					return explain(err)
				}
				rt.log.WithField("thread_id", args[0]).WithField("label_id", confirmFlag).Info("label confirmed")
			}

			labels, err := rt.client.ThreadLabels(ctx, args[0])
			if err != nil {
				return explain(err)
			}
			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), toJSONThreadLabels(labels))
			}
			return printThreadLabels(cmd.OutOrStdout(), labels)
		},
	}

	cmd.Flags().IntVar(&confirmFlag, "confirm", 0, "label id to confirm")
	return cmd
}

func printThreadLabels(w io.Writer, labels []api.ThreadLabel) error {
	if len(labels) == 0 {
		fmt.Fprintln(w, "No labels.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL_ID\tLABEL\tCATEGORY\tCONFIDENCE\tCONFIRMED")
	for _, l := range labels {
		confirmed := "no"
		if l.Confirmed {
			confirmed = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d%%\t%s\n",
			l.LabelID, l.Name(), l.Label.Category.Name, l.Confidence, confirmed)
	}
	return tw.Flush()
}

func newAutoReplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autoreply",
		Short: "Inspect or change automatic replies",
	}
	cmd.AddCommand(newAutoReplyStatusCmd())
	cmd.AddCommand(newAutoReplyConfigCmd())
	return cmd
}

func newAutoReplyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what the auto-replier has done",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLogin(); err != nil {
				return err
			}

			s, err := rt.client.AutoReplyStatus(cmd.Context())
			if err != nil {
				return explain(err)
			}
			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), toJSONAutoReplyStatus(s))
			}
			printAutoReplyStatus(cmd.OutOrStdout(), s, time.Now())
			return nil
		},
	}
}

func newAutoReplyConfigCmd() *cobra.Command {
	var (
		enableFlag    bool
		disableFlag   bool
		signatureFlag string
		maxFlag       int
		gmailFlag     bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update the auto-reply configuration",
		Long:  "Without flags, print the configuration. Any flag updates it and prints the stored result.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if enableFlag && disableFlag {
				return fmt.Errorf("--enable and --disable are mutually exclusive")
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
			cfg, err := rt.client.AutoReplyConfig(ctx)
			if err != nil {
				return explain(err)
			}

			flags := cmd.Flags()
			if configChanged(flags.Changed) {
				switch {
				case enableFlag:
					cfg.Enabled = true
				case disableFlag:
					cfg.Enabled = false
				}
				if flags.Changed("signature") {
					cfg.Signature = signatureFlag
				}
				if flags.Changed("max-threads") {
					cfg.MaxThreadsPerCheck = maxFlag
				}
				if flags.Changed("gmail-responder") {
					cfg.UseGmailResponder = gmailFlag
				}
				if cfg, err = rt.client.SetAutoReplyConfig(ctx, cfg); err != nil {
					return explain(err)
				}
			}

			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), toJSONAutoReplyConfig(cfg))
			}
			printAutoReplyConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}

	cmd.Flags().BoolVar(&enableFlag, "enable", false, "turn auto-reply on")
	cmd.Flags().BoolVar(&disableFlag, "disable", false, "turn auto-reply off")
	cmd.Flags().StringVar(&signatureFlag, "signature", "", "signature appended to replies")
	cmd.Flags().IntVar(&maxFlag, "max-threads", 20, "threads checked per run")
	cmd.Flags().BoolVar(&gmailFlag, "gmail-responder", false, "use Gmail's vacation responder instead")
	return cmd
}

// configChanged reports whether any update flag was given. Inherited flags
// such as --json do not count.
func configChanged(changed func(string) bool) bool {
	for _, name := range []string{"enable", "disable", "signature", "max-threads", "gmail-responder"} {
		if changed(name) {
			return true
		}
	}
	return false
}

func printAutoReplyConfig(w io.Writer, cfg api.AutoReplyConfig) {
	fmt.Fprintf(w, "Enabled:         %s\n", yesNo(cfg.Enabled))
	fmt.Fprintf(w, "Max threads:     %d\n", cfg.MaxThreadsPerCheck)
	fmt.Fprintf(w, "Gmail responder: %s\n", yesNo(cfg.UseGmailResponder))
	if cfg.Signature != "" {
		fmt.Fprintf(w, "Signature:\n  %s\n", strings.ReplaceAll(cfg.Signature, "\n", "\n  "))
	}
}

func printAutoReplyStatus(w io.Writer, s api.AutoReplyStatus, now time.Time) {
	fmt.Fprintf(w, "Enabled:      %s\n", yesNo(s.Enabled))
	fmt.Fprintf(w, "Last check:   %s\n", formatWhen(s.LastCheckTime(), now))
	fmt.Fprintf(w, "Replies sent: %s\n", strconv.Itoa(s.TotalRepliesSent))
	if s.RateLimit != nil {
		warnColor.Fprintf(w, "Rate limited: %s until %s\n", s.RateLimit.Status, s.RateLimit.RetryAfter)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
