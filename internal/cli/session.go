package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser",
		Long: "Print the sign-in URL and wait for the backend to redirect to the local " +
			"callback address with the session token.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			s, err := rt.auth.Login(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to log in: %w", err)
			}

			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), jsonAction{OK: true, Action: "login", UserID: s.UserID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in (user %s).\n", s.UserID)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.auth.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("failed to log out: %w", err)
			}
			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), jsonAction{OK: true, Action: "logout"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLogin(); err != nil {
				return err
			}

			u, err := rt.client.Me(cmd.Context())
			if err != nil {
				return explain(err)
			}
			if jsonFlag {
				return fprintJSON(cmd.OutOrStdout(), toJSONUser(u))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id %s)\n", u.Name, u.Email, u.ID)
			return nil
		},
	}
}
