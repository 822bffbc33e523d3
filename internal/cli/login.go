package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/client/session"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

const envAdminPassword = "NURSERYFINDER_ADMIN_PASSWORD"

type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as an admin and keep the session",
		Long: `Sign in to the admin API. The session is written to the session file and
reused by every other command until logout.

The password may come from --password or NURSERYFINDER_ADMIN_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "admin password")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *LoginOptions) error {
	rt, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer rt.storage.Close()

	password := opts.Password
	if password == "" {
		password = os.Getenv(envAdminPassword)
	}
	ctx := rt.logg.WithDomain(cmd.Context(), string(enums.SessionDomainAdmin))
	res, err := rt.api.AdminLogin(ctx, opts.Email, password)
	if err != nil {
		return rt.fail(ctx, err)
	}

	user := &session.UserSummary{
		ID:        res.User.ID,
		Email:     res.User.Email,
		FirstName: res.User.FirstName,
		LastName:  res.User.LastName,
		Role:      res.User.Role,
	}
	if res.User.Phone != nil {
		user.Phone = *res.User.Phone
	}
	if err := rt.admin.Set(session.Tokens{Access: res.AccessToken, Refresh: res.RefreshToken}, user); err != nil {
		return WrapExitError(ExitAuth, "store session", err)
	}
	rt.logg.Info(rt.logg.WithUserID(ctx, user.ID.String()), "cli.login.complete")

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"email": user.Email, "role": user.Role})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Email)
	return nil
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the admin session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.storage.Close()

			ctx := cmd.Context()
			if rt.admin.Current().Authenticated {
				// the local session goes regardless of what the server says
				if err := rt.api.Logout(ctx, enums.SessionDomainAdmin); err != nil {
					rt.logg.Warn(rt.logg.WithField(ctx, "error", err.Error()), "cli.logout.revoke_failed")
				}
			}
			if err := rt.admin.Clear(); err != nil {
				return WrapExitError(ExitFailure, "clear session", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
