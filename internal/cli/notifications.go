package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/client"
)

type NotificationsOptions struct {
	*RootOptions
	Limit int
}

func NewNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotificationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notifs"},
		Short:   "Show the newest moderation notifications",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifications(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "how many to show (1-100)")
	cmd.AddCommand(newNotificationReadCommand(rootOpts))
	return cmd
}

func runNotifications(cmd *cobra.Command, opts *NotificationsOptions) error {
	if opts.Limit < 1 || opts.Limit > 100 {
		return NewExitError(ExitUsage, "--limit must be between 1 and 100")
	}
	rt, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer rt.storage.Close()
	if err := rt.requireSession(); err != nil {
		return err
	}

	ctx := cmd.Context()
	feed := client.NewFeed(rt.api, rt.logg)
	items, err := feed.Load(ctx, opts.Limit)
	if err != nil {
		return rt.fail(ctx, err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), client.RecentNotifications{Notifications: items, UnreadCount: feed.Unread()})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", feed.Unread())
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, n := range items {
		marker := " "
		if !n.IsRead {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Title, n.Message)
	}
	return tw.Flush()
}

func newNotificationReadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(strings.TrimSpace(args[0]))
			if err != nil {
				return NewExitError(ExitUsage, fmt.Sprintf("invalid notification id %q", args[0]))
			}
			rt, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.storage.Close()
			if err := rt.requireSession(); err != nil {
				return err
			}

			ctx := cmd.Context()
			changed, err := client.NewFeed(rt.api, rt.logg).MarkRead(ctx, id)
			if err != nil {
				return rt.fail(ctx, err)
			}
			if changed {
				fmt.Fprintln(cmd.OutOrStdout(), "Marked as read")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Already read")
			}
			return nil
		},
	}
}
