package cli

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/client"
)

type ReviewsListOptions struct {
	*RootOptions
	Status    string
	Search    string
	Sort      string
	Direction string
	Limit     int
	Cursor    string
}

func NewReviewsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "List and moderate reviews",
	}
	cmd.AddCommand(newReviewsListCommand(rootOpts))
	cmd.AddCommand(newModerateCommand(rootOpts, "approve", "Approve a review so it counts towards its nursery"))
	cmd.AddCommand(newModerateCommand(rootOpts, "reject", "Reject a review"))
	cmd.AddCommand(newDeleteCommand(rootOpts))
	return cmd
}

func newReviewsListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReviewsListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reviews in the moderation queue",
		Example: `  nurseryctl reviews list --status pending
  nurseryctl reviews list --search smith --sort rating --dir asc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReviewsList(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "all", "all|approved|pending|rejected")
	cmd.Flags().StringVar(&opts.Search, "search", "", "match reviewer name, email or nursery name")
	cmd.Flags().StringVar(&opts.Sort, "sort", "created_at", "created_at|rating|nursery_name|status")
	cmd.Flags().StringVar(&opts.Direction, "dir", "desc", "asc|desc")
	cmd.Flags().IntVar(&opts.Limit, "limit", 25, "page size")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "cursor from a previous page")

	return cmd
}

func runReviewsList(cmd *cobra.Command, opts *ReviewsListOptions) error {
	rt, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer rt.storage.Close()
	if err := rt.requireSession(); err != nil {
		return err
	}

	ctx := cmd.Context()
	console := rt.console()
	defer console.Close()
	items, err := console.Refresh(ctx, client.ReviewQuery{
		Status:    opts.Status,
		Search:    opts.Search,
		Sort:      opts.Sort,
		Direction: opts.Direction,
		Limit:     opts.Limit,
		Cursor:    opts.Cursor,
	})
	if err != nil {
		return rt.fail(ctx, err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), items)
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No reviews")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tRATING\tNURSERY\tREVIEWER\tTITLE")
	for _, r := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s %s <%s>\t%s\n",
			r.ID, r.Status, r.Rating, r.NurseryName, r.FirstName, r.LastName, r.Email, r.Title)
	}
	return tw.Flush()
}

func parseReviewID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, NewExitError(ExitUsage, fmt.Sprintf("invalid review id %q", raw))
	}
	return id, nil
}

func newModerateCommand(rootOpts *RootOptions, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <review-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReviewID(args[0])
			if err != nil {
				return err
			}
			rt, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.storage.Close()
			if err := rt.requireSession(); err != nil {
				return err
			}

			ctx := rt.logg.WithReviewID(cmd.Context(), id.String())
			console := rt.console()
			var res *client.ModerationResult
			if action == "approve" {
				res, err = console.Approve(ctx, id)
			} else {
				res, err = console.Reject(ctx, id)
			}
			if err != nil {
				return rt.fail(ctx, err)
			}
			return printModeration(cmd, rootOpts, res)
		},
	}
}

type DeleteOptions struct {
	*RootOptions
	Yes bool
}

func newDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "delete <review-id>",
		Short: "Permanently delete a review",
		Long: `Permanently delete a review. Deleting an approved review lowers its
nursery's review count. You are asked to confirm unless --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, opts, args[0])
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runDelete(cmd *cobra.Command, opts *DeleteOptions, raw string) error {
	id, err := parseReviewID(raw)
	if err != nil {
		return err
	}
	rt, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer rt.storage.Close()
	if err := rt.requireSession(); err != nil {
		return err
	}

	ctx := rt.logg.WithReviewID(cmd.Context(), id.String())
	console := rt.console()
	if err := console.RequestDelete(id); err != nil {
		return rt.fail(ctx, err)
	}
	if !opts.Yes && !confirm(cmd, fmt.Sprintf("Delete review %s? This cannot be undone. [y/N]: ", id)) {
		console.CancelDelete(id)
		fmt.Fprintln(cmd.OutOrStdout(), "Delete cancelled")
		return nil
	}
	res, err := console.ConfirmDelete(ctx, id)
	if err != nil {
		return rt.fail(ctx, err)
	}
	return printModeration(cmd, opts.RootOptions, res)
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func printModeration(cmd *cobra.Command, opts *RootOptions, res *client.ModerationResult) error {
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	if !res.Changed {
		fmt.Fprintf(cmd.OutOrStdout(), "Review %s was already %s\n", res.Review.ID, res.Review.Status)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Review %s: %s -> %s (nursery now has %d approved reviews)\n",
		res.Review.ID, res.PreviousStatus, outcome(cmd.Name(), res), res.ReviewCount)
	return nil
}

func outcome(action string, res *client.ModerationResult) string {
	if action == "delete" {
		return "deleted"
	}
	return string(res.Review.Status)
}
