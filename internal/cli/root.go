// Package cli implements nurseryctl, the admin console for review moderation.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	APIURL      string
	SessionFile string
	Timeout     time.Duration
	Format      string
	Verbose     bool

	cfg *config.ClientConfig
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nurseryctl",
		Short: "nurseryctl moderates nurseryfinder reviews",
		Long: `nurseryctl signs in to the nurseryfinder admin API and works the review
moderation queue and the notification feed from a terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitUsage, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolve()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "API base url (env NURSERYFINDER_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.SessionFile, "session-file", "", "where the admin session is kept (env NURSERYFINDER_SESSION_FILE)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "request timeout (env NURSERYFINDER_CLIENT_TIMEOUT)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every request")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewReviewsCommand(opts))
	cmd.AddCommand(NewNotificationsCommand(opts))

	return cmd
}

// resolve fills unset flags from the environment.
func (o *RootOptions) resolve() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return WrapExitError(ExitUsage, "load client config", err)
	}
	o.cfg = cfg
	if o.APIURL == "" {
		o.APIURL = cfg.APIURL
	}
	if o.Timeout <= 0 {
		o.Timeout = cfg.Timeout
	}
	if o.SessionFile == "" {
		o.SessionFile = cfg.SessionFile
	}
	if o.SessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return WrapExitError(ExitUsage, "locate config dir, pass --session-file", err)
		}
		o.SessionFile = filepath.Join(dir, "nurseryfinder", "session.yaml")
	}
	return nil
}
