package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/client"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/client/moderation"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/client/session"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

type runtime struct {
	opts    *RootOptions
	logg    *logger.Logger
	storage *session.FileStorage
	admin   *session.AdminStore
	api     *client.Client
}

func (o *RootOptions) open(cmd *cobra.Command) (*runtime, error) {
	level, format := "warn", "console"
	if o.cfg != nil {
		level, format = o.cfg.LogLevel, o.cfg.LogFormat
	}
	if o.Verbose {
		level = "debug"
	}
	logg := logger.New(logger.Options{
		ServiceName: "nurseryctl",
		Level:       logger.ParseLevel(level),
		Output:      cmd.ErrOrStderr(),
		Format:      format,
	})

	storage, err := session.NewFileStorage(o.SessionFile, 0, session.WithFileLogger(logg))
	if err != nil {
		return nil, WrapExitError(ExitFailure, "open session file", err)
	}
	admin := session.NewAdminStore(storage)

	api, err := client.New(client.Config{BaseURL: o.APIURL, Timeout: o.Timeout}, logg)
	if err != nil {
		return nil, WrapExitError(ExitUsage, "configure client", err)
	}
	return &runtime{
		opts:    o,
		logg:    logg,
		storage: storage,
		admin:   admin,
		api:     api.WithTokens(admin.AccessToken),
	}, nil
}

// requireSession stops before any request when no admin session is stored.
func (rt *runtime) requireSession() error {
	if !rt.admin.Current().Authenticated {
		return NewExitError(ExitAuth, signInHint)
	}
	return nil
}

// fail clears a session the server no longer accepts and describes err.
func (rt *runtime) fail(ctx context.Context, err error) error {
	if client.RequiresSignIn(err) {
		if clearErr := rt.admin.Clear(); clearErr != nil {
			rt.logg.Error(ctx, "cli.session.clear_failed", clearErr)
		}
	}
	rt.logg.Debug(rt.logg.WithField(ctx, "kind", string(client.KindOf(err))), "cli.command.failed")
	return describe(err)
}

func (rt *runtime) console() *moderation.Console {
	timeout := rt.opts.Timeout
	if rt.opts.cfg != nil && rt.opts.cfg.Moderation.RequestTimeout > 0 {
		timeout = rt.opts.cfg.Moderation.RequestTimeout
	}
	return moderation.NewConsole(rt.api, moderation.Options{ActionTimeout: timeout, Logger: rt.logg})
}
