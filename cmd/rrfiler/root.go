package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rrfiler/internal/app"
	"rrfiler/internal/platform/config"
	"rrfiler/internal/platform/logger"
	"rrfiler/internal/platform/postgres"
	"rrfiler/pkg/requestcontext"
)

// env is what commands need from the outside world.
type env struct {
	loadConfig func() (*config.Config, error)
	build      func(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app.App, error)
	stderr     io.Writer
}

func defaultEnv() env {
	return env{loadConfig: config.FromEnv, build: app.Build, stderr: os.Stderr}
}

type rootOptions struct {
	timeout  time.Duration
	operator string
}

func newRootCmd(e env) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "rrfiler",
		Short:         "Submit real estate transaction reports and track their acknowledgements",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Operation timeout")
	root.PersistentFlags().StringVar(&opts.operator, "operator", os.Getenv("USER"), "Operator recorded in audit events")

	root.AddCommand(
		newSubmitCmd(e, opts),
		newPollCmd(e, opts),
		newRetryCmd(e, opts),
		newStatusCmd(e, opts),
		newMigrateCmd(e, opts),
	)
	return root
}

// session is one command invocation: a configured app and a bounded context.
type session struct {
	ctx    context.Context
	app    *app.App
	log    *slog.Logger
	cancel context.CancelFunc
}

func (s *session) close() {
	s.app.Close()
	s.cancel()
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	if o.operator != "" {
		ctx = requestcontext.WithActor(ctx, o.operator)
	}
	return ctx, cancel
}

var errNoDatabase = errors.New("no database configured (RRFILER_DATABASE_DSN)")

// open loads config and builds the app. Commands that read submissions left
// by an earlier run pass durable, since an in-memory store starts empty.
func (o *rootOptions) open(cmd *cobra.Command, e env, durable bool) (*session, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if durable && cfg.Database.DSN == "" {
		return nil, fmt.Errorf("%s needs stored submissions: %w", cmd.Name(), errNoDatabase)
	}
	log := logger.NewWithWriter(e.stderr, cfg.Log.Level)
	ctx, cancel := o.context(cmd)
	a, err := e.build(ctx, cfg, log)
	if err != nil {
		cancel()
		return nil, err
	}
	return &session{ctx: ctx, app: a, log: log, cancel: cancel}, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCmd(e env, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.DSN == "" {
				return errNoDatabase
			}
			log := logger.NewWithWriter(e.stderr, cfg.Log.Level)
			ctx, cancel := opts.context(cmd)
			defer cancel()
			db, err := postgres.Open(ctx, cfg.Database.DSN, log)
			if err != nil {
				return err
			}
			defer db.Close()
			return postgres.Migrate(db, log)
		},
	}
}
