package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"apisketch/internal/gateway/config"
	"apisketch/internal/gateway/repository/eventlog"
	"apisketch/internal/sketch/projector"
)

type rootOptions struct {
	backend     string
	databaseURL string
	sqlitePath  string
	timeout     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "sketchctl",
		Short:         "Inspect sketch event logs and their projected trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "event log backend: postgres or sqlite (default from EVENTLOG_BACKEND)")
	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "postgres DSN (default from DATABASE_URL)")
	root.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite-path", "", "sqlite file (default from SQLITE_PATH)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline for storage calls")

	root.AddCommand(newTreeCmd(opts), newVerifyCmd(opts), newEventsCmd(opts))
	return root
}

// openLog resolves flags over the environment and opens the event log.
func (o *rootOptions) openLog(ctx context.Context) (eventlog.Store, error) {
	_ = godotenv.Load()
	var ec config.EventLogConfig
	if err := env.Parse(&ec); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	lc := eventlog.Config{
		Backend:       firstSet(o.backend, ec.Backend),
		DatabaseURL:   firstSet(o.databaseURL, ec.DatabaseURL),
		SQLitePath:    firstSet(o.sqlitePath, ec.SQLitePath),
		ReadCacheSize: ec.ReadCacheSize,
	}
	switch strings.ToLower(strings.TrimSpace(lc.Backend)) {
	case eventlog.BackendPostgres, eventlog.BackendSQLite:
	default:
		return nil, fmt.Errorf("backend %q has no durable log to inspect; use --backend postgres or sqlite", lc.Backend)
	}
	return eventlog.Open(ctx, lc)
}

func firstSet(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envValue
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func newTreeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [sketchId]",
		Short: "Replay a sketch and print its rendered tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := contextWithTimeout(cmd, opts.timeout)
			defer cancel()
			store, err := opts.openLog(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			t, err := projector.New(store, nil).Replay(ctx, args[0])
			if err != nil {
				return err
			}
			if !t.HasRoot() {
				return fmt.Errorf("sketch %s has no root", args[0])
			}
			raw, err := json.MarshalIndent(t.Render(), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [sketchId]",
		Short: "Replay a sketch twice and fail if the trees differ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := contextWithTimeout(cmd, opts.timeout)
			defer cancel()
			store, err := opts.openLog(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			p := projector.New(store, nil)
			first, err := p.Replay(ctx, args[0])
			if err != nil {
				return err
			}
			if inv, ok := store.(eventlog.Invalidator); ok {
				inv.Invalidate(args[0])
			}
			second, err := p.Replay(ctx, args[0])
			if err != nil {
				return err
			}
			a, err := first.Canonical()
			if err != nil {
				return err
			}
			b, err := second.Canonical()
			if err != nil {
				return err
			}
			if !first.Equal(second) || !bytes.Equal(a, b) {
				return fmt.Errorf("sketch %s: replays diverged", args[0])
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok sketch=%s seq=%d nodes=%d\n", args[0], first.Seq, first.Len())
			return err
		},
	}
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events [sketchId]",
		Short: "List a sketch's events in append order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := contextWithTimeout(cmd, opts.timeout)
			defer cancel()
			store, err := opts.openLog(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.ReadAll(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tTYPE\tUSER\tCREATED")
			for _, evt := range events {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", evt.Seq, evt.Type, evt.UserID, evt.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}
