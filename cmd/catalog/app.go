package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalog/internal/apierror"
	"github.com/smallbiznis/catalog/internal/cache"
	"github.com/smallbiznis/catalog/internal/catalog"
	"github.com/smallbiznis/catalog/internal/catalogtype"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/lock"
	"github.com/smallbiznis/catalog/internal/migration"
	"github.com/smallbiznis/catalog/internal/observability"
	"github.com/smallbiznis/catalog/pkg/db"
	"github.com/smallbiznis/catalog/pkg/telemetry/correlation"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const startTimeout = 30 * time.Second

// infrastructure is shared by every command. Commands that touch catalog
// data add domainModules on top.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
}

func domainModules() fx.Option {
	return fx.Options(
		cache.Module,
		lock.Module,
		migration.Module,
		catalogtype.Module,
		catalog.Module,
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return node, nil
}

// runApp starts a short-lived application, hands the populated targets to fn
// and stops the application again.
func runApp(cmd *cobra.Command, opts []fx.Option, fn func(ctx context.Context) error) error {
	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}

	startCtx, cancel := context.WithTimeout(cmd.Context(), startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	ctx, _ := correlation.Ensure(correlation.FromEnv(cmd.Context()))
	return fn(ctx)
}

// withDomain runs fn with the full catalog stack. targets are pointers filled
// through fx.Populate.
func withDomain(cmd *cobra.Command, fn func(ctx context.Context) error, targets ...any) error {
	return runApp(cmd, []fx.Option{
		infrastructure(),
		domainModules(),
		fx.Populate(targets...),
	}, func(ctx context.Context) error {
		return report(cmd, fn(ctx))
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var errInvalidMetadata = apierror.NewValidationError("metadata", "invalid_metadata", "metadata must be a JSON object")

// report renders err the way an external caller would receive it.
func report(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	mapped := apierror.Map(err)
	_ = writeJSON(cmd.ErrOrStderr(), mapped)
	return err
}
