package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/WipBox/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(defaultBuilderFactories()).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(f builderFactories) *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "wip-builder",
		Short:        "Rebuilds the daily WIP snapshot history of servers and racks",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("configPath"), "path to the YAML config (env configPath)")

	// withApp поднимает зависимости для одной команды и закрывает их после.
	withApp := func(run func(ctx context.Context, app *builderApp, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if cfgPath == "" {
				return fmt.Errorf("configPath env var or --config flag is required")
			}
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return fmt.Errorf("ошибка парсинга конфига, %w", err)
			}
			app, err := newBuilderApp(cfg, f)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, app, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Build periodically and serve the control HTTP API",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, app *builderApp, _ []string) error {
				err := runBuilder(ctx, app, os.Getenv("swaggerPath"), nil)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}),
		},
		&cobra.Command{
			Use:   "once",
			Short: "Run a single build and exit",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, app *builderApp, _ []string) error {
				results, err := app.runner.RunOnce(ctx)
				for _, res := range results {
					for _, uf := range res.Failed {
						slog.Warn("unit not rebuilt", "run_id", res.RunID, "kind", string(res.Kind),
							"serial_number", uf.SerialNumber, "error", uf.Err.Error())
					}
				}
				return err
			}),
		},
		&cobra.Command{
			Use:   "purge",
			Short: "Delete snapshots older than retention_days",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, app *builderApp, _ []string) error {
				_, err := app.runner.Purge(ctx)
				return err
			}),
		},
		&cobra.Command{
			Use:   "import <checkpoints.csv>",
			Short: "Load a raw checkpoint export into the event store",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, app *builderApp, args []string) error {
				n, err := app.importCheckpoints(ctx, args[0])
				if err != nil {
					return err
				}
				slog.Info("checkpoints imported", "file", args[0], "inserted", n)
				return nil
			}),
		},
	)
	return root
}

// runBuilder запускает периодическую сборку и control-сервер, первая сборка сразу.
func runBuilder(ctx context.Context, app *builderApp, swaggerPath string, onListen func(string)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runBuilderHTTPServer(ctx, builderHTTPOpts{
			httpAddr:     app.cfg.WipBox.BuilderHTTPAddr,
			swaggerPath:  swaggerPath,
			onListen:     onListen,
			runner:       app.runner,
			limiter:      app.limiter,
			triggerLimit: int64(app.cfg.WipBox.TriggerRateLimitPerMinute),
			cfg:          app.cfg,
		})
	}()

	runErr := make(chan error, 1)
	app.runner.Trigger()
	go func() {
		runErr <- app.runner.Run(ctx)
	}()

	var err error
	select {
	case err = <-httpErr:
	case err = <-runErr:
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
