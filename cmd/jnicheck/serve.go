package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/jnicheck/internal/http"
	"github.com/fyrsmithlabs/jnicheck/internal/replay"
)

var (
	serveWatch bool
	serveHost  string
	servePort  int
)

func init() {
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "re-run and republish when the script changes")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
}

var serveCmd = &cobra.Command{
	Use:   "serve SCRIPT",
	Short: "Replay a script and serve the result over HTTP",
	Long: `Replay a script and expose the checker on the inspection API:

  GET /health               service and telemetry health
  GET /metrics              Prometheus metrics
  GET /api/v1/status        checker snapshot
  GET /api/v1/stats         per-site call counts
  GET /api/v1/leaks         resources still held
  GET /api/v1/diagnostics   recorded diagnostics (?check=&context=&site=&limit=)

Examples:
  jnicheck serve app.yaml
  jnicheck serve --watch --port 9500 app.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	runner, err := a.runner()
	if err != nil {
		return err
	}

	cfg := a.cfg.Server
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	zl := a.logger.Underlying()
	server, err := httpserver.NewServer(zl,
		&httpserver.Config{Host: cfg.Host, Port: cfg.Port, Version: version},
		httpserver.WithHealth(a.tel),
		httpserver.WithHTTPMetrics(httpserver.NewHTTPMetrics(a.tel.Meter(httpserver.InstrumentationName), zl)),
	)
	if err != nil {
		return err
	}

	path := args[0]
	publish := func() error {
		script, err := replay.LoadScript(path)
		if err != nil {
			return err
		}
		res, err := runner.Run(ctx, script)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		server.Publish(httpserver.Source{Script: res.Script, Checker: res.Checker, Diagnostics: res.Recorder})
		fmt.Fprintln(cmd.OutOrStdout(), renderResult(res))
		return nil
	}
	if err := publish(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	if serveWatch {
		w, err := newFileWatcher(watchedFiles(args), zl)
		if err != nil {
			return err
		}
		go w.Run(ctx, watchDebounce, func() {
			if err := publish(); err != nil {
				a.logger.Error(ctx, "republish failed; serving previous run", zap.Error(err))
			}
		})
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
