package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jnicheck/internal/replay"
)

var (
	replayWatch  bool
	replayJSON   bool
	replayStrict bool
)

func init() {
	replayCmd.Flags().BoolVarP(&replayWatch, "watch", "w", false, "re-run when a script or its universe changes")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "print results as JSON")
	replayCmd.Flags().BoolVar(&replayStrict, "strict", false, "exit non-zero when any run reports diagnostics")
}

var replayCmd = &cobra.Command{
	Use:   "replay SCRIPT...",
	Short: "Replay event scripts through the checker",
	Long: `Replay one or more event scripts against a simulated runtime and
report every protocol violation, leaked resource, and (with
checker.method_count) per-site call counts.

Examples:
  # Replay a script
  jnicheck replay app.yaml

  # Fail a CI step on any diagnostic
  jnicheck replay --strict scripts/*.yaml

  # Re-run on every save
  jnicheck replay --watch app.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
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

	clean, err := replayAll(ctx, runner, args, cmd.OutOrStdout())
	if !replayWatch {
		if err != nil {
			return err
		}
		if replayStrict && !clean {
			return errDiagnostics
		}
		return nil
	}
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}

	w, err := newFileWatcher(watchedFiles(args), a.logger.Underlying())
	if err != nil {
		return err
	}
	a.logger.Info(ctx, "watching scripts", zap.Strings("scripts", args))
	w.Run(ctx, watchDebounce, func() {
		if _, err := replayAll(ctx, runner, args, cmd.OutOrStdout()); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		}
	})
	return nil
}

// replayAll runs every script in order and prints each result. It stops at
// the first script that fails to load or run.
func replayAll(ctx context.Context, runner *replay.Runner, paths []string, out io.Writer) (clean bool, err error) {
	clean = true
	for _, path := range paths {
		script, err := replay.LoadScript(path)
		if err != nil {
			return false, err
		}
		res, err := runner.Run(ctx, script)
		if err != nil {
			return false, fmt.Errorf("%s: %w", path, err)
		}
		clean = clean && res.Clean()
		if err := printResult(out, res); err != nil {
			return false, err
		}
	}
	return clean, nil
}

func printResult(out io.Writer, res *replay.Result) error {
	if replayJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := fmt.Fprintln(out, renderResult(res))
	return err
}

// watchedFiles lists the scripts and the universe files they reference.
func watchedFiles(paths []string) []string {
	files := append([]string(nil), paths...)
	for _, path := range paths {
		script, err := replay.LoadScript(path)
		if err != nil || script.Universe == "" {
			continue
		}
		u := script.Universe
		if !filepath.IsAbs(u) {
			u = filepath.Join(filepath.Dir(path), u)
		}
		files = append(files, u)
	}
	return files
}
