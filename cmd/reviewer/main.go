// Command reviewer reviews one .sql or .py file against the rule store and
// writes a JSON report.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/app"
	"github.com/ahmednasr/mapping-assistant/internal/config"
	"github.com/ahmednasr/mapping-assistant/internal/logging"
	"github.com/ahmednasr/mapping-assistant/internal/service"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func newRootCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:           "reviewer <file.sql|file.py>",
		Short:         "Review a SQL or PySpark file against the coding rules",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if service.LanguageFor(path) == "" {
				return &exitError{code: 2, err: fmt.Errorf("unsupported file type %q: only .sql and .py files can be reviewed", path)}
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return &exitError{code: 1, err: fmt.Errorf("read %s: %w", path, err)}
			}
			return review(cmd.Context(), out, path, string(content))
		},
	}
}

func review(ctx context.Context, out io.Writer, path, content string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	pipeline, err := a.ReviewPipeline()
	if err != nil {
		return err
	}
	report, err := pipeline.Analyze(ctx, path, content)
	if err != nil {
		return err
	}
	reportPath, err := a.ReportWriter().Write(report)
	if err != nil {
		return err
	}

	logger.Info("review complete", zap.String("file", report.FileName), zap.Int("issues", report.IssuesFound))
	fmt.Fprintf(out, "Found %d issue(s) in %s\nReport written to %s\n", report.IssuesFound, report.FileName, reportPath)
	return nil
}
