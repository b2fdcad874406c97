// Command tablebook exports database tables to flat files and consolidates
// a directory of flat files into one workbook.
//
// Settings come from the YAML file named by TABLEBOOK_CONFIG (optional) and
// TABLEBOOK_* environment variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-command/dispatcher"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-tablebook/command"
	"github.com/goliatone/go-tablebook/config"
	"github.com/goliatone/go-tablebook/consolidate"
	"github.com/goliatone/go-tablebook/export"
	"github.com/goliatone/go-tablebook/pipeline"
	"github.com/goliatone/go-tablebook/query"
)

const configEnv = "TABLEBOOK_CONFIG"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "tablebook",
		Short:        "Export database tables and consolidate flat files into a workbook",
		SilenceUsage: true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "export [table...]",
			Short: "Export every eligible table, or the named ones, to flat files",
			RunE:  runExport,
		},
		&cobra.Command{
			Use:   "consolidate",
			Short: "Merge the flat files in the output directory into one workbook",
			Args:  cobra.NoArgs,
			RunE:  runConsolidate,
		},
		&cobra.Command{
			Use:   "run",
			Short: "Export, then consolidate the same directory",
			Args:  cobra.NoArgs,
			RunE:  runPipeline,
		},
		&cobra.Command{
			Use:   "outcomes <run-id>",
			Short: "Show the outcomes the ledger recorded for a run",
			Args:  cobra.ExactArgs(1),
			RunE:  runOutcomes,
		},
	)
	return root
}

func runExport(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var report export.Report
		_, err := dispatcher.DispatchWithResult[command.ExportTables, export.Report](ctx, command.ExportTables{
			Tables: args,
			Result: &report,
		})
		printReport(cmd.OutOrStdout(), report)
		return err
	})
}

func runConsolidate(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var result consolidate.Result
		_, err := dispatcher.DispatchWithResult[command.ConsolidateDirectory, consolidate.Result](ctx, command.ConsolidateDirectory{
			Result: &result,
		})
		printConsolidation(cmd.OutOrStdout(), result)
		return err
	})
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var result pipeline.Result
		_, err := dispatcher.DispatchWithResult[command.RunPipeline, pipeline.Result](ctx, command.RunPipeline{
			SkipExport: a.cfg.SkipExport,
			Result:     &result,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", result.RunID)
		printReport(cmd.OutOrStdout(), result.Export)
		printConsolidation(cmd.OutOrStdout(), result.Consolidate)
		return err
	})
}

func runOutcomes(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if a.ledger == nil {
			return export.NewError(export.KindValidation, "ledger is disabled, set ledger.enabled", nil)
		}
		outcomes, err := dispatcher.Query[query.RunOutcomes, []export.Outcome](ctx, query.RunOutcomes{RunID: args[0]})
		if err != nil {
			return err
		}
		for _, o := range outcomes {
			printOutcome(cmd.OutOrStdout(), o)
		}
		return nil
	})
}

func withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	cfg, err := config.Load(os.Getenv(configEnv))
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "config: %v\n", err)
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Logging)

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Errorf("startup failed: %v", err)
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Errorf("shutdown failed: %v", err)
		}
	}()

	if err := fn(ctx, a); err != nil {
		logger.Errorf("%s failed: %v", cmd.Name(), err)
		return err
	}
	return nil
}

func printReport(w io.Writer, report export.Report) {
	for _, o := range report.Outcomes {
		printOutcome(w, o)
	}
}

func printConsolidation(w io.Writer, result consolidate.Result) {
	printReport(w, result.Report)
	if result.Written {
		fmt.Fprintf(w, "workbook %s sheets=%d bytes=%d\n", result.Path, len(result.Sheets), result.Bytes)
	}
}

func printOutcome(w io.Writer, o export.Outcome) {
	switch o.Status {
	case export.StatusFailed:
		fmt.Fprintf(w, "%-11s %-8s %s kind=%s err=%v\n", o.Stage, o.Status, o.Name, o.Kind, o.Err)
	case export.StatusWritten:
		target := o.Path
		if o.Sheet != "" {
			target = "sheet " + o.Sheet
		}
		fmt.Fprintf(w, "%-11s %-8s %s -> %s rows=%d\n", o.Stage, o.Status, o.Name, target, o.Rows)
	default:
		fmt.Fprintf(w, "%-11s %-8s %s\n", o.Stage, o.Status, o.Name)
	}
}
