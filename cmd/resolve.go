package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/watershed-cli/internal/dams"
	"github.com/sells-group/watershed-cli/internal/export"
	"github.com/sells-group/watershed-cli/internal/metrics"
	"github.com/sells-group/watershed-cli/internal/pipeline"
	"github.com/sells-group/watershed-cli/internal/store"
)

var (
	resolveFormat   string
	resolveOut      string
	resolveEncoding string
	resolveSheet    string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <dams-file>",
	Short: "Resolve a table of dams to their upstream basins",
	Long:  "Reads dams from CSV, TSV, XLSX or YAML, resolves each against the configured HydroSHEDS region and writes snapped points, ancestor sets and failures.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyResolveFlags(cmd, cfg)
		if cmd.Flags().Changed("format") {
			cfg.Export.Format = resolveFormat
		}
		if cmd.Flags().Changed("out") {
			cfg.Export.Dir = resolveOut
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		format, err := export.ParseFormat(cfg.Export.Format)
		if err != nil {
			return err
		}
		pcfg, err := pipelineConfig(cfg)
		if err != nil {
			return err
		}

		input, err := dams.ReadFile(ctx, args[0], dams.Options{Encoding: resolveEncoding, Sheet: resolveSheet})
		if err != nil {
			return eris.Wrap(err, "resolve: read dams")
		}
		zap.L().Info("resolve: dams loaded", zap.String("file", args[0]), zap.Int("count", len(input)))

		snapshot, err := loadSnapshot(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "resolve: load snapshot")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.CreateRun(ctx, pcfg.Method.String(), args[0], len(input))
		if err != nil {
			return eris.Wrap(err, "resolve: create run")
		}
		log := zap.L().With(zap.String("run_id", run.ID))

		sinks, cleanup, err := buildSinks(ctx, format, st, run.ID)
		if err != nil {
			failRun(st, run.ID, err)
			return err
		}
		defer cleanup()

		orch, err := pipeline.New(snapshot, pcfg,
			pipeline.WithSinks(sinks...),
			pipeline.WithMetrics(metrics.New()),
		)
		if err != nil {
			failRun(st, run.ID, err)
			return err
		}

		result, err := orch.Run(ctx, input)
		if result != nil && len(result.Failures) > 0 {
			// Failures are recorded even for a cancelled batch.
			if serr := st.SaveFailures(context.WithoutCancel(ctx), run.ID, result.Failures); serr != nil {
				log.Warn("resolve: save failures", zap.Error(serr))
			}
		}
		if err != nil {
			failRun(st, run.ID, err)
			return err
		}

		if err := st.CompleteRun(ctx, run.ID, result.Succeeded(), result.Failed()); err != nil {
			return eris.Wrap(err, "resolve: complete run")
		}

		printSummary(os.Stdout, run.ID, format, result)
		return nil
	},
}

// failRun marks the run failed without letting a bookkeeping error hide
// the original one.
func failRun(st store.Store, runID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.FailRun(ctx, runID, cause.Error()); err != nil {
		zap.L().Warn("resolve: mark run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func printSummary(w io.Writer, runID string, format export.Format, res *pipeline.BatchResult) {
	_, _ = fmt.Fprintf(w, "Run %s (%s)\n", truncateID(runID), res.Method)
	_, _ = fmt.Fprintf(w, "  Dams:      %d\n", res.Total)
	_, _ = fmt.Fprintf(w, "  Resolved:  %d\n", res.Succeeded())
	_, _ = fmt.Fprintf(w, "  Failed:    %d\n", res.Failed())
	_, _ = fmt.Fprintf(w, "  Output:    %s\n", format)
	_, _ = fmt.Fprintf(w, "  Duration:  %s\n", res.Duration.Round(time.Millisecond))
}

func init() {
	addResolveFlags(resolveCmd)
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "jsonl", "export format (jsonl, csv, xlsx, sqlite, postgis)")
	resolveCmd.Flags().StringVar(&resolveOut, "out", "./out", "output directory for file formats")
	resolveCmd.Flags().StringVar(&resolveEncoding, "encoding", "", "character encoding of CSV input (e.g. windows-1252)")
	resolveCmd.Flags().StringVar(&resolveSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	rootCmd.AddCommand(resolveCmd)
}
