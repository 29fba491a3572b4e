package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/checklist-cli/internal/extract"
	"github.com/sells-group/checklist-cli/internal/model"
	"github.com/sells-group/checklist-cli/internal/progress"
	"github.com/sells-group/checklist-cli/internal/sheet"
)

var (
	extractFile     string
	extractSheet    string
	extractOutput   string
	extractFormat   string
	extractJobID    string
	extractProgress bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract checklist items from one spreadsheet",
	Long: `Reads the first (or --sheet) sheet of an XLSX or CSV file and prints the
extracted checklist items.

Examples:
  checklist-cli extract --file inspection.xlsx
  checklist-cli extract --file list.csv --format yaml --output items.yaml --progress`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if extractFormat != "json" && extractFormat != "yaml" {
			return eris.Errorf("extract: unknown format %q (want json or yaml)", extractFormat)
		}
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tbl, err := sheet.ReadFile(extractFile, sheet.Options{SheetName: extractSheet})
		if err != nil {
			return err
		}

		b := progress.NewBroadcaster()
		defer b.Close()
		var lines *progress.Subscription
		if extractProgress {
			lines = b.SubscribeFunc(progressLines(cmd.ErrOrStderr()))
		}

		ext, _, err := buildExtractor(ctx, b)
		if err != nil {
			return err
		}

		res, err := ext.Extract(ctx, extract.Input{
			JobID:    extractJobID,
			Header:   tbl.Header,
			DataRows: tbl.DataRows,
		})
		if lines != nil {
			// Flush queued progress lines before the result is written.
			b.Unsubscribe(lines)
			<-lines.Done()
		}
		if res == nil {
			return err
		}

		for _, f := range res.Failures {
			zap.L().Warn("chunk failed",
				zap.String("rows", f.AffectedRows),
				zap.String("error", f.Error),
			)
		}

		out := cmd.OutOrStdout()
		if extractOutput != "" {
			f, ferr := os.Create(extractOutput)
			if ferr != nil {
				return eris.Wrap(ferr, "extract: create output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		if werr := writeResult(out, res, extractFormat); werr != nil {
			return werr
		}

		zap.L().Info("extraction complete",
			zap.String("job_id", res.JobID),
			zap.String("sheet", tbl.Sheet),
			zap.Int("items", len(res.Items)),
			zap.Int("failed_chunks", len(res.Failures)),
		)
		return err
	},
}

// writeResult encodes res as indented JSON or YAML.
func writeResult(w io.Writer, res *model.ExtractionResult, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return eris.Wrap(err, "extract: encode yaml")
		}
		return eris.Wrap(enc.Close(), "extract: encode yaml")
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "extract: encode json")
	}
}

// progressLines writes each event as one JSON line. A write error removes
// the observer.
func progressLines(w io.Writer) func(model.ProgressEvent) error {
	enc := json.NewEncoder(w)
	return func(ev model.ProgressEvent) error {
		return enc.Encode(ev)
	}
}

func init() {
	extractCmd.Flags().StringVar(&extractFile, "file", "", "XLSX or CSV file (required)")
	extractCmd.Flags().StringVar(&extractSheet, "sheet", "", "sheet name (default first sheet)")
	extractCmd.Flags().StringVar(&extractOutput, "output", "", "write the result here instead of stdout")
	extractCmd.Flags().StringVar(&extractFormat, "format", "json", "output format: json or yaml")
	extractCmd.Flags().StringVar(&extractJobID, "job-id", "", "job id for progress events (default random)")
	extractCmd.Flags().BoolVar(&extractProgress, "progress", false, "stream progress events to stderr as JSON lines")
	_ = extractCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(extractCmd)
}
