package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/engine"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir-or-files...>",
	Short: "Compress many PDFs into the output directory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	inputs, err := expandInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no PDF files found under %s", strings.Join(args, " "))
	}
	outDir := a.cfg.OutputDir
	a.harden(outDir, inputs)

	report, err := a.comp.Batch(cmd.Context(), inputs, outDir, a.cfg.Quality)
	if report != nil {
		printBatch(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return batchFailure(report)
	}
	return nil
}

// expandInputs keeps file arguments as given and walks directory
// arguments for PDFs.
func expandInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(arg, "**", "*.pdf"))
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
		inputs = append(inputs, matches...)
	}
	return inputs, nil
}

// batchFailure summarizes a partly failed batch. A security denial
// among the failures wins the wrap slot so the exit code reflects it.
func batchFailure(report *engine.BatchReport) error {
	var wrap error
	for _, item := range report.Items {
		if item.Err == nil {
			continue
		}
		if wrap == nil || (securityDenial(item.Err) && !securityDenial(wrap)) {
			wrap = item.Err
		}
	}
	return fmt.Errorf("%d of %d files failed: %w", report.Failed, len(report.Items), wrap)
}

func printBatch(w io.Writer, r *engine.BatchReport) {
	for _, item := range r.Items {
		if item.Err != nil {
			fmt.Fprintf(w, "fail %s: %v\n", item.Input, item.Err)
			continue
		}
		fmt.Fprintf(w, "ok   %s -> %s (%s -> %s)\n", item.Input, item.Output,
			humanSize(item.Report.BytesBefore), humanSize(item.Report.BytesAfter))
	}
	fmt.Fprintf(w, "%d compressed, %d failed\n", r.Succeeded, r.Failed)
}
