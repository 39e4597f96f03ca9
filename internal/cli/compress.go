package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/engine"
	"github.com/spf13/cobra"
)

var compressCmd = &cobra.Command{
	Use:   "compress <input.pdf>",
	Short: "Compress a single PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompress,
}

func init() {
	compressCmd.Flags().StringP("output", "o", "", "Output file (default: <input>_compressed.pdf in the output directory)")
	rootCmd.AddCommand(compressCmd)
}

func runCompress(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	input := args[0]
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = engine.OutputName(input, a.cfg.OutputDir)
	}
	a.harden(filepath.Dir(output), []string{input})

	report, err := a.comp.Compress(cmd.Context(), input, output, a.cfg.Quality)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(w io.Writer, r *engine.Report) {
	fmt.Fprintf(w, "%s -> %s\n", r.Input, r.Output)
	fmt.Fprintf(w, "  %s -> %s (%.1f%% of original, %s, %s)\n",
		humanSize(r.BytesBefore), humanSize(r.BytesAfter),
		r.Ratio()*100, r.Tool, r.Duration.Round(time.Millisecond))
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
