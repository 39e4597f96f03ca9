// Package engine drives the compression pipeline through the trust
// layer: every path is validated before use, every subprocess goes
// through the command gate, and every artifact reaches its
// destination atomically or not at all.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/command"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/config"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/license"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/securefile"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/security"
)

// FeatureChecker gates licensed functionality. Implemented by the
// license validator.
type FeatureChecker interface {
	FeatureEnabled(feature string) bool
}

// Deps carries the assembled trust components into the pipeline.
type Deps struct {
	Guard    *security.Guard
	Gate     *command.Gate
	Store    *securefile.Store
	Features FeatureChecker
	Settings *config.Settings
	Logger   *slog.Logger
}

// Compressor runs PDF compressions.
type Compressor struct {
	guard    *security.Guard
	gate     *command.Gate
	store    *securefile.Store
	features FeatureChecker
	cfg      *config.Settings
	logger   *slog.Logger
}

// New assembles a Compressor from its dependencies.
func New(deps Deps) *Compressor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Compressor{
		guard:    deps.Guard,
		gate:     deps.Gate,
		store:    deps.Store,
		features: deps.Features,
		cfg:      deps.Settings,
		logger:   logger,
	}
}

// Report describes one finished compression.
type Report struct {
	Input       string
	Output      string
	BytesBefore int64
	BytesAfter  int64
	Tool        string
	Duration    time.Duration
}

// Ratio returns the output size as a fraction of the input size.
func (r *Report) Ratio() float64 {
	if r.BytesBefore == 0 {
		return 0
	}
	return float64(r.BytesAfter) / float64(r.BytesBefore)
}

// Compress shrinks one PDF. The input is held to the strict path
// policy, the output to the normal one; the result lands at out in a
// single rename. When ghostscript grows the file a qpdf structural
// rewrite of the original is tried instead.
func (c *Compressor) Compress(ctx context.Context, in, out, profileName string) (*Report, error) {
	start := time.Now()
	if !c.features.FeatureEnabled(license.FeatureAdvancedCompression) {
		return nil, fmt.Errorf("%w: %s", ErrFeatureLocked, license.FeatureAdvancedCompression)
	}
	profile, err := c.resolveProfile(profileName)
	if err != nil {
		return nil, err
	}
	inPath, err := c.guard.Validate(in, security.PolicyStrict)
	if err != nil {
		return nil, err
	}
	outPath, err := c.guard.Validate(out, security.PolicyNormal)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(inPath); err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if err := c.probePDF(ctx, inPath); err != nil {
		return nil, err
	}
	before, err := c.fileSize(ctx, inPath)
	if err != nil {
		return nil, err
	}

	tool := "gs"
	temp, err := c.runGhostscript(ctx, profile, inPath)
	if err != nil {
		return nil, err
	}
	defer func() { temp.Release() }()

	size, err := outputSize(temp)
	if err != nil {
		return nil, err
	}
	if size >= before {
		if rewritten, rerr := c.runQpdf(ctx, inPath); rerr == nil {
			temp.Release()
			temp = rewritten
			tool = "qpdf"
		} else {
			c.logger.Warn("structural rewrite unavailable, keeping engine output",
				"in", inPath, "error", rerr)
		}
	}

	if err := temp.Promote(outPath, config.OutputFilePerm); err != nil {
		return nil, err
	}
	after, err := c.fileSize(ctx, outPath)
	if err != nil {
		return nil, err
	}
	rep := &Report{
		Input:       inPath,
		Output:      outPath,
		BytesBefore: before,
		BytesAfter:  after,
		Tool:        tool,
		Duration:    time.Since(start),
	}
	c.logger.Info("compressed",
		"in", inPath, "out", outPath, "tool", tool,
		"before", before, "after", after)
	return rep, nil
}

// BatchItem is one per-file outcome in a batch run.
type BatchItem struct {
	Input  string
	Output string
	Report *Report
	Err    error
}

// BatchReport collects per-file outcomes.
type BatchReport struct {
	Items     []BatchItem
	Succeeded int
	Failed    int
}

// Batch compresses inputs into outDir. Per-file failures are
// collected rather than fatal unless the engine is configured to stop
// on the first one.
func (c *Compressor) Batch(ctx context.Context, inputs []string, outDir, profileName string) (*BatchReport, error) {
	if !c.features.FeatureEnabled(license.FeatureBatchProcessing) {
		return nil, fmt.Errorf("%w: %s", ErrFeatureLocked, license.FeatureBatchProcessing)
	}
	report := &BatchReport{}
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}
		item := BatchItem{Input: in, Output: OutputName(in, outDir)}
		rep, err := c.Compress(ctx, in, item.Output, profileName)
		if err != nil {
			item.Err = err
			report.Failed++
			report.Items = append(report.Items, item)
			c.logger.Error("batch item failed", "in", in, "error", err)
			if !c.cfg.Engine.ContinueOnError {
				return report, err
			}
			continue
		}
		item.Report = rep
		report.Succeeded++
		report.Items = append(report.Items, item)
	}
	return report, nil
}

// OutputName derives the destination for one input: the input's stem
// plus a _compressed suffix, under dir.
func OutputName(in, dir string) string {
	base := filepath.Base(in)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"_compressed.pdf")
}

// ToolVersions probes each allowlisted program for its version line.
// A missing tool reports as unavailable; the probe itself never
// fails.
func (c *Compressor) ToolVersions(ctx context.Context) map[string]string {
	names := c.gate.Allowed()
	sort.Strings(names)
	versions := make(map[string]string, len(names))
	for _, name := range names {
		res, err := c.gate.Execute(ctx, name, []string{"--version"})
		if err != nil {
			versions[name] = "unavailable"
			continue
		}
		line, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
		versions[name] = line
	}
	return versions
}

// probePDF rejects inputs that are not PDFs before any engine sees
// them. The check reads the file's magic, not its extension.
func (c *Compressor) probePDF(ctx context.Context, path string) error {
	res, err := c.gate.Execute(ctx, "file", []string{"-b", "--mime-type", path})
	if err != nil {
		return err
	}
	mime := strings.TrimSpace(res.Stdout)
	if mime != "application/pdf" {
		return fmt.Errorf("%w: %s reports %s", ErrNotPDF, path, mime)
	}
	return nil
}

// fileSize asks du for the byte size. Output is "<bytes>\t<path>".
func (c *Compressor) fileSize(ctx context.Context, path string) (int64, error) {
	res, err := c.gate.Execute(ctx, "du", []string{"-sb", path})
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 {
		return 0, fmt.Errorf("du reported nothing for %s", path)
	}
	size, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("du size %q: %w", fields[0], err)
	}
	return size, nil
}

func (c *Compressor) runGhostscript(ctx context.Context, profile Profile, in string) (*securefile.Temp, error) {
	temp, err := c.store.CreateTemp("gs-")
	if err != nil {
		return nil, err
	}
	if _, err := c.gate.Execute(ctx, "gs", profile.gsArgs(in, temp.Path())); err != nil {
		temp.Release()
		return nil, err
	}
	return temp, nil
}

func (c *Compressor) runQpdf(ctx context.Context, in string) (*securefile.Temp, error) {
	temp, err := c.store.CreateTemp("qpdf-")
	if err != nil {
		return nil, err
	}
	args := []string{
		"--linearize",
		"--object-streams=generate", "--compress-streams=y", "--recompress-flate",
		in, temp.Path(),
	}
	res, err := c.gate.Execute(ctx, "qpdf", args)
	if err != nil {
		// Exit 3 is qpdf for "finished with warnings"; the output file
		// is still complete.
		if res == nil || res.ExitCode != 3 {
			temp.Release()
			return nil, err
		}
		c.logger.Warn("qpdf finished with warnings", "in", in, "stderr", res.Stderr)
	}
	return temp, nil
}

func outputSize(temp *securefile.Temp) (int64, error) {
	fi, err := os.Stat(temp.Path())
	if err != nil {
		return 0, fmt.Errorf("engine output: %w", err)
	}
	return fi.Size(), nil
}
