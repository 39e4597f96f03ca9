package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/audit"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/command"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/config"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/engine"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/hardening"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/license"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/securefile"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/security"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// app holds the wired components for one process run.
type app struct {
	cfg       *config.Settings
	logger    *slog.Logger
	store     *securefile.Store
	guard     *security.Guard
	reporter  *audit.Reporter
	gate      *command.Gate
	validator *license.Validator
	comp      *engine.Compressor

	logClose func()
}

// bootstrap assembles every component from configuration. The store
// runs on a guard with no reporter wired: ledger writes pass through
// the store, so a reporting guard there would re-enter the reporter
// on its own denials. Everything user-facing gets the reporting guard.
func bootstrap() (*app, error) {
	cfg, err := config.FromViper()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, logClose := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	fail := func(err error) (*app, error) {
		logClose()
		return nil, err
	}

	baseGuard, err := security.NewGuard(guardOpts(cfg)...)
	if err != nil {
		return fail(fmt.Errorf("build path guard: %w", err))
	}
	store, err := securefile.NewStore(cfg.TempRoot, baseGuard, logger)
	if err != nil {
		return fail(fmt.Errorf("open temp store: %w", err))
	}
	failStore := func(err error) (*app, error) {
		store.Close()
		return fail(err)
	}

	reporter, err := audit.NewReporter(cfg.Incidents.Dir, store, audit.WithLogger(logger))
	if err != nil {
		return failStore(fmt.Errorf("open incident ledger: %w", err))
	}
	guard, err := security.NewGuard(append(guardOpts(cfg), security.WithReporter(reporter))...)
	if err != nil {
		return failStore(fmt.Errorf("build path guard: %w", err))
	}

	gateOpts := []command.Option{command.WithReporter(reporter)}
	if cfg.Engine.Timeout > 0 {
		gateOpts = append(gateOpts, command.WithTimeout(cfg.Engine.Timeout))
	}
	gate, err := command.NewGate(command.DefaultSpecs(), gateOpts...)
	if err != nil {
		return failStore(fmt.Errorf("build command gate: %w", err))
	}

	pub, err := license.LoadPublicKey(cfg.License.PublicKeyPath)
	if err != nil {
		return failStore(fmt.Errorf("load license public key: %w", err))
	}
	validator := license.NewValidator(cfg.License.Dir, pub, guard,
		license.WithLogger(logger),
		license.WithReporter(reporter),
	)

	comp := engine.New(engine.Deps{
		Guard:    guard,
		Gate:     gate,
		Store:    store,
		Features: validator,
		Settings: cfg,
		Logger:   logger,
	})

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		guard:     guard,
		reporter:  reporter,
		gate:      gate,
		validator: validator,
		comp:      comp,
		logClose:  logClose,
	}
	a.watchSignals()
	return a, nil
}

// Close releases temp files and flushes the log sink.
func (a *app) Close() {
	a.store.Close()
	a.logClose()
}

// watchSignals releases live temp files before a signal-driven exit.
func (a *app) watchSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-ch
		a.logger.Warn("terminating on signal", "signal", sig.String())
		a.store.ReleaseAll()
		a.logClose()
		os.Exit(exitSignaled)
	}()
}

// harden narrows the process view to what this run touches. Failures
// log and continue; the in-process guards still hold.
func (a *app) harden(outDir string, inputs []string) {
	p := hardening.Paths{
		TempRoot:    a.store.Dir(),
		OutputDir:   outDir,
		LicenseDir:  a.validator.Dir(),
		IncidentDir: a.reporter.Dir(),
		Inputs:      inputs,
	}
	if a.cfg.Logging.File != "" {
		p.LogDir = filepath.Dir(a.cfg.Logging.File)
	}
	if err := hardening.Apply(p); err != nil {
		a.logger.Warn("process hardening unavailable", "error", err)
	}
}

func guardOpts(cfg *config.Settings) []security.Option {
	return []security.Option{
		security.WithSensitiveFiles(cfg.Security.SensitiveFiles),
		security.WithSensitiveDirs(cfg.Security.SensitiveDirs),
		security.WithCriticalFile(cfg.Security.CriticalFile),
	}
}

// newLogger builds the slog sink: stderr, or a rotating file when
// logging.file is set. The returned closer flushes the file sink.
func newLogger(lc config.LoggingSettings) (*slog.Logger, func()) {
	var sink io.Writer = os.Stderr
	logClose := func() {}
	if lc.File != "" {
		lj := &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
		}
		sink = lj
		logClose = func() { lj.Close() }
	}

	level := parseLevel(lc.Level)
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(lc.Format, "json") {
		handler = slog.NewJSONHandler(sink, opts)
	} else {
		handler = slog.NewTextHandler(sink, opts)
	}
	return slog.New(handler), logClose
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
