package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/command"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/config"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/securefile"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/security"
	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"mvdan.cc/sh/v3/syntax"
)

// Reporter writes incidents to the ledger. It satisfies the reporter
// interfaces declared in the security, command, and license packages,
// so denials recorded there reach the ledger without those packages
// importing this one.
type Reporter struct {
	dir    string
	store  *securefile.Store
	logger *slog.Logger
	now    func() time.Time
	origin Origin
}

// Option configures a Reporter at construction.
type Option func(*Reporter)

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reporter) { r.logger = l }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// NewReporter builds a Reporter writing to dir through store. The
// store must use a guard with no reporter of its own: a reporting
// guard inside the write path would recurse on its own denials.
func NewReporter(dir string, store *securefile.Store, opts ...Option) (*Reporter, error) {
	if err := os.MkdirAll(dir, config.PrivateDirPerm); err != nil {
		return nil, fmt.Errorf("create incident dir: %w", err)
	}
	r := &Reporter{
		dir:    dir,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		origin: collectOrigin(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Dir returns the ledger directory.
func (r *Reporter) Dir() string { return r.dir }

// Report records one incident and returns the ledger file path. The
// record is complete on disk before Report returns.
func (r *Reporter) Report(typ string, sev Severity, operation string, details map[string]string) (string, error) {
	inc := Incident{
		ID:        uuid.NewString(),
		Type:      typ,
		Severity:  sev,
		Timestamp: r.now().UTC(),
		Operation: operation,
		Origin:    r.origin,
		Details:   sanitizeDetails(details),
	}
	data, err := json.MarshalIndent(inc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode incident: %w", err)
	}
	dest := filepath.Join(r.dir, fileName(inc))
	if err := r.store.AtomicWrite(dest, append(data, '\n'), config.IncidentFilePerm); err != nil {
		return "", fmt.Errorf("write incident: %w", err)
	}
	r.logger.Warn("incident recorded", "type", typ, "severity", string(sev), "file", dest)
	return dest, nil
}

// ReportPathDenial records a rejected path. Only attack-category
// denials arrive here, and they are High severity without exception.
func (r *Reporter) ReportPathDenial(raw, policy string, err error) {
	r.record(pathIncident(err), SeverityHigh, "validate_path", map[string]string{
		"path":   raw,
		"policy": policy,
		"reason": err.Error(),
	})
}

// ReportCommandDenial records a refused program invocation.
func (r *Reporter) ReportCommandDenial(program string, args []string, err error) {
	r.record(commandIncident(err), SeverityHigh, "execute_command", map[string]string{
		"program": program,
		"argv":    strings.Join(args, " "),
		"reason":  err.Error(),
	})
}

// ReportLicenseTampering records a signature mismatch over the
// license material in dir.
func (r *Reporter) ReportLicenseTampering(dir string) {
	r.record(IncidentLicenseTampering, SeverityMedium, "validate_license", map[string]string{
		"dir": dir,
	})
}

// record is the non-failing form used on denial paths. A full disk or
// unwritable ledger is logged; it never masks the denial itself.
func (r *Reporter) record(typ string, sev Severity, operation string, details map[string]string) {
	if _, err := r.Report(typ, sev, operation, details); err != nil {
		r.logger.Error("incident not recorded", "type", typ, "error", err)
	}
}

func pathIncident(err error) string {
	switch {
	case errors.Is(err, security.ErrNullByte):
		return IncidentPathNullByte
	case errors.Is(err, security.ErrEncodedTraversal):
		return IncidentPathEncodedTraversal
	case errors.Is(err, security.ErrTraversal):
		return IncidentPathTraversal
	case errors.Is(err, security.ErrSymlinkTarget):
		return IncidentPathSymlinkEscape
	case errors.Is(err, security.ErrSensitivePath):
		return IncidentPathSensitiveTarget
	default:
		return IncidentPathDenied
	}
}

func commandIncident(err error) string {
	switch {
	case errors.Is(err, command.ErrNotAllowed):
		return IncidentCommandNotAllowed
	case errors.Is(err, command.ErrArgRejected):
		return IncidentCommandArgsRejected
	default:
		return IncidentCommandDenied
	}
}

// collectOrigin gathers process identity once. The machine id is
// keyed to the application so the raw hardware id never appears in a
// record; any piece that cannot be read is simply left empty.
func collectOrigin() Origin {
	o := Origin{PID: os.Getpid()}
	if host, err := os.Hostname(); err == nil {
		o.Host = host
	}
	if id, err := machineid.ProtectedID("compresskit"); err == nil {
		o.MachineID = id
	}
	return o
}

func sanitizeDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]string, len(details))
	for k, v := range details {
		out[k] = sanitize(v)
	}
	return out
}

// sanitize bounds and shell-quotes an untrusted value. Hostile paths
// and argv end up in these records; control bytes must not survive
// into something a terminal or shell might later interpret.
func sanitize(value string) string {
	if len(value) > config.MaxIncidentDetail {
		value = value[:config.MaxIncidentDetail] + "..."
	}
	quoted, err := syntax.Quote(value, syntax.LangBash)
	if err != nil {
		return strconv.Quote(value)
	}
	return quoted
}
