// Package command gates every subprocess the program starts. A
// program runs only if its name sits in a fixed allowlist and its
// argument vector matches that program's schema; nothing is ever
// handed to a shell.
package command

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Spec declares one allowlisted program: its invocation name and the
// regexp its space-joined argument vector must match in full. Specs
// are data; the gate copies them at construction and never mutates
// them.
type Spec struct {
	Name string
	Args *regexp.Regexp
}

// Result is the outcome of one permitted execution.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner starts a validated program. The production runner wraps
// os/exec; tests substitute a recorder to prove denied commands never
// reach a spawn call.
type Runner interface {
	Run(ctx context.Context, program string, args []string) (*Result, error)
}

// Reporter receives command denials as they happen. Implemented by
// the incident ledger; nil disables reporting.
type Reporter interface {
	ReportCommandDenial(program string, args []string, err error)
}

// Gate validates and executes subprocess requests against an
// immutable allowlist.
type Gate struct {
	specs    map[string]Spec
	runner   Runner
	reporter Reporter
}

// Option configures a Gate at construction.
type Option func(*Gate)

// WithRunner replaces the process spawner.
func WithRunner(r Runner) Option {
	return func(g *Gate) { g.runner = r }
}

// WithReporter wires denial reporting.
func WithReporter(r Reporter) Option {
	return func(g *Gate) { g.reporter = r }
}

// WithTimeout bounds each execution. Zero leaves subprocesses without
// a deadline.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if er, ok := g.runner.(*execRunner); ok {
			er.timeout = d
		}
	}
}

// NewGate builds a Gate over the given allowlist. Every program needs
// an argument schema; a missing or duplicate entry is a construction
// error, not a runtime surprise.
func NewGate(specs []Spec, opts ...Option) (*Gate, error) {
	table := make(map[string]Spec, len(specs))
	for _, s := range specs {
		if s.Name == "" || strings.ContainsAny(s.Name, "/ \t") {
			return nil, fmt.Errorf("invalid program name %q", s.Name)
		}
		if s.Args == nil {
			return nil, fmt.Errorf("program %q has no argument schema", s.Name)
		}
		if _, dup := table[s.Name]; dup {
			return nil, fmt.Errorf("duplicate allowlist entry %q", s.Name)
		}
		table[s.Name] = s
	}
	g := &Gate{specs: table, runner: &execRunner{}}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Allowed returns the allowlisted program names in no particular
// order.
func (g *Gate) Allowed() []string {
	names := make([]string, 0, len(g.specs))
	for name := range g.specs {
		names = append(names, name)
	}
	return names
}

// Execute validates program and args, then runs the process with the
// argument vector passed through unmodified. Validation precedes
// execution unconditionally: a rejected request never creates a
// process. A started process that exits nonzero returns both the
// Result and an ErrExit error.
func (g *Gate) Execute(ctx context.Context, program string, args []string) (*Result, error) {
	spec, ok := g.specs[program]
	if !ok {
		return nil, g.deny(program, args, ErrNotAllowed)
	}
	if !spec.Args.MatchString(strings.Join(args, " ")) {
		return nil, g.deny(program, args, ErrArgRejected)
	}

	res, err := g.runner.Run(ctx, program, args)
	if err != nil {
		return nil, &GateError{Program: program, Err: fmt.Errorf("%w: %v", ErrSpawn, err)}
	}
	if res.ExitCode != 0 {
		return res, &GateError{Program: program, Err: fmt.Errorf("%w: exit code %d", ErrExit, res.ExitCode)}
	}
	return res, nil
}

func (g *Gate) deny(program string, args []string, reason error) error {
	err := &GateError{Program: program, Err: reason}
	if g.reporter != nil {
		g.reporter.ReportCommandDenial(program, args, err)
	}
	return err
}
