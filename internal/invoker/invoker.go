package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/haskel/agupredict/internal/config"
	"github.com/haskel/agupredict/internal/monitor"
)

const (
	defaultTimeout   = 5 * time.Minute
	maxLineBytes     = 16 << 20
	defaultWaitDelay = 5 * time.Second
)

// Options configures an Invoker. It is copied at construction and never
// changes afterwards.
type Options struct {
	Interpreter    string
	Dir            string
	Timeout        time.Duration
	MaxConcurrent  int64
	Selection      Selection
	Validate       bool
	SampleInterval time.Duration
	// WaitDelay bounds how long output is drained after the child exits
	// or is killed.
	WaitDelay time.Duration
}

// OptionsFromConfig maps the scripts section of the configuration.
func OptionsFromConfig(cfg config.ScriptsConfig) Options {
	return Options{
		Interpreter:    cfg.Interpreter,
		Dir:            cfg.Dir,
		Timeout:        cfg.Timeout(),
		MaxConcurrent:  int64(cfg.MaxConcurrent),
		Selection:      Selection(cfg.Selection),
		Validate:       cfg.ValidateOutput,
		SampleInterval: cfg.SampleInterval(),
	}
}

// Request describes one invocation. Args are passed positionally after
// the script path, exactly as given.
type Request struct {
	Operation string
	Script    string
	Args      []string
	Markers   []string
}

// Result is the success side of an invocation.
type Result struct {
	ID       string
	Payload  string
	ExitCode int
	Lines    int
	Duration time.Duration
	Usage    monitor.ProcessUsage
}

// Outcome is reported to observers once per invocation. Kind is empty
// on success.
type Outcome struct {
	ID        string
	Operation string
	Kind      Kind
	Duration  time.Duration
	Usage     monitor.ProcessUsage
}

type Observer func(Outcome)

// Invoker runs external scripts as child processes, one per call, and
// reduces their combined output to a single line.
type Invoker struct {
	opts   Options
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu        sync.RWMutex
	observers []Observer
}

func New(opts Options, logger *slog.Logger) *Invoker {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.WaitDelay <= 0 {
		opts.WaitDelay = defaultWaitDelay
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.Selection == "" {
		opts.Selection = SelectLastLine
	}

	return &Invoker{
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.MaxConcurrent),
		logger: logger,
	}
}

// Observe registers fn to be called after every invocation.
func (inv *Invoker) Observe(fn Observer) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.observers = append(inv.observers, fn)
}

func (inv *Invoker) Options() Options {
	return inv.opts
}

// ScriptPath resolves script against the configured directory unless it
// is already absolute.
func (inv *Invoker) ScriptPath(script string) string {
	if filepath.IsAbs(script) {
		return script
	}
	return filepath.Join(inv.opts.Dir, script)
}

// Invoke runs the script and blocks until it exits. Exactly one of the
// return values is non-nil; failures are always *Error.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	id := uuid.NewString()
	start := time.Now()

	res, err := inv.invoke(ctx, id, req)

	outcome := Outcome{
		ID:        id,
		Operation: req.Operation,
		Kind:      KindOf(err),
		Duration:  time.Since(start),
	}
	if res != nil {
		res.Duration = outcome.Duration
		outcome.Usage = res.Usage
	}
	inv.notify(outcome)

	return res, err
}

func (inv *Invoker) invoke(ctx context.Context, id string, req Request) (*Result, error) {
	log := inv.logger.With("id", id, "operation", req.Operation)
	fail := func(kind Kind, exitCode int, diag string, err error) (*Result, error) {
		log.Warn("script invocation failed",
			"kind", kind,
			"exit_code", exitCode,
			"diagnostic", diag,
			"error", err,
		)
		return nil, &Error{Kind: kind, Operation: req.Operation, ExitCode: exitCode, Diagnostic: diag, Err: err}
	}

	if err := inv.sem.Acquire(ctx, 1); err != nil {
		return fail(KindCanceled, -1, "", fmt.Errorf("waiting for a free slot: %w", err))
	}
	defer inv.sem.Release(1)

	script := inv.ScriptPath(req.Script)
	if _, err := os.Stat(script); err != nil {
		return fail(KindLaunch, -1, "", fmt.Errorf("script not found: %w", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, inv.opts.Timeout)
	defer cancel()

	argv := append([]string{script}, req.Args...)
	cmd := exec.CommandContext(runCtx, inv.opts.Interpreter, argv...)
	configureCommand(cmd)
	cmd.WaitDelay = inv.opts.WaitDelay

	sel := newSelector(inv.opts.Selection, req.Markers)
	tail := &lastLineSelector{}
	out := newLineWriter(func(line string) {
		log.Debug("script output", "line", line)
		sel.observe(line)
		tail.observe(line)
	})
	// The same writer on both streams makes os/exec share one pipe, so
	// diagnostics keep their place in the output.
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return fail(KindCanceled, -1, "", ctx.Err())
		}
		return fail(KindLaunch, -1, "", fmt.Errorf("start %s: %w", inv.opts.Interpreter, err))
	}

	log.Debug("script started",
		"pid", cmd.Process.Pid,
		"script", script,
		"args", len(req.Args),
	)

	sampler := monitor.StartSampler(runCtx, cmd.Process.Pid, inv.opts.SampleInterval)

	waitErr := cmd.Wait()
	usage := sampler.Stop()
	_ = out.Close()

	// A clean exit whose output pipe is still held open by a leftover
	// descendant: the script's own output is complete.
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		log.Warn("script exited but left its output open, dropping descendants",
			"wait_delay", inv.opts.WaitDelay,
		)
		killGroup(cmd)
		waitErr = nil
	}

	diag, _ := tail.selected()

	switch {
	case waitErr != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fail(KindTimeout, -1, diag, fmt.Errorf("exceeded %s", inv.opts.Timeout))
	case waitErr != nil && ctx.Err() != nil:
		return fail(KindCanceled, -1, diag, ctx.Err())
	case waitErr != nil:
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return fail(KindExit, exitCode, diag, waitErr)
	case out.err != nil:
		return fail(KindValidation, 0, diag, fmt.Errorf("read output: %w", out.err))
	}

	line, ok := sel.selected()
	if !ok {
		if diag == "" {
			return fail(KindEmptyOutput, 0, "", nil)
		}
		return fail(KindValidation, 0, diag, errors.New("no line carries an expected marker"))
	}

	if inv.opts.Validate && !HasMarker(line, req.Markers) {
		return fail(KindValidation, 0, line, errors.New("selected line carries no expected marker"))
	}

	log.Info("script invocation succeeded",
		"lines", out.lines,
		"peak_rss_bytes", usage.PeakRSSBytes,
	)

	return &Result{
		ID:       id,
		Payload:  line,
		ExitCode: 0,
		Lines:    out.lines,
		Usage:    usage,
	}, nil
}

func (inv *Invoker) notify(o Outcome) {
	inv.mu.RLock()
	observers := inv.observers
	inv.mu.RUnlock()

	for _, fn := range observers {
		fn(o)
	}
}
