package tracker

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"visitordash/internal/config"
	"visitordash/internal/logging"
)

var ErrAlreadyRunning = errors.New("a counting script is already running")

type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Options struct {
	Python      string
	WorkDir     string
	StopTimeout time.Duration
	// Env is appended to the current environment of the child.
	Env []string
	Log *zap.Logger
}

// Tracker runs at most one counting script at a time.
type Tracker struct {
	mu sync.Mutex

	python      string
	workDir     string
	stopTimeout time.Duration
	env         []string
	log         *zap.Logger

	cmd *exec.Cmd
	// exited closes as soon as the child is reaped, done once the tracker
	// has settled its state.
	exited   chan struct{}
	done     chan struct{}
	stopping bool
	state    State
	onChange func(State)
}

func New(opts Options) *Tracker {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 3 * time.Second
	}

	return &Tracker{
		python:      opts.Python,
		workDir:     opts.WorkDir,
		stopTimeout: opts.StopTimeout,
		env:         opts.Env,
		log:         opts.Log,
	}
}

func NewFromConfig(cfg *config.Config, log *zap.Logger) *Tracker {
	return New(Options{
		Python:      cfg.GetPython(),
		WorkDir:     cfg.GetWorkDir(),
		StopTimeout: cfg.GetStopTimeout(),
		Log:         log,
	})
}

// SetOnStateChange registers fn for every state transition. fn may be called
// from a background goroutine.
func (t *Tracker) SetOnStateChange(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cmd != nil
}

// Start launches the script. It returns ErrAlreadyRunning if a script is
// still running.
func (t *Tracker) Start(s Script) error {
	t.mu.Lock()

	if t.cmd != nil {
		t.mu.Unlock()
		return ErrAlreadyRunning
	}

	log := t.log.With(zap.String("script", s.Path), zap.String("source", string(s.Source)))

	cmd := exec.Command(t.python, append([]string{s.Path}, s.Args...)...)
	cmd.Dir = t.workDir
	if len(t.env) > 0 {
		cmd.Env = append(os.Environ(), t.env...)
	}

	stdout := logging.LineWriter(log.With(zap.String("stream", "stdout")), zapcore.InfoLevel)
	stderr := logging.LineWriter(log.With(zap.String("stream", "stderr")), zapcore.WarnLevel)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = t.stopTimeout
	prepareCmd(cmd)

	if err := cmd.Start(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("start %s: %w", s.Path, err)
	}

	exited := make(chan struct{})
	done := make(chan struct{})
	t.cmd = cmd
	t.exited = exited
	t.done = done
	t.stopping = false
	t.state = Running
	fn := t.onChange
	t.mu.Unlock()

	log.Info("counting script started", zap.Int("pid", cmd.Process.Pid))

	if fn != nil {
		fn(Running)
	}

	go t.wait(cmd, exited, done, log, stdout, stderr)

	return nil
}

func (t *Tracker) wait(cmd *exec.Cmd, exited, done chan struct{}, log *zap.Logger, outputs ...interface{ Close() error }) {
	defer close(done)

	err := cmd.Wait()
	close(exited)
	for _, o := range outputs {
		_ = o.Close()
	}

	t.mu.Lock()
	next := Idle
	if t.stopping {
		next = Stopped
	}
	t.cmd = nil
	t.exited = nil
	t.done = nil
	t.stopping = false
	t.state = next
	fn := t.onChange
	t.mu.Unlock()

	fields := []zap.Field{zap.Stringer("state", next)}
	if cmd.ProcessState != nil {
		fields = append(fields, zap.Int("exit_code", cmd.ProcessState.ExitCode()))
	}
	if err != nil && next != Stopped {
		log.Warn("counting script exited", append(fields, zap.Error(err))...)
	} else {
		log.Info("counting script exited", fields...)
	}

	if fn != nil {
		fn(next)
	}
}

// Stop asks the running script to terminate and kills it if it is still
// alive after the stop timeout. It returns once the process is reaped. A
// script that already exited on its own is left to settle as Idle.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	cmd, exited, done := t.cmd, t.exited, t.done
	if cmd == nil {
		t.mu.Unlock()
		return nil
	}
	select {
	case <-exited:
		// reaped, the pid may already be reused
		t.mu.Unlock()
		<-done
		return nil
	default:
	}
	t.stopping = true
	timeout := t.stopTimeout
	t.mu.Unlock()

	log := t.log.With(zap.Int("pid", cmd.Process.Pid))

	if err := terminate(cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Warn("terminate failed", zap.Error(err))
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	}

	log.Warn("counting script ignored terminate, killing", zap.Duration("timeout", timeout))

	if err := kill(cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill counting script: %w", err)
	}

	<-done
	return nil
}
