package tracker

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"visitordash/internal/config"
)

const helperEnv = "VISITORDASH_HELPER_PROCESS"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		os.Exit(m.Run())
	}
	goleak.VerifyTestMain(m)
}

// TestHelperProcess stands in for a counting script when run as a child.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	switch mode := os.Args[len(os.Args)-1]; mode {
	case "exit":
		fmt.Println("counted 3 visitors")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "camera not found")
		os.Exit(3)
	case "sleep":
		fmt.Println("ready")
		time.Sleep(time.Minute)
		os.Exit(0)
	case "ignore-term":
		signal.Ignore(syscall.SIGTERM)
		fmt.Println("ready")
		time.Sleep(time.Minute)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", mode)
		os.Exit(2)
	}
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func newTestTracker(t *testing.T, stopTimeout time.Duration) (*Tracker, *observer.ObservedLogs, *stateRecorder) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	tr := New(Options{
		Python:      os.Args[0],
		StopTimeout: stopTimeout,
		Env:         []string{helperEnv + "=1"},
		Log:         zap.New(core),
	})

	rec := &stateRecorder{}
	tr.SetOnStateChange(rec.record)

	t.Cleanup(func() { _ = tr.Stop() })

	return tr, logs, rec
}

func helperScript(mode string) Script {
	return Script{
		Source: config.SourceVideo,
		Path:   "-test.run=^TestHelperProcess$",
		Args:   []string{"--", mode},
	}
}

func waitForMessage(t *testing.T, logs *observer.ObservedLogs, msg string) {
	t.Helper()

	require.Eventually(t, func() bool {
		return logs.FilterMessage(msg).Len() > 0
	}, 10*time.Second, 10*time.Millisecond, "no log line %q", msg)
}

func TestStartNaturalExitReturnsToIdle(t *testing.T) {
	tr, logs, rec := newTestTracker(t, time.Second)

	require.Equal(t, Idle, tr.State())
	require.NoError(t, tr.Start(helperScript("exit")))

	require.Eventually(t, func() bool { return tr.State() == Idle && !tr.Running() }, 10*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 10*time.Millisecond)
	require.Equal(t, []State{Running, Idle}, rec.all())

	out := logs.FilterMessage("counted 3 visitors").All()
	require.Len(t, out, 1)
	require.Equal(t, "stdout", out[0].ContextMap()["stream"])
}

func TestFailingScriptLogsStderr(t *testing.T) {
	tr, logs, _ := newTestTracker(t, time.Second)

	require.NoError(t, tr.Start(helperScript("fail")))
	require.Eventually(t, func() bool { return !tr.Running() }, 10*time.Second, 10*time.Millisecond)

	require.Equal(t, Idle, tr.State())
	waitForMessage(t, logs, "camera not found")
	waitForMessage(t, logs, "counting script exited")

	exited := logs.FilterMessage("counting script exited").All()
	require.Len(t, exited, 1)
	require.Equal(t, zapcore.WarnLevel, exited[0].Level)
	require.EqualValues(t, 3, exited[0].ContextMap()["exit_code"])
}

func TestStartWhileRunningIsRejected(t *testing.T) {
	tr, logs, rec := newTestTracker(t, 2*time.Second)

	require.NoError(t, tr.Start(helperScript("sleep")))
	waitForMessage(t, logs, "ready")

	err := tr.Start(helperScript("exit"))
	require.True(t, errors.Is(err, ErrAlreadyRunning))
	require.Equal(t, Running, tr.State())

	require.NoError(t, tr.Stop())
	require.Equal(t, Stopped, tr.State())
	require.False(t, tr.Running())
	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 10*time.Millisecond)
	require.Equal(t, []State{Running, Stopped}, rec.all())
}

func TestStopAfterNaturalExitStaysIdle(t *testing.T) {
	tr, _, rec := newTestTracker(t, time.Second)

	require.NoError(t, tr.Start(helperScript("exit")))

	tr.mu.Lock()
	exited := tr.exited
	tr.mu.Unlock()
	if exited != nil {
		select {
		case <-exited:
		case <-time.After(10 * time.Second):
			t.Fatal("helper did not exit")
		}
	}

	// reaped but possibly not settled yet: Stop must not signal or relabel it
	require.NoError(t, tr.Stop())
	require.Equal(t, Idle, tr.State())
	require.False(t, tr.Running())
	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 10*time.Millisecond)
	require.Equal(t, []State{Running, Idle}, rec.all())
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	tr, _, rec := newTestTracker(t, time.Second)

	require.NoError(t, tr.Stop())
	require.Equal(t, Idle, tr.State())
	require.Empty(t, rec.all())
}

func TestStopKillsAfterTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("terminate is already a kill on windows")
	}

	tr, logs, _ := newTestTracker(t, 200*time.Millisecond)

	require.NoError(t, tr.Start(helperScript("ignore-term")))
	waitForMessage(t, logs, "ready")

	start := time.Now()
	require.NoError(t, tr.Stop())
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	require.Equal(t, Stopped, tr.State())
	require.Equal(t, 1, logs.FilterMessage("counting script ignored terminate, killing").Len())
}

func TestRestartAfterStop(t *testing.T) {
	tr, logs, _ := newTestTracker(t, 2*time.Second)

	require.NoError(t, tr.Start(helperScript("sleep")))
	waitForMessage(t, logs, "ready")
	require.NoError(t, tr.Stop())
	require.Equal(t, Stopped, tr.State())

	require.NoError(t, tr.Start(helperScript("exit")))
	require.Eventually(t, func() bool { return tr.State() == Idle }, 10*time.Second, 10*time.Millisecond)
}

func TestStartMissingInterpreter(t *testing.T) {
	tr := New(Options{Python: "visitordash-no-such-interpreter"})

	err := tr.Start(Script{Source: config.SourceWebcam, Path: "test_webcam_live.py"})
	require.Error(t, err)
	require.Equal(t, Idle, tr.State())
	require.False(t, tr.Running())
}

func TestScriptFor(t *testing.T) {
	cfg := config.NewDefaultConfig()

	s, err := ScriptFor(cfg, config.SourceVideo)
	require.NoError(t, err)
	require.Equal(t, "test_multiple_videos.py", s.Path)

	s, err = ScriptFor(cfg, config.SourceWebcam)
	require.NoError(t, err)
	require.Equal(t, "test_webcam_live.py", s.Path)
	require.Equal(t, config.SourceWebcam, s.Source)

	cfg.SetScript(config.SourceWebcam, "")
	_, err = ScriptFor(cfg, config.SourceWebcam)
	require.Error(t, err)

	_, err = ScriptFor(cfg, config.SourceType("YouTube"))
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "Idle", Idle.String())
	require.Equal(t, "Running", Running.String())
	require.Equal(t, "Stopped", Stopped.String())
	require.Equal(t, "State(9)", State(9).String())
}
