package invoker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var (
	trainMarkers   = []string{`"coefficients"`}
	predictMarkers = []string{`"date"`}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("sh not found: %v", err)
	}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script failed: %v", err)
	}
	return name
}

func newTestInvoker(t *testing.T, dir string, modify func(*Options)) *Invoker {
	t.Helper()
	requireShell(t)

	opts := Options{
		Interpreter:   "sh",
		Dir:           dir,
		Timeout:       5 * time.Second,
		MaxConcurrent: 4,
		Selection:     SelectLastLine,
		Validate:      true,
	}
	if modify != nil {
		modify(&opts)
	}
	return New(opts, testLogger())
}

func assertKind(t *testing.T, err error, want Kind) *Error {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	var invErr *Error
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if invErr.Kind != want {
		t.Fatalf("expected kind %s, got %s (%v)", want, invErr.Kind, err)
	}
	return invErr
}

func TestInvoke_TrainSuccess(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "train.sh", `echo '{"coefficients":[0.5,1.2],"intercept":3.0}'
`)
	inv := newTestInvoker(t, dir, nil)

	res, err := inv.Invoke(context.Background(), Request{
		Operation: "train",
		Script:    script,
		Args:      []string{"[1,2,3]", "[4,5,6]"},
		Markers:   trainMarkers,
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	want := `{"coefficients":[0.5,1.2],"intercept":3.0}`
	if res.Payload != want {
		t.Errorf("expected payload %s, got %s", want, res.Payload)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if res.ID == "" {
		t.Error("expected invocation id")
	}
}

func TestInvoke_LastLineWins(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "predict.sh", `echo '{"date":"2024-01-01","consumption":1}'
echo 'loading model'
echo '{"date":"2024-01-03","consumption":3}'
`)
	inv := newTestInvoker(t, dir, nil)

	res, err := inv.Invoke(context.Background(), Request{Operation: "predict", Script: script, Markers: predictMarkers})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if res.Payload != `{"date":"2024-01-03","consumption":3}` {
		t.Errorf("expected third line, got %s", res.Payload)
	}
	if res.Lines != 3 {
		t.Errorf("expected 3 lines observed, got %d", res.Lines)
	}
}

func TestInvoke_TrailingBlankLineIgnored(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "train.sh", `echo '{"coefficients":[1],"intercept":0}'
echo ''
`)
	inv := newTestInvoker(t, dir, nil)

	res, err := inv.Invoke(context.Background(), Request{Operation: "train", Script: script, Markers: trainMarkers})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Payload != `{"coefficients":[1],"intercept":0}` {
		t.Errorf("unexpected payload %s", res.Payload)
	}
}

func TestInvoke_StderrMerged(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "predict.sh", `echo 'starting'
echo '{"date":"2024-01-01","consumption":12.5}' 1>&2
`)
	inv := newTestInvoker(t, dir, nil)

	res, err := inv.Invoke(context.Background(), Request{Operation: "predict", Script: script, Markers: predictMarkers})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Payload != `{"date":"2024-01-01","consumption":12.5}` {
		t.Errorf("expected stderr line to be captured, got %s", res.Payload)
	}
}

func TestInvoke_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "predict.sh", `echo '{"date":"2024-01-01","consumption":12.5}'
echo 'Traceback: boom'
exit 3
`)
	inv := newTestInvoker(t, dir, nil)

	res, err := inv.Invoke(context.Background(), Request{Operation: "predict", Script: script, Markers: predictMarkers})
	if res != nil {
		t.Fatalf("expected nil result, got %+v", res)
	}

	invErr := assertKind(t, err, KindExit)
	if invErr.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", invErr.ExitCode)
	}
	if invErr.Diagnostic != "Traceback: boom" {
		t.Errorf("expected diagnostic from last line, got %q", invErr.Diagnostic)
	}
}

func TestInvoke_MissingMarker(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "train.sh", `echo '{"coefficients":[1],"intercept":0}'
echo 'WARNING: deprecated option'
`)
	inv := newTestInvoker(t, dir, nil)

	_, err := inv.Invoke(context.Background(), Request{Operation: "train", Script: script, Markers: trainMarkers})
	assertKind(t, err, KindValidation)
}

func TestInvoke_ValidationDisabled(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "train.sh", `echo 'plain text result'
`)
	inv := newTestInvoker(t, dir, func(o *Options) { o.Validate = false })

	res, err := inv.Invoke(context.Background(), Request{Operation: "train", Script: script, Markers: trainMarkers})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Payload != "plain text result" {
		t.Errorf("unexpected payload %s", res.Payload)
	}
}

func TestInvoke_EmptyOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "train.sh", `exit 0
`)
	inv := newTestInvoker(t, dir, nil)

	_, err := inv.Invoke(context.Background(), Request{Operation: "train", Script: script, Markers: trainMarkers})
	assertKind(t, err, KindEmptyOutput)
}

func TestInvoke_FirstMarkerSelection(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "predict.sh", `echo 'loading'
echo '{"date":"2024-01-01","consumption":12.5}'
echo '{"date":"2024-01-02","consumption":13.5}'
echo 'done'
`)
	inv := newTestInvoker(t, dir, func(o *Options) { o.Selection = SelectFirstMarker })

	res, err := inv.Invoke(context.Background(), Request{Operation: "predict", Script: script, Markers: predictMarkers})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Payload != `{"date":"2024-01-01","consumption":12.5}` {
		t.Errorf("expected first marker line, got %s", res.Payload)
	}
}

func TestInvoke_FirstMarkerNoMatch(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "predict.sh", `echo 'nothing useful'
`)
	inv := newTestInvoker(t, dir, func(o *Options) { o.Selection = SelectFirstMarker })

	_, err := inv.Invoke(context.Background(), Request{Operation: "predict", Script: script, Markers: predictMarkers})
	assertKind(t, err, KindValidation)
}

func TestInvoke_ArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "echo.sh", `printf '{"date":"%s|%s|%s|%s"}\n' "$1" "$2" "$3" "$4"
`)
	inv := newTestInvoker(t, dir, nil)

	res, err := inv.Invoke(context.Background(), Request{
		Operation: "predict",
		Script:    script,
		Args:      []string{"[1, 2]", "[3,4]", "0.1,0.2", "1"},
		Markers:   predictMarkers,
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	want := `{"date":"[1, 2]|[3,4]|0.1,0.2|1"}`
	if res.Payload != want {
		t.Errorf("expected %s, got %s", want, res.Payload)
	}
}

func TestInvoke_MissingScript(t *testing.T) {
	inv := newTestInvoker(t, t.TempDir(), nil)

	_, err := inv.Invoke(context.Background(), Request{Operation: "train", Script: "absent.py", Markers: trainMarkers})
	assertKind(t, err, KindLaunch)
}

func TestInvoke_MissingInterpreter(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "train.sh", "echo hi\n")
	inv := newTestInvoker(t, dir, func(o *Options) { o.Interpreter = "definitely-not-an-interpreter" })

	_, err := inv.Invoke(context.Background(), Request{Operation: "train", Script: script, Markers: trainMarkers})
	assertKind(t, err, KindLaunch)
}

func TestInvoke_Timeout(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "slow.sh", `echo 'working'
sleep 5
echo '{"coefficients":[1]}'
`)
	inv := newTestInvoker(t, dir, func(o *Options) { o.Timeout = 200 * time.Millisecond })

	start := time.Now()
	_, err := inv.Invoke(context.Background(), Request{Operation: "train", Script: script, Markers: trainMarkers})
	elapsed := time.Since(start)

	assertKind(t, err, KindTimeout)
	if elapsed > 3*time.Second {
		t.Errorf("timeout did not stop the child promptly: %v", elapsed)
	}
}

func TestInvoke_CallerCancellation(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "slow.sh", `sleep 5
`)
	inv := newTestInvoker(t, dir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := inv.Invoke(ctx, Request{Operation: "train", Script: script, Markers: trainMarkers})

	assertKind(t, err, KindCanceled)
	if time.Since(start) > 3*time.Second {
		t.Errorf("cancellation did not stop the child promptly")
	}
}

func TestInvoke_ConcurrencyBound(t *testing.T) {
	dir := t.TempDir()
	slow := writeScript(t, dir, "slow.sh", `sleep 1
echo '{"coefficients":[1]}'
`)
	inv := newTestInvoker(t, dir, func(o *Options) { o.MaxConcurrent = 1 })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = inv.Invoke(context.Background(), Request{Operation: "train", Script: slow, Markers: trainMarkers})
	}()

	// Give the first invocation time to take the only slot.
	time.Sleep(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := inv.Invoke(ctx, Request{Operation: "train", Script: slow, Markers: trainMarkers})
	assertKind(t, err, KindCanceled)

	wg.Wait()
}

func TestInvoke_Idempotent(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "train.sh", `printf '{"coefficients":[%s],"intercept":%s}\n' "$1" "$2"
`)
	inv := newTestInvoker(t, dir, nil)

	req := Request{Operation: "train", Script: script, Args: []string{"1", "2"}, Markers: trainMarkers}

	first, err := inv.Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("first Invoke failed: %v", err)
	}
	second, err := inv.Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("second Invoke failed: %v", err)
	}

	if first.Payload != second.Payload {
		t.Errorf("expected identical payloads, got %s and %s", first.Payload, second.Payload)
	}
	if first.ID == second.ID {
		t.Error("expected distinct invocation ids")
	}
}

func TestInvoke_ObserverNotified(t *testing.T) {
	dir := t.TempDir()
	ok := writeScript(t, dir, "ok.sh", `echo '{"coefficients":[1]}'
`)
	bad := writeScript(t, dir, "bad.sh", `exit 1
`)
	inv := newTestInvoker(t, dir, nil)

	var outcomes []Outcome
	inv.Observe(func(o Outcome) { outcomes = append(outcomes, o) })

	_, _ = inv.Invoke(context.Background(), Request{Operation: "train", Script: ok, Markers: trainMarkers})
	_, _ = inv.Invoke(context.Background(), Request{Operation: "train", Script: bad, Markers: trainMarkers})

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Kind != "" {
		t.Errorf("expected success outcome, got %s", outcomes[0].Kind)
	}
	if outcomes[1].Kind != KindExit {
		t.Errorf("expected exit outcome, got %s", outcomes[1].Kind)
	}
	if outcomes[0].Operation != "train" {
		t.Errorf("expected operation train, got %s", outcomes[0].Operation)
	}
}

func TestScriptPath(t *testing.T) {
	inv := New(Options{Dir: "/opt/scripts"}, testLogger())

	if got := inv.ScriptPath("TrainingModule.py"); got != "/opt/scripts/TrainingModule.py" {
		t.Errorf("unexpected relative resolution %s", got)
	}
	if got := inv.ScriptPath("/abs/Predict.py"); got != "/abs/Predict.py" {
		t.Errorf("absolute path should be kept, got %s", got)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Error("nil error should have empty kind")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain error should have empty kind")
	}

	err := &Error{Kind: KindTimeout, Operation: "predict"}
	wrapped := errors.Join(errors.New("context"), err)
	if KindOf(wrapped) != KindTimeout {
		t.Errorf("expected timeout through wrapping, got %s", KindOf(wrapped))
	}
}

func TestInvoke_BackgroundChildHoldsOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "train.sh", `sleep 30 &
echo '{"coefficients":[0.5,1.2],"intercept":3.0}'
exit 0
`)
	inv := newTestInvoker(t, dir, func(o *Options) {
		o.Timeout = 10 * time.Second
		o.WaitDelay = 200 * time.Millisecond
	})

	start := time.Now()
	res, err := inv.Invoke(context.Background(), Request{Operation: "train", Script: script, Markers: trainMarkers})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if res.Payload != `{"coefficients":[0.5,1.2],"intercept":3.0}` {
		t.Errorf("unexpected payload %q", res.Payload)
	}
	if elapsed > 5*time.Second {
		t.Errorf("invocation waited on the background child: %v", elapsed)
	}
}
