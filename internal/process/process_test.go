package process

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh/sleep on Unix-like systems")
	}
}

func TestSpecValidate(t *testing.T) {
	dir := t.TempDir()
	file := dir + "/f"
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"ok", Spec{Command: []string{"sleep", "1"}}, false},
		{"empty", Spec{}, true},
		{"blank argv0", Spec{Command: []string{" "}}, true},
		{"bad env", Spec{Command: []string{"true"}, Env: []string{"NOEQUALS"}}, true},
		{"workdir ok", Spec{Command: []string{"true"}, WorkDir: dir}, false},
		{"workdir missing", Spec{Command: []string{"true"}, WorkDir: dir + "/nope"}, true},
		{"workdir is file", Spec{Command: []string{"true"}, WorkDir: file}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildCommandUsesArgvWithoutShell(t *testing.T) {
	s := Spec{Command: []string{"node", "index.js", "--flag"}, WorkDir: "/tmp", Env: []string{"A=1"}}
	cmd := s.BuildCommand()
	want := []string{"node", "index.js", "--flag"}
	if len(cmd.Args) != len(want) {
		t.Fatalf("unexpected argv: %#v", cmd.Args)
	}
	for i := range want {
		if cmd.Args[i] != want[i] {
			t.Fatalf("argv[%d]=%q want %q", i, cmd.Args[i], want[i])
		}
	}
	if cmd.Dir != "/tmp" || len(cmd.Env) != 1 || cmd.Env[0] != "A=1" {
		t.Fatalf("dir/env not applied: dir=%q env=%v", cmd.Dir, cmd.Env)
	}
	if cmd.SysProcAttr == nil {
		t.Fatalf("expected SysProcAttr to be configured")
	}
}

func TestStartAliveTerminate(t *testing.T) {
	requireUnix(t)
	p, err := Start(Spec{Name: "sleeper", Command: []string{"sleep", "30"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.PID() <= 0 || p.RunID() == "" || p.StartedAt().IsZero() {
		t.Fatalf("handle not populated: pid=%d run=%q", p.PID(), p.RunID())
	}
	if !p.Alive() {
		t.Fatalf("expected process to be alive right after start")
	}
	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.WaitExit(ctx); err != nil {
		t.Fatalf("process did not exit after SIGTERM: %v", err)
	}
	if p.Alive() {
		t.Fatalf("expected not alive after exit")
	}
	if p.ExitErr() == nil {
		t.Fatalf("expected exit error for a signalled process")
	}
	if p.ExitedAt().IsZero() {
		t.Fatalf("exit time not recorded")
	}
}

func TestAliveFalseAfterSelfExit(t *testing.T) {
	requireUnix(t)
	p, err := Start(Spec{Command: []string{"true"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("short-lived process was not reaped")
	}
	if p.Alive() {
		t.Fatalf("exited process reported alive")
	}
	if p.ExitErr() != nil {
		t.Fatalf("clean exit should have nil error, got %v", p.ExitErr())
	}
	// signalling an exited process is a no-op
	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate after exit: %v", err)
	}
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start(Spec{Command: []string{"/definitely/not/here/bot"}})
	if err == nil {
		t.Fatal("expected launch error for missing binary")
	}
}

func TestWaitOrKillEscalatesToKill(t *testing.T) {
	requireUnix(t)
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	// ignore SIGTERM so only SIGKILL can end it
	p, err := Start(Spec{Command: []string{"sh", "-c", "trap '' TERM; sleep 30"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(100 * time.Millisecond) // let the trap install
	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	killed, err := p.WaitOrKill(200 * time.Millisecond)
	if err != nil {
		t.Fatalf("WaitOrKill: %v", err)
	}
	if !killed {
		t.Fatalf("expected escalation to SIGKILL")
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process not reaped after kill")
	}
	if killed, err := p.WaitOrKill(0); killed || err != nil {
		t.Fatalf("exited process: killed=%v err=%v", killed, err)
	}
}

func TestPIDAliveInvalid(t *testing.T) {
	if pidAlive(0) || pidAlive(-1) {
		t.Fatalf("non-positive pids must not be alive")
	}
}
