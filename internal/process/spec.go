package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Spec describes the worker process to launch.
// Command is an argument vector; it is executed directly, never through a shell.
type Spec struct {
	Name    string   `json:"name"`
	Command []string `json:"command"`
	WorkDir string   `json:"work_dir"`
	Env     []string `json:"env"` // full environment in KEY=VALUE form; nil inherits the controller's
}

var errEmptyCommand = errors.New("command must not be empty")

// Validate checks that the spec can be turned into a command.
func (s Spec) Validate() error {
	if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
		return errEmptyCommand
	}
	for i, kv := range s.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("env[%d] %q is invalid, must be in KEY=VALUE format", i, kv)
		}
	}
	if s.WorkDir != "" {
		fi, err := os.Stat(s.WorkDir)
		if err != nil {
			return fmt.Errorf("work_dir: %w", err)
		}
		if !fi.IsDir() {
			return fmt.Errorf("work_dir %s is not a directory", s.WorkDir)
		}
	}
	return nil
}

// BuildCommand constructs an *exec.Cmd for the spec.
// stdout/stderr are inherited from the controller.
func (s Spec) BuildCommand() *exec.Cmd {
	// ok: argv comes from operator configuration, not request input
	// #nosec G204
	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if s.Env != nil {
		cmd.Env = s.Env
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	configureSysProcAttr(cmd)
	return cmd
}

// String renders the argv for log output.
func (s Spec) String() string { return strings.Join(s.Command, " ") }
