//go:build unix

package launcher

import (
	"os/exec"
	"strings"
	"syscall"
)

// directStrategy runs the tool in its own process group so it outlives us
// and does not receive our terminal signals. It has no terminal, so it only
// suits GUI tools.
type directStrategy struct{}

func (directStrategy) Name() string   { return "direct" }
func (directStrategy) Detached() bool { return true }

func (directStrategy) Command(_ string, tool string, args []string) *exec.Cmd {
	cmd := exec.Command(tool, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

func platformStrategy(getenv func(string) string, detached bool) Strategy {
	switch {
	case strings.TrimSpace(getenv("TMUX")) != "":
		return tmuxStrategy{}
	case detached:
		return directStrategy{}
	default:
		return foregroundStrategy{}
	}
}
