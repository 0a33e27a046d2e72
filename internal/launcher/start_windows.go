//go:build windows

package launcher

import "os/exec"

// consoleStrategy goes through `cmd /C start` so the tool gets its own
// console window.
type consoleStrategy struct{}

func (consoleStrategy) Name() string   { return "console" }
func (consoleStrategy) Detached() bool { return true }

func (consoleStrategy) Command(_ string, tool string, args []string) *exec.Cmd {
	argv := append([]string{"/C", "start", tool}, args...)
	return exec.Command("cmd", argv...)
}

func platformStrategy(func(string) string, bool) Strategy {
	return consoleStrategy{}
}
