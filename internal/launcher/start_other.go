//go:build !unix && !windows

package launcher

import "os/exec"

type directStrategy struct{}

func (directStrategy) Name() string   { return "direct" }
func (directStrategy) Detached() bool { return true }

func (directStrategy) Command(_ string, tool string, args []string) *exec.Cmd {
	return exec.Command(tool, args...)
}

func platformStrategy(_ func(string) string, detached bool) Strategy {
	if detached {
		return directStrategy{}
	}
	return foregroundStrategy{}
}
