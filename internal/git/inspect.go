package git

import (
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Info describes the HEAD of a repository on disk.
type Info struct {
	Path     string
	Branch   string
	Detached bool
}

// Inspect opens dir as a repository and reads its HEAD reference without
// running the git binary. Only refs are read.
func Inspect(dir string) (Info, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Info{}, fmt.Errorf("open %s: %w", dir, err)
	}

	info := Info{Path: dir}
	if wt, err := repo.Worktree(); err == nil {
		info.Path = wt.Filesystem.Root()
	}

	// Unresolved so that a branch without commits still reports its name.
	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return info, fmt.Errorf("read HEAD of %s: %w", dir, err)
	}
	if head.Type() == plumbing.SymbolicReference {
		info.Branch = head.Target().Short()
		return info, nil
	}
	info.Detached = true
	info.Branch = head.Hash().String()[:7]
	return info, nil
}
