package git

import (
	"fmt"
	"regexp"
	"strings"
)

// Format couples the status command arguments with the parser for their
// output, so the output layout can change without touching callers.
type Format interface {
	Args() []string
	Parse(out string) (branch string, changes int, err error)
}

// ParseFormat resolves a probe.format config value.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "", "text":
		return TextFormat{}, nil
	case "porcelain":
		return PorcelainFormat{}, nil
	default:
		return nil, fmt.Errorf("unknown status format %q", name)
	}
}

var branchPattern = regexp.MustCompile(`branch (\w+)`)

// TextFormat parses the human-readable `git status` output. Every tab in
// the output counts as one change, since git indents file entries with a tab.
type TextFormat struct{}

func (TextFormat) Args() []string {
	return []string{"status"}
}

func (TextFormat) Parse(out string) (string, int, error) {
	changes := strings.Count(out, "\t")

	m := branchPattern.FindStringSubmatch(out)
	if m == nil {
		return "", 0, ErrBranchNotFound
	}
	return m[1], changes, nil
}

// PorcelainFormat parses `git status --porcelain=v1 --branch`.
type PorcelainFormat struct{}

func (PorcelainFormat) Args() []string {
	return []string{"status", "--porcelain=v1", "--branch"}
}

func (PorcelainFormat) Parse(out string) (string, int, error) {
	var branch string
	changes := 0
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if header, ok := strings.CutPrefix(line, "## "); ok {
			branch = headerBranch(header)
			continue
		}
		changes++
	}
	if branch == "" {
		return "", 0, ErrBranchNotFound
	}
	return branch, changes, nil
}

// headerBranch extracts the local branch from a porcelain header such as
// "main...origin/main [ahead 1]" or "No commits yet on main".
// Detached HEAD yields "".
func headerBranch(header string) string {
	if strings.HasPrefix(header, "HEAD (no branch)") {
		return ""
	}
	for _, prefix := range []string{"No commits yet on ", "Initial commit on "} {
		header = strings.TrimPrefix(header, prefix)
	}
	if i := strings.Index(header, "..."); i >= 0 {
		header = header[:i]
	}
	if i := strings.IndexByte(header, ' '); i >= 0 {
		header = header[:i]
	}
	return header
}
