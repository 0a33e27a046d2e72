package tui

import "time"

type Snapshot struct {
	Timestamp  time.Time
	Root       string
	Tool       string
	Repos      []RepoState
	Refreshing bool
}

type RepoState struct {
	Name    string
	Path    string
	Branch  string
	Changes int
	Err     string // empty unless the last probe failed
}

func (s Snapshot) counts() (dirty, failed int) {
	for _, r := range s.Repos {
		switch {
		case r.Err != "":
			failed++
		case r.Changes > 0:
			dirty++
		}
	}
	return dirty, failed
}
