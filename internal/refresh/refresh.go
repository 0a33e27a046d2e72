// Package refresh re-probes every configured repository and collects one
// status row per entry.
package refresh

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Prober reports the branch and pending change count of root/repo.
type Prober interface {
	Probe(ctx context.Context, root, repo string) (branch string, changes int, err error)
}

// Status is one row of a refresh. When Err is set the probe failed, Branch
// is empty and Changes is zero.
type Status struct {
	Name    string
	Branch  string
	Changes int
	Err     error
}

func (s Status) Failed() bool {
	return s.Err != nil
}

type Refresher struct {
	prober      Prober
	concurrency int
	logger      *slog.Logger
}

// New returns a refresher running at most concurrency probes at once.
// Values below 2 probe strictly in sequence.
func New(prober Prober, concurrency int, logger *slog.Logger) *Refresher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Refresher{prober: prober, concurrency: concurrency, logger: logger}
}

// Refresh probes every name under root and returns a new slice with one
// entry per name, in input order. Probe failures are recorded on the row.
func (r *Refresher) Refresh(ctx context.Context, root string, names []string) []Status {
	out := make([]Status, len(names))

	if r.concurrency == 1 {
		for i, name := range names {
			out[i] = r.probe(ctx, root, name)
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, name := range names {
		g.Go(func() error {
			out[i] = r.probe(ctx, root, name)
			return nil
		})
	}
	_ = g.Wait() // probes never return an error to the group

	return out
}

func (r *Refresher) probe(ctx context.Context, root, name string) Status {
	branch, changes, err := r.prober.Probe(ctx, root, name)
	if err != nil {
		r.logger.Warn("probe failed", "repo", name, "err", err)
		return Status{Name: name, Err: err}
	}
	r.logger.Debug("probed repo", "repo", name, "branch", branch, "changes", changes)
	return Status{Name: name, Branch: branch, Changes: changes}
}
