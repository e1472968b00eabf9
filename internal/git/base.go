package git

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// ErrNoBaseBranch is returned by BestBaseBranch when no candidate
// branch's tip is an ancestor of the head.
var ErrNoBaseBranch = errors.New("no base branch found")

// BaseBranchRequest configures base branch detection.
type BaseBranchRequest struct {
	// Head is the commit-ish whose base branch is being detected.
	Head string // required

	// Remote holding the candidate branches.
	Remote string // required

	// MainBranch is the configured trunk branch (short name).
	MainBranch string // required

	// BranchGlobs are additional shell globs (short names, e.g.
	// "rel*") expanded against the remote's branches to find
	// release-branch candidates.
	BranchGlobs []string
}

// BestBaseBranch detects the base branch for the given head:
// the candidate branch whose tip is the nearest first-parent ancestor
// of the head by commit count.
// Ties prefer the configured main branch, then lexicographic order.
//
// Candidates are the main branch plus the remote-tracking branches
// matching the configured globs.
// Returns the branch's short name (without the remote prefix).
func (r *Repository) BestBaseBranch(ctx context.Context, req BaseBranchRequest) (string, error) {
	prefix := "refs/remotes/" + req.Remote + "/"
	patterns := []string{prefix + req.MainBranch}
	for _, glob := range req.BranchGlobs {
		patterns = append(patterns, prefix+glob)
	}

	// A candidate that doesn't contain the fork point with main
	// is too old to be the base of this head.
	forkWithMain, err := r.ForkPoint(ctx, req.Head, req.Remote+"/"+req.MainBranch)
	if err != nil {
		forkWithMain = ""
	}

	refs, err := r.ForEachRef(ctx, forkWithMain, patterns...)
	if err != nil {
		return "", fmt.Errorf("list candidate branches: %w", err)
	}

	type candidate struct {
		name string
		dist int
	}

	best := candidate{dist: math.MaxInt}
	var ties []string
	for _, ref := range refs {
		name := strings.TrimPrefix(ref.Name, prefix)

		ok, err := r.IsAncestor(ctx, ref.Hash.String(), req.Head)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}

		dist, err := r.DistanceToForkPoint(ctx, req.Head, req.Remote+"/"+name, 0)
		if err != nil {
			return "", err
		}

		switch {
		case dist < best.dist:
			best = candidate{name: name, dist: dist}
			ties = ties[:0]
		case dist == best.dist:
			ties = append(ties, name)
		}
	}

	if best.dist == math.MaxInt {
		return "", ErrNoBaseBranch
	}

	if len(ties) > 0 {
		names := append(ties, best.name)
		if slices.Contains(names, req.MainBranch) {
			return req.MainBranch, nil
		}
		slices.Sort(names)
		return names[0], nil
	}

	return best.name, nil
}
