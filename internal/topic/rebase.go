package topic

import (
	"context"
	"fmt"

	"go.abhg.dev/log/silog"
	"go.revup.dev/revup/internal/git"
)

// RebaseDetector classifies every review branch by comparing the local
// topic against what the remote already holds, so pushes that would
// only reproduce a rebase can be skipped.
//
// Equality is defined over patch sets, not commit ids: the ordered
// list of (subject, patch-id) pairs for the local commits must match
// the remote commits'. A "pure" rebase additionally requires matching
// author and message metadata.
type RebaseDetector struct {
	// Repo provides git plumbing.
	Repo GitRepository // required

	// PushRebases forces rebased-only branches to be pushed anyway
	// (the --rebase flag).
	PushRebases bool

	Log *silog.Logger
}

// Detect classifies all branches in the stack, in topological order.
//
// Prerequisites per branch, when a PR exists:
// b.PR is populated and the PR's head and recorded-base commits are
// present in the local object database.
func (d *RebaseDetector) Detect(ctx context.Context, stack *Stack) error {
	if d.Log == nil {
		d.Log = silog.Nop()
	}

	for b := range stack.Branches {
		if err := d.detectBranch(ctx, stack, b); err != nil {
			return fmt.Errorf("branch %v: %w", b.RemoteHead, err)
		}
	}

	// A branch that will be pushed must sit directly on its parent's
	// new head. Ancestors that were going to be skipped as rebases
	// have to be pushed after all, or the forge would show the wrong
	// inter-branch diffs.
	for b := range stack.Branches {
		if !b.Status.NeedsPush() || b.Merged {
			continue
		}
		for parent := parentBranch(b); parent != nil; parent = parentBranch(parent) {
			if parent.Status != PushStatusRebasedOnly {
				break
			}
			parent.Status = PushStatusChanged
			if parent.Merged {
				d.Log.Warnf("Topic %q was already merged but its base moved; "+
					"'git pull' and upload again to fix the diff shown on the forge",
					parent.Topic.Name)
			}
		}
	}

	return nil
}

func parentBranch(b *Branch) *Branch {
	if rel := b.Topic.Relative; rel != nil {
		return rel.Branches[b.Base]
	}
	return nil
}

func (d *RebaseDetector) detectBranch(ctx context.Context, stack *Stack, b *Branch) error {
	if b.PR == nil {
		b.Status = PushStatusNew
		return nil
	}
	if b.PR.State == "MERGED" {
		b.Merged = true
	}

	localIDs, err := b.Topic.loadPatchIDs(ctx, d.Repo)
	if err != nil {
		return err
	}

	remote, err := d.Repo.ListCommitsDetails(ctx,
		b.PR.HeadOid.String(), b.PR.BaseOid.String())
	if err != nil {
		return fmt.Errorf("list remote commits: %w", err)
	}
	b.RemoteCommits = remote

	isRebase, pure, err := d.comparePatchSets(ctx, b.Topic.Commits, localIDs, remote)
	if err != nil {
		return err
	}

	if !isRebase {
		b.Status = PushStatusChanged
		if b.Merged {
			// The PR merged but the topic now has different content;
			// that content belongs in a new PR.
			b.Merged = false
			b.Status = PushStatusNew
			b.PR = nil
		}
		return nil
	}

	if !pure {
		if b.Merged {
			// Commit messages changed but the PR has already merged;
			// there is nothing to update.
			d.Log.Warnf("Review for %q was reworded but has already been merged", b.Topic.Name)
		} else {
			b.Status = PushStatusChanged
			return nil
		}
	}

	// Pure rebase. Decide whether the push can be skipped.
	parent := parentBranch(b)
	onTopOfParent := parent == nil ||
		parent.PR == nil ||
		len(parent.RemoteCommits) == 0 ||
		(len(remote) > 0 && remote[0].FirstParent() == parent.RemoteCommits[len(parent.RemoteCommits)-1].Hash)
	parentUnchanged := parent != nil && parent.Status == PushStatusUnchanged
	parentSkippable := parent == nil || !parent.Status.NeedsPush()

	remoteParent := git.ZeroHash
	if len(remote) > 0 {
		remoteParent = remote[0].FirstParent()
	}

	switch {
	case len(remote) > 0 && (b.BaseHash == remoteParent || (parentUnchanged && onTopOfParent)):
		b.Status = PushStatusUnchanged
		// Future topics cherry-pick onto this point,
		// so adopt the remote commit ids as this branch's output.
		b.NewCommits = make([]git.Hash, len(remote))
		for i, c := range remote {
			b.NewCommits[i] = c.Hash
		}
	case b.Merged, !d.PushRebases && onTopOfParent && parentSkippable:
		b.Status = PushStatusRebasedOnly
	default:
		b.Status = PushStatusChanged
	}

	return nil
}

// comparePatchSets reports whether the local and remote commit lists
// carry the same ordered patches, and whether metadata matches too.
func (d *RebaseDetector) comparePatchSets(
	ctx context.Context,
	local []*git.CommitDetail,
	localIDs []string,
	remote []*git.CommitDetail,
) (isRebase, pure bool, _ error) {
	if len(local) != len(remote) {
		return false, false, nil
	}

	for i, rc := range remote {
		remoteID, err := d.Repo.PatchID(ctx, rc.Hash)
		if err != nil {
			return false, false, fmt.Errorf("patch id of %v: %w", rc.Hash.Short(), err)
		}
		if localIDs[i] != remoteID {
			return false, false, nil
		}
	}

	pure = true
	for i, rc := range remote {
		lc := local[i]
		if lc.Subject != rc.Subject ||
			lc.Message != rc.Message ||
			lc.Author.Name != rc.Author.Name ||
			lc.Author.Email != rc.Author.Email {
			pure = false
			break
		}
	}

	return true, pure, nil
}

// loadPatchIDs lazily computes patch ids for the topic's commits.
func (t *Topic) loadPatchIDs(ctx context.Context, repo GitRepository) ([]string, error) {
	if t.patchIDs != nil {
		return t.patchIDs, nil
	}

	ids := make([]string, len(t.Commits))
	for i, c := range t.Commits {
		id, err := repo.PatchID(ctx, c.Hash)
		if err != nil {
			return nil, fmt.Errorf("patch id of %v: %w", c.Hash.Short(), err)
		}
		ids[i] = id
	}
	t.patchIDs = ids
	return ids, nil
}
