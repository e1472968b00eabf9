package topic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.abhg.dev/log/silog"
	"golang.org/x/sync/errgroup"
	"go.revup.dev/revup/internal/git"
)

// GitRepository is the subset of the git adapter
// that the topic pipeline needs.
type GitRepository interface {
	PeelToCommit(ctx context.Context, ref string) (git.Hash, error)
	PeelToTree(ctx context.Context, ref string) (git.Hash, error)
	TreesIdentical(ctx context.Context, a, b string) (bool, error)
	MergeTree(ctx context.Context, req git.MergeTreeRequest) (git.Hash, error)
	CommitTree(ctx context.Context, req git.CommitTreeRequest) (git.Hash, error)
	PatchID(ctx context.Context, commit git.Hash) (string, error)
	ListCommitsDetails(ctx context.Context, start, stop string) ([]*git.CommitDetail, error)
	ShortDiffStat(ctx context.Context, a, b string) (string, error)
	VirtualDiffTarget(ctx context.Context, req git.VirtualDiffTargetRequest) (git.Hash, error)
}

// ConflictError reports a cherry-pick that could not be merged cleanly.
// Nothing has been pushed and no ref has been modified when this is
// returned.
type ConflictError struct {
	// Topic containing the commit.
	Topic string

	// Commit that failed to apply, and its subject.
	Commit  git.Hash
	Subject string

	// Parent the commit was being applied onto,
	// and a description of where that parent came from.
	Parent     git.Hash
	ParentDesc string

	// Files that conflicted.
	Files []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"failed to cherry-pick commit %q (%v) in topic %q to new parent (%v) in %v: "+
			"conflicting files: %v\n"+
			"Specify relative topics or branches to prevent this conflict.",
		e.Subject, e.Commit.Short(), e.Topic, e.Parent.Short(), e.ParentDesc,
		strings.Join(e.Files, ", "))
}

// Synthesizer builds the pushable head commit for each review branch
// by cherry-picking the topic's commits onto the computed parent.
//
// It writes only to the object database;
// the working tree, the index, and HEAD are untouched.
type Synthesizer struct {
	// Repo provides git plumbing.
	Repo GitRepository // required

	// Committer signs the synthesized commits.
	// Its Date must be fixed once per invocation so repeated runs
	// with no source changes produce identical heads.
	Committer git.Signature // required

	// Concurrency bounds parallel git subprocesses.
	Concurrency int

	Log *silog.Logger
}

// Synthesize fills NewCommits for every branch that needs a push,
// in topic-graph dependency order.
// Branches that share no ancestor synthesize in parallel.
//
// A merge conflict aborts the whole operation with a [ConflictError].
func (s *Synthesizer) Synthesize(ctx context.Context, stack *Stack) error {
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	g, gctx := errgroup.WithContext(ctx)
	var schedule func(*Branch)
	schedule = func(b *Branch) {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			err := s.synthesizeBranch(gctx, stack, b)
			<-sem
			if err != nil {
				return err
			}

			// A child's parent commit is known only now.
			for _, child := range b.Children {
				schedule(child)
			}
			return nil
		})
	}

	for _, t := range stack.Topics {
		if t.Relative != nil {
			continue
		}
		for _, base := range t.Bases {
			schedule(t.Branches[base])
		}
	}

	return g.Wait()
}

func (s *Synthesizer) synthesizeBranch(ctx context.Context, stack *Stack, b *Branch) error {
	if rel := b.Topic.Relative; rel != nil && b.Status.NeedsPush() {
		parent := rel.Branches[b.Base]
		if parent.Head().IsZero() {
			return fmt.Errorf("topic %q: relative topic %q has no commits (status %v)",
				b.Topic.Name, rel.Name, parent.Status)
		}
		b.BaseHash = parent.Head()
	}

	if !b.Status.NeedsPush() {
		return nil
	}
	if b.BaseHash.IsZero() {
		return fmt.Errorf("topic %q: no base commit for branch %v", b.Topic.Name, b.RemoteHead)
	}

	next := b.BaseHash
	var commits []git.Hash
	for _, c := range b.Topic.Commits {
		msg := stack.Messages[c.Hash]

		if c.FirstParent() == next && msg == c.Message {
			// The intended parent is the actual parent and the message
			// is unchanged, so the original commit can be reused.
			next = c.Hash
			commits = append(commits, next)
			continue
		}

		newCommit, err := s.cherryPick(ctx, b, c, next, msg, len(b.Topic.Commits) == 1)
		if err != nil {
			return err
		}
		if newCommit.IsZero() {
			// Empty result; commit dropped.
			continue
		}
		next = newCommit
		commits = append(commits, next)
	}

	b.NewCommits = commits

	// Building the branch may reveal that it matches the remote even
	// though the patch ids did not: for example when a change became a
	// no-op against the new base.
	if b.PR != nil && b.PR.HeadOid == b.Head() {
		b.Status = PushStatusUnchanged
	}

	return nil
}

// cherryPick applies commit c onto parent with a three-way tree merge
// and returns the new commit, or ZeroHash if the result was empty and
// droppable.
func (s *Synthesizer) cherryPick(
	ctx context.Context,
	b *Branch,
	c *git.CommitDetail,
	parent git.Hash,
	message string,
	soleMember bool,
) (git.Hash, error) {
	tree, err := s.Repo.MergeTree(ctx, git.MergeTreeRequest{
		Branch1:   c.Hash.String(),
		Branch2:   parent.String(),
		MergeBase: c.FirstParent().String(),
	})
	if err != nil {
		var conflict *git.MergeTreeConflictError
		if errors.As(err, &conflict) {
			return git.ZeroHash, &ConflictError{
				Topic:      b.Topic.Name,
				Commit:     c.Hash,
				Subject:    c.Subject,
				Parent:     parent,
				ParentDesc: s.parentDesc(b, parent),
				Files:      conflict.Files,
			}
		}
		return git.ZeroHash, fmt.Errorf("merge-tree: %w", err)
	}

	parentTree, err := s.Repo.PeelToTree(ctx, parent.String())
	if err != nil {
		return git.ZeroHash, fmt.Errorf("resolve parent tree: %w", err)
	}
	if tree == parentTree && !soleMember {
		return git.ZeroHash, nil
	}

	author := c.Author
	committer := s.Committer
	return s.Repo.CommitTree(ctx, git.CommitTreeRequest{
		Tree:      tree,
		Parents:   []git.Hash{parent},
		Message:   message,
		Author:    &author,
		Committer: &committer,
	})
}

func (s *Synthesizer) parentDesc(b *Branch, parent git.Hash) string {
	switch {
	case parent != b.BaseHash:
		return "the same topic"
	case b.Topic.Relative != nil:
		return fmt.Sprintf("relative topic %q", b.Topic.Relative.Name)
	default:
		return fmt.Sprintf("base branch %q", b.Base)
	}
}
