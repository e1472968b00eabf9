package topic

import (
	"fmt"

	"go.revup.dev/revup/internal/forge"
	"go.revup.dev/revup/internal/git"
)

// BranchFormat selects how remote review branches are named.
type BranchFormat string

// Supported branch name formats.
const (
	// BranchFormatUserBranch names branches
	// "revup/<uploader>/<base>/<topic>".
	// This is the default: names cannot collide across bases or users.
	BranchFormatUserBranch BranchFormat = "user+branch"

	// BranchFormatUser names branches "revup/<uploader>/<topic>",
	// allowing a topic to be retargeted to a different base
	// while keeping its branch and PR.
	BranchFormatUser BranchFormat = "user"

	// BranchFormatBranch names branches "revup/<base>/<topic>".
	BranchFormatBranch BranchFormat = "branch"

	// BranchFormatNone names branches "revup/<topic>".
	BranchFormatNone BranchFormat = "none"
)

// ParseBranchFormat validates a branch-format selector.
func ParseBranchFormat(s string) (BranchFormat, error) {
	switch f := BranchFormat(s); f {
	case BranchFormatUserBranch, BranchFormatUser, BranchFormatBranch, BranchFormatNone:
		return f, nil
	default:
		return "", fmt.Errorf("unknown branch format %q: "+
			"expected one of user+branch, user, branch, none", s)
	}
}

// RemoteBranchName reports the remote branch name for a topic
// under the given format.
//
// Branches live under the "revup/" namespace so it is clear they are
// tool-managed and may be force pushed at any time.
func RemoteBranchName(format BranchFormat, uploader, base, topic string) string {
	switch format {
	case BranchFormatUser:
		return fmt.Sprintf("revup/%s/%s", uploader, topic)
	case BranchFormatBranch:
		return fmt.Sprintf("revup/%s/%s", base, topic)
	case BranchFormatNone:
		return fmt.Sprintf("revup/%s", topic)
	default:
		return fmt.Sprintf("revup/%s/%s/%s", uploader, base, topic)
	}
}

// Topic is a named group of commits that becomes one pull request
// per base branch.
type Topic struct {
	// Name of the topic, unique within an upload.
	Name string

	// Relative is the topic this one stacks onto, if any.
	Relative *Topic

	// Commits in the topic, in walked (oldest-first) order.
	Commits []*git.CommitDetail

	// Bases are the base branch short names this topic targets,
	// in first-appearance order.
	Bases []string

	// Reviewers, Assignees, and Labels are unioned across the
	// topic's commits, in first-appearance order.
	Reviewers, Assignees, Labels []string

	// Uploader override from the Uploader directive, if any.
	Uploader string

	// Format selects the remote branch naming scheme.
	Format BranchFormat

	// RelativeBranch is an ephemeral forge-side branch PRs target
	// instead of the base branch, if any.
	RelativeBranch string

	// UpdatePRBody overrides the --update-pr-body flag for this topic.
	UpdatePRBody *bool

	// Draft marks the PRs as drafts (from the "draft" pseudo-label).
	Draft bool

	// Branches holds the topic's per-base review branches,
	// keyed by base branch short name.
	Branches map[string]*Branch

	// patchIDs are lazily computed patch ids for Commits.
	patchIDs []string
}

// PushStatus describes what will happen to a review branch's ref.
type PushStatus int

const (
	// PushStatusNew means no remote branch exists yet.
	PushStatusNew PushStatus = iota

	// PushStatusChanged means the branch content changed
	// and must be pushed.
	PushStatusChanged

	// PushStatusRebasedOnly means the branch is a pure rebase of the
	// remote: the push may be skipped unless requested.
	PushStatusRebasedOnly

	// PushStatusUnchanged means the remote already matches exactly.
	PushStatusUnchanged
)

func (s PushStatus) String() string {
	switch s {
	case PushStatusNew:
		return "new"
	case PushStatusChanged:
		return "changed"
	case PushStatusRebasedOnly:
		return "rebased-only"
	case PushStatusUnchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("PushStatus(%d)", int(s))
	}
}

// NeedsPush reports whether the branch ref must be sent to the remote.
func (s PushStatus) NeedsPush() bool {
	return s == PushStatusNew || s == PushStatusChanged
}

// Branch is one pushable review branch: a (topic, base branch) pair.
type Branch struct {
	// Topic this branch belongs to.
	Topic *Topic

	// Base is the base branch short name.
	Base string

	// RemoteHead is the branch's name on the remote
	// (without the remote prefix).
	RemoteHead string

	// RemoteBase is the ref the PR targets: the parent topic's
	// RemoteHead, a relative branch, or Base itself.
	RemoteBase string

	// RelativeBranch is the ephemeral branch this review targets,
	// if any. Cleared if that branch's PR has merged.
	RelativeBranch string

	// BaseHash is the commit the synthesized commits sit on:
	// the parent branch's head, or the local base branch tip.
	BaseHash git.Hash

	// NewCommits are the synthesized commits, oldest first.
	// The last one is the branch head to push.
	NewCommits []git.Hash

	// RemoteCommits is the remote branch's current commit range,
	// if a PR exists.
	RemoteCommits []*git.CommitDetail

	// PR is the existing pull request for this branch, if any.
	PR *forge.PullRequest

	// Status classifies the pending ref update.
	Status PushStatus

	// Merged reports that the PR has already merged;
	// no mutations are possible.
	Merged bool

	// DeferCreate reports that PR creation must wait because the
	// parent branch lives in a different fork.
	DeferCreate bool

	// Children are branches that declared this one as their parent.
	Children []*Branch
}

// Head reports the synthesized branch head,
// or ZeroHash if synthesis has not run.
func (b *Branch) Head() git.Hash {
	if len(b.NewCommits) == 0 {
		return git.ZeroHash
	}
	return b.NewCommits[len(b.NewCommits)-1]
}

