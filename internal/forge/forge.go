// Package forge defines the interface between the upload pipeline and
// the forge hosting the repository (GitHub).
package forge

import (
	"context"
	"errors"

	"go.revup.dev/revup/internal/git"
)

// ErrNotFound indicates that a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// PullRequest is the forge-side state of a review branch.
type PullRequest struct {
	// ID is the forge's opaque node id for the PR,
	// used in follow-up mutations.
	ID string

	Number int
	URL    string

	// State is OPEN or MERGED. Closed PRs are never returned.
	State string

	Title   string
	Body    string
	BaseRef string

	// BaseOid is the parent of the PR's first commit: the commit the
	// branch was actually uploaded against. (The forge's baseRefOid
	// field tracks the base branch's tip instead, which may not even
	// exist locally.)
	BaseOid git.Hash

	// HeadOid is the current remote head of the PR's branch.
	HeadOid git.Hash

	Draft bool

	// Reviewers, Assignees, and Labels currently on the PR.
	Reviewers, Assignees, Labels []string

	// Comments are the PR's first few comments, oldest first.
	Comments []Comment
}

// Comment is an existing PR comment.
type Comment struct {
	ID   string
	Body string
}

// User is a resolved forge user.
type User struct {
	// Login is the user's full login name.
	Login string

	// ID is the forge's opaque node id.
	ID string
}

// QueryRequest asks for everything the upload needs to know about the
// forge's current state, in one batch.
type QueryRequest struct {
	// HeadRefs are branch names (without the remote prefix)
	// whose open or merged PRs are wanted.
	HeadRefs []string

	// Users are reviewer/assignee short names to resolve to logins.
	Users []string

	// Labels are label names to resolve.
	Labels []string
}

// QueryResult is the batch answer to a QueryRequest.
type QueryResult struct {
	// PullsByHeadRef has an entry per requested head ref
	// that has an open or merged PR.
	PullsByHeadRef map[string]*PullRequest

	// Users maps requested short names to resolved users.
	// Unresolved names are absent.
	Users map[string]User

	// Labels is the set of requested label names that exist.
	Labels map[string]bool
}

// CreatePullRequest creates a new PR.
type CreatePullRequest struct {
	// Head is the branch name in the repository holding the head
	// (the configured fork, if any).
	Head string

	// Base is the ref the PR targets.
	Base string

	Title string
	Body  string
	Draft bool
}

// UpdatePullRequest edits an existing PR.
// Nil fields are left unchanged.
type UpdatePullRequest struct {
	Title   *string
	Body    *string
	BaseRef *string
}

// Repository is a forge-hosted repository the tool can query and
// mutate. Implementations must be safe for concurrent use.
//
// Queries may be retried internally on transport failures;
// mutations are issued exactly once.
type Repository interface {
	// QueryEverything performs the batch query for PRs, users,
	// and labels.
	QueryEverything(ctx context.Context, req QueryRequest) (*QueryResult, error)

	// CreatePull creates a PR and returns its forge-side state.
	CreatePull(ctx context.Context, req CreatePullRequest) (*PullRequest, error)

	// UpdatePull edits the PR's title, body, or base.
	UpdatePull(ctx context.Context, prID string, req UpdatePullRequest) error

	// SetDraft toggles the PR's draft state.
	SetDraft(ctx context.Context, prID string, draft bool) error

	// AddLabels and RemoveLabels adjust the PR's labels by name.
	// Names must have resolved in a prior QueryEverything.
	AddLabels(ctx context.Context, prID string, names []string) error
	RemoveLabels(ctx context.Context, prID string, names []string) error

	// RequestReviewers requests reviews from the given logins,
	// keeping existing requests.
	// WithdrawReviewers removes pending requests for the given logins.
	RequestReviewers(ctx context.Context, prID string, logins []string) error
	WithdrawReviewers(ctx context.Context, prID string, logins []string) error

	// AddAssignees and RemoveAssignees adjust the PR's assignees.
	AddAssignees(ctx context.Context, prID string, logins []string) error
	RemoveAssignees(ctx context.Context, prID string, logins []string) error

	// PostComment adds a comment to the PR and returns its id.
	// UpdateComment replaces an existing comment's body.
	PostComment(ctx context.Context, prID, body string) (string, error)
	UpdateComment(ctx context.Context, commentID, body string) error
}
