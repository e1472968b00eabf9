package topic

import (
	"slices"
	"strings"
)

// PRUpdate is the minimal set of mutations to bring one PR in line
// with local intent. Zero-valued fields mean "leave alone".
type PRUpdate struct {
	// Title and Body, when non-nil, replace the PR's.
	Title, Body *string

	// BaseRef, when non-empty, retargets the PR.
	BaseRef string

	// Draft, when non-nil, toggles the PR's draft state.
	Draft *bool

	// Labels to add and remove, by name.
	AddLabels, RemoveLabels []string

	// Reviewers to request and review requests to withdraw, by login.
	AddReviewers, RemoveReviewers []string

	// Assignees to add and remove, by login.
	AddAssignees, RemoveAssignees []string

	// Comments to post (empty ID) or edit (existing ID).
	Comments []CommentUpdate
}

// CommentUpdate posts or edits one PR comment.
type CommentUpdate struct {
	// ID of the comment to edit; empty to post a new comment.
	ID string

	Body string
}

// Empty reports whether the update carries no mutations.
func (u *PRUpdate) Empty() bool {
	return u.Title == nil && u.Body == nil && u.BaseRef == "" && u.Draft == nil &&
		len(u.AddLabels) == 0 && len(u.RemoveLabels) == 0 &&
		len(u.AddReviewers) == 0 && len(u.RemoveReviewers) == 0 &&
		len(u.AddAssignees) == 0 && len(u.RemoveAssignees) == 0 &&
		len(u.Comments) == 0
}

// Reconciler computes minimal PR mutations from the difference between
// local intent and the forge's current state.
type Reconciler struct {
	// Logins maps requested reviewer/assignee short names to resolved
	// forge logins. Unresolved names are absent and skipped.
	Logins map[string]string

	// KnownLabels is the set of label names that exist on the
	// repository. Labels that don't resolve are skipped.
	KnownLabels map[string]bool

	// UpdateBody enables title/body updates (--update-pr-body);
	// a topic's Update-Pr-Body directive overrides it.
	UpdateBody bool
}

// Reconcile computes the update for a branch with an existing PR.
//
// prior is the patchsets payload recorded on the PR, if any; removal
// of labels and users is restricted to entries it lists, so state
// added through the forge UI is never touched.
func (r *Reconciler) Reconcile(b *Branch, stack *Stack, prior *PatchsetsPayload) *PRUpdate {
	update := new(PRUpdate)
	if b.PR == nil || b.Merged {
		return update
	}

	updateBody := r.UpdateBody
	if o := b.Topic.UpdatePRBody; o != nil {
		updateBody = *o
	}

	title, body := titleAndBody(b, stack)
	if updateBody && title != "" && b.PR.Title != title {
		update.Title = &title
	}
	if updateBody && b.PR.Body != body {
		update.Body = &body
	}

	if b.PR.BaseRef != b.RemoteBase {
		update.BaseRef = b.RemoteBase
	}

	if b.PR.Draft != b.Topic.Draft {
		draft := b.Topic.Draft
		update.Draft = &draft
	}

	labels := r.desiredLabels(b)
	update.AddLabels = missing(labels, b.PR.Labels)
	update.RemoveLabels = removable(b.PR.Labels, labels, priorList(prior, "labels"))

	reviewers := r.resolveLogins(b.Topic.Reviewers)
	update.AddReviewers = missing(reviewers, b.PR.Reviewers)
	update.RemoveReviewers = removable(b.PR.Reviewers, reviewers, priorList(prior, "reviewers"))

	assignees := r.resolveLogins(b.Topic.Assignees)
	update.AddAssignees = missing(assignees, b.PR.Assignees)
	update.RemoveAssignees = removable(b.PR.Assignees, assignees, priorList(prior, "assignees"))

	return update
}

// Snapshot records the tool-applied metadata for the next run's
// patchsets payload.
func (r *Reconciler) Snapshot(b *Branch) (labels, reviewers, assignees []string) {
	return r.desiredLabels(b), r.resolveLogins(b.Topic.Reviewers), r.resolveLogins(b.Topic.Assignees)
}

// titleAndBody derives the PR title and body from the topic's first
// commit (message trimmed per --trim-tags).
func titleAndBody(b *Branch, stack *Stack) (title, body string) {
	if len(b.Topic.Commits) == 0 {
		return "", ""
	}
	first := b.Topic.Commits[0]
	msg := stack.Messages[first.Hash]
	if msg == "" {
		msg = first.Message
	}
	title, rest, _ := strings.Cut(msg, "\n")
	return title, strings.TrimSpace(rest)
}

// desiredLabels reports the topic's labels that exist on the
// repository, plus the base branch's own label if one exists.
func (r *Reconciler) desiredLabels(b *Branch) []string {
	var labels []string
	for _, l := range b.Topic.Labels {
		if r.KnownLabels[l] {
			labels = addUnique(labels, l)
		}
	}
	if r.KnownLabels[b.Base] {
		// The base branch name doubles as a label that shows
		// all reviews targeting that branch.
		labels = addUnique(labels, b.Base)
	}
	return labels
}

func (r *Reconciler) resolveLogins(names []string) []string {
	var logins []string
	for _, n := range names {
		if login, ok := r.Logins[n]; ok {
			logins = addUnique(logins, login)
		}
	}
	return logins
}

func priorList(prior *PatchsetsPayload, kind string) []string {
	if prior == nil {
		return nil
	}
	switch kind {
	case "labels":
		return prior.Labels
	case "reviewers":
		return prior.Reviewers
	default:
		return prior.Assignees
	}
}

// missing reports entries of want that are not in have.
func missing(want, have []string) []string {
	var out []string
	for _, w := range want {
		if !slices.Contains(have, w) {
			out = append(out, w)
		}
	}
	return out
}

// removable reports entries of have that are no longer wanted and
// that the tool itself added on a previous run.
func removable(have, want, toolAdded []string) []string {
	var out []string
	for _, h := range have {
		if !slices.Contains(want, h) && slices.Contains(toolAdded, h) {
			out = append(out, h)
		}
	}
	return out
}
