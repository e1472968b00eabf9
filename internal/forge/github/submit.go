package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
	"go.revup.dev/revup/internal/forge"
	"go.revup.dev/revup/internal/git"
)

// CreatePull creates a new pull request.
//
// When review branches are pushed to a fork, the head is qualified
// with the fork's owner so the PR is created against the upstream
// repository.
func (r *Repository) CreatePull(ctx context.Context, req forge.CreatePullRequest) (*forge.PullRequest, error) {
	var m struct {
		CreatePullRequest struct {
			PullRequest struct {
				ID         githubv4.ID  `graphql:"id"`
				Number     githubv4.Int `graphql:"number"`
				URL        githubv4.URI `graphql:"url"`
				HeadRefOid string       `graphql:"headRefOid"`
			} `graphql:"pullRequest"`
		} `graphql:"createPullRequest(input: $input)"`
	}

	head := req.Head
	if r.fork.Owner != r.repo.Owner {
		head = r.fork.Owner + ":" + req.Head
	}

	input := githubv4.CreatePullRequestInput{
		RepositoryID: r.repoID,
		Title:        githubv4.String(req.Title),
		BaseRefName:  githubv4.String(req.Base),
		HeadRefName:  githubv4.String(head),
	}
	if req.Body != "" {
		input.Body = githubv4.NewString(githubv4.String(req.Body))
	}
	if req.Draft {
		input.Draft = githubv4.NewBoolean(true)
	}

	if err := r.mutate(ctx, &m, input); err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}

	pr := m.CreatePullRequest.PullRequest
	r.log.Debug("Created pull request",
		"pr", int(pr.Number), "url", pr.URL.String())

	return &forge.PullRequest{
		ID:      idString(pr.ID),
		Number:  int(pr.Number),
		URL:     pr.URL.String(),
		State:   "OPEN",
		Title:   req.Title,
		Body:    req.Body,
		BaseRef: req.Base,
		HeadOid: git.Hash(pr.HeadRefOid),
		Draft:   req.Draft,
	}, nil
}
