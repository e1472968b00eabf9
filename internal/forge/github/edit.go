package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
	"go.revup.dev/revup/internal/forge"
)

// UpdatePull edits the PR's title, body, or base.
func (r *Repository) UpdatePull(ctx context.Context, prID string, req forge.UpdatePullRequest) error {
	if req.Title == nil && req.Body == nil && req.BaseRef == nil {
		return nil
	}

	var m struct {
		UpdatePullRequest struct {
			ClientMutationID string `graphql:"clientMutationId"`
		} `graphql:"updatePullRequest(input: $input)"`
	}

	input := githubv4.UpdatePullRequestInput{
		PullRequestID: githubv4.ID(prID),
	}
	if req.Title != nil {
		input.Title = githubv4.NewString(githubv4.String(*req.Title))
	}
	if req.Body != nil {
		input.Body = githubv4.NewString(githubv4.String(*req.Body))
	}
	if req.BaseRef != nil {
		input.BaseRefName = githubv4.NewString(githubv4.String(*req.BaseRef))
	}

	if err := r.mutate(ctx, &m, input); err != nil {
		return fmt.Errorf("update pull request: %w", err)
	}
	return nil
}

// SetDraft toggles the PR's draft state.
// Conversion in each direction is a separate mutation.
func (r *Repository) SetDraft(ctx context.Context, prID string, draft bool) error {
	if draft {
		var m struct {
			ConvertPullRequestToDraft struct {
				PullRequest struct {
					ID githubv4.ID `graphql:"id"`
				} `graphql:"pullRequest"`
			} `graphql:"convertPullRequestToDraft(input: $input)"`
		}
		input := githubv4.ConvertPullRequestToDraftInput{
			PullRequestID: githubv4.ID(prID),
		}
		if err := r.mutate(ctx, &m, input); err != nil {
			return fmt.Errorf("convert to draft: %w", err)
		}
		return nil
	}

	var m struct {
		MarkPullRequestReadyForReview struct {
			PullRequest struct {
				ID githubv4.ID `graphql:"id"`
			} `graphql:"pullRequest"`
		} `graphql:"markPullRequestReadyForReview(input: $input)"`
	}
	input := githubv4.MarkPullRequestReadyForReviewInput{
		PullRequestID: githubv4.ID(prID),
	}
	if err := r.mutate(ctx, &m, input); err != nil {
		return fmt.Errorf("mark ready for review: %w", err)
	}
	return nil
}
