package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
)

// PostComment adds a new comment to the PR and returns its node id.
func (r *Repository) PostComment(ctx context.Context, prID, body string) (string, error) {
	var m struct {
		AddComment struct {
			CommentEdge struct {
				Node struct {
					ID  githubv4.ID `graphql:"id"`
					URL string      `graphql:"url"`
				} `graphql:"node"`
			} `graphql:"commentEdge"`
		} `graphql:"addComment(input: $input)"`
	}

	input := githubv4.AddCommentInput{
		SubjectID: githubv4.ID(prID),
		Body:      githubv4.String(body),
	}
	if err := r.mutate(ctx, &m, input); err != nil {
		return "", fmt.Errorf("post comment: %w", err)
	}

	n := m.AddComment.CommentEdge.Node
	r.log.Debug("Posted comment", "url", n.URL)
	return idString(n.ID), nil
}

// UpdateComment replaces the body of an existing comment.
func (r *Repository) UpdateComment(ctx context.Context, commentID, body string) error {
	var m struct {
		UpdateIssueComment struct {
			IssueComment struct {
				ID githubv4.ID `graphql:"id"`
			} `graphql:"issueComment"`
		} `graphql:"updateIssueComment(input: $input)"`
	}

	input := githubv4.UpdateIssueCommentInput{
		ID:   githubv4.ID(commentID),
		Body: githubv4.String(body),
	}
	if err := r.mutate(ctx, &m, input); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return nil
}
