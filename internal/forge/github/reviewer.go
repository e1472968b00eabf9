package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
)

// RequestReviewers requests reviews from the given logins,
// keeping any existing review requests.
func (r *Repository) RequestReviewers(ctx context.Context, prID string, logins []string) error {
	if len(logins) == 0 {
		return nil
	}

	ids, err := r.cachedUserIDs(logins)
	if err != nil {
		return err
	}

	var m struct {
		RequestReviews struct {
			ClientMutationID githubv4.String `graphql:"clientMutationId"`
		} `graphql:"requestReviews(input: $input)"`
	}

	input := githubv4.RequestReviewsInput{
		PullRequestID: githubv4.ID(prID),
		UserIDs:       &ids,
		Union:         githubv4.NewBoolean(true),
	}
	if err := r.mutate(ctx, &m, input); err != nil {
		return fmt.Errorf("request reviews: %w", err)
	}
	return nil
}

// WithdrawReviewers removes pending review requests for the given
// logins by replacing the request set with the current reviewers
// minus them.
//
// The API has no removal mutation; requestReviews without union
// replaces the full set.
func (r *Repository) WithdrawReviewers(ctx context.Context, prID string, logins []string) error {
	if len(logins) == 0 {
		return nil
	}

	var q struct {
		Node struct {
			PullRequest struct {
				ReviewRequests struct {
					Nodes []struct {
						RequestedReviewer struct {
							User struct {
								Login string      `graphql:"login"`
								ID    githubv4.ID `graphql:"id"`
							} `graphql:"... on User"`
						} `graphql:"requestedReviewer"`
					}
				} `graphql:"reviewRequests(first: 25)"`
			} `graphql:"... on PullRequest"`
		} `graphql:"node(id: $id)"`
	}
	err := r.query(ctx, &q, map[string]any{"id": githubv4.ID(prID)})
	if err != nil {
		return fmt.Errorf("list review requests: %w", err)
	}

	removing := make(map[string]bool, len(logins))
	for _, l := range logins {
		removing[l] = true
	}

	keep := []githubv4.ID{}
	for _, rr := range q.Node.PullRequest.ReviewRequests.Nodes {
		u := rr.RequestedReviewer.User
		if u.Login == "" || removing[u.Login] {
			continue
		}
		keep = append(keep, u.ID)
	}

	var m struct {
		RequestReviews struct {
			ClientMutationID githubv4.String `graphql:"clientMutationId"`
		} `graphql:"requestReviews(input: $input)"`
	}

	input := githubv4.RequestReviewsInput{
		PullRequestID: githubv4.ID(prID),
		UserIDs:       &keep,
		Union:         githubv4.NewBoolean(false),
	}
	if err := r.mutate(ctx, &m, input); err != nil {
		return fmt.Errorf("withdraw reviews: %w", err)
	}
	return nil
}
