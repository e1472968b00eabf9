package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
)

// AddAssignees adds assignees to the PR by login.
func (r *Repository) AddAssignees(ctx context.Context, prID string, logins []string) error {
	if len(logins) == 0 {
		return nil
	}

	ids, err := r.cachedUserIDs(logins)
	if err != nil {
		return err
	}

	var m struct {
		AddAssigneesToAssignable struct {
			ClientMutationID githubv4.String `graphql:"clientMutationId"`
		} `graphql:"addAssigneesToAssignable(input: $input)"`
	}

	input := githubv4.AddAssigneesToAssignableInput{
		AssignableID: githubv4.ID(prID),
		AssigneeIDs:  ids,
	}
	if err := r.mutate(ctx, &m, input); err != nil {
		return fmt.Errorf("add assignees: %w", err)
	}
	return nil
}

// RemoveAssignees removes assignees from the PR by login.
func (r *Repository) RemoveAssignees(ctx context.Context, prID string, logins []string) error {
	if len(logins) == 0 {
		return nil
	}

	ids, err := r.cachedUserIDs(logins)
	if err != nil {
		return err
	}

	var m struct {
		RemoveAssigneesFromAssignable struct {
			ClientMutationID githubv4.String `graphql:"clientMutationId"`
		} `graphql:"removeAssigneesFromAssignable(input: $input)"`
	}

	input := githubv4.RemoveAssigneesFromAssignableInput{
		AssignableID: githubv4.ID(prID),
		AssigneeIDs:  ids,
	}
	if err := r.mutate(ctx, &m, input); err != nil {
		return fmt.Errorf("remove assignees: %w", err)
	}
	return nil
}
