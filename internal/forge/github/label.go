package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
)

// AddLabels adds labels to the PR by name.
// The labels must have resolved in a prior QueryEverything.
func (r *Repository) AddLabels(ctx context.Context, prID string, names []string) error {
	if len(names) == 0 {
		return nil
	}

	ids, err := r.cachedLabelIDs(names)
	if err != nil {
		return err
	}

	var m struct {
		AddLabelsToLabelable struct {
			ClientMutationID githubv4.String `graphql:"clientMutationId"`
		} `graphql:"addLabelsToLabelable(input: $input)"`
	}

	input := githubv4.AddLabelsToLabelableInput{
		LabelableID: githubv4.ID(prID),
		LabelIDs:    ids,
	}
	if err := r.mutate(ctx, &m, input); err != nil {
		return fmt.Errorf("add labels: %w", err)
	}
	return nil
}

// RemoveLabels removes labels from the PR by name.
func (r *Repository) RemoveLabels(ctx context.Context, prID string, names []string) error {
	if len(names) == 0 {
		return nil
	}

	ids, err := r.cachedLabelIDs(names)
	if err != nil {
		return err
	}

	var m struct {
		RemoveLabelsFromLabelable struct {
			ClientMutationID githubv4.String `graphql:"clientMutationId"`
		} `graphql:"removeLabelsFromLabelable(input: $input)"`
	}

	input := githubv4.RemoveLabelsFromLabelableInput{
		LabelableID: githubv4.ID(prID),
		LabelIDs:    ids,
	}
	if err := r.mutate(ctx, &m, input); err != nil {
		return fmt.Errorf("remove labels: %w", err)
	}
	return nil
}
