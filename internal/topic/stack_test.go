package topic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.revup.dev/revup/internal/git"
)

func fakeCommit(hash, parent, subject string, directives ...string) *git.CommitDetail {
	msg := subject
	if len(directives) > 0 {
		msg += "\n\n" + strings.Join(directives, "\n")
	}
	return &git.CommitDetail{
		Hash:    git.Hash(hash),
		Parents: []git.Hash{git.Hash(parent)},
		Author: git.Signature{
			Name:  "Test Author",
			Email: "author@example.com",
			Date:  "1700000000 +0000",
		},
		Subject: subject,
		Message: msg,
	}
}

func buildRequest(commits ...*git.CommitDetail) BuildRequest {
	return BuildRequest{
		Commits:     commits,
		DefaultBase: "main",
		Uploader:    "author",
		UserEmail:   "author@example.com",
	}
}

func TestBuildStackIndependentTopics(t *testing.T) {
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "add foo", "Topic: foo"),
		fakeCommit("b1", "a1", "add bar", "Topic: bar"),
	))
	require.NoError(t, err)

	require.Len(t, stack.Topics, 2)
	foo, bar := stack.Topics[0], stack.Topics[1]
	assert.Equal(t, "foo", foo.Name)
	assert.Equal(t, "bar", bar.Name)
	assert.Nil(t, foo.Relative)
	assert.Nil(t, bar.Relative)
	assert.Equal(t, []string{"main"}, foo.Bases)
	assert.Equal(t, []string{"main"}, bar.Bases)

	assert.Equal(t, "revup/author/main/foo", foo.Branches["main"].RemoteHead)
	assert.Equal(t, "revup/author/main/bar", bar.Branches["main"].RemoteHead)
	assert.Equal(t, "main", foo.Branches["main"].RemoteBase)
}

func TestBuildStackRelative(t *testing.T) {
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "add foo", "Topic: foo"),
		fakeCommit("b1", "a1", "add bar", "Topic: bar", "Relative: foo"),
	))
	require.NoError(t, err)

	require.Len(t, stack.Topics, 2)
	foo, bar := stack.Topics[0], stack.Topics[1]
	require.NotNil(t, bar.Relative)
	assert.Same(t, foo, bar.Relative)

	barBranch := bar.Branches["main"]
	assert.Equal(t, foo.Branches["main"].RemoteHead, barBranch.RemoteBase,
		"bar's PR must target foo's branch")
	assert.Equal(t, []*Branch{barBranch}, foo.Branches["main"].Children)
}

func TestBuildStackInterleavedTopics(t *testing.T) {
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "foo 1", "Topic: foo"),
		fakeCommit("b1", "a1", "bar 1", "Topic: bar", "Relative: foo"),
		fakeCommit("a2", "b1", "foo 2", "Topic: foo"),
	))
	require.NoError(t, err)

	require.Len(t, stack.Topics, 2)
	foo := stack.Topics[0]
	require.Len(t, foo.Commits, 2)
	assert.Equal(t, git.Hash("a1"), foo.Commits[0].Hash)
	assert.Equal(t, git.Hash("a2"), foo.Commits[1].Hash)
}

func TestBuildStackRelativeMustComeFirst(t *testing.T) {
	_, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "add bar", "Topic: bar", "Relative: foo"),
		fakeCommit("b1", "a1", "add foo", "Topic: foo"),
	))
	require.Error(t, err)
	assert.ErrorContains(t, err, "doesn't appear after it")
}

func TestBuildStackRelativeToSelf(t *testing.T) {
	_, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "add foo", "Topic: foo", "Relative: foo"),
	))
	require.Error(t, err)
	assert.ErrorContains(t, err, "relative to itself")
}

func TestBuildStackRelativeAssumedMerged(t *testing.T) {
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "add bar", "Topic: bar", "Relative: landed"),
	))
	require.NoError(t, err)

	require.Len(t, stack.Topics, 1)
	assert.Nil(t, stack.Topics[0].Relative)
	assert.Equal(t, "main", stack.Topics[0].Branches["main"].RemoteBase)
}

func TestBuildStackRelativeChain(t *testing.T) {
	req := buildRequest(
		fakeCommit("a1", "b0", "one", "Topic: one"),
		fakeCommit("b1", "a1", "two", "Topic: two"),
		fakeCommit("c1", "b1", "three", "Topic: three", "Relative: one"),
	)
	req.RelativeChain = true

	stack, err := BuildStack(req)
	require.NoError(t, err)

	require.Len(t, stack.Topics, 3)
	// Relative: directives are ignored; topics chain in order.
	assert.Nil(t, stack.Topics[0].Relative)
	assert.Same(t, stack.Topics[0], stack.Topics[1].Relative)
	assert.Same(t, stack.Topics[1], stack.Topics[2].Relative)
}

func TestBuildStackMultipleBases(t *testing.T) {
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "fix it", "Topic: fix", "Branches: main, rel1.1"),
	))
	require.NoError(t, err)

	fix := stack.Topics[0]
	assert.Equal(t, []string{"main", "rel1.1"}, fix.Bases)
	assert.Equal(t, "revup/author/main/fix", fix.Branches["main"].RemoteHead)
	assert.Equal(t, "revup/author/rel1.1/fix", fix.Branches["rel1.1"].RemoteHead)
}

func TestBuildStackBaseInheritance(t *testing.T) {
	t.Run("Inherit", func(t *testing.T) {
		stack, err := BuildStack(buildRequest(
			fakeCommit("a1", "b0", "foo", "Topic: foo", "Branches: main, rel1.1"),
			fakeCommit("b1", "a1", "bar", "Topic: bar", "Relative: foo"),
		))
		require.NoError(t, err)
		assert.Equal(t, []string{"main", "rel1.1"}, stack.Topics[1].Bases)
	})

	t.Run("SubsetAllowed", func(t *testing.T) {
		stack, err := BuildStack(buildRequest(
			fakeCommit("a1", "b0", "foo", "Topic: foo", "Branches: main, rel1.1"),
			fakeCommit("b1", "a1", "bar", "Topic: bar", "Relative: foo", "Branches: rel1.1"),
		))
		require.NoError(t, err)
		assert.Equal(t, []string{"rel1.1"}, stack.Topics[1].Bases)
	})

	t.Run("SupersetRejected", func(t *testing.T) {
		_, err := BuildStack(buildRequest(
			fakeCommit("a1", "b0", "foo", "Topic: foo"),
			fakeCommit("b1", "a1", "bar", "Topic: bar", "Relative: foo", "Branches: main, rel1.1"),
		))
		require.Error(t, err)
		assert.ErrorContains(t, err, "relative topic")
	})
}

func TestBuildStackUploaderAgreement(t *testing.T) {
	t.Run("Mismatch", func(t *testing.T) {
		_, err := BuildStack(buildRequest(
			fakeCommit("a1", "b0", "foo", "Topic: foo", "Uploader: alice"),
			fakeCommit("b1", "a1", "bar", "Topic: bar", "Relative: foo", "Uploader: bob"),
		))
		require.Error(t, err)
		assert.ErrorContains(t, err, "uploader")
	})

	t.Run("Inherited", func(t *testing.T) {
		stack, err := BuildStack(buildRequest(
			fakeCommit("a1", "b0", "foo", "Topic: foo", "Uploader: alice"),
			fakeCommit("b1", "a1", "bar", "Topic: bar", "Relative: foo"),
		))
		require.NoError(t, err)
		assert.Equal(t, "revup/alice/main/bar", stack.Topics[1].Branches["main"].RemoteHead)
	})
}

func TestBuildStackRelativeBranchConstraints(t *testing.T) {
	t.Run("MultipleBasesRejected", func(t *testing.T) {
		_, err := BuildStack(buildRequest(
			fakeCommit("a1", "b0", "foo", "Topic: foo",
				"Branches: main, rel1.1", "Relative-Branch: feature-x"),
		))
		require.Error(t, err)
		assert.ErrorContains(t, err, "exactly one base")
	})

	t.Run("AncestorMismatchRejected", func(t *testing.T) {
		_, err := BuildStack(buildRequest(
			fakeCommit("a1", "b0", "foo", "Topic: foo", "Relative-Branch: feature-x"),
			fakeCommit("b1", "a1", "bar", "Topic: bar", "Relative: foo", "Relative-Branch: feature-y"),
		))
		require.Error(t, err)
		assert.ErrorContains(t, err, "relative branches")
	})

	t.Run("TargetsRelativeBranch", func(t *testing.T) {
		stack, err := BuildStack(buildRequest(
			fakeCommit("a1", "b0", "foo", "Topic: foo", "Relative-Branch: feature-x"),
		))
		require.NoError(t, err)
		assert.Equal(t, "feature-x", stack.Topics[0].Branches["main"].RemoteBase)
	})
}

func TestBuildStackDraftLabel(t *testing.T) {
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "foo", "Topic: foo", "Labels: draft, bug"),
	))
	require.NoError(t, err)

	foo := stack.Topics[0]
	assert.True(t, foo.Draft)
	assert.Equal(t, []string{"bug"}, foo.Labels, "draft must not be submitted as a label")
}

func TestBuildStackSubjectLabels(t *testing.T) {
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "fix: resolve crash", "Topic: foo"),
		fakeCommit("b1", "a1", "[perf] tighten loop", "Topic: foo"),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"fix", "perf"}, stack.Topics[0].Labels)
}

func TestBuildStackAutoTopic(t *testing.T) {
	req := buildRequest(
		fakeCommit("a1", "b0", "fix the thing that was broken since tuesday"),
	)
	req.AutoTopic = true

	stack, err := BuildStack(req)
	require.NoError(t, err)
	require.Len(t, stack.Topics, 1)
	assert.Equal(t, "fix_the_thing_that_was", stack.Topics[0].Name)
}

func TestBuildStackTopiclessCommitsHeld(t *testing.T) {
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "local hack"),
		fakeCommit("b1", "a1", "add foo", "Topic: foo"),
	))
	require.NoError(t, err)
	require.Len(t, stack.Topics, 1)
	assert.Equal(t, "foo", stack.Topics[0].Name)
}

func TestBuildStackSelfAuthoredOnly(t *testing.T) {
	other := fakeCommit("a1", "b0", "their change", "Topic: theirs")
	other.Author.Email = "other@example.com"

	req := buildRequest(
		other,
		fakeCommit("b1", "a1", "my change", "Topic: mine"),
	)
	req.SelfAuthoredOnly = true

	stack, err := BuildStack(req)
	require.NoError(t, err)
	require.Len(t, stack.Topics, 1)
	assert.Equal(t, "mine", stack.Topics[0].Name)
}

func TestBuildStackDisagreeingSingleValued(t *testing.T) {
	_, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "foo 1", "Topic: foo", "Uploader: alice"),
		fakeCommit("b1", "a1", "foo 2", "Topic: foo", "Uploader: bob"),
	))
	require.Error(t, err)
	assert.ErrorContains(t, err, "disagree")
}

func TestBuildStackUserAliasesAndAutoAdd(t *testing.T) {
	req := buildRequest(
		fakeCommit("a1", "b0", "foo", "Topic: foo", "Reviewers: al", "Assignees: bob"),
	)
	req.UserAliases = map[string]string{"al": "alice"}
	req.AutoAdd = AutoAddUsersR2A

	stack, err := BuildStack(req)
	require.NoError(t, err)

	foo := stack.Topics[0]
	assert.Equal(t, []string{"alice"}, foo.Reviewers)
	assert.Equal(t, []string{"bob", "alice"}, foo.Assignees)
}

func TestBuildStackOnlyFilter(t *testing.T) {
	req := buildRequest(
		fakeCommit("a1", "b0", "one", "Topic: one"),
		fakeCommit("b1", "a1", "two", "Topic: two", "Relative: one"),
		fakeCommit("c1", "b1", "three", "Topic: three"),
	)
	req.Only = []string{"two"}

	stack, err := BuildStack(req)
	require.NoError(t, err)

	var names []string
	for _, tt := range stack.Topics {
		names = append(names, tt.Name)
	}
	// "one" is kept as an ancestor of "two"; "three" is filtered out.
	assert.Equal(t, []string{"one", "two"}, names)
}

func TestBuildStackBranchFormats(t *testing.T) {
	tests := []struct {
		format BranchFormat
		want   string
	}{
		{BranchFormatUserBranch, "revup/author/main/foo"},
		{BranchFormatUser, "revup/author/foo"},
		{BranchFormatBranch, "revup/main/foo"},
		{BranchFormatNone, "revup/foo"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			req := buildRequest(fakeCommit("a1", "b0", "foo", "Topic: foo"))
			req.Format = tt.format

			stack, err := BuildStack(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stack.Topics[0].Branches["main"].RemoteHead)
		})
	}
}

func TestBuildStackNoTopics(t *testing.T) {
	_, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "no tags here"),
	))
	require.Error(t, err)
	assert.ErrorContains(t, err, "no topic tags")
}
