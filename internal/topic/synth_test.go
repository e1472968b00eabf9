package topic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.revup.dev/revup/internal/git"
)

func synthCommitter() git.Signature {
	return git.Signature{
		Name:  "Committer",
		Email: "committer@example.com",
		Date:  "2026-08-06T12:00:00Z",
	}
}

// addStackCommits registers the stack's commits with the fake,
// giving each a distinct tree.
func addStackCommits(f *fakeGit, stack *Stack) {
	f.addCommit(&git.CommitDetail{Hash: "b0", Tree: "tree-b0"})
	for _, c := range stack.Commits {
		c.Tree = git.Hash("tree-" + string(c.Hash))
		f.addCommit(c)
	}
}

func TestSynthesizeReusesOriginalCommits(t *testing.T) {
	// The topic's commits already sit on the base;
	// no new objects should be created.
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "one", "Topic: foo"),
		fakeCommit("a2", "a1", "two", "Topic: foo"),
	))
	require.NoError(t, err)

	f := newFakeGit()
	addStackCommits(f, stack)

	b := stack.Topics[0].Branches["main"]
	b.Status = PushStatusNew
	b.BaseHash = "b0"

	synth := &Synthesizer{Repo: f, Committer: synthCommitter()}
	require.NoError(t, synth.Synthesize(context.Background(), stack))

	assert.Equal(t, []git.Hash{"a1", "a2"}, b.NewCommits)
	assert.Equal(t, git.Hash("a2"), b.Head())
}

func TestSynthesizeCherryPicks(t *testing.T) {
	// Base b1 differs from the commits' parent b0,
	// so both commits must be rewritten.
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "one", "Topic: foo"),
		fakeCommit("a2", "a1", "two", "Topic: foo"),
	))
	require.NoError(t, err)

	f := newFakeGit()
	addStackCommits(f, stack)
	f.addCommit(&git.CommitDetail{Hash: "b1", Tree: "tree-b1"})
	f.merges[mergeKey("a1", "b1", "b0")] = "tree-m1"

	b := stack.Topics[0].Branches["main"]
	b.Status = PushStatusNew
	b.BaseHash = "b1"

	synth := &Synthesizer{Repo: f, Committer: synthCommitter()}
	require.NoError(t, synth.Synthesize(context.Background(), stack))

	require.Len(t, b.NewCommits, 2)
	first := f.commits[b.NewCommits[0]]
	assert.Equal(t, git.Hash("tree-m1"), first.Tree)
	assert.Equal(t, []git.Hash{"b1"}, first.Parents)
	assert.Equal(t, "one", first.Subject)
	assert.Equal(t, "Test Author", first.Author.Name, "author must be preserved")
	assert.Equal(t, "Committer", first.Committer.Name)

	second := f.commits[b.NewCommits[1]]
	assert.Equal(t, []git.Hash{b.NewCommits[0]}, second.Parents)
}

func TestSynthesizeDropsEmptyCommit(t *testing.T) {
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "one", "Topic: foo"),
		fakeCommit("a2", "a1", "two", "Topic: foo"),
	))
	require.NoError(t, err)

	f := newFakeGit()
	addStackCommits(f, stack)
	f.addCommit(&git.CommitDetail{Hash: "b1", Tree: "tree-b1"})
	// a1's pick onto b1 produces b1's own tree: the change is
	// already upstream, so the commit is dropped.
	f.merges[mergeKey("a1", "b1", "b0")] = "tree-b1"

	b := stack.Topics[0].Branches["main"]
	b.Status = PushStatusNew
	b.BaseHash = "b1"

	synth := &Synthesizer{Repo: f, Committer: synthCommitter()}
	require.NoError(t, synth.Synthesize(context.Background(), stack))

	require.Len(t, b.NewCommits, 1)
	assert.Equal(t, "two", f.commits[b.NewCommits[0]].Subject)
}

func TestSynthesizeKeepsSoleEmptyCommit(t *testing.T) {
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "one", "Topic: foo"),
	))
	require.NoError(t, err)

	f := newFakeGit()
	addStackCommits(f, stack)
	f.addCommit(&git.CommitDetail{Hash: "b1", Tree: "tree-b1"})
	f.merges[mergeKey("a1", "b1", "b0")] = "tree-b1"

	b := stack.Topics[0].Branches["main"]
	b.Status = PushStatusNew
	b.BaseHash = "b1"

	synth := &Synthesizer{Repo: f, Committer: synthCommitter()}
	require.NoError(t, synth.Synthesize(context.Background(), stack))
	require.Len(t, b.NewCommits, 1, "a sole empty commit is kept")
}

func TestSynthesizeConflictAborts(t *testing.T) {
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "one", "Topic: foo"),
	))
	require.NoError(t, err)

	f := newFakeGit()
	addStackCommits(f, stack)
	f.addCommit(&git.CommitDetail{Hash: "b1", Tree: "tree-b1"})
	f.conflicts[mergeKey("a1", "b1", "b0")] = []string{"src/thing.go"}

	b := stack.Topics[0].Branches["main"]
	b.Status = PushStatusNew
	b.BaseHash = "b1"

	synth := &Synthesizer{Repo: f, Committer: synthCommitter()}
	err = synth.Synthesize(context.Background(), stack)
	require.Error(t, err)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "foo", conflict.Topic)
	assert.Equal(t, git.Hash("a1"), conflict.Commit)
	assert.Equal(t, []string{"src/thing.go"}, conflict.Files)
	assert.Empty(t, b.NewCommits)
}

func TestSynthesizeRelativeOrdering(t *testing.T) {
	// bar must synthesize on top of foo's synthesized head.
	stack, err := BuildStack(buildRequest(
		fakeCommit("a1", "b0", "foo change", "Topic: foo"),
		fakeCommit("c1", "a1", "bar change", "Topic: bar", "Relative: foo"),
	))
	require.NoError(t, err)

	f := newFakeGit()
	addStackCommits(f, stack)
	f.addCommit(&git.CommitDetail{Hash: "b1", Tree: "tree-b1"})
	f.merges[mergeKey("a1", "b1", "b0")] = "tree-m1"

	foo := stack.Topics[0].Branches["main"]
	bar := stack.Topics[1].Branches["main"]
	foo.Status = PushStatusNew
	foo.BaseHash = "b1"
	bar.Status = PushStatusNew

	synth := &Synthesizer{Repo: f, Committer: synthCommitter()}
	require.NoError(t, synth.Synthesize(context.Background(), stack))

	require.Len(t, bar.NewCommits, 1)
	assert.Equal(t, foo.Head(), bar.BaseHash)
	assert.Equal(t, []git.Hash{foo.Head()}, f.commits[bar.NewCommits[0]].Parents)

	// foo's head must be an ancestor of bar's head.
	ancestors, err := f.ListCommitsDetails(context.Background(), bar.Head().String(), "b1")
	require.NoError(t, err)
	var hashes []git.Hash
	for _, c := range ancestors {
		hashes = append(hashes, c.Hash)
	}
	assert.Contains(t, hashes, foo.Head())
}

func TestSynthesizeTrimTags(t *testing.T) {
	req := buildRequest(
		fakeCommit("a1", "b0", "one", "Topic: foo"),
	)
	req.TrimTags = true

	stack, err := BuildStack(req)
	require.NoError(t, err)

	f := newFakeGit()
	addStackCommits(f, stack)

	b := stack.Topics[0].Branches["main"]
	b.Status = PushStatusNew
	b.BaseHash = "b0"

	synth := &Synthesizer{Repo: f, Committer: synthCommitter()}
	require.NoError(t, synth.Synthesize(context.Background(), stack))

	// Even though the commit sits on its intended parent,
	// the trimmed message forces a rewrite.
	require.Len(t, b.NewCommits, 1)
	assert.NotEqual(t, git.Hash("a1"), b.NewCommits[0])
	assert.Equal(t, "one", f.commits[b.NewCommits[0]].Message)
}
