package git

import (
	"context"
	"os/exec"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecer records executed commands and returns canned stdout.
type fakeExecer struct {
	commands [][]string
	envs     [][]string
	output   []byte
	err      error
}

func (f *fakeExecer) record(cmd *exec.Cmd) {
	f.commands = append(f.commands, slices.Clone(cmd.Args))
	f.envs = append(f.envs, slices.Clone(cmd.Env))
}

func (f *fakeExecer) Run(cmd *exec.Cmd) error   { f.record(cmd); return f.err }
func (f *fakeExecer) Start(cmd *exec.Cmd) error { f.record(cmd); return f.err }
func (f *fakeExecer) Wait(*exec.Cmd) error      { return f.err }
func (f *fakeExecer) Kill(*exec.Cmd) error      { return nil }

func (f *fakeExecer) Output(cmd *exec.Cmd) ([]byte, error) {
	f.record(cmd)
	if cmd.Stdout != nil {
		// exec.Cmd.Output requires an unset Stdout.
		panic("Output called with Stdout set")
	}
	return f.output, f.err
}

func fakeRepo(exec execer) *Repository {
	return &Repository{
		root: "/repo",
		exec: exec,
	}
}

func (f *fakeExecer) lastCommand() []string {
	if len(f.commands) == 0 {
		return nil
	}
	return f.commands[len(f.commands)-1]
}

func TestPushRefsArgs(t *testing.T) {
	fake := &fakeExecer{}
	repo := fakeRepo(fake)

	err := repo.PushRefs(context.Background(), PushRefsRequest{
		Remote: "origin",
		Refs: []PushRef{
			{
				Hash:  "1111111111111111111111111111111111111111",
				Dest:  "refs/heads/revup/alice/main/foo",
				Lease: "2222222222222222222222222222222222222222",
			},
			{
				Hash: "3333333333333333333333333333333333333333",
				Dest: "refs/heads/revup/alice/main/bar",
			},
		},
	})
	require.NoError(t, err)

	require.Len(t, fake.commands, 1)
	assert.Equal(t, []string{
		"git", "push", "--no-verify",
		"--force-with-lease=refs/heads/revup/alice/main/foo:2222222222222222222222222222222222222222",
		"origin",
		"1111111111111111111111111111111111111111:refs/heads/revup/alice/main/foo",
		"+3333333333333333333333333333333333333333:refs/heads/revup/alice/main/bar",
	}, fake.lastCommand())
}

func TestPushRefsEmpty(t *testing.T) {
	fake := &fakeExecer{}
	repo := fakeRepo(fake)

	require.NoError(t, repo.PushRefs(context.Background(), PushRefsRequest{Remote: "origin"}))
	assert.Empty(t, fake.commands, "an empty push must not invoke git")
}

func TestSetRefArgs(t *testing.T) {
	fake := &fakeExecer{}
	repo := fakeRepo(fake)

	err := repo.SetRef(context.Background(), SetRefRequest{
		Ref:     "refs/heads/revup/alice/main/foo",
		Hash:    "1111111111111111111111111111111111111111",
		OldHash: ZeroHash,
		Reason:  "revup: update local branch",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"git", "update-ref",
		"-m", "revup: update local branch",
		"refs/heads/revup/alice/main/foo",
		"1111111111111111111111111111111111111111",
		ZeroHash.String(),
	}, fake.lastCommand())
}

func TestCommitTreeArgs(t *testing.T) {
	fake := &fakeExecer{output: []byte("4444444444444444444444444444444444444444\n")}
	repo := fakeRepo(fake)

	hash, err := repo.CommitTree(context.Background(), CommitTreeRequest{
		Tree:    "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Message: "pick me",
		Parents: []Hash{"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
		Author: &Signature{
			Name:  "Alice",
			Email: "alice@example.com",
			Date:  "1700000000 +0000",
		},
		Committer: &Signature{
			Name:  "Bob",
			Email: "bob@example.com",
			Date:  "2026-08-06T12:00:00Z",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Hash("4444444444444444444444444444444444444444"), hash)

	assert.Equal(t, []string{
		"git", "commit-tree",
		"-p", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	}, fake.lastCommand())

	env := strings.Join(fake.envs[0], "\n")
	assert.Contains(t, env, "GIT_AUTHOR_NAME=Alice")
	assert.Contains(t, env, "GIT_AUTHOR_DATE=1700000000 +0000")
	assert.Contains(t, env, "GIT_COMMITTER_NAME=Bob")
	assert.Contains(t, env, "GIT_COMMITTER_DATE=2026-08-06T12:00:00Z")
}

func TestCommitTreeEmptyMessage(t *testing.T) {
	repo := fakeRepo(&fakeExecer{})
	_, err := repo.CommitTree(context.Background(), CommitTreeRequest{
		Tree: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	})
	assert.Error(t, err)
}

func TestFetchArgs(t *testing.T) {
	fake := &fakeExecer{}
	repo := fakeRepo(fake)

	err := repo.Fetch(context.Background(), FetchRequest{
		Remote:   "origin",
		Refspecs: []string{"1111111111111111111111111111111111111111"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"git", "fetch",
		"--no-write-fetch-head",
		"--no-auto-maintenance",
		"--quiet",
		"origin",
		"1111111111111111111111111111111111111111",
	}, fake.lastCommand())
}

func TestHashShortAndZero(t *testing.T) {
	assert.Equal(t, "11112222", Hash("1111222233334444555566667777888899990000").Short())
	assert.Equal(t, "abc", Hash("abc").Short())
	assert.True(t, ZeroHash.IsZero())
	assert.True(t, Hash("").IsZero())
	assert.False(t, Hash("1111222233334444555566667777888899990000").IsZero())
}
