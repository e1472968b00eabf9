package topic

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.revup.dev/revup/internal/git"
)

// fakeGit is an in-memory GitRepository for synthesizer and rebase
// detector tests. Commits reference trees by opaque name; merges are
// resolved by a caller-provided rule table.
type fakeGit struct {
	// commits by hash.
	commits map[git.Hash]*git.CommitDetail

	// merges maps "branch1|branch2|base" to the resulting tree.
	merges map[string]git.Hash

	// conflicts lists merge keys that conflict.
	conflicts map[string][]string

	// patchIDs by commit hash.
	patchIDs map[git.Hash]string

	seq int
}

var _ GitRepository = (*fakeGit)(nil)

func newFakeGit() *fakeGit {
	return &fakeGit{
		commits:   make(map[git.Hash]*git.CommitDetail),
		merges:    make(map[string]git.Hash),
		conflicts: make(map[string][]string),
		patchIDs:  make(map[git.Hash]string),
	}
}

func (f *fakeGit) addCommit(c *git.CommitDetail) *git.CommitDetail {
	f.commits[c.Hash] = c
	return c
}

func mergeKey(b1, b2, base string) string {
	return b1 + "|" + b2 + "|" + base
}

func (f *fakeGit) PeelToCommit(_ context.Context, ref string) (git.Hash, error) {
	if _, ok := f.commits[git.Hash(ref)]; ok {
		return git.Hash(ref), nil
	}
	return git.ZeroHash, git.ErrNotExist
}

func (f *fakeGit) PeelToTree(_ context.Context, ref string) (git.Hash, error) {
	c, ok := f.commits[git.Hash(ref)]
	if !ok {
		return git.ZeroHash, git.ErrNotExist
	}
	return c.Tree, nil
}

func (f *fakeGit) TreesIdentical(ctx context.Context, a, b string) (bool, error) {
	ta, err := f.PeelToTree(ctx, strings.TrimSuffix(a, "~"))
	if err != nil {
		return false, err
	}
	tb, err := f.PeelToTree(ctx, strings.TrimSuffix(b, "~"))
	if err != nil {
		return false, err
	}
	return ta == tb, nil
}

func (f *fakeGit) MergeTree(_ context.Context, req git.MergeTreeRequest) (git.Hash, error) {
	key := mergeKey(req.Branch1, req.Branch2, req.MergeBase)
	if files, ok := f.conflicts[key]; ok {
		return git.ZeroHash, &git.MergeTreeConflictError{Files: files}
	}
	if tree, ok := f.merges[key]; ok {
		return tree, nil
	}
	// Unconfigured merges behave like a clean pick of branch1's tree.
	c, ok := f.commits[git.Hash(req.Branch1)]
	if !ok {
		return git.ZeroHash, fmt.Errorf("unknown commit %v", req.Branch1)
	}
	return c.Tree, nil
}

func (f *fakeGit) CommitTree(_ context.Context, req git.CommitTreeRequest) (git.Hash, error) {
	f.seq++
	hash := git.Hash(fmt.Sprintf("synth%03d", f.seq))

	var author, committer git.Signature
	if req.Author != nil {
		author = *req.Author
	}
	if req.Committer != nil {
		committer = *req.Committer
	}

	subject, _, _ := strings.Cut(req.Message, "\n")
	f.commits[hash] = &git.CommitDetail{
		Hash:      hash,
		Tree:      req.Tree,
		Parents:   slices.Clone(req.Parents),
		Author:    author,
		Committer: committer,
		Subject:   subject,
		Message:   req.Message,
	}
	return hash, nil
}

func (f *fakeGit) PatchID(_ context.Context, commit git.Hash) (string, error) {
	if id, ok := f.patchIDs[commit]; ok {
		return id, nil
	}
	return "", fmt.Errorf("no patch id for %v", commit)
}

// ListCommitsDetails walks first parents from start back to stop.
func (f *fakeGit) ListCommitsDetails(_ context.Context, start, stop string) ([]*git.CommitDetail, error) {
	var out []*git.CommitDetail
	for cur := git.Hash(start); cur != git.Hash(stop) && !cur.IsZero(); {
		c, ok := f.commits[cur]
		if !ok {
			return nil, fmt.Errorf("unknown commit %v", cur)
		}
		out = append(out, c)
		cur = c.FirstParent()
	}
	slices.Reverse(out)
	return out, nil
}

func (f *fakeGit) ShortDiffStat(_ context.Context, a, b string) (string, error) {
	if a == b {
		return "", nil
	}
	return "1 file changed", nil
}

func (f *fakeGit) VirtualDiffTarget(_ context.Context, req git.VirtualDiffTargetRequest) (git.Hash, error) {
	f.seq++
	return git.Hash(fmt.Sprintf("vdt%03d", f.seq)), nil
}
