package git

import (
	"context"
	"fmt"
	"strings"
)

// TreesIdentical reports whether two commit-ish refs point at the same
// tree, which indicates that there is no diff between them.
func (r *Repository) TreesIdentical(ctx context.Context, a, b string) (bool, error) {
	treeA, err := r.PeelToTree(ctx, a)
	if err != nil {
		return false, fmt.Errorf("resolve %v: %w", a, err)
	}
	treeB, err := r.PeelToTree(ctx, b)
	if err != nil {
		return false, fmt.Errorf("resolve %v: %w", b, err)
	}
	return treeA == treeB, nil
}

// ShortDiffStat reports the "N files changed, ..." summary line
// for the diff between two commit-ish refs.
// Returns an empty string for an empty diff.
func (r *Repository) ShortDiffStat(ctx context.Context, a, b string) (string, error) {
	out, err := r.gitCmd(ctx, "diff", "--shortstat", a, b).OutputChomp()
	if err != nil {
		return "", fmt.Errorf("diff --shortstat: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// DiffTreeEntry is a single file change between two trees.
type DiffTreeEntry struct {
	OldMode, NewMode string
	OldHash, NewHash Hash
	Status           string
	Path             string
}

// DiffTreeRaw lists the files that differ between two tree-ish refs
// in raw diff-tree form, recursing into subtrees.
func (r *Repository) DiffTreeRaw(ctx context.Context, a, b string) ([]DiffTreeEntry, error) {
	cmd := r.gitCmd(ctx, "diff-tree", "-r", "--no-commit-id", "--raw", a, b)

	var ents []DiffTreeEntry
	for line, err := range cmd.Lines() {
		if err != nil {
			return nil, fmt.Errorf("diff-tree: %w", err)
		}

		// Raw output is in the form:
		//   :<old-mode> <new-mode> <old-hash> <new-hash> <status>TAB<path>
		meta, path, ok := strings.Cut(string(line), "\t")
		if !ok || !strings.HasPrefix(meta, ":") {
			r.log.Warnf("diff-tree: skipping invalid line: %q", line)
			continue
		}

		toks := strings.Fields(meta[1:])
		if len(toks) != 5 {
			r.log.Warnf("diff-tree: skipping invalid line: %q", line)
			continue
		}

		ents = append(ents, DiffTreeEntry{
			OldMode: toks[0],
			NewMode: toks[1],
			OldHash: Hash(toks[2]),
			NewHash: Hash(toks[3]),
			Status:  toks[4],
			Path:    path,
		})
	}

	return ents, nil
}
