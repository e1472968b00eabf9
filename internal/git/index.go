package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// VirtualDiffTargetRequest describes an upstream-aware diff base.
type VirtualDiffTargetRequest struct {
	// OldBase and OldHead are the previously pushed base and head.
	OldBase, OldHead Hash

	// NewBase and NewHead are the about-to-be-pushed base and head.
	NewBase, NewHead Hash

	// Parent optionally chains this target onto a previous one
	// so all targets of an invocation form a single pushable branch.
	Parent Hash
}

// VirtualDiffTarget builds a commit that, when diffed against NewHead,
// shows the changes between OldHead and NewHead while excluding changes
// that only come from the base moving (a rebase).
//
// The commit's tree is NewBase with every file touched by the
// OldBase..OldHead diff reset to its OldHead version:
//
//   - files touched by neither side show no diff;
//   - files touched by both sides show the full old-to-new diff;
//   - files touched only by the new head show the NewBase..NewHead diff;
//   - files touched only by the old head show old-to-base.
//
// The tree is assembled in a transient index file under the scratch
// directory; the repository's own index is never read or written.
func (r *Repository) VirtualDiffTarget(ctx context.Context, req VirtualDiffTargetRequest) (Hash, error) {
	ents, err := r.DiffTreeRaw(ctx, req.OldBase.String(), req.OldHead.String())
	if err != nil {
		return ZeroHash, fmt.Errorf("diff old base to old head: %w", err)
	}

	if len(ents) == 0 {
		// Nothing was actually changed,
		// so no diff needs to be applied to the new base.
		return req.NewBase, nil
	}

	scratch, err := r.ScratchDir()
	if err != nil {
		return ZeroHash, err
	}
	indexFile := filepath.Join(scratch,
		fmt.Sprintf("index.%d", r.indexSeq.Add(1)))
	env := "GIT_INDEX_FILE=" + indexFile

	// Seed the transient index from the new base.
	err = r.gitCmd(ctx, "read-tree", req.NewBase.String()).
		AppendEnv(env).
		Run()
	if err != nil {
		return ZeroHash, fmt.Errorf("read-tree: %w", err)
	}

	// Overlay the old diff's entries, keeping the new versions.
	// update-index --index-info expects ls-files -s style lines:
	//   <mode> SP <hash> SP <stage>TAB<path>
	var info strings.Builder
	for _, ent := range ents {
		fmt.Fprintf(&info, "%s %s 0\t%s\n", ent.NewMode, ent.NewHash, ent.Path)
	}
	err = r.gitCmd(ctx, "update-index", "--index-info").
		AppendEnv(env).
		WithStdinString(info.String()).
		Run()
	if err != nil {
		return ZeroHash, fmt.Errorf("update-index: %w", err)
	}

	treeOut, err := r.gitCmd(ctx, "write-tree").
		AppendEnv(env).
		OutputChomp()
	if err != nil {
		return ZeroHash, fmt.Errorf("write-tree: %w", err)
	}

	var parents []Hash
	if !req.Parent.IsZero() {
		parents = append(parents, req.Parent)
	}

	msg := fmt.Sprintf("revup virtual diff target\n\n%v\n%v\n%v\n%v",
		req.OldBase, req.OldHead, req.NewBase, req.NewHead)
	return r.CommitTree(ctx, CommitTreeRequest{
		Tree:    Hash(treeOut),
		Parents: parents,
		Message: msg,
	})
}
