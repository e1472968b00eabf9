package git

import (
	"context"
	"fmt"
	"strings"
)

// PatchID reports a stable identifier for the commit's diff against its
// first parent, independent of commit metadata and hunk line offsets.
// Whitespace is hashed as-is.
//
// The diff is produced with --full-index and one line of context,
// and hashed with 'git patch-id --verbatim', so two commits have the same
// patch id iff they introduce the same change.
//
// An empty diff produces an empty patch id;
// all empty diffs compare equal to each other.
func (r *Repository) PatchID(ctx context.Context, commit Hash) (string, error) {
	diffCmd := r.gitCmd(ctx,
		"diff",
		"--full-index",
		"--no-color",
		"--no-textconv",
		"-U1",
		commit.String()+"~",
		commit.String(),
	)
	diffOut, err := diffCmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("pipe diff: %w", err)
	}

	idCmd := r.gitCmd(ctx, "patch-id", "--verbatim").WithStdin(diffOut)

	if err := diffCmd.Start(); err != nil {
		return "", fmt.Errorf("start diff: %w", err)
	}

	out, err := idCmd.OutputChomp()
	if err != nil {
		_ = diffCmd.Kill()
		return "", fmt.Errorf("patch-id: %w", err)
	}

	if err := diffCmd.Wait(); err != nil {
		return "", fmt.Errorf("diff: %w", err)
	}

	// Output is "<patch-id> <commit>"; only the id matters.
	id, _, _ := strings.Cut(out, " ")
	return id, nil
}
