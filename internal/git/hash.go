package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// ErrNotExist is returned when a Git object does not exist.
var ErrNotExist = errors.New("does not exist")

// Hash is a 40-character Git object ID.
type Hash string

// ZeroHash is the all-zeros object ID, which names no Git object.
// It is used to represent the absence of a hash.
const ZeroHash Hash = "0000000000000000000000000000000000000000"

func (h Hash) String() string {
	return string(h)
}

// LogValue reports how the hash should be logged.
func (h Hash) LogValue() slog.Value {
	return slog.StringValue(h.Short())
}

// Short reports the short form of the hash.
func (h Hash) Short() string {
	if len(h) < 8 {
		return string(h)
	}
	return string(h[:8])
}

// IsZero reports whether the hash is the zero hash.
func (h Hash) IsZero() bool {
	if len(h) == 0 {
		return true
	}
	for _, b := range h {
		if b != '0' {
			return false
		}
	}
	return true
}

// PeelToCommit reports the commit hash of the provided commit-ish.
// It returns [ErrNotExist] if the object does not exist.
func (r *Repository) PeelToCommit(ctx context.Context, ref string) (Hash, error) {
	return r.revParse(ctx, ref+"^{commit}")
}

// PeelToTree reports the tree object at the provided tree-ish.
// It returns [ErrNotExist] if the object does not exist.
func (r *Repository) PeelToTree(ctx context.Context, ref string) (Hash, error) {
	return r.revParse(ctx, ref+"^{tree}")
}

// CommitExists reports whether the given commit-ish resolves
// to a commit in the local object database.
func (r *Repository) CommitExists(ctx context.Context, ref string) bool {
	_, err := r.PeelToCommit(ctx, ref)
	return err == nil
}

// ForkPoint reports the commit at which ref diverged from base,
// following first-parent history only.
//
// The fork point is the parent of the earliest commit reachable from ref
// but not from base. If there is no such commit, ref itself is the fork
// point.
func (r *Repository) ForkPoint(ctx context.Context, ref, base string) (string, error) {
	var first string
	for line, err := range r.gitCmd(ctx,
		"rev-list",
		"--first-parent",
		"--exclude-first-parent-only",
		"--reverse",
		ref,
		"^"+base,
	).Lines() {
		if err != nil {
			return "", fmt.Errorf("rev-list: %w", err)
		}
		if first == "" {
			first = string(line)
		}
	}

	if first == "" {
		return ref, nil
	}
	return first + "~", nil
}

// DistanceToForkPoint reports the number of first-parent commits
// between ref and its fork point with base.
// If maxCount is non-zero, counting stops after maxCount+1 commits,
// which is enough to tell whether the distance exceeds maxCount.
func (r *Repository) DistanceToForkPoint(ctx context.Context, ref, base string, maxCount int) (int, error) {
	args := []string{
		"rev-list",
		"--first-parent",
		"--exclude-first-parent-only",
		"--count",
	}
	if maxCount > 0 {
		args = append(args, "-n", strconv.Itoa(maxCount+1))
	}
	args = append(args, ref, "^"+base)

	out, err := r.gitCmd(ctx, args...).OutputChomp()
	if err != nil {
		return 0, fmt.Errorf("rev-list --count: %w", err)
	}
	return strconv.Atoi(out)
}

// IsAncestor reports whether ancestor is a first-parent ancestor of ref.
//
// This is different from 'merge-base --is-ancestor',
// which follows all parents.
func (r *Repository) IsAncestor(ctx context.Context, ancestor, ref string) (bool, error) {
	if ancestor == ref {
		return true, nil
	}
	n, err := r.DistanceToForkPoint(ctx, ancestor, ref, 1)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (r *Repository) revParse(ctx context.Context, ref string) (Hash, error) {
	out, err := r.gitCmd(ctx, "rev-parse",
		"--verify",         // fail if the object does not exist
		"--quiet",          // no output if object does not exist
		"--end-of-options", // prevent ref from being treated as a flag
		ref,
	).OutputChomp()
	if err != nil {
		return "", ErrNotExist
	}
	return Hash(out), nil
}
