package git

import (
	"context"
	"fmt"
	"strings"
)

// Ref is a fully qualified Git ref and the object it points to.
type Ref struct {
	// Name is the fully qualified name of the ref,
	// e.g. "refs/remotes/origin/main".
	Name string

	// Hash is the object the ref points to.
	Hash Hash
}

// ForEachRef lists refs matching any of the given glob patterns,
// in refname order.
//
// If contains is non-empty, only refs whose tips contain that commit
// are listed.
func (r *Repository) ForEachRef(ctx context.Context, contains string, patterns ...string) ([]Ref, error) {
	args := []string{"for-each-ref", "--format=%(objectname) %(refname)"}
	if contains != "" {
		args = append(args, "--contains", contains)
	}
	args = append(args, patterns...)

	var refs []Ref
	for line, err := range r.gitCmd(ctx, args...).Lines() {
		if err != nil {
			return nil, fmt.Errorf("for-each-ref: %w", err)
		}

		hash, name, ok := strings.Cut(string(line), " ")
		if !ok {
			r.log.Warnf("for-each-ref: skipping invalid line: %q", line)
			continue
		}
		refs = append(refs, Ref{Name: name, Hash: Hash(hash)})
	}

	return refs, nil
}

// SetRefRequest is a request to set a local ref to a new hash.
type SetRefRequest struct {
	// Ref is the name of the ref to set.
	// If the ref is a branch or tag, it should be fully qualified
	// (e.g. "refs/heads/main").
	Ref string

	// Hash is the hash to set the ref to.
	Hash Hash

	// OldHash, if set, specifies the current value of the ref.
	// The ref will only be updated if it currently points to OldHash.
	// Set this to ZeroHash to ensure that a ref being created
	// does not already exist.
	OldHash Hash

	// Reason is recorded in the reflog.
	Reason string
}

// SetRef changes the value of a ref to a new hash,
// optionally verifying the current value before updating it.
func (r *Repository) SetRef(ctx context.Context, req SetRefRequest) error {
	args := []string{"update-ref"}
	if req.Reason != "" {
		args = append(args, "-m", req.Reason)
	}
	args = append(args, req.Ref, string(req.Hash))
	if req.OldHash != "" {
		args = append(args, string(req.OldHash))
	}

	return r.gitCmd(ctx, args...).Run()
}

// CurrentBranch reports the short name of the currently checked out
// branch, or an empty string for a detached HEAD.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	name, err := r.gitCmd(ctx, "branch", "--show-current").OutputChomp()
	if err != nil {
		return "", fmt.Errorf("branch --show-current: %w", err)
	}
	return name, nil
}
