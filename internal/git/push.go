package git

import (
	"context"
	"fmt"
)

// PushRef is a single ref update to send to the remote.
type PushRef struct {
	// Hash is the local object to push.
	Hash Hash

	// Dest is the fully qualified destination ref,
	// e.g. "refs/heads/revup/alice/main/foo".
	Dest string

	// Lease, if set, is the value the remote ref is expected
	// to currently hold. The push fails for this ref if the remote
	// has moved elsewhere.
	// Use ZeroHash to require that the ref does not exist.
	Lease Hash
}

// PushRefsRequest is a batched push of refs to a single remote.
type PushRefsRequest struct {
	// Remote to push to. Required.
	Remote string

	// Refs to push.
	Refs []PushRef
}

// PushRefs pushes a batch of refs to the remote in a single invocation,
// protecting each ref with a force-with-lease check where a lease is
// known, and forcing the remaining refs.
func (r *Repository) PushRefs(ctx context.Context, req PushRefsRequest) error {
	if len(req.Refs) == 0 {
		return nil
	}

	args := []string{"push", "--no-verify"}
	for _, ref := range req.Refs {
		if ref.Lease != "" {
			args = append(args, fmt.Sprintf("--force-with-lease=%v:%v", ref.Dest, ref.Lease))
		}
	}
	args = append(args, req.Remote)
	for _, ref := range req.Refs {
		spec := fmt.Sprintf("%v:%v", ref.Hash, ref.Dest)
		if ref.Lease == "" {
			// Forced per-refspec so it does not defeat
			// the lease checks on the other refs.
			spec = "+" + spec
		}
		args = append(args, spec)
	}

	if err := r.gitCmd(ctx, args...).Run(); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}

// FetchRequest is a request to fetch objects from a remote.
type FetchRequest struct {
	// Remote to fetch from. Required.
	Remote string

	// Refspecs or commit hashes to fetch.
	Refspecs []string
}

// Fetch retrieves the requested objects from the remote
// without writing FETCH_HEAD or running auto-maintenance.
func (r *Repository) Fetch(ctx context.Context, req FetchRequest) error {
	if len(req.Refspecs) == 0 {
		return nil
	}

	args := []string{
		"fetch",
		"--no-write-fetch-head",
		"--no-auto-maintenance",
		"--quiet",
		req.Remote,
	}
	args = append(args, req.Refspecs...)

	if err := r.gitCmd(ctx, args...).Run(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	return nil
}
