package git

import (
	"context"
	"fmt"
)

// Signature holds authorship information for a commit.
type Signature struct {
	// Name of the signer.
	Name string

	// Email of the signer.
	Email string

	// Date is the time of the signature
	// in any format accepted by Git
	// (raw "<unix> <offset>", RFC 3339, ...).
	// If empty, Git uses the current time.
	Date string
}

// typ is one of "COMMITTER" or "AUTHOR".
func (s *Signature) appendEnv(typ string, env []string) []string {
	if s == nil {
		return env
	}

	env = append(env, "GIT_"+typ+"_NAME="+s.Name)
	env = append(env, "GIT_"+typ+"_EMAIL="+s.Email)
	if s.Date != "" {
		env = append(env, "GIT_"+typ+"_DATE="+s.Date)
	}
	return env
}

// CommitTreeRequest is a request to create a new commit object.
type CommitTreeRequest struct {
	// Tree is the hash of a tree object
	// representing the state of the repository
	// at the time of the commit.
	Tree Hash // required

	// Message is the commit message.
	Message string // required

	// Parents are the hashes of the parent commits.
	Parents []Hash

	// Author and Committer sign the commit.
	// If Committer is nil, Author is used for both.
	Author, Committer *Signature
}

// CommitTree creates a new commit object with the given tree
// as the state of the repository, without updating any ref.
//
// It returns the hash of the new commit.
func (r *Repository) CommitTree(ctx context.Context, req CommitTreeRequest) (Hash, error) {
	if req.Message == "" {
		return ZeroHash, fmt.Errorf("empty commit message")
	}
	if req.Committer == nil {
		req.Committer = req.Author
	}

	args := make([]string, 0, 2+2*len(req.Parents))
	args = append(args, "commit-tree")
	for _, parent := range req.Parents {
		args = append(args, "-p", parent.String())
	}
	args = append(args, req.Tree.String())

	var env []string
	env = req.Author.appendEnv("AUTHOR", env)
	env = req.Committer.appendEnv("COMMITTER", env)

	out, err := r.gitCmd(ctx, args...).
		AppendEnv(env...).
		WithStdinString(req.Message).
		OutputChomp()
	if err != nil {
		return ZeroHash, fmt.Errorf("commit-tree: %w", err)
	}

	return Hash(out), nil
}
