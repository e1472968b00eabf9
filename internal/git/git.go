// Package git provides access to the Git CLI with a library-like interface.
//
// All shell-to-Git interactions go through this package.
// Only plumbing commands are used: the user's working tree, index, and HEAD
// are never modified by any operation in this package.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.abhg.dev/log/silog"
	"go.revup.dev/revup/internal/xec"
)

// execer controls actual execution of Git commands.
// It provides a single place to hook into for testing.
type execer = xec.Execer

var _realExec = xec.DefaultExecer

// newGitCmd builds a new Git command with the given arguments.
// The first argument is the Git subcommand to run.
func newGitCmd(ctx context.Context, log *silog.Logger, exec execer, args ...string) *xec.Cmd {
	prefix := "git"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		prefix += " " + args[0]
	}

	return xec.Command(ctx, log, "git", args...).
		WithExecer(exec).
		WithLogPrefix(prefix)
}

// OpenOptions configures the behavior of Open.
type OpenOptions struct {
	// Log specifies the logger to use for messages.
	Log *silog.Logger

	// KeepTemp retains scratch files under <root>/.revup
	// instead of a temporary directory that is deleted on Close.
	KeepTemp bool

	exec execer
}

// Open opens the repository at the given directory.
// If dir is empty, the current working directory is used.
func Open(ctx context.Context, dir string, opts OpenOptions) (*Repository, error) {
	if opts.exec == nil {
		opts.exec = _realExec
	}
	if opts.Log == nil {
		opts.Log = silog.Nop()
	}

	out, err := newGitCmd(ctx, opts.Log, opts.exec,
		"rev-parse",
		"--show-toplevel",
		"--absolute-git-dir",
	).WithDir(dir).OutputChomp()
	if err != nil {
		return nil, fmt.Errorf("git rev-parse: %w", err)
	}

	root, gitDir, ok := strings.Cut(out, "\n")
	if !ok {
		return nil, fmt.Errorf("unexpected output from git rev-parse: %q", out)
	}

	return &Repository{
		root:     root,
		gitDir:   gitDir,
		log:      opts.Log,
		exec:     opts.exec,
		keepTemp: opts.KeepTemp,
	}, nil
}

// Repository is a handle to a Git repository.
// It provides read access to the repository's contents,
// and write access to its object database and refs,
// but never to the working tree, the index, or HEAD.
type Repository struct {
	root   string
	gitDir string

	log  *silog.Logger
	exec execer

	keepTemp   bool
	scratchMu  sync.Mutex
	scratchDir string
	indexSeq   atomic.Uint64
}

// Root reports the path to the root of the repository's working tree.
func (r *Repository) Root() string { return r.root }

// gitCmd returns a Git command that will run
// with the repository's root as the working directory.
func (r *Repository) gitCmd(ctx context.Context, args ...string) *xec.Cmd {
	return newGitCmd(ctx, r.log, r.exec, args...).WithDir(r.root)
}

// ScratchDir reports the directory used for transient files,
// creating it if necessary.
// Contents are deleted by Close unless KeepTemp was set.
func (r *Repository) ScratchDir() (string, error) {
	r.scratchMu.Lock()
	defer r.scratchMu.Unlock()

	if r.scratchDir != "" {
		return r.scratchDir, nil
	}

	if r.keepTemp {
		dir := filepath.Join(r.root, ".revup")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create scratch dir: %w", err)
		}
		r.scratchDir = dir
		return dir, nil
	}

	dir, err := os.MkdirTemp("", "revup-")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	r.scratchDir = dir
	return dir, nil
}

// Close releases temporary resources held by the repository.
func (r *Repository) Close() error {
	r.scratchMu.Lock()
	defer r.scratchMu.Unlock()

	if r.scratchDir == "" || r.keepTemp {
		return nil
	}

	dir := r.scratchDir
	r.scratchDir = ""
	return os.RemoveAll(dir)
}
