package git

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MergeTreeRequest specifies the parameters for a merge-tree operation.
type MergeTreeRequest struct {
	// Branch1 is the first branch or commit to merge.
	//
	// This must be a commit-ish value if MergeBase is not provided.
	// Otherwise, it can be any tree-ish value.
	Branch1 string // required

	// Branch2 is the second branch or commit to merge.
	Branch2 string // required

	// MergeBase optionally specifies an explicit merge base for the merge.
	// If provided, Branch1 and Branch2 can be any tree-ish values.
	// The difference between this and Branch1 will be applied to Branch2.
	MergeBase string
}

// MergeTreeConflictError is returned from the MergeTree operation
// when a conflict is encountered.
type MergeTreeConflictError struct {
	Files   []string
	Details []MergeTreeConflictDetails
}

func (e *MergeTreeConflictError) Error() string {
	var msg strings.Builder
	msg.WriteString("conflicting files:")
	for i, f := range e.Files {
		if i > 0 {
			msg.WriteString(",")
		}
		msg.WriteString(" ")
		msg.WriteString(f)
	}
	return msg.String()
}

// MergeTree performs a merge without touching the index or working tree,
// returning the hash of the resulting tree.
//
// For conflicts, this method returns a [MergeTreeConflictError]
// that reports information about the conflicting files.
func (r *Repository) MergeTree(ctx context.Context, req MergeTreeRequest) (Hash, error) {
	args := []string{
		"merge-tree",
		"--write-tree", // other mode is deprecated
		"--stdin",      // pass input on stdin
		"--name-only",  // only mention conflicting file names
		"-z",
	}

	// Input is in the form:
	//   [<base-commit> -- ]<branch1> <branch2> NL
	var stdin strings.Builder
	if req.MergeBase != "" {
		_, _ = fmt.Fprintf(&stdin, "%v -- ", req.MergeBase)
	}
	_, _ = fmt.Fprintf(&stdin, "%v %v\n", req.Branch1, req.Branch2)

	cmd := r.gitCmd(ctx, args...).WithStdinString(stdin.String())
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start git-merge-tree: %w", err)
	}

	output, err := parseMergeTreeOutput(stdout)
	if err != nil {
		_ = cmd.Kill()
		return "", fmt.Errorf("bad git-merge-tree output: %w", err)
	}

	// merge-tree exits non-zero for conflicted merges;
	// the parsed output decides whether that is a conflict or a failure.
	waitErr := cmd.Wait()
	if len(output.ConflictFiles) == 0 && len(output.ConflictMessages) == 0 {
		return output.TreeHash, waitErr
	}

	return output.TreeHash, &MergeTreeConflictError{
		Files:   output.ConflictFiles,
		Details: output.ConflictMessages,
	}
}

// mergeTreeOutput holds the output of a git-merge-tree operation
// run with the --write-tree option.
//
// If a conflict was resolved with an auto-merge in Git,
// the output will report as conflicted even though no user action is
// required, so the conflict message type must be checked.
type mergeTreeOutput struct {
	// TreeHash is the hash of the resulting tree.
	TreeHash Hash

	ConflictFiles    []string
	ConflictMessages []MergeTreeConflictDetails
}

// MergeTreeConflictDetails represents an informational message about a conflict.
type MergeTreeConflictDetails struct {
	// Paths is a list of files affected by this kind of conflict.
	Paths []string

	// Type is a stable string like
	// "CONFLICT (contents)", "CONFLICT (rename/delete)", or "Auto-merging".
	Type string

	// Message is a detailed user-readable message explaining the conflict.
	// This string is not stable across Git versions.
	Message string
}

// parseMergeTreeOutput parses the output of a git merge-tree --stdin operation.
func parseMergeTreeOutput(rd io.Reader) (_ *mergeTreeOutput, retErr error) {
	scan := bufio.NewScanner(rd)
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scan.Split(scanNull)
	defer func() {
		if err := scan.Err(); err != nil {
			retErr = errors.Join(retErr, fmt.Errorf("scan: %w", err))
		}
	}()

	if !scan.Scan() || len(scan.Bytes()) == 0 {
		return nil, errors.New("expected merge status, got EOF")
	}

	// With --stdin, output is preceded by a merge status:
	// "0" for a conflicted merge, "1" for a clean merge.
	var clean bool
	switch tok := scan.Text(); tok {
	case "0":
		clean = false
	case "1":
		clean = true
	default:
		return nil, fmt.Errorf("expected '0' or '1', got %q", tok)
	}

	if !scan.Scan() {
		return nil, errors.New("expected OID of tree, got EOF")
	}
	output := &mergeTreeOutput{TreeHash: Hash(scan.Text())}
	if clean {
		return output, nil
	}

	// For conflicted merges, two more sections follow:
	// conflicted file names (because of --name-only),
	// then informational messages. Each ends with an empty token.
	for scan.Scan() && len(scan.Bytes()) > 0 {
		output.ConflictFiles = append(output.ConflictFiles, scan.Text())
	}

	// Informational messages are in the form:
	//
	//    <N> NUL <path1> NUL ... <pathN> NUL <conflict-type> NUL <message> NUL
	for scan.Scan() && len(scan.Bytes()) > 0 {
		numPaths, err := strconv.Atoi(scan.Text())
		if err != nil {
			return nil, fmt.Errorf("expected <number-of-paths>, got %q", scan.Text())
		}

		paths := make([]string, 0, numPaths)
		for idx := range numPaths {
			if !scan.Scan() {
				return nil, fmt.Errorf("expected path #%d, got EOF", idx+1)
			}
			paths = append(paths, scan.Text())
		}

		if !scan.Scan() {
			return nil, errors.New("expected <conflict-type>, got EOF")
		}
		conflictType := scan.Text()

		if !scan.Scan() {
			return nil, errors.New("expected <conflict-message>, got EOF")
		}

		output.ConflictMessages = append(output.ConflictMessages, MergeTreeConflictDetails{
			Type:    conflictType,
			Message: strings.TrimSpace(scan.Text()),
			Paths:   paths,
		})
	}

	return output, nil
}
