package topic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.revup.dev/revup/internal/git"
)

// Comment markers identify the tool's comments on a PR.
// The body following a marker is rendered for humans;
// the marker (and for patchsets, its JSON payload) is the part the
// tool reads back.
const (
	reviewGraphMarker = "<!-- revup:review-graph -->"
	patchsetsOpen     = "<!-- revup:patchsets"
	patchsetsClose    = "-->"
)

// IsReviewGraphComment reports whether an existing comment is the
// tool's review-graph comment.
func IsReviewGraphComment(body string) bool {
	return strings.HasPrefix(body, reviewGraphMarker)
}

// IsPatchsetsComment reports whether an existing comment is the
// tool's patchsets comment.
func IsPatchsetsComment(body string) bool {
	return strings.HasPrefix(body, patchsetsOpen)
}

// ReviewGraphs renders the review-graph comment body for every branch
// with a PR: the tree of all PRs connected through relative topics,
// ancestors first, with the branch's own entry bolded.
//
// The output is byte-stable for identical input, so comparing against
// the existing comment decides whether an update is needed.
func ReviewGraphs(stack *Stack) map[*Branch]string {
	chains := make(map[*Branch]*strings.Builder)
	lines := make(map[*Branch]string)

	var walk func(b *Branch, chain *strings.Builder, back, prefix string)
	walk = func(b *Branch, chain *strings.Builder, back, prefix string) {
		if b.PR == nil {
			return
		}
		chains[b] = chain
		title := prTitle(b)
		line := fmt.Sprintf("%s%s%s %s", back, prefix, b.PR.URL, title)
		lines[b] = line
		chain.WriteString(line)
		chain.WriteString("\n")

		for i, child := range b.Children {
			childBack := back + "│"
			if prefix == "└" {
				childBack = back + "　"
			}
			childPrefix := "├"
			if i == len(b.Children)-1 {
				childPrefix = "└"
			}
			walk(child, chain, childBack, childPrefix)
		}
	}

	for _, t := range stack.Topics {
		if t.Relative != nil {
			continue
		}
		for _, base := range t.Bases {
			walk(t.Branches[base], new(strings.Builder), "", "└")
		}
	}

	out := make(map[*Branch]string, len(chains))
	for b, chain := range chains {
		// Bold this branch's own line within the shared chain text.
		body := strings.Replace(chain.String(), lines[b], boldGraphLine(lines[b]), 1)
		out[b] = reviewGraphMarker + "\nReviews in this chain:\n" + body
	}
	return out
}

func prTitle(b *Branch) string {
	return b.PR.Title
}

// boldGraphLine bolds the URL and title of a graph line,
// leaving the box-drawing prefix alone.
func boldGraphLine(line string) string {
	i := strings.Index(line, "http")
	if i < 0 {
		return line
	}
	return line[:i] + "**" + line[i:] + "**"
}

// PatchsetRow is one append-only row of a PR's push history.
type PatchsetRow struct {
	// Index of the push, starting at 0.
	Index int `json:"index"`

	// Date of the push: UTC, ISO-8601 to seconds.
	Date string `json:"date"`

	// BaseOid and HeadOid identify the pushed range.
	BaseOid git.Hash `json:"base"`
	HeadOid git.Hash `json:"head"`

	// Rebase marks a push that only reproduced a rebase.
	Rebase bool `json:"rebase,omitempty"`

	// DiffTarget is the upstream-aware diff base: diffing it against
	// HeadOid excludes changes introduced by base movement.
	// Empty when the base did not move.
	DiffTarget git.Hash `json:"diffTarget,omitempty"`

	// Summary is the shortstat summary of the pushed change.
	Summary string `json:"summary"`
}

// PatchsetsPayload is the machine-readable state embedded in the
// patchsets comment. The comment is the source of truth for a PR's
// push history and for the metadata this tool has applied.
type PatchsetsPayload struct {
	Rows []PatchsetRow `json:"rows"`

	// Labels, Reviewers, and Assignees record what the tool applied
	// on its last run. Reconciliation may remove only entries
	// recorded here; anything added through the forge UI is kept.
	Labels    []string `json:"labels,omitempty"`
	Reviewers []string `json:"reviewers,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// LastRow reports the most recent push row, or nil.
func (p *PatchsetsPayload) LastRow() *PatchsetRow {
	if p == nil || len(p.Rows) == 0 {
		return nil
	}
	return &p.Rows[len(p.Rows)-1]
}

// ParsePatchsets recovers the payload from a patchsets comment body.
// Returns nil with no error if the body is not a patchsets comment.
func ParsePatchsets(body string) (*PatchsetsPayload, error) {
	if !IsPatchsetsComment(body) {
		return nil, nil
	}

	rest := strings.TrimPrefix(body, patchsetsOpen)
	blob, _, ok := strings.Cut(rest, patchsetsClose)
	if !ok {
		return nil, fmt.Errorf("patchsets comment is missing its payload terminator")
	}

	var payload PatchsetsPayload
	if err := json.Unmarshal([]byte(blob), &payload); err != nil {
		return nil, fmt.Errorf("parse patchsets payload: %w", err)
	}
	return &payload, nil
}

// PatchsetTime formats a push time as the patchsets date:
// UTC, ISO-8601, second precision.
func PatchsetTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// RenderPatchsets renders the full patchsets comment for a payload:
// the JSON payload in an HTML comment, followed by the Markdown
// history table. Byte-stable for identical payloads.
func RenderPatchsets(owner, repo string, payload *PatchsetsPayload) (string, error) {
	blob, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal patchsets payload: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(patchsetsOpen)
	sb.WriteString("\n")
	sb.Write(blob)
	sb.WriteString("\n")
	sb.WriteString(patchsetsClose)
	sb.WriteString("\n| # | head | base | diff | vs upstream | date | summary |")
	sb.WriteString("\n| - | - | - | - | - | - | - |")

	for i, row := range payload.Rows {
		diff := commitRangeLink(owner, repo, row.BaseOid, row.HeadOid)
		if i > 0 {
			prev := payload.Rows[i-1]
			diff = commitRangeLink(owner, repo, prev.HeadOid, row.HeadOid)
		}

		upstream := diff
		switch {
		case row.Rebase:
			diff = "rebase"
			upstream = "rebase"
		case !row.DiffTarget.IsZero() && row.DiffTarget != "":
			upstream = commitRangeLink(owner, repo, row.DiffTarget, row.HeadOid)
		}

		summary := row.Summary
		if summary == "" {
			summary = "0 files changed"
		}

		fmt.Fprintf(&sb, "\n| %d | %s | %s | %s | %s | %s | %s |",
			row.Index,
			commitLink(owner, repo, row.HeadOid),
			commitLink(owner, repo, row.BaseOid),
			diff,
			upstream,
			row.Date,
			summary,
		)
	}

	return sb.String(), nil
}

func commitLink(owner, repo string, oid git.Hash) string {
	return fmt.Sprintf("[%s](/%s/%s/commit/%s)", oid.Short(), owner, repo, oid)
}

func commitRangeLink(owner, repo string, from, to git.Hash) string {
	return fmt.Sprintf("[diff](/%s/%s/compare/%s..%s)", owner, repo, from, to)
}
