// Package topic turns a linear range of commits into a graph of review
// topics, synthesizes a review branch per topic and base branch,
// and plans the pull request mutations needed to publish them.
package topic

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// DirectiveName is the normalized (lowercase, singular) name of a
// commit-message directive.
type DirectiveName string

// Recognized directives.
const (
	DirectiveTopic          DirectiveName = "topic"
	DirectiveRelative       DirectiveName = "relative"
	DirectiveBranch         DirectiveName = "branch"
	DirectiveReviewer       DirectiveName = "reviewer"
	DirectiveAssignee       DirectiveName = "assignee"
	DirectiveLabel          DirectiveName = "label"
	DirectiveUploader       DirectiveName = "uploader"
	DirectiveBranchFormat   DirectiveName = "branch-format"
	DirectiveRelativeBranch DirectiveName = "relative-branch"
	DirectiveUpdatePRBody   DirectiveName = "update-pr-body"
)

// multiValued directives union values across duplicate lines and
// commits. The remaining directives take a single value and must agree.
var multiValued = map[DirectiveName]bool{
	DirectiveBranch:   true,
	DirectiveReviewer: true,
	DirectiveAssignee: true,
	DirectiveLabel:    true,
}

// canonicalNames maps normalized names to their rendered form.
// Multi-valued names render in plural form.
var canonicalNames = map[DirectiveName]string{
	DirectiveTopic:          "Topic",
	DirectiveRelative:       "Relative",
	DirectiveBranch:         "Branches",
	DirectiveReviewer:       "Reviewers",
	DirectiveAssignee:       "Assignees",
	DirectiveLabel:          "Labels",
	DirectiveUploader:       "Uploader",
	DirectiveBranchFormat:   "Branch-Format",
	DirectiveRelativeBranch: "Relative-Branch",
	DirectiveUpdatePRBody:   "Update-Pr-Body",
}

// directiveOrder fixes the rendering order of Format.
var directiveOrder = []DirectiveName{
	DirectiveTopic,
	DirectiveRelative,
	DirectiveBranch,
	DirectiveRelativeBranch,
	DirectiveReviewer,
	DirectiveAssignee,
	DirectiveLabel,
	DirectiveUploader,
	DirectiveBranchFormat,
	DirectiveUpdatePRBody,
}

// Directives is a parsed set of commit-message directives:
// normalized name to values in first-appearance order.
type Directives map[DirectiveName][]string

// Get reports the single value of a directive,
// or an empty string if it is not set.
func (ds Directives) Get(name DirectiveName) string {
	if vs := ds[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Has reports whether the directive is present.
func (ds Directives) Has(name DirectiveName) bool {
	return len(ds[name]) > 0
}

// Equal reports whether two directive sets are identical,
// including value order.
func (ds Directives) Equal(other Directives) bool {
	return maps.EqualFunc(ds, other, slices.Equal)
}

// directiveLine matches a "Name: value" line anywhere in a message body.
var directiveLine = regexp.MustCompile(`^([a-zA-Z][a-zA-Z-]*):(.*)$`)

// ParseResult is the output of parsing a commit message.
type ParseResult struct {
	// Directives recognized in the message.
	Directives Directives

	// Residual is the message with recognized directive lines removed
	// and surrounding whitespace trimmed.
	Residual string

	// Unknown lists directive-shaped names that were not recognized.
	// Their lines are retained in Residual.
	Unknown []string
}

// ParseDirectives extracts recognized directives from a commit message
// body.
//
// Directive names are case-insensitive and multi-valued names accept
// plural forms. Values are comma-separated and whitespace-trimmed.
// An empty right-hand side is an error, as is a repeated (or
// multi-valued) occurrence of a single-valued directive.
func ParseDirectives(message string) (*ParseResult, error) {
	res := &ParseResult{Directives: make(Directives)}

	var residual []string
	for _, line := range strings.Split(message, "\n") {
		m := directiveLine.FindStringSubmatch(line)
		if m == nil {
			residual = append(residual, line)
			continue
		}

		name, ok := normalizeDirectiveName(m[1])
		if !ok {
			res.Unknown = append(res.Unknown, m[1])
			residual = append(residual, line)
			continue
		}

		var values []string
		for _, v := range strings.Split(m[2], ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("directive %q has no value", m[1])
		}

		if !multiValued[name] {
			if len(values) > 1 || res.Directives.Has(name) {
				return nil, fmt.Errorf("directive %v takes exactly one value", canonicalNames[name])
			}
			res.Directives[name] = values
			continue
		}

		for _, v := range values {
			if !slices.Contains(res.Directives[name], v) {
				res.Directives[name] = append(res.Directives[name], v)
			}
		}
	}

	res.Residual = strings.TrimSpace(strings.Join(residual, "\n"))
	return res, nil
}

// normalizeDirectiveName lowercases a directive name and folds
// plural forms of multi-valued directives.
// Reports false for unrecognized names.
func normalizeDirectiveName(raw string) (DirectiveName, bool) {
	name := DirectiveName(strings.ToLower(raw))
	if _, ok := canonicalNames[name]; ok {
		return name, true
	}

	// Plurals don't even have to be grammatically correct:
	// "branchs" folds the same as "branches".
	var folded DirectiveName
	switch {
	case strings.HasSuffix(string(name), "ees"):
		folded = name[:len(name)-1]
	case strings.HasSuffix(string(name), "es"):
		folded = name[:len(name)-2]
	case strings.HasSuffix(string(name), "s"):
		folded = name[:len(name)-1]
	default:
		return "", false
	}

	if multiValued[folded] {
		return folded, true
	}
	return "", false
}

// FormatDirectives renders directives as canonical "Name: v1, v2"
// lines such that ParseDirectives recovers the same set.
func FormatDirectives(ds Directives) string {
	var sb strings.Builder
	for _, name := range directiveOrder {
		vs := ds[name]
		if len(vs) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", canonicalNames[name], strings.Join(vs, ", "))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
