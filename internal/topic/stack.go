package topic

import (
	"fmt"
	"slices"
	"strings"

	"go.abhg.dev/log/silog"
	"go.revup.dev/revup/internal/git"
)

// AutoAddUsers controls copying between the reviewer and assignee sets.
type AutoAddUsers string

// Supported --auto-add-users modes.
const (
	AutoAddUsersNo   AutoAddUsers = "no"
	AutoAddUsersR2A  AutoAddUsers = "r2a"
	AutoAddUsersA2R  AutoAddUsers = "a2r"
	AutoAddUsersBoth AutoAddUsers = "both"
)

// BuildRequest carries everything needed to group a walked commit
// range into topics.
type BuildRequest struct {
	// Commits is the walked range, oldest first.
	Commits []*git.CommitDetail // required

	// DefaultBase is the base branch (short name) for topics that
	// don't declare one.
	DefaultBase string // required

	// DefaultRelativeBranch is the --relative-branch flag value.
	DefaultRelativeBranch string

	// Uploader is the default uploader name,
	// usually the local part of the user's git email.
	Uploader string // required

	// UserEmail is the configured git email (lowercase),
	// used by SelfAuthoredOnly.
	UserEmail string

	// SelfAuthoredOnly drops topics that have no commit authored
	// by UserEmail.
	SelfAuthoredOnly bool

	// AutoTopic synthesizes topic names for commits without a
	// Topic directive from a prefix of the subject.
	AutoTopic bool

	// RelativeChain ignores Relative directives and chains topics
	// in declaration order instead.
	RelativeChain bool

	// TrimTags strips recognized directive lines from the commit
	// messages used for the synthesized commits.
	TrimTags bool

	// Format is the default branch naming scheme.
	Format BranchFormat

	// ExtraLabels are added to every topic.
	ExtraLabels []string

	// UserAliases rewrites reviewer/assignee names.
	UserAliases map[string]string

	// AutoAdd copies names between the reviewer and assignee sets.
	AutoAdd AutoAddUsers

	// Only restricts the upload to the named topics
	// and their relative ancestors.
	Only []string

	Log *silog.Logger
}

// Stack is the set of topics for one upload, in topological order.
type Stack struct {
	// Commits is the full walked range, oldest first,
	// including commits that belong to no topic.
	Commits []*git.CommitDetail

	// Topics in declaration order.
	// Relative ancestors always precede their dependents.
	Topics []*Topic

	// Messages holds the per-commit message to use for synthesis:
	// the original message, or the trimmed one under TrimTags.
	Messages map[git.Hash]string

	log *silog.Logger
}

// Branches iterates over every (topic, base) review branch
// in topological order.
func (s *Stack) Branches(yield func(*Branch) bool) {
	for _, t := range s.Topics {
		for _, base := range t.Bases {
			if !yield(t.Branches[base]) {
				return
			}
		}
	}
}

// BuildStack groups the walked commits into topics, resolves
// relative edges, validates the graph, and expands each topic into
// one review branch per declared base branch.
//
// The result is independent of any remote state:
// hashes of synthesized commits and push classifications
// are filled in by later stages.
func BuildStack(req BuildRequest) (*Stack, error) {
	log := req.Log
	if log == nil {
		log = silog.Nop()
	}
	if req.Format == "" {
		req.Format = BranchFormatUserBranch
	}
	if req.AutoAdd == "" {
		req.AutoAdd = AutoAddUsersNo
	}

	stack := &Stack{
		Commits:  req.Commits,
		Messages: make(map[git.Hash]string),
		log:      log,
	}

	byName := make(map[string]*Topic)
	directives := make(map[string]Directives)
	if err := stack.groupCommits(req, byName, directives); err != nil {
		return nil, err
	}
	if len(stack.Topics) == 0 {
		return nil, fmt.Errorf("found %d commits but no topic tags", len(req.Commits))
	}

	if err := stack.resolveTopics(req, byName, directives); err != nil {
		return nil, err
	}

	if err := stack.filterTopics(req.Only, byName); err != nil {
		return nil, err
	}

	stack.expandBranches(req)
	return stack, nil
}

// groupCommits parses each commit's directives and assigns the commit
// to its topic, preserving both topic and intra-topic commit order.
func (s *Stack) groupCommits(
	req BuildRequest,
	byName map[string]*Topic,
	directives map[string]Directives,
) error {
	for _, c := range req.Commits {
		res, err := ParseDirectives(c.Message)
		if err != nil {
			return fmt.Errorf("commit %v: %w", c.Hash.Short(), err)
		}
		for _, name := range res.Unknown {
			s.log.Warnf("%v: unrecognized directive %q left in message", c.Hash.Short(), name)
		}

		name := res.Directives.Get(DirectiveTopic)
		if name == "" {
			if !req.AutoTopic {
				// Not a revup commit; it stays local.
				continue
			}
			name = autoTopicName(c.Subject)
			if name == "" {
				return fmt.Errorf("commit %v: cannot auto-name a topic from an empty message", c.Hash.Short())
			}
		}

		msg := c.Message
		if req.TrimTags {
			if res.Residual == "" {
				return fmt.Errorf("commit %v: message is empty after trimming directives", c.Hash.Short())
			}
			msg = res.Residual
		}
		s.Messages[c.Hash] = msg

		t, ok := byName[name]
		if !ok {
			t = &Topic{Name: name, Branches: make(map[string]*Branch)}
			byName[name] = t
			s.Topics = append(s.Topics, t)
			directives[name] = make(Directives)
		}
		t.Commits = append(t.Commits, c)

		if err := mergeDirectives(directives[name], res.Directives); err != nil {
			return fmt.Errorf("topic %q: %w", name, err)
		}
	}
	return nil
}

// mergeDirectives folds one commit's directives into the topic's,
// unioning multi-valued directives and requiring agreement for
// single-valued ones.
func mergeDirectives(into, from Directives) error {
	for name, vs := range from {
		if multiValued[name] {
			for _, v := range vs {
				if !slices.Contains(into[name], v) {
					into[name] = append(into[name], v)
				}
			}
			continue
		}

		if prev := into.Get(name); prev != "" && prev != vs[0] {
			return fmt.Errorf("commits disagree on %v: %q vs %q",
				canonicalNames[name], prev, vs[0])
		}
		into[name] = vs[:1]
	}
	return nil
}

// autoTopicName derives a topic name from the first five words of the
// commit subject, dropping characters that don't belong in a ref name.
func autoTopicName(msg string) string {
	words := strings.Fields(msg)
	if len(words) > 5 {
		words = words[:5]
	}
	name := strings.Join(words, "_")
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '[', ']':
			return -1
		}
		return r
	}, name)
}

// resolveTopics fills in each topic's attributes from its merged
// directives, resolves relative edges, and validates the graph.
func (s *Stack) resolveTopics(
	req BuildRequest,
	byName map[string]*Topic,
	directives map[string]Directives,
) error {
	var kept []*Topic
	var seen []*Topic

	firstIndex := make(map[string]int)
	for i, t := range s.Topics {
		firstIndex[t.Name] = i
	}

	for i, t := range s.Topics {
		ds := directives[t.Name]

		if req.SelfAuthoredOnly && !slices.ContainsFunc(t.Commits, func(c *git.CommitDetail) bool {
			return strings.EqualFold(c.Author.Email, req.UserEmail)
		}) {
			s.log.Infof("Skipping topic %q: no self-authored commits; "+
				"pass --no-self-authored-only to include it", t.Name)
			delete(byName, t.Name)
			continue
		}

		// Resolve the relative edge.
		var relativeName string
		switch {
		case req.RelativeChain:
			if len(seen) > 0 {
				relativeName = seen[len(seen)-1].Name
			}
		case ds.Has(DirectiveRelative):
			relativeName = ds.Get(DirectiveRelative)
			if relativeName == t.Name {
				return fmt.Errorf("topic %q is relative to itself", t.Name)
			}
			if other, ok := byName[relativeName]; !ok {
				s.log.Warnf("Relative topic %q not found in stack, assuming it was merged", relativeName)
				relativeName = ""
			} else if firstIndex[other.Name] > i {
				// The relative topic must start first.
				// This is what makes relativity cycles impossible.
				return fmt.Errorf("topic %q is relative to %q but doesn't appear after it; "+
					"reorder the commits or fix the Relative: directive", t.Name, relativeName)
			}
		}
		if relativeName != "" {
			t.Relative = byName[relativeName]
		}

		if err := s.resolveTopicAttrs(req, t, ds); err != nil {
			return err
		}

		seen = append(seen, t)
		kept = append(kept, t)
	}

	s.Topics = kept
	return nil
}

// resolveTopicAttrs validates and applies a single topic's directives.
// The topic's relative edge must already be resolved.
func (s *Stack) resolveTopicAttrs(req BuildRequest, t *Topic, ds Directives) error {
	t.Bases = slices.Clone(ds[DirectiveBranch])
	t.RelativeBranch = ds.Get(DirectiveRelativeBranch)
	t.Uploader = ds.Get(DirectiveUploader)

	if rel := t.Relative; rel != nil {
		if len(t.Bases) == 0 {
			t.Bases = slices.Clone(rel.Bases)
		} else {
			for _, b := range t.Bases {
				if !slices.Contains(rel.Bases, b) {
					return fmt.Errorf("topic %q targets base %q that its relative topic %q does not; "+
						"add %q to the relative topic's Branches: directive", t.Name, b, rel.Name, b)
				}
			}
		}

		if t.RelativeBranch == "" {
			t.RelativeBranch = rel.RelativeBranch
		} else if rel.RelativeBranch != "" && t.RelativeBranch != rel.RelativeBranch {
			return fmt.Errorf("topic %q and its relative topic %q declare different relative branches: %q vs %q",
				t.Name, rel.Name, t.RelativeBranch, rel.RelativeBranch)
		}

		if t.Uploader != "" && rel.Uploader != "" && t.Uploader != rel.Uploader {
			return fmt.Errorf("topic %q has uploader %q while relative topic %q has %q",
				t.Name, t.Uploader, rel.Name, rel.Uploader)
		}
		if t.Uploader == "" {
			t.Uploader = rel.Uploader
		}
	} else if len(t.Bases) == 0 {
		t.Bases = []string{req.DefaultBase}
		if t.RelativeBranch == "" {
			t.RelativeBranch = req.DefaultRelativeBranch
		}
	}

	if t.RelativeBranch != "" && len(t.Bases) > 1 {
		return fmt.Errorf("topic %q declares a relative branch and %d base branches; "+
			"a relative branch allows exactly one base", t.Name, len(t.Bases))
	}

	format := req.Format
	if v := ds.Get(DirectiveBranchFormat); v != "" {
		var err error
		if format, err = ParseBranchFormat(v); err != nil {
			return fmt.Errorf("topic %q: %w", t.Name, err)
		}
	}
	t.Format = format

	if v := ds.Get(DirectiveUpdatePRBody); v != "" {
		switch strings.ToLower(v) {
		case "true":
			t.UpdatePRBody = ptr(true)
		case "false":
			t.UpdatePRBody = ptr(false)
		default:
			return fmt.Errorf("topic %q: Update-Pr-Body must be true or false, got %q", t.Name, v)
		}
	}

	// Labels: directive labels, subject prefix labels
	// ("fix: ..." or "[fix] ..."), and --labels, all lowercased.
	for _, l := range ds[DirectiveLabel] {
		t.Labels = addUnique(t.Labels, strings.ToLower(l))
	}
	for _, c := range t.Commits {
		if l := subjectLabel(c.Subject); l != "" {
			t.Labels = addUnique(t.Labels, l)
		}
	}
	for _, l := range req.ExtraLabels {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			t.Labels = addUnique(t.Labels, l)
		}
	}

	// "draft" is not a real label; it toggles the PR's draft state.
	if i := slices.Index(t.Labels, "draft"); i >= 0 {
		t.Draft = true
		t.Labels = slices.Delete(t.Labels, i, i+1)
	}

	t.Reviewers = applyAliases(ds[DirectiveReviewer], req.UserAliases)
	t.Assignees = applyAliases(ds[DirectiveAssignee], req.UserAliases)
	switch req.AutoAdd {
	case AutoAddUsersR2A:
		t.Assignees = addAllUnique(t.Assignees, t.Reviewers)
	case AutoAddUsersA2R:
		t.Reviewers = addAllUnique(t.Reviewers, t.Assignees)
	case AutoAddUsersBoth:
		t.Assignees = addAllUnique(t.Assignees, t.Reviewers)
		t.Reviewers = addAllUnique(t.Reviewers, t.Assignees)
	}

	return nil
}

// filterTopics restricts the stack to the requested topics and their
// relative ancestors.
func (s *Stack) filterTopics(only []string, byName map[string]*Topic) error {
	if len(only) == 0 {
		return nil
	}

	keep := make(map[string]struct{})
	for _, name := range only {
		t, ok := byName[name]
		if !ok {
			return fmt.Errorf("topic %q not found in the commit range", name)
		}
		for ; t != nil; t = t.Relative {
			keep[t.Name] = struct{}{}
		}
	}

	s.Topics = slices.DeleteFunc(s.Topics, func(t *Topic) bool {
		_, ok := keep[t.Name]
		return !ok
	})
	return nil
}

// expandBranches creates one Branch per (topic, base) pair
// and links children to their parents.
func (s *Stack) expandBranches(req BuildRequest) {
	for _, t := range s.Topics {
		uploader := t.Uploader
		if uploader == "" {
			uploader = req.Uploader
		}

		for _, base := range t.Bases {
			b := &Branch{
				Topic:      t,
				Base:       base,
				RemoteHead: RemoteBranchName(t.Format, uploader, base, t.Name),
			}

			// The relative branch is only meaningful when it differs
			// from the base branch itself.
			if t.RelativeBranch != "" && t.RelativeBranch != base {
				b.RelativeBranch = t.RelativeBranch
			}

			if rel := t.Relative; rel != nil {
				parent := rel.Branches[base]
				parent.Children = append(parent.Children, b)
				b.RemoteBase = parent.RemoteHead
			} else if b.RelativeBranch != "" {
				b.RemoteBase = b.RelativeBranch
			} else {
				b.RemoteBase = base
			}

			t.Branches[base] = b
		}
	}
}

// subjectLabel extracts a label from a "label: ..." or "[label] ..."
// subject prefix.
func subjectLabel(subject string) string {
	if rest, ok := strings.CutPrefix(subject, "["); ok {
		if label, _, ok := strings.Cut(rest, "]"); ok && isLabelWord(label) {
			return strings.ToLower(label)
		}
		return ""
	}
	if label, _, ok := strings.Cut(subject, ":"); ok && isLabelWord(label) {
		return strings.ToLower(label)
	}
	return ""
}

func isLabelWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func applyAliases(names []string, aliases map[string]string) []string {
	var out []string
	for _, n := range names {
		if target, ok := aliases[n]; ok {
			n = target
		}
		out = addUnique(out, n)
	}
	return out
}

func addUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

func addAllUnique(list []string, vs []string) []string {
	for _, v := range vs {
		list = addUnique(list, v)
	}
	return list
}

func ptr[T any](v T) *T { return &v }
