package github

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shurcooL/githubv4"
	"go.abhg.dev/log/silog"
	"golang.org/x/sync/errgroup"
	"go.revup.dev/revup/internal/forge"
	"go.revup.dev/revup/internal/git"
	"go.revup.dev/revup/internal/graphqlutil"
)

// maxCommentsToQuery bounds how many leading comments are fetched per
// PR when searching for the tool's own comments.
const maxCommentsToQuery = 5

// Repository is a GitHub repository.
type Repository struct {
	repo, fork RepoID
	repoID     githubv4.ID
	log        *silog.Logger
	client     graphQLClient

	concurrency int

	// Node ids learned from queries, for follow-up mutations.
	mu       sync.Mutex
	userIDs  map[string]githubv4.ID // login -> id
	labelIDs map[string]githubv4.ID // name -> id
}

var _ forge.Repository = (*Repository)(nil)

// Repo reports the upstream repository this handle points at.
func (r *Repository) Repo() RepoID { return r.repo }

// query issues a GraphQL query, retrying transient failures.
func (r *Repository) query(ctx context.Context, q any, variables map[string]any) error {
	return graphqlutil.Retry(ctx, func(ctx context.Context) error {
		return r.client.Query(ctx, q, variables)
	})
}

// mutate issues a GraphQL mutation exactly once.
// Mutations are not idempotent and must not be retried after a
// partial success.
func (r *Repository) mutate(ctx context.Context, m any, input githubv4.Input) error {
	return r.client.Mutate(ctx, m, input, nil)
}

// QueryEverything resolves PRs, users, and labels in one batch of
// concurrent queries under the HTTP pool.
func (r *Repository) QueryEverything(ctx context.Context, req forge.QueryRequest) (*forge.QueryResult, error) {
	res := &forge.QueryResult{
		PullsByHeadRef: make(map[string]*forge.PullRequest),
		Users:          make(map[string]forge.User),
		Labels:         make(map[string]bool),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, ref := range req.HeadRefs {
		g.Go(func() error {
			pr, err := r.findPullByHeadRef(gctx, ref)
			if err != nil {
				return fmt.Errorf("find PR for %v: %w", ref, err)
			}
			if pr != nil {
				mu.Lock()
				res.PullsByHeadRef[ref] = pr
				mu.Unlock()
			}
			return nil
		})
	}

	for _, name := range req.Users {
		g.Go(func() error {
			user, err := r.resolveUser(gctx, name)
			if err != nil {
				return fmt.Errorf("resolve user %v: %w", name, err)
			}
			if user != nil {
				mu.Lock()
				res.Users[name] = *user
				mu.Unlock()
			}
			return nil
		})
	}

	for _, name := range req.Labels {
		g.Go(func() error {
			ok, err := r.resolveLabel(gctx, name)
			if err != nil {
				return fmt.Errorf("resolve label %v: %w", name, err)
			}
			if ok {
				mu.Lock()
				res.Labels[name] = true
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// prNode is the GraphQL shape of a pull request.
type prNode struct {
	ID          githubv4.ID  `graphql:"id"`
	Number      githubv4.Int `graphql:"number"`
	State       string       `graphql:"state"`
	URL         githubv4.URI `graphql:"url"`
	BaseRefName string       `graphql:"baseRefName"`
	HeadRefOid  string       `graphql:"headRefOid"`
	Body        string       `graphql:"body"`
	Title       string       `graphql:"title"`
	IsDraft     bool         `graphql:"isDraft"`

	Commits struct {
		Nodes []struct {
			Commit struct {
				Parents struct {
					Nodes []struct {
						Oid string `graphql:"oid"`
					}
				} `graphql:"parents(first: 1)"`
			} `graphql:"commit"`
		}
	} `graphql:"commits(first: 1)"`

	ReviewRequests struct {
		Nodes []struct {
			RequestedReviewer struct {
				User struct {
					Login string      `graphql:"login"`
					ID    githubv4.ID `graphql:"id"`
				} `graphql:"... on User"`
			} `graphql:"requestedReviewer"`
		}
	} `graphql:"reviewRequests(first: 25)"`

	Assignees struct {
		Nodes []struct {
			Login string      `graphql:"login"`
			ID    githubv4.ID `graphql:"id"`
		}
	} `graphql:"assignees(first: 25)"`

	Labels struct {
		Nodes []struct {
			Name string      `graphql:"name"`
			ID   githubv4.ID `graphql:"id"`
		}
	} `graphql:"labels(first: 25)"`

	Comments struct {
		Nodes []struct {
			ID   githubv4.ID `graphql:"id"`
			Body string      `graphql:"body"`
		}
	} `graphql:"comments(first: 5)"`
}

// findPullByHeadRef finds the most recently updated open or merged PR
// of the upstream repository whose head branch has the given name.
// The repository the head branch lives in is not checked.
func (r *Repository) findPullByHeadRef(ctx context.Context, headRef string) (*forge.PullRequest, error) {
	var q struct {
		Repository struct {
			PullRequests struct {
				Nodes []prNode
			} `graphql:"pullRequests(headRefName: $headRef, states: [OPEN, MERGED], first: 1, orderBy: {direction: DESC, field: UPDATED_AT})"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}

	err := r.query(ctx, &q, map[string]any{
		"owner":   githubv4.String(r.repo.Owner),
		"repo":    githubv4.String(r.repo.Name),
		"headRef": githubv4.String(headRef),
	})
	if err != nil {
		return nil, err
	}

	nodes := q.Repository.PullRequests.Nodes
	if len(nodes) == 0 {
		return nil, nil
	}
	return r.toPullRequest(&nodes[0]), nil
}

func (r *Repository) toPullRequest(n *prNode) *forge.PullRequest {
	pr := &forge.PullRequest{
		ID:      idString(n.ID),
		Number:  int(n.Number),
		URL:     n.URL.String(),
		State:   n.State,
		Title:   n.Title,
		Body:    n.Body,
		BaseRef: n.BaseRefName,
		HeadOid: git.Hash(n.HeadRefOid),
		Draft:   n.IsDraft,
	}

	// The parent of the PR's first commit is the base the branch was
	// actually uploaded against. Fall back to the head for an
	// empty-looking PR.
	pr.BaseOid = pr.HeadOid
	if cs := n.Commits.Nodes; len(cs) > 0 {
		if ps := cs[0].Commit.Parents.Nodes; len(ps) > 0 {
			pr.BaseOid = git.Hash(ps[0].Oid)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rr := range n.ReviewRequests.Nodes {
		u := rr.RequestedReviewer.User
		if u.Login == "" {
			continue
		}
		pr.Reviewers = append(pr.Reviewers, u.Login)
		r.userIDs[u.Login] = u.ID
	}
	for _, a := range n.Assignees.Nodes {
		pr.Assignees = append(pr.Assignees, a.Login)
		r.userIDs[a.Login] = a.ID
	}
	for _, l := range n.Labels.Nodes {
		pr.Labels = append(pr.Labels, l.Name)
		r.labelIDs[l.Name] = l.ID
	}
	for _, c := range n.Comments.Nodes {
		pr.Comments = append(pr.Comments, forge.Comment{
			ID:   idString(c.ID),
			Body: c.Body,
		})
	}

	return pr
}

// resolveUser finds the assignable user best matching the given short
// name: the shortest login with the name as an exact prefix,
// compared without regard to case.
// Unresolvable names return nil and warn; they never fail the upload.
func (r *Repository) resolveUser(ctx context.Context, name string) (*forge.User, error) {
	var q struct {
		Repository struct {
			AssignableUsers struct {
				TotalCount int
				Nodes      []struct {
					Login string      `graphql:"login"`
					ID    githubv4.ID `graphql:"id"`
				}
			} `graphql:"assignableUsers(query: $query, first: 25)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}

	err := r.query(ctx, &q, map[string]any{
		"owner": githubv4.String(r.repo.Owner),
		"repo":  githubv4.String(r.repo.Name),
		"query": githubv4.String(name),
	})
	if err != nil {
		return nil, err
	}

	users := q.Repository.AssignableUsers
	switch {
	case len(users.Nodes) == 0:
		r.log.Warnf("No matching user found for %q", name)
		return nil, nil
	case users.TotalCount > len(users.Nodes):
		r.log.Warnf("Too many matching users found for %q", name)
		return nil, nil
	}

	best := -1
	for i, u := range users.Nodes {
		if len(u.Login) < len(name) || !strings.EqualFold(u.Login[:len(name)], name) {
			continue
		}
		if best < 0 || len(u.Login) < len(users.Nodes[best].Login) {
			best = i
		}
	}
	if best < 0 {
		r.log.Warnf("No matching user found for %q", name)
		return nil, nil
	}
	u := users.Nodes[best]

	r.mu.Lock()
	r.userIDs[u.Login] = u.ID
	r.mu.Unlock()

	return &forge.User{Login: u.Login, ID: idString(u.ID)}, nil
}

// resolveLabel reports whether a label with the given exact name
// exists, caching its node id for mutations.
func (r *Repository) resolveLabel(ctx context.Context, name string) (bool, error) {
	var q struct {
		Repository struct {
			Label *struct {
				ID   githubv4.ID `graphql:"id"`
				Name string      `graphql:"name"`
			} `graphql:"label(name: $label)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}

	err := r.query(ctx, &q, map[string]any{
		"owner": githubv4.String(r.repo.Owner),
		"repo":  githubv4.String(r.repo.Name),
		"label": githubv4.String(name),
	})
	if err != nil {
		return false, err
	}

	label := q.Repository.Label
	if label == nil || label.ID == nil || label.ID == "" {
		r.log.Warnf("Couldn't find an existing label named %q", name)
		return false, nil
	}

	r.mu.Lock()
	r.labelIDs[label.Name] = label.ID
	r.mu.Unlock()
	return true, nil
}

func (r *Repository) cachedUserIDs(logins []string) ([]githubv4.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]githubv4.ID, 0, len(logins))
	for _, login := range logins {
		id, ok := r.userIDs[login]
		if !ok {
			return nil, fmt.Errorf("%w: user %q was not resolved", forge.ErrNotFound, login)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Repository) cachedLabelIDs(names []string) ([]githubv4.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]githubv4.ID, 0, len(names))
	for _, name := range names {
		id, ok := r.labelIDs[name]
		if !ok {
			return nil, fmt.Errorf("%w: label %q was not resolved", forge.ErrNotFound, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func idString(id githubv4.ID) string {
	if id == nil {
		return ""
	}
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprint(id)
}
