// Package github provides the GitHub implementation of the forge
// interface, built on the GraphQL v4 API.
package github

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/shurcooL/githubv4"
	"go.abhg.dev/log/silog"
	"golang.org/x/oauth2"
	"go.revup.dev/revup/internal/graphqlutil"
)

// DefaultURL is the URL of github.com.
const DefaultURL = "https://github.com"

// Options configures access to a GitHub repository.
type Options struct {
	// Token authenticates the API calls.
	Token string // required

	// URL is the address of the GitHub instance.
	// Defaults to github.com.
	URL string

	// Concurrency bounds parallel API requests. Defaults to 8.
	Concurrency int

	Log *silog.Logger
}

// RepoID identifies a GitHub repository by owner and name.
type RepoID struct {
	Owner string
	Name  string
}

func (id RepoID) String() string {
	return id.Owner + "/" + id.Name
}

var (
	_sshRemote  = regexp.MustCompile(`^[^@]+@(?P<host>[^:]+):(?P<owner>[^/]+)/(?P<name>.+?)(?:\.git)?/?$`)
	_httpRemote = regexp.MustCompile(`^https?://(?:[^@/]+@)?(?P<host>[^/]+)/(?P<owner>[^/]+)/(?P<name>.+?)(?:\.git)?/?$`)
)

// ParseRemoteURL extracts the repository ID from a Git remote URL,
// accepting both SSH and HTTP forms.
func ParseRemoteURL(githubURL, remoteURL string) (RepoID, error) {
	wantHost := "github.com"
	if githubURL != "" {
		if u, err := url.Parse(githubURL); err == nil && u.Host != "" {
			wantHost = u.Host
		}
	}

	for _, re := range []*regexp.Regexp{_sshRemote, _httpRemote} {
		m := re.FindStringSubmatch(remoteURL)
		if m == nil {
			continue
		}
		host, owner, name := m[1], m[2], m[3]
		if !strings.EqualFold(host, wantHost) {
			continue
		}
		return RepoID{Owner: owner, Name: name}, nil
	}

	return RepoID{}, fmt.Errorf("remote URL %q does not point to %v", remoteURL, wantHost)
}

// Open connects to the repository identified by repo,
// resolving its GraphQL node id.
//
// fork, if different from repo, is the repository that review branches
// are pushed to; PRs are then created with cross-repository heads.
func Open(ctx context.Context, repo, fork RepoID, opts *Options) (*Repository, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("no GitHub token: run 'revup auth login' or set GITHUB_TOKEN")
	}
	log := opts.Log
	if log == nil {
		log = silog.Nop()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	if fork == (RepoID{}) {
		fork = repo
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: opts.Token},
	))
	httpClient.Transport = graphqlutil.WrapTransport(
		graphqlutil.WrapRetryTransport(httpClient.Transport))

	var client *githubv4.Client
	if opts.URL == "" || opts.URL == DefaultURL {
		client = githubv4.NewClient(httpClient)
	} else {
		apiURL, err := url.JoinPath(opts.URL, "api", "graphql")
		if err != nil {
			return nil, fmt.Errorf("bad GitHub URL %q: %w", opts.URL, err)
		}
		client = githubv4.NewEnterpriseClient(apiURL, httpClient)
	}

	r := &Repository{
		repo:        repo,
		fork:        fork,
		log:         log.With("repo", repo.String()),
		client:      client,
		concurrency: concurrency,
		userIDs:     make(map[string]githubv4.ID),
		labelIDs:    make(map[string]githubv4.ID),
	}

	var q struct {
		Repository struct {
			ID githubv4.ID `graphql:"id"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	err := r.query(ctx, &q, map[string]any{
		"owner": githubv4.String(repo.Owner),
		"repo":  githubv4.String(repo.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("get repository ID: %w", err)
	}
	r.repoID = q.Repository.ID

	return r, nil
}

// graphQLClient is the seam between the repository and githubv4,
// replaceable in tests.
type graphQLClient interface {
	Query(ctx context.Context, q any, variables map[string]any) error
	Mutate(ctx context.Context, m any, input githubv4.Input, variables map[string]any) error
}

var _ graphQLClient = (*githubv4.Client)(nil)
