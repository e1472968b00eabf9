package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"go.abhg.dev/log/silog"
	"go.revup.dev/revup/internal/forge"
	"go.revup.dev/revup/internal/forge/github"
	"go.revup.dev/revup/internal/git"
	"go.revup.dev/revup/internal/secret"
	"go.revup.dev/revup/internal/topic"
	"go.revup.dev/revup/internal/xec"
)

type uploadCmd struct {
	Topics []string `arg:"" optional:"" help:"Restrict the upload to these topics and their relative ancestors"`

	BaseBranch      string `placeholder:"BRANCH" help:"Base branch for topics that don't declare one. Autodetected if not given."`
	BaseBranchGlobs string `placeholder:"GLOBS" help:"Comma-separated globs matching release branches considered during base detection"`
	RelativeBranch  string `placeholder:"BRANCH" help:"Branch that reviews target instead of the base branch"`
	Head            string `default:"HEAD" help:"Ref whose history is uploaded"`

	Rebase        bool `help:"Push branches even when the only change is a rebase"`
	RelativeChain bool `help:"Ignore Relative: directives and chain topics in order"`
	AutoTopic     bool `help:"Name topics for untagged commits from their subjects"`
	SkipConfirm   bool `help:"Don't ask for confirmation before uploading"`
	DryRun        bool `help:"Print what would be uploaded without pushing anything"`
	PushOnly      bool `help:"Push branches but don't create or modify pull requests"`
	Status        bool `help:"Show the current upload state and exit"`

	UpdatePrBody bool `name:"update-pr-body" default:"true" negatable:"" help:"Keep PR titles and bodies in sync with the commit message"`
	ReviewGraph  bool `default:"true" negatable:"" help:"Maintain the review-graph comment on each PR"`
	Patchsets    bool `default:"true" negatable:"" help:"Maintain the patchsets history comment on each PR"`

	TrimTags            bool   `help:"Strip directive lines from uploaded commit messages"`
	CreateLocalBranches bool   `help:"Also point local branches at the synthesized heads"`
	AutoAddUsers        string `default:"no" enum:"no,r2a,a2r,both" help:"Copy users between the reviewer and assignee sets"`
	Labels              string `placeholder:"CSV" help:"Labels added to every topic"`
	UserAliases         string `placeholder:"CSV" help:"Rewrite user names, as comma-separated old:new pairs"`
	Uploader            string `help:"Branch namespace owner. Defaults to the local part of your git email."`
	BranchFormat        string `default:"user+branch" enum:"user+branch,user,branch,none" help:"Remote branch naming scheme"`
	SelfAuthoredOnly    bool   `default:"true" negatable:"" help:"Skip topics with no commit authored by you"`
	PreUpload           string `placeholder:"CMD" help:"Shell command to run after validation, before pushing"`
	KeepTemp            bool   `help:"Keep scratch files under .revup/ for debugging"`
}

func (cmd *uploadCmd) Run(
	ctx context.Context,
	log *silog.Logger,
	opts *globalOptions,
	stash secret.Stash,
) (err error) {
	if opts.Proxy != "" {
		os.Setenv("HTTPS_PROXY", opts.Proxy)
	}

	repo, err := git.Open(ctx, "", git.OpenOptions{Log: log, KeepTemp: cmd.KeepTemp})
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer func() {
		err = errors.Join(err, repo.Close())
	}()

	up := &upload{
		cmd:   cmd,
		opts:  opts,
		stash: stash,
		log:   log,
		repo:  repo,
		now:   time.Now(),
	}
	if err := up.run(ctx); err != nil {
		if errors.Is(err, errNothingToDo) {
			return nil
		}
		return err
	}
	return nil
}

// upload carries the state of one upload invocation through its
// stages: walk, group, query, classify, synthesize, push, reconcile.
type upload struct {
	cmd   *uploadCmd
	opts  *globalOptions
	stash secret.Stash
	log   *silog.Logger
	repo  *git.Repository

	// now is captured once so synthesized committer timestamps,
	// and therefore head hashes, are stable within the invocation.
	now time.Time

	remote     string
	uploader   string
	email      string
	userName   string
	baseBranch string

	stack *topic.Stack

	gh          *github.Repository
	queryResult *forge.QueryResult

	// payloads are the parsed patchsets payloads per branch.
	payloads map[*topic.Branch]*topic.PatchsetsPayload

	// relativePulls are PRs for plain relative branches, by name.
	relativePulls map[string]*forge.PullRequest

	// lastVirtualTarget chains all virtual diff commits of this
	// invocation into one pushable branch.
	lastVirtualTarget git.Hash
}

func (u *upload) run(ctx context.Context) error {
	cmd := u.cmd
	u.remote = u.opts.RemoteName

	if err := u.buildStack(ctx); err != nil {
		return err
	}

	if !cmd.DryRun {
		if err := u.openForge(ctx); err != nil {
			return err
		}
		if err := u.queryForge(ctx); err != nil {
			return err
		}
		if err := u.fetchMissingObjects(ctx); err != nil {
			return err
		}

		detector := &topic.RebaseDetector{
			Repo:        u.repo,
			PushRebases: cmd.Rebase,
			Log:         u.log,
		}
		if err := detector.Detect(ctx, u.stack); err != nil {
			return err
		}
	}

	if cmd.Status {
		u.printStack(false)
		return nil
	}

	synth := &topic.Synthesizer{
		Repo: u.repo,
		Committer: git.Signature{
			Name:  u.userName,
			Email: u.email,
			Date:  u.now.Format(time.RFC3339),
		},
		Concurrency: runtime.NumCPU(),
		Log:         u.log,
	}
	if err := synth.Synthesize(ctx, u.stack); err != nil {
		var conflict *topic.ConflictError
		if errors.As(err, &conflict) {
			// Nothing has been pushed; report and abort.
			return conflict
		}
		return err
	}

	if cmd.DryRun {
		u.printStack(true)
		return nil
	}

	if !cmd.SkipConfirm && u.countChanged() > 0 {
		u.printStack(true)
		if !confirm("Proceed with upload?") {
			return errors.New("upload aborted")
		}
	}

	if cmd.PreUpload != "" {
		// Run only once it's certain there are no conflicts.
		preCmd := xec.Command(ctx, u.log, "sh", "-c", cmd.PreUpload).
			WithDir(u.repo.Root()).
			CaptureStdout()
		if err := preCmd.Run(); err != nil {
			return fmt.Errorf("pre-upload command failed: %w", err)
		}
	}

	if cmd.Patchsets {
		if err := u.buildPatchsets(ctx); err != nil {
			return err
		}
	}

	if err := u.pushRefs(ctx); err != nil {
		return err
	}

	var errs []error
	if !cmd.PushOnly {
		errs = u.reconcilePulls(ctx)
	}

	u.printStack(true)
	return errors.Join(errs...)
}

// buildStack walks the commit range and groups it into topics.
func (u *upload) buildStack(ctx context.Context) error {
	cmd := u.cmd
	repo := u.repo

	name, email, err := repo.UserIdentity(ctx)
	if err != nil {
		return err
	}
	u.userName, u.email = name, email

	u.uploader = cmd.Uploader
	if u.uploader == "" {
		u.uploader, _, _ = strings.Cut(email, "@")
	}

	baseBranch := cmd.BaseBranch
	if baseBranch == "" {
		baseBranch, err = repo.BestBaseBranch(ctx, git.BaseBranchRequest{
			Head:        cmd.Head,
			Remote:      u.remote,
			MainBranch:  u.opts.MainBranch,
			BranchGlobs: splitCSV(cmd.BaseBranchGlobs),
		})
		if err != nil {
			return err
		}
		u.log.Debug("Detected base branch", "branch", baseBranch)
	}
	u.baseBranch = baseBranch

	// Reviews are cut relative to the relative branch when one is
	// given; it must itself fork off the base branch.
	relTarget := cmd.RelativeBranch
	if relTarget == "" {
		relTarget = baseBranch
	}
	if relTarget != baseBranch {
		baseFork, err := repo.ForkPoint(ctx, cmd.Head, u.remote+"/"+baseBranch)
		if err != nil {
			return err
		}
		relFork, err := repo.ForkPoint(ctx, cmd.Head, u.remote+"/"+relTarget)
		if err != nil {
			return err
		}
		ok, err := repo.IsAncestor(ctx, baseFork, relFork)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("relative branch structure is invalid: "+
				"%v is closer to %v than %v", cmd.Head, baseBranch, relTarget)
		}
	}

	forkPoint, err := repo.ForkPoint(ctx, cmd.Head, u.remote+"/"+relTarget)
	if err != nil {
		return err
	}

	commits, err := repo.ListCommitsDetails(ctx, cmd.Head, forkPoint)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		return fmt.Errorf("no changes from branch %v", relTarget)
	}

	stack, err := topic.BuildStack(topic.BuildRequest{
		Commits:               commits,
		DefaultBase:           baseBranch,
		DefaultRelativeBranch: cmd.RelativeBranch,
		Uploader:              u.uploader,
		UserEmail:             email,
		SelfAuthoredOnly:      cmd.SelfAuthoredOnly,
		AutoTopic:             cmd.AutoTopic,
		RelativeChain:         cmd.RelativeChain,
		TrimTags:              cmd.TrimTags,
		Format:                topic.BranchFormat(cmd.BranchFormat),
		ExtraLabels:           splitCSV(cmd.Labels),
		UserAliases:           parseAliases(cmd.UserAliases),
		AutoAdd:               topic.AutoAddUsers(cmd.AutoAddUsers),
		Only:                  cmd.Topics,
		Log:                   u.log,
	})
	if err != nil {
		return err
	}
	u.stack = stack

	if err := u.dropEmptyTopics(ctx); err != nil {
		return err
	}
	if len(stack.Topics) == 0 {
		u.log.Info("Nothing to upload")
		return errNothingToDo
	}

	return u.resolveBaseHashes(ctx)
}

var errNothingToDo = errors.New("no topics to upload")

// dropEmptyTopics removes topics whose commits are all empty:
// rebased-out changes that 'git pull --rebase' left behind.
// A topic with at least one non-empty commit keeps all its commits.
func (u *upload) dropEmptyTopics(ctx context.Context) error {
	var drop []string
	for _, t := range u.stack.Topics {
		empty := true
		for _, c := range t.Commits {
			identical, err := u.repo.TreesIdentical(ctx, c.Hash.String(), c.Hash.String()+"~")
			if err != nil {
				return fmt.Errorf("check %v: %w", c.Hash.Short(), err)
			}
			if !identical {
				empty = false
				break
			}
		}
		if empty {
			u.log.Infof("Skipping topic %q: all commits are empty", t.Name)
			drop = append(drop, t.Name)
		}
	}

	if len(drop) == 0 {
		return nil
	}

	// Topics relative to a dropped topic re-parent onto the nearest
	// surviving ancestor, or directly onto their base.
	for _, t := range u.stack.Topics {
		if t.Relative == nil || !slices.Contains(drop, t.Relative.Name) {
			continue
		}

		ancestor := t.Relative
		for ancestor != nil && slices.Contains(drop, ancestor.Name) {
			ancestor = ancestor.Relative
		}
		t.Relative = ancestor

		for base, b := range t.Branches {
			switch {
			case ancestor != nil:
				parent := ancestor.Branches[base]
				parent.Children = append(parent.Children, b)
				b.RemoteBase = parent.RemoteHead
			case b.RelativeBranch != "":
				b.RemoteBase = b.RelativeBranch
			default:
				b.RemoteBase = base
			}
		}
	}

	u.stack.Topics = slices.DeleteFunc(u.stack.Topics, func(t *topic.Topic) bool {
		return slices.Contains(drop, t.Name)
	})
	return nil
}

// resolveBaseHashes sets the base commit for branches that sit
// directly on a base or relative branch. Branches with a relative
// topic get theirs when the parent's head is synthesized.
func (u *upload) resolveBaseHashes(ctx context.Context) error {
	defaultTarget := u.cmd.RelativeBranch
	if defaultTarget == "" {
		defaultTarget = u.baseBranch
	}

	for b := range u.stack.Branches {
		if b.Topic.Relative != nil {
			continue
		}

		target := b.RelativeBranch
		if target == "" {
			target = b.Base
		}

		if target == defaultTarget {
			// The walked range starts right after this point.
			b.BaseHash = u.stack.Commits[0].FirstParent()
			continue
		}

		hash, err := u.repo.PeelToCommit(ctx, u.remote+"/"+target)
		if err != nil {
			return fmt.Errorf("resolve %v/%v: %w", u.remote, target, err)
		}
		b.BaseHash = hash
	}
	return nil
}

// openForge connects to the GitHub repository behind the remote.
func (u *upload) openForge(ctx context.Context) error {
	remoteURL, err := u.repo.RemoteURL(ctx, u.remote)
	if err != nil {
		return err
	}

	repoID, err := github.ParseRemoteURL(u.opts.GithubURL, remoteURL)
	if err != nil {
		return err
	}

	var forkID github.RepoID
	if u.opts.Fork != "" {
		owner, name, ok := strings.Cut(u.opts.Fork, "/")
		if !ok {
			return fmt.Errorf("--fork must be OWNER/REPO, got %q", u.opts.Fork)
		}
		forkID = github.RepoID{Owner: owner, Name: name}
	}

	token, err := resolveToken(u.stash, u.opts)
	if err != nil {
		return err
	}

	u.gh, err = github.Open(ctx, repoID, forkID, &github.Options{
		Token: token,
		URL:   u.opts.GithubURL,
		Log:   u.log,
	})
	if err != nil {
		return err
	}
	return nil
}

// queryForge resolves PRs, users, and labels in one batch and binds
// the results to the stack.
func (u *upload) queryForge(ctx context.Context) error {
	req := forge.QueryRequest{}
	var relativeBranches []string
	for b := range u.stack.Branches {
		req.HeadRefs = append(req.HeadRefs, b.RemoteHead)
		req.Users = addAll(req.Users, b.Topic.Reviewers)
		req.Users = addAll(req.Users, b.Topic.Assignees)
		req.Labels = addAll(req.Labels, b.Topic.Labels)
		req.Labels = addAll(req.Labels, []string{b.Base})
		if b.RelativeBranch != "" && !slices.Contains(relativeBranches, b.RelativeBranch) {
			relativeBranches = append(relativeBranches, b.RelativeBranch)
		}
	}
	req.HeadRefs = append(req.HeadRefs, relativeBranches...)

	res, err := u.gh.QueryEverything(ctx, req)
	if err != nil {
		return err
	}
	u.queryResult = res

	u.relativePulls = make(map[string]*forge.PullRequest)
	for _, name := range relativeBranches {
		if pr, ok := res.PullsByHeadRef[name]; ok {
			u.relativePulls[name] = pr
		}
	}

	u.payloads = make(map[*topic.Branch]*topic.PatchsetsPayload)
	for b := range u.stack.Branches {
		pr, ok := res.PullsByHeadRef[b.RemoteHead]
		if !ok {
			continue
		}
		b.PR = pr

		for _, c := range pr.Comments {
			payload, err := topic.ParsePatchsets(c.Body)
			if err != nil {
				u.log.Warnf("PR #%d: unreadable patchsets comment: %v", pr.Number, err)
				continue
			}
			if payload != nil {
				u.payloads[b] = payload
				// The recorded base of the last push is more reliable
				// than what the forge reports for rebased PRs.
				if row := payload.LastRow(); row != nil {
					pr.BaseOid = row.BaseOid
				}
				break
			}
		}
	}

	// A relative branch whose PR has merged is no longer a valid
	// target; those reviews fall back to the base branch.
	for b := range u.stack.Branches {
		if b.RelativeBranch == "" {
			continue
		}
		pr, ok := u.relativePulls[b.RelativeBranch]
		switch {
		case !ok:
			u.log.Warnf("Failed to look up relative PR for branch %v", b.RelativeBranch)
		case pr.State == "MERGED":
			b.RelativeBranch = ""
			if b.Topic.Relative == nil {
				b.RemoteBase = b.Base
				hash, err := u.repo.PeelToCommit(ctx, u.remote+"/"+b.Base)
				if err != nil {
					return fmt.Errorf("resolve %v/%v: %w", u.remote, b.Base, err)
				}
				b.BaseHash = hash
			}
		}
	}

	return nil
}

// fetchMissingObjects fetches PR heads and recorded bases that are
// not in the local object database (e.g. after a git gc or on a
// different machine).
func (u *upload) fetchMissingObjects(ctx context.Context) error {
	var missing []string
	for b := range u.stack.Branches {
		if b.PR == nil {
			continue
		}
		for _, oid := range []git.Hash{b.PR.HeadOid, b.PR.BaseOid} {
			if !oid.IsZero() && !u.repo.CommitExists(ctx, oid.String()) {
				missing = append(missing, oid.String())
			}
		}
	}
	return u.repo.Fetch(ctx, git.FetchRequest{
		Remote:   u.remote,
		Refspecs: missing,
	})
}

// buildPatchsets appends a history row for every branch about to be
// pushed, building virtual diff targets for rebased pushes.
func (u *upload) buildPatchsets(ctx context.Context) error {
	for b := range u.stack.Branches {
		if !b.Status.NeedsPush() || b.Merged || b.Head().IsZero() {
			continue
		}

		payload := u.payloads[b]
		if payload == nil {
			payload = new(topic.PatchsetsPayload)
			u.payloads[b] = payload
		}

		row := topic.PatchsetRow{
			Index:   len(payload.Rows),
			Date:    topic.PatchsetTime(u.now),
			BaseOid: b.BaseHash,
			HeadOid: b.Head(),
		}

		switch {
		case b.PR == nil:
			// First push: the table's diff link covers the whole
			// branch; the summary matches it.
			summary, err := u.repo.ShortDiffStat(ctx, b.BaseHash.String(), b.Head().String())
			if err != nil {
				return err
			}
			row.Summary = summary
		case b.Status == topic.PushStatusRebasedOnly:
			row.Rebase = true
		case b.BaseHash != b.PR.BaseOid:
			// The base moved under this branch; build a diff target
			// that hides the upstream movement.
			target, err := u.repo.VirtualDiffTarget(ctx, git.VirtualDiffTargetRequest{
				OldBase: b.PR.BaseOid,
				OldHead: b.PR.HeadOid,
				NewBase: b.BaseHash,
				NewHead: b.Head(),
				Parent:  u.lastVirtualTarget,
			})
			if err != nil {
				return fmt.Errorf("virtual diff target for %v: %w", b.RemoteHead, err)
			}
			u.lastVirtualTarget = target
			row.DiffTarget = target

			summary, err := u.repo.ShortDiffStat(ctx, target.String(), b.Head().String())
			if err != nil {
				return err
			}
			row.Summary = summary
		default:
			summary, err := u.repo.ShortDiffStat(ctx, b.PR.HeadOid.String(), b.Head().String())
			if err != nil {
				return err
			}
			row.Summary = summary
		}

		payload.Rows = append(payload.Rows, row)
	}
	return nil
}

// pushRefs sends every branch that needs it in one batched push,
// plus the virtual diff target chain and any local branches requested.
func (u *upload) pushRefs(ctx context.Context) error {
	var refs []git.PushRef
	for b := range u.stack.Branches {
		if !b.Status.NeedsPush() || b.Merged || b.Head().IsZero() {
			continue
		}

		ref := git.PushRef{
			Hash: b.Head(),
			Dest: "refs/heads/" + b.RemoteHead,
		}
		if b.PR != nil {
			// Expect the remote where we last saw it;
			// anything else means it moved underneath us.
			ref.Lease = b.PR.HeadOid
		}
		refs = append(refs, ref)

		if u.cmd.CreateLocalBranches {
			err := u.repo.SetRef(ctx, git.SetRefRequest{
				Ref:    "refs/heads/" + b.RemoteHead,
				Hash:   b.Head(),
				Reason: "revup: update local branch",
			})
			if err != nil {
				return fmt.Errorf("create local branch %v: %w", b.RemoteHead, err)
			}
		}
	}

	if !u.lastVirtualTarget.IsZero() {
		refs = append(refs, git.PushRef{
			Hash: u.lastVirtualTarget,
			Dest: "refs/heads/" + topic.RemoteBranchName(topic.BranchFormatUser, u.uploader, "", "virtual-diff-targets"),
		})
	}

	if len(refs) == 0 {
		return nil
	}
	return u.repo.PushRefs(ctx, git.PushRefsRequest{
		Remote: u.remote,
		Refs:   refs,
	})
}

// reconcilePulls creates and updates PRs. Failures are isolated per
// branch: the returned errors cover every branch that failed.
func (u *upload) reconcilePulls(ctx context.Context) []error {
	logins := make(map[string]string)
	for name, user := range u.queryResult.Users {
		logins[name] = user.Login
	}

	rec := &topic.Reconciler{
		Logins:      logins,
		KnownLabels: u.queryResult.Labels,
		UpdateBody:  u.cmd.UpdatePrBody,
	}

	var errs []error
	fail := func(b *topic.Branch, err error) {
		errs = append(errs, fmt.Errorf("topic %q (%v): %w", b.Topic.Name, b.Base, err))
	}

	// Create missing PRs first so the review graph can link them.
	for b := range u.stack.Branches {
		if b.PR != nil || b.Merged {
			continue
		}
		if u.fork() && b.Topic.Relative != nil {
			// The parent branch lives in the fork; its PR targets
			// the upstream, but this PR's base would have to be a
			// cross-fork branch. Wait until the parent merges.
			b.DeferCreate = true
			u.log.Warnf("Topic %q (%v): waiting on base %v before creating a PR",
				b.Topic.Name, b.Base, b.RemoteBase)
			continue
		}

		title, body := u.titleAndBody(b)
		pr, err := u.gh.CreatePull(ctx, forge.CreatePullRequest{
			Head:  b.RemoteHead,
			Base:  b.RemoteBase,
			Title: title,
			Body:  body,
			Draft: b.Topic.Draft,
		})
		if err != nil {
			fail(b, err)
			continue
		}
		// Labels, reviewers, and assignees cannot be set at creation
		// time; the reconcile pass below adds them.
		b.PR = pr
	}

	var graphs map[*topic.Branch]string
	if u.cmd.ReviewGraph {
		graphs = topic.ReviewGraphs(u.stack)
	}

	for b := range u.stack.Branches {
		if b.PR == nil || b.Merged || b.DeferCreate {
			continue
		}

		update := rec.Reconcile(b, u.stack, u.payloads[b])
		u.appendComments(rec, b, update, graphs)

		if err := u.applyUpdate(ctx, b, update); err != nil {
			fail(b, err)
		}
	}

	return errs
}

// appendComments adds the review-graph and patchsets comment
// mutations to the branch's update.
func (u *upload) appendComments(rec *topic.Reconciler, b *topic.Branch, update *topic.PRUpdate, graphs map[*topic.Branch]string) {
	if body, ok := graphs[b]; ok {
		if existing := findComment(b, topic.IsReviewGraphComment); existing != nil {
			if existing.Body != body {
				update.Comments = append(update.Comments, topic.CommentUpdate{
					ID:   existing.ID,
					Body: body,
				})
			}
		} else {
			update.Comments = append(update.Comments, topic.CommentUpdate{Body: body})
		}
	}

	if u.cmd.Patchsets && b.Status.NeedsPush() {
		payload := u.payloads[b]
		if payload == nil {
			return
		}
		payload.Labels, payload.Reviewers, payload.Assignees = rec.Snapshot(b)

		body, err := u.renderPatchsets(payload)
		if err != nil {
			u.log.Warnf("Topic %q: %v", b.Topic.Name, err)
			return
		}

		if existing := findComment(b, topic.IsPatchsetsComment); existing != nil {
			update.Comments = append(update.Comments, topic.CommentUpdate{
				ID:   existing.ID,
				Body: body,
			})
		} else {
			update.Comments = append(update.Comments, topic.CommentUpdate{Body: body})
		}
	}
}

// applyUpdate issues the branch's PR mutations in order:
// content, draft state, labels, reviewers, assignees, comments.
func (u *upload) applyUpdate(ctx context.Context, b *topic.Branch, update *topic.PRUpdate) error {
	if update.Empty() {
		return nil
	}

	prID := b.PR.ID
	gh := u.gh

	if update.Title != nil || update.Body != nil || update.BaseRef != "" {
		req := forge.UpdatePullRequest{
			Title: update.Title,
			Body:  update.Body,
		}
		if update.BaseRef != "" {
			req.BaseRef = &update.BaseRef
		}
		if err := gh.UpdatePull(ctx, prID, req); err != nil {
			return err
		}
	}

	if update.Draft != nil {
		if err := gh.SetDraft(ctx, prID, *update.Draft); err != nil {
			return err
		}
	}

	if err := gh.AddLabels(ctx, prID, update.AddLabels); err != nil {
		return err
	}
	if err := gh.RemoveLabels(ctx, prID, update.RemoveLabels); err != nil {
		return err
	}
	if err := gh.RequestReviewers(ctx, prID, update.AddReviewers); err != nil {
		return err
	}
	if err := gh.WithdrawReviewers(ctx, prID, update.RemoveReviewers); err != nil {
		return err
	}
	if err := gh.AddAssignees(ctx, prID, update.AddAssignees); err != nil {
		return err
	}
	if err := gh.RemoveAssignees(ctx, prID, update.RemoveAssignees); err != nil {
		return err
	}

	for _, c := range update.Comments {
		if c.ID == "" {
			if _, err := gh.PostComment(ctx, prID, c.Body); err != nil {
				return err
			}
		} else if err := gh.UpdateComment(ctx, c.ID, c.Body); err != nil {
			return err
		}
	}

	return nil
}

func (u *upload) titleAndBody(b *topic.Branch) (title, body string) {
	first := b.Topic.Commits[0]
	msg := u.stack.Messages[first.Hash]
	if msg == "" {
		msg = first.Message
	}
	title, rest, _ := strings.Cut(msg, "\n")
	return title, strings.TrimSpace(rest)
}

func (u *upload) renderPatchsets(payload *topic.PatchsetsPayload) (string, error) {
	return topic.RenderPatchsets(u.gh.Repo().Owner, u.gh.Repo().Name, payload)
}

func (u *upload) fork() bool {
	return u.opts.Fork != ""
}

// countChanged reports how many branches require any action.
func (u *upload) countChanged() int {
	n := 0
	for b := range u.stack.Branches {
		if b.Status.NeedsPush() && !b.Merged {
			n++
		}
	}
	return n
}

// printStack logs a human-readable summary of the upload.
func (u *upload) printStack(skipUnchanged bool) {
	for _, t := range slices.Backward(u.stack.Topics) {
		for _, base := range t.Bases {
			b := t.Branches[base]
			if skipUnchanged && !b.Status.NeedsPush() && !b.Merged {
				continue
			}

			target := b.RemoteBase
			if rel := t.Relative; rel != nil {
				target = fmt.Sprintf("%v → %v", rel.Name, base)
			}

			status := b.Status.String()
			if b.Merged {
				status = "already merged"
			}

			u.log.Infof("Topic %v → %v (%v)", t.Name, target, status)
			for i, c := range t.Commits {
				marker := " "
				if i == 0 {
					marker = "*"
				}
				u.log.Infof("  %v %v %v", marker, c.Hash.Short(), c.Subject)
			}
			if b.PR != nil {
				u.log.Infof("  %v", b.PR.URL)
			}
		}
	}
}

func confirm(prompt string) bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return true
	}
	fmt.Fprintf(os.Stderr, "%v [y/N] ", prompt)
	var answer string
	_, _ = fmt.Fscanln(os.Stdin, &answer)
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseAliases(s string) map[string]string {
	aliases := make(map[string]string)
	for _, pair := range splitCSV(s) {
		old, target, ok := strings.Cut(pair, ":")
		if ok && old != "" && target != "" {
			aliases[old] = target
		}
	}
	return aliases
}

func addAll(list []string, vs []string) []string {
	for _, v := range vs {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}

// findComment finds the first of the PR's comments matching the
// given marker predicate.
func findComment(b *topic.Branch, match func(string) bool) *forge.Comment {
	for i := range b.PR.Comments {
		if match(b.PR.Comments[i].Body) {
			return &b.PR.Comments[i]
		}
	}
	return nil
}
