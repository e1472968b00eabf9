// revup is a command line tool that turns a stack of tagged commits
// into independent review branches and GitHub pull requests.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/alecthomas/kong"
	"go.abhg.dev/log/silog"
	"go.revup.dev/revup/internal/config"
	"go.revup.dev/revup/internal/secret"
	"go.revup.dev/revup/internal/xec"
)

var _version = "dev"

func main() {
	logger := silog.New(os.Stderr, &silog.Options{
		Level: silog.LevelInfo,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		select {
		case <-sigc:
			logger.Info("Cleaning up. Press Ctrl-C again to exit immediately.")
			cancel()
		case <-ctx.Done():
		}
	}()

	// The config resolver needs the repository root before flags are
	// parsed. Outside a repository this comes up empty and only the
	// user-level file applies.
	repoRoot, _ := xec.Command(ctx, logger, "git", "rev-parse", "--show-toplevel").
		OutputChomp()
	cfg, err := config.Load(strings.TrimSpace(repoRoot))
	if err != nil {
		logger.Fatalf("revup: %v", err)
	}

	var stash secret.Stash = new(secret.Keyring)

	var cmd mainCmd
	parser, err := kong.New(&cmd,
		kong.Name("revup"),
		kong.Description("revup turns tagged commits into stacked GitHub pull requests."),
		kong.Bind(logger, &cmd.globalOptions, cfg),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(stash, (*secret.Stash)(nil)),
		kong.Resolvers(cfg.Resolver()),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": "revup " + _version},
	)
	if err != nil {
		panic(err)
	}

	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		logger.Fatalf("revup: %v", err)
	}

	if cmd.Verbose {
		logger.SetLevel(silog.LevelDebug)
	}

	if err := kctx.Run(); err != nil {
		logger.Fatalf("revup: %v", err)
	}
}

type globalOptions struct {
	GithubToken string `name:"github-token" env:"GITHUB_TOKEN" hidden:"" help:"GitHub API token"`
	GithubURL   string `name:"github-url" default:"https://github.com" help:"GitHub instance URL"`
	RemoteName  string `name:"remote-name" help:"Git remote to upload to"`
	MainBranch  string `name:"main-branch" help:"Trunk branch that reviews eventually merge into"`
	Fork        string `name:"fork" placeholder:"OWNER/REPO" help:"Repository that review branches are pushed to, if not the remote itself"`
	Proxy       string `name:"proxy" placeholder:"URL" help:"HTTPS proxy for forge requests"`
}

type mainCmd struct {
	globalOptions

	Verbose bool               `short:"v" help:"Enable verbose output" env:"REVUP_VERBOSE"`
	Dir     kong.ChangeDirFlag `short:"C" placeholder:"DIR" help:"Change to DIR before doing anything"`
	Version kong.VersionFlag   `help:"Print version information and quit"`

	Upload uploadCmd `cmd:"" help:"Push review branches and create or update pull requests"`
	Auth   authCmd   `cmd:"" help:"Manage the stored GitHub token"`
}
