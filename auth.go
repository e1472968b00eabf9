package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.abhg.dev/log/silog"
	"go.revup.dev/revup/internal/secret"
)

// secretService namespaces the stored token in the keyring.
const secretService = "github"

type authCmd struct {
	Login  authLoginCmd  `cmd:"" help:"Store a GitHub API token"`
	Status authStatusCmd `cmd:"" help:"Report whether a token is stored"`
	Logout authLogoutCmd `cmd:"" help:"Delete the stored token"`
}

type authLoginCmd struct {
	Token string `help:"Token to store. Read from stdin if not given."`
}

func (cmd *authLoginCmd) Run(log *silog.Logger, stash secret.Stash) error {
	token := strings.TrimSpace(cmd.Token)
	if token == "" {
		fmt.Fprint(os.Stderr, "Enter GitHub token: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return errors.New("no token provided")
	}

	if err := stash.SaveSecret(secretService, "token", token); err != nil {
		if errors.Is(err, secret.ErrKeyringUnsupported) {
			return fmt.Errorf("system keyring is unavailable; "+
				"set GITHUB_TOKEN instead: %w", err)
		}
		return fmt.Errorf("save token: %w", err)
	}

	log.Info("Token saved")
	return nil
}

type authStatusCmd struct{}

func (cmd *authStatusCmd) Run(ctx context.Context, log *silog.Logger, stash secret.Stash, opts *globalOptions) error {
	if _, err := resolveToken(stash, opts); err != nil {
		return err
	}
	log.Info("A GitHub token is available")
	return nil
}

type authLogoutCmd struct{}

func (cmd *authLogoutCmd) Run(log *silog.Logger, stash secret.Stash) error {
	if err := stash.DeleteSecret(secretService, "token"); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	log.Info("Token deleted")
	return nil
}

// resolveToken finds the GitHub token:
// the --github-token flag (or GITHUB_TOKEN), then the keyring.
func resolveToken(stash secret.Stash, opts *globalOptions) (string, error) {
	if opts.GithubToken != "" {
		return opts.GithubToken, nil
	}

	token, err := stash.LoadSecret(secretService, "token")
	if err != nil {
		if errors.Is(err, secret.ErrNotFound) || errors.Is(err, secret.ErrKeyringUnsupported) {
			return "", errors.New("no GitHub token: run 'revup auth login' or set GITHUB_TOKEN")
		}
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}
