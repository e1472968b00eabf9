package git

import (
	"context"
	"fmt"
	"strings"
)

// ConfigGet reports the value of a Git configuration option.
// Missing options return an empty string with no error.
func (r *Repository) ConfigGet(ctx context.Context, key string) (string, error) {
	out, err := r.gitCmd(ctx, "config", "--get", key).OutputChomp()
	if err != nil {
		// git config exits non-zero for unset options.
		return "", nil
	}
	return out, nil
}

// UserIdentity reports the configured committer identity.
// The email is lowercased; both name and email must be set.
func (r *Repository) UserIdentity(ctx context.Context) (name, email string, _ error) {
	name, err := r.ConfigGet(ctx, "user.name")
	if err != nil {
		return "", "", err
	}
	email, err = r.ConfigGet(ctx, "user.email")
	if err != nil {
		return "", "", err
	}
	if name == "" || email == "" {
		return "", "", fmt.Errorf("git user identity is not configured; " +
			"set user.name and user.email with 'git config --global'")
	}
	return name, strings.ToLower(email), nil
}

// RemoteURL reports the URL of the given remote.
func (r *Repository) RemoteURL(ctx context.Context, remote string) (string, error) {
	out, err := r.gitCmd(ctx, "remote", "get-url", remote).OutputChomp()
	if err != nil {
		return "", fmt.Errorf("remote get-url: %w", err)
	}
	return out, nil
}
