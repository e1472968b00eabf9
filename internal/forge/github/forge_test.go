package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want RepoID
	}{
		{name: "SSH", url: "git@github.com:acme/widgets.git", want: RepoID{"acme", "widgets"}},
		{name: "SSHNoSuffix", url: "git@github.com:acme/widgets", want: RepoID{"acme", "widgets"}},
		{name: "HTTPS", url: "https://github.com/acme/widgets.git", want: RepoID{"acme", "widgets"}},
		{name: "HTTPSNoSuffix", url: "https://github.com/acme/widgets", want: RepoID{"acme", "widgets"}},
		{name: "HTTPSTrailingSlash", url: "https://github.com/acme/widgets/", want: RepoID{"acme", "widgets"}},
		{name: "DottedName", url: "git@github.com:acme/widgets.io.git", want: RepoID{"acme", "widgets.io"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRemoteURL("", tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRemoteURLEnterprise(t *testing.T) {
	got, err := ParseRemoteURL("https://github.example.com", "git@github.example.com:acme/widgets.git")
	require.NoError(t, err)
	assert.Equal(t, RepoID{"acme", "widgets"}, got)

	// A github.com remote does not match an enterprise host.
	_, err = ParseRemoteURL("https://github.example.com", "git@github.com:acme/widgets.git")
	assert.Error(t, err)
}

func TestParseRemoteURLRejectsOtherHosts(t *testing.T) {
	_, err := ParseRemoteURL("", "git@gitlab.com:acme/widgets.git")
	assert.Error(t, err)
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "PR_abc", idString("PR_abc"))
	assert.Equal(t, "", idString(nil))
	assert.Equal(t, "42", idString(42))
}
