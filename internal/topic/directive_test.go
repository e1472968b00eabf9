package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseDirectives(t *testing.T) {
	tests := []struct {
		name string
		give string

		want         Directives
		wantResidual string
		wantUnknown  []string
	}{
		{
			name:         "NoDirectives",
			give:         "Fix the frobnicator\n\nIt was broken.",
			want:         Directives{},
			wantResidual: "Fix the frobnicator\n\nIt was broken.",
		},
		{
			name: "Topic",
			give: "Fix the frobnicator\n\nTopic: frob",
			want: Directives{
				DirectiveTopic: {"frob"},
			},
			wantResidual: "Fix the frobnicator",
		},
		{
			name: "CaseInsensitive",
			give: "subject\n\ntOpIc: frob\nRELATIVE: base-work",
			want: Directives{
				DirectiveTopic:    {"frob"},
				DirectiveRelative: {"base-work"},
			},
			wantResidual: "subject",
		},
		{
			name: "PluralForms",
			give: "subject\n\nReviewers: alice, bob\nAssignees: carol\nLabels: bug\nBranches: main, rel1.1",
			want: Directives{
				DirectiveReviewer: {"alice", "bob"},
				DirectiveAssignee: {"carol"},
				DirectiveLabel:    {"bug"},
				DirectiveBranch:   {"main", "rel1.1"},
			},
			wantResidual: "subject",
		},
		{
			name: "UngrammaticalPlural",
			give: "subject\n\nBranchs: main",
			want: Directives{
				DirectiveBranch: {"main"},
			},
			wantResidual: "subject",
		},
		{
			name: "MultiValuedUnion",
			give: "subject\n\nReviewers: alice\nReviewer: bob, alice",
			want: Directives{
				DirectiveReviewer: {"alice", "bob"},
			},
			wantResidual: "subject",
		},
		{
			name: "ValueWhitespaceTrimmed",
			give: "subject\n\nLabels:  bug ,  urgent ",
			want: Directives{
				DirectiveLabel: {"bug", "urgent"},
			},
			wantResidual: "subject",
		},
		{
			name: "UnknownRetained",
			give: "subject\n\nTopic: frob\nSigned-off-by: alice <a@example.com>",
			want: Directives{
				DirectiveTopic: {"frob"},
			},
			wantResidual: "subject\n\nSigned-off-by: alice <a@example.com>",
			wantUnknown:  []string{"Signed-off-by"},
		},
		{
			name: "SingularTopicsNotFolded",
			give: "subject\n\nTopics: frob",
			want: Directives{},
			// "Topics" is not a multi-valued directive,
			// so the plural form is not recognized.
			wantResidual: "subject\n\nTopics: frob",
			wantUnknown:  []string{"Topics"},
		},
		{
			name: "HyphenatedNames",
			give: "subject\n\nRelative-Branch: feature-x\nBranch-Format: user\nUpdate-Pr-Body: false",
			want: Directives{
				DirectiveRelativeBranch: {"feature-x"},
				DirectiveBranchFormat:   {"user"},
				DirectiveUpdatePRBody:   {"false"},
			},
			wantResidual: "subject",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseDirectives(tt.give)
			require.NoError(t, err)
			assert.True(t, res.Directives.Equal(tt.want),
				"directives mismatch:\nwant: %v\n got: %v", tt.want, res.Directives)
			assert.Equal(t, tt.wantResidual, res.Residual)
			assert.Equal(t, tt.wantUnknown, res.Unknown)
		})
	}
}

func TestParseDirectivesErrors(t *testing.T) {
	tests := []struct {
		name string
		give string
	}{
		{name: "EmptyValue", give: "subject\n\nTopic:"},
		{name: "EmptyValueWhitespace", give: "subject\n\nTopic:   "},
		{name: "EmptyValueCommas", give: "subject\n\nLabels: , ,"},
		{name: "DuplicateSingleValued", give: "subject\n\nTopic: a\nTopic: a"},
		{name: "MultipleValuesSingleValued", give: "subject\n\nTopic: a, b"},
		{name: "DuplicateRelative", give: "subject\n\nRelative: a\nRelative: b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDirectives(tt.give)
			assert.Error(t, err)
		})
	}
}

func TestFormatDirectivesRoundTrip(t *testing.T) {
	value := rapid.StringMatching(`[a-z][a-z0-9./-]{0,12}`)

	rapid.Check(t, func(t *rapid.T) {
		ds := make(Directives)
		for _, name := range directiveOrder {
			if !rapid.Bool().Draw(t, "has "+string(name)) {
				continue
			}

			n := 1
			if multiValued[name] {
				n = rapid.IntRange(1, 4).Draw(t, "n "+string(name))
			}

			seen := make(map[string]bool)
			for range n {
				v := value.Draw(t, "value "+string(name))
				if seen[v] {
					continue
				}
				seen[v] = true
				ds[name] = append(ds[name], v)
			}
		}
		if len(ds) == 0 {
			t.Skip()
		}

		res, err := ParseDirectives(FormatDirectives(ds))
		require.NoError(t, err)
		require.True(t, ds.Equal(res.Directives),
			"round trip mismatch:\nwant: %v\n got: %v", ds, res.Directives)
		require.Empty(t, res.Residual)
	})
}
