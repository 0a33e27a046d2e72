package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextFormat_Parse(t *testing.T) {
	tests := []struct {
		name        string
		out         string
		wantBranch  string
		wantChanges int
	}{
		{
			name:        "two modified",
			out:         "On branch main\n\tmodified: a\n\tmodified: b\n",
			wantBranch:  "main",
			wantChanges: 2,
		},
		{
			name:        "clean",
			out:         "On branch develop\nYour branch is up to date with 'origin/develop'.\n\nnothing to commit, working tree clean\n",
			wantBranch:  "develop",
			wantChanges: 0,
		},
		{
			name:        "word characters only",
			out:         "On branch feature/login-form\n\tnew file:   x.go\n",
			wantBranch:  "feature",
			wantChanges: 1,
		},
		{
			name:        "every tab counts",
			out:         "On branch main\nUntracked files:\n\ta\tb\n",
			wantBranch:  "main",
			wantChanges: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			branch, changes, err := TextFormat{}.Parse(tt.out)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBranch, branch)
			assert.Equal(t, tt.wantChanges, changes)
		})
	}
}

func TestTextFormat_BranchNotFound(t *testing.T) {
	_, _, err := TextFormat{}.Parse("HEAD detached at 1a2b3c4\n\tmodified: a\n")
	assert.ErrorIs(t, err, ErrBranchNotFound)

	_, _, err = TextFormat{}.Parse("")
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestPorcelainFormat_Parse(t *testing.T) {
	tests := []struct {
		name        string
		out         string
		wantBranch  string
		wantChanges int
	}{
		{"tracking", "## main...origin/main [ahead 1]\n M a.go\n?? b.go\n", "main", 2},
		{"no upstream", "## feature/login-form\n", "feature/login-form", 0},
		{"no commits", "## No commits yet on trunk\n?? README.md\n", "trunk", 1},
		{"crlf", "## main\r\n M a.go\r\n", "main", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			branch, changes, err := PorcelainFormat{}.Parse(tt.out)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBranch, branch)
			assert.Equal(t, tt.wantChanges, changes)
		})
	}
}

func TestPorcelainFormat_Detached(t *testing.T) {
	_, _, err := PorcelainFormat{}.Parse("## HEAD (no branch)\n M a.go\n")
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, []string{"status"}, f.Args())

	f, err = ParseFormat("porcelain")
	require.NoError(t, err)
	assert.IsType(t, PorcelainFormat{}, f)

	_, err = ParseFormat("json")
	assert.Error(t, err)
}
