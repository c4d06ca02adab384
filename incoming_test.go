package gitstate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeCommits(t *testing.T) {
	sha := func(c byte) string { return strings.Repeat(string(c), 40) }

	commits := []CommitInfo{
		{SHA: sha('1'), Message: "feat: add retry logic\n\nlonger body here"},
		{SHA: sha('2'), Message: "fix(fetch): handle empty remotes"},
		{SHA: sha('3'), Message: "feat!: drop the v1 wire format"},
		{SHA: sha('4'), Message: "Merge branch 'main' into develop"},
		{SHA: sha('5'), Message: "fix: tolerate missing upstream"},
	}

	got := summarizeCommits(commits)
	require.NotNil(t, got)

	assert.Equal(t, []string{sha('1')[:7] + " add retry logic"}, got["feat"])
	assert.Len(t, got["fix"], 2)
	assert.Equal(t, []string{sha('3')[:7] + " drop the v1 wire format"}, got["feat!"])
	assert.Equal(t, []string{sha('4')[:7] + " Merge branch 'main' into develop"}, got["other"])
}

func TestSummarizeCommitsEmpty(t *testing.T) {
	assert.Nil(t, summarizeCommits(nil))
}
