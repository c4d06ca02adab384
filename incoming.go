package gitstate

import (
	"strings"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"
)

// summarizeCommits buckets commits by their conventional-commit type
// ("feat", "fix", ..., with "!" appended for breaking changes). Commits
// whose message does not conform land under "other". Each entry is the
// short SHA followed by the description.
func summarizeCommits(commits []CommitInfo) map[string][]string {
	if len(commits) == 0 {
		return nil
	}

	machine := parser.NewMachine(
		conventionalcommits.WithTypes(conventionalcommits.TypesConventional),
		conventionalcommits.WithBestEffort(),
	)

	out := map[string][]string{}
	for _, c := range commits {
		bucket := "other"
		line := firstLine(c.Message)

		msg, err := machine.Parse([]byte(c.Message))
		if err == nil && msg != nil && msg.Ok() {
			if cc, ok := msg.(*conventionalcommits.ConventionalCommit); ok {
				bucket = cc.Type
				if cc.IsBreakingChange() {
					bucket += "!"
				}
				line = cc.Description
			}
		}
		out[bucket] = append(out[bucket], shortSHA(c.SHA)+" "+line)
	}
	return out
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}
	return strings.TrimSpace(message)
}
