package gitstate

import (
	"fmt"
	"strings"
)

// Status reports the outcome of a convergence run.
type Status int

const (
	// StatusSuccess indicates the run completed and the repository matches
	// the desired state (including the "nothing to do" case).
	StatusSuccess Status = iota

	// StatusFailed indicates the run could not reach the desired state.
	// Result.Comment explains why, and Result.Changes contains anything
	// already applied before the failure.
	StatusFailed

	// StatusPending indicates a dry-run predicted changes without applying
	// them.
	StatusPending
)

// MarshalYAML renders the status by name.
func (s Status) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// String returns a human-readable string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Change records an old/new value pair for a single changed item.
type Change struct {
	Old interface{} `yaml:"old"`
	New interface{} `yaml:"new"`
}

// Changes maps change keys (e.g. "revision", "remotes/origin", "upstream")
// to the change that happened. Values are a Change, a bool flag (e.g.
// "forced update"), a string (e.g. "new"), or a nested map (e.g. "fetch").
type Changes map[string]interface{}

// Result is the structured outcome of a convergence operation. It is always
// returned, never an unhandled error: failures are folded into Status and
// Comment.
type Result struct {
	// Target is the path (or config key) the operation converged.
	Target string `yaml:"target"`

	// Status reports success, failure, or a pending dry-run prediction.
	Status Status `yaml:"status"`

	// Comment is the human-readable summary of what happened or what the
	// dry-run predicted.
	Comment string `yaml:"comment"`

	// Changes describes every change made (or predicted).
	Changes Changes `yaml:"changes,omitempty"`
}

// newResult returns a successful empty result for the given target.
func newResult(target string) *Result {
	return &Result{
		Target:  target,
		Status:  StatusSuccess,
		Changes: Changes{},
	}
}

// fail marks the result failed. Changes already applied are reported in the
// comment so partial progress is never silently lost.
func (r *Result) fail(msg string, comments []string) *Result {
	r.Status = StatusFailed
	if len(comments) > 0 {
		msg += "\n\nChanges already made: " + formatComments(comments)
	}
	r.Comment = msg
	return r
}

// failf is fail with formatting.
func (r *Result) failf(comments []string, format string, args ...interface{}) *Result {
	return r.fail(fmt.Sprintf(format, args...), comments)
}

// pending marks the result as a dry-run prediction.
func (r *Result) pending(comment string) *Result {
	r.Status = StatusPending
	r.Comment = comment
	return r
}

// uptodate marks the result as "nothing to do". Any comments indicate
// changes were made even though the repo was considered current, which is
// reported so logic problems surface.
func (r *Result) uptodate(target string, comments []string) *Result {
	r.Comment = fmt.Sprintf("Repository %s is up-to-date", target)
	if len(comments) > 0 {
		r.Comment += "\n\nChanges made: " + formatComments(comments)
	}
	return r
}

// formatComments joins accumulated comments into a single string.
func formatComments(comments []string) string {
	out := strings.Join(comments, ". ")
	if len(comments) > 1 {
		out += "."
	}
	return out
}

// shortSHA abbreviates a SHA1 for messages. Non-SHA refs pass through.
func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// revsEqual compares two revisions. When the desired revision is a raw SHA1
// it may be abbreviated, so the comparison is prefix-based with rev2 as the
// (possibly) short rev.
func revsEqual(rev1, rev2 string, kind RevKind) bool {
	if rev1 == "" || rev2 == "" {
		return rev1 == rev2
	}
	if kind == RevSHA || kind == RevHead {
		return strings.HasPrefix(rev1, rev2) || strings.HasPrefix(rev2, rev1)
	}
	return rev1 == rev2
}
