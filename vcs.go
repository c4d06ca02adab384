package gitstate

import "context"

// RefMap is a snapshot of a remote's advertised references, mapping
// fully-qualified ref names (e.g. "refs/heads/main", "refs/tags/v1^{}",
// "HEAD") to SHA1s. It is captured once per run and never mutated.
type RefMap map[string]string

// AuthSpec carries the credential material for network operations: SSH
// identity files and/or HTTP Basic Auth. The zero value means anonymous.
type AuthSpec struct {
	// Identity lists absolute paths of SSH private key files to try.
	Identity []string

	// Username and Password are HTTP Basic Auth credentials for https
	// remotes.
	Username string
	Password string
}

// CloneOpts configures a clone operation.
type CloneOpts struct {
	// Bare clones without a working tree.
	Bare bool

	// Mirror clones as a mirror of the remote. Implies Bare.
	Mirror bool

	// RemoteName is the name given to the origin remote.
	RemoteName string

	// Depth, when > 0, creates a shallow clone with that history depth.
	Depth int

	// Auth is the credential material for the transport.
	Auth AuthSpec
}

// FetchSummary describes what a fetch changed, keyed the way the change-set
// reports it.
type FetchSummary struct {
	NewBranches     []string
	NewTags         []string
	UpdatedBranches map[string]Change
	UpdatedTags     []string
}

// Empty reports whether the fetch changed nothing.
func (s FetchSummary) Empty() bool {
	return len(s.NewBranches) == 0 && len(s.NewTags) == 0 &&
		len(s.UpdatedBranches) == 0 && len(s.UpdatedTags) == 0
}

// asChange renders the summary in change-set form.
func (s FetchSummary) asChange() map[string]interface{} {
	out := map[string]interface{}{}
	if len(s.NewBranches) > 0 {
		out["new branches"] = s.NewBranches
	}
	if len(s.NewTags) > 0 {
		out["new tags"] = s.NewTags
	}
	if len(s.UpdatedBranches) > 0 {
		out["updated branches"] = s.UpdatedBranches
	}
	if len(s.UpdatedTags) > 0 {
		out["updated tags"] = s.UpdatedTags
	}
	return out
}

// PathKind classifies what exists at a target path before convergence.
type PathKind int

const (
	// PathMissing means nothing exists at the path.
	PathMissing PathKind = iota

	// PathFile means the path is a regular file (or symlink to one).
	PathFile

	// PathEmptyDir means the path is a directory with no entries.
	PathEmptyDir

	// PathDir means the path is a non-empty directory.
	PathDir
)

// ConfigScope selects which git configuration a config operation targets:
// the per-user global file, or a repository's local file.
type ConfigScope struct {
	// Global selects the user-level configuration.
	Global bool

	// Repo is the repository path for local configuration. Ignored when
	// Global is set.
	Repo string
}

// CommitInfo is the minimal commit description used for incoming-change
// summaries.
type CommitInfo struct {
	SHA     string
	Message string
}

// VCS is the collaborator through which every version-control operation is
// performed. The planner consumes only this interface, so the decision core
// is testable against a fake with no disk or network involved. The
// production implementation is GoGit.
//
// Read methods never mutate anything. A dry-run engine invokes only read
// methods.
type VCS interface {
	// StatPath classifies what currently exists at path.
	StatPath(path string) (PathKind, error)

	// IsRepo reports whether path holds a git repository (a .git directory,
	// or a HEAD file for bare layouts).
	IsRepo(path string) bool

	// IsWorktree reports whether path is a linked worktree.
	IsWorktree(path string) bool

	// IsBareRepo reports whether path holds a bare repository (HEAD and
	// objects at the top level, no working tree).
	IsBareRepo(path string) bool

	// ListRemoteRefs snapshots the refs advertised by the remote at url,
	// including peeled annotated-tag entries (suffix "^{}") and HEAD.
	ListRemoteRefs(ctx context.Context, url string, auth AuthSpec) (RefMap, error)

	// HeadRevision returns the SHA of HEAD, or "" for a repository with no
	// commits.
	HeadRevision(path string) (string, error)

	// CurrentBranch returns the checked-out branch name, or "" when HEAD is
	// detached or unborn in an empty repository.
	CurrentBranch(path string) (string, error)

	// LocalBranches lists local branch names.
	LocalBranches(path string) ([]string, error)

	// LocalTags lists local tag names.
	LocalTags(path string) ([]string, error)

	// Remotes maps remote names to their fetch URLs.
	Remotes(path string) (map[string]string, error)

	// RevParse resolves rev to a commit SHA, peeling annotated tags. It
	// fails when the revision is unknown to the local repository.
	RevParse(path, rev string) (string, error)

	// IsAncestor reports whether base is an ancestor of target.
	IsAncestor(path, base, target string) (bool, error)

	// Upstream returns the configured tracking branch ("<remote>/<branch>")
	// for the local branch, or "" when none is configured.
	Upstream(path, branch string) (string, error)

	// HasLocalChanges reports whether the worktree has uncommitted changes.
	HasLocalChanges(path string) (bool, error)

	// Clone clones url into path.
	Clone(ctx context.Context, url, path string, opts CloneOpts) error

	// Fetch updates path from the named remote using the given refspecs
	// (empty means the remote's configured default) and returns a summary
	// of ref movements. force permits non-fast-forward ref updates.
	Fetch(ctx context.Context, path, remote string, force bool, refspecs []string, auth AuthSpec) (FetchSummary, error)

	// Checkout switches the worktree to rev. When newBranch is non-empty a
	// branch by that name is created at rev and checked out. force discards
	// uncommitted changes.
	Checkout(path, rev, newBranch string, force bool) error

	// HardReset moves HEAD (and its branch, if any) to sha and resets the
	// worktree.
	HardReset(path, sha string) error

	// MergeFF fast-forwards the current branch to sha. It fails if the
	// merge would not be a fast-forward.
	MergeFF(path, sha string) error

	// SetUpstream configures branch to track remoteBranch on remote.
	SetUpstream(path, branch, remote, remoteBranch string) error

	// UnsetUpstream removes branch's tracking configuration.
	UnsetUpstream(path, branch string) error

	// SetRemoteURL points the named remote at url, creating the remote if
	// it does not exist.
	SetRemoteURL(path, remote, url string) error

	// SubmoduleUpdate initializes and recursively updates submodules.
	SubmoduleUpdate(ctx context.Context, path string, auth AuthSpec) error

	// Init creates a new repository at path.
	Init(path string, bare bool) error

	// ClearPath removes the path (symlink) or the path's contents
	// (directory) so a clone can take its place.
	ClearPath(path string) error

	// Log returns the commits reachable from newSHA but not oldSHA, newest
	// first.
	Log(path, oldSHA, newSHA string) ([]CommitInfo, error)

	// ConfigGetAll returns all values of key in scope, in file order, or
	// nil when the key is absent.
	ConfigGetAll(scope ConfigScope, key string) ([]string, error)

	// ConfigGetRegexp returns all keys matching keyRe (anchored to the full
	// key name) and, per key, the values matching valueRe (all values when
	// valueRe is empty).
	ConfigGetRegexp(scope ConfigScope, keyRe, valueRe string) (map[string][]string, error)

	// ConfigSet replaces key's value(s) in scope with values, preserving
	// their order.
	ConfigSet(scope ConfigScope, key string, values []string) error

	// ConfigUnset removes values of keys matching keyRe whose values match
	// valueRe (all values when empty). When all is false and more than one
	// value of a key matches, it fails with ErrAmbiguousUnset without
	// mutating.
	ConfigUnset(scope ConfigScope, keyRe, valueRe string, all bool) error
}
