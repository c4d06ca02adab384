package gitstate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// fakeVCS is an in-memory VCS used by the planner tests. It models just
// enough repository state for the decision procedure: HEAD, branches, tags,
// remotes, tracking config, known objects, and ancestry pairs. Every
// mutating call is recorded so dry-run tests can assert nothing moved.
type fakeVCS struct {
	pathKind PathKind
	repo     bool
	worktree bool
	bare     bool

	remoteRefs RefMap
	listErr    error

	head      string
	branch    string
	branches  map[string]string
	tags      map[string]string
	refs      map[string]string // remote-tracking and other symbolic refs
	remotes   map[string]string
	upstreams map[string]string
	objects   map[string]bool
	ancestors map[string]bool // "base..target" pairs that fast-forward
	dirty     bool

	fetchSummary FetchSummary
	fetchErr     error
	onFetch      func(f *fakeVCS)
	onClone      func(f *fakeVCS)

	logs []CommitInfo
	cfg  map[string][]string

	mutations []string
}

func newFakeVCS() *fakeVCS {
	return &fakeVCS{
		pathKind:  PathMissing,
		branches:  map[string]string{},
		tags:      map[string]string{},
		refs:      map[string]string{},
		remotes:   map[string]string{},
		upstreams: map[string]string{},
		objects:   map[string]bool{},
		ancestors: map[string]bool{},
		cfg:       map[string][]string{},
	}
}

func (f *fakeVCS) record(format string, args ...interface{}) {
	f.mutations = append(f.mutations, fmt.Sprintf(format, args...))
}

func (f *fakeVCS) StatPath(string) (PathKind, error) { return f.pathKind, nil }
func (f *fakeVCS) IsRepo(string) bool                { return f.repo }
func (f *fakeVCS) IsWorktree(string) bool            { return f.worktree }
func (f *fakeVCS) IsBareRepo(string) bool            { return f.bare }

func (f *fakeVCS) ListRemoteRefs(context.Context, string, AuthSpec) (RefMap, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.remoteRefs, nil
}

func (f *fakeVCS) HeadRevision(string) (string, error)  { return f.head, nil }
func (f *fakeVCS) CurrentBranch(string) (string, error) { return f.branch, nil }

func (f *fakeVCS) LocalBranches(string) ([]string, error) {
	return sortedKeys(f.branches), nil
}

func (f *fakeVCS) LocalTags(string) ([]string, error) {
	return sortedKeys(f.tags), nil
}

func (f *fakeVCS) Remotes(string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.remotes {
		out[k] = v
	}
	return out, nil
}

func (f *fakeVCS) RevParse(_, rev string) (string, error) {
	if sha, ok := f.refs[rev]; ok {
		return sha, nil
	}
	if sha, ok := f.branches[rev]; ok {
		return sha, nil
	}
	if sha, ok := f.tags[rev]; ok {
		return sha, nil
	}
	if f.objects[rev] {
		return rev, nil
	}
	// git resolves unambiguous hash prefixes
	if isHex(rev) {
		for sha := range f.objects {
			if strings.HasPrefix(sha, rev) {
				return sha, nil
			}
		}
	}
	return "", WrapErrorf(ErrRevisionNotFound, "%s", rev)
}

func (f *fakeVCS) IsAncestor(_, base, target string) (bool, error) {
	if base == target {
		return true, nil
	}
	return f.ancestors[base+".."+target], nil
}

func (f *fakeVCS) Upstream(_, branch string) (string, error) {
	return f.upstreams[branch], nil
}

func (f *fakeVCS) HasLocalChanges(string) (bool, error) { return f.dirty, nil }

func (f *fakeVCS) Clone(_ context.Context, url, path string, opts CloneOpts) error {
	f.record("clone %s", url)
	f.repo = true
	f.bare = opts.Bare || opts.Mirror
	f.pathKind = PathDir
	if f.onClone != nil {
		f.onClone(f)
	}
	return nil
}

func (f *fakeVCS) Fetch(_ context.Context, _, remote string, _ bool, _ []string, _ AuthSpec) (FetchSummary, error) {
	f.record("fetch %s", remote)
	if f.fetchErr != nil {
		return FetchSummary{}, f.fetchErr
	}
	if f.onFetch != nil {
		f.onFetch(f)
	}
	return f.fetchSummary, nil
}

func (f *fakeVCS) Checkout(_, rev, newBranch string, _ bool) error {
	f.record("checkout %s %s", rev, newBranch)
	if newBranch != "" {
		f.branches[newBranch] = rev
		f.branch = newBranch
		f.head = rev
		return nil
	}
	if sha, ok := f.branches[rev]; ok {
		f.branch = rev
		f.head = sha
		return nil
	}
	f.branch = ""
	f.head = rev
	return nil
}

func (f *fakeVCS) HardReset(_, sha string) error {
	f.record("reset %s", sha)
	f.head = sha
	if f.branch != "" {
		f.branches[f.branch] = sha
	}
	return nil
}

func (f *fakeVCS) MergeFF(_, sha string) error {
	f.record("merge %s", sha)
	f.head = sha
	if f.branch != "" {
		f.branches[f.branch] = sha
	}
	return nil
}

func (f *fakeVCS) SetUpstream(_, branch, remote, remoteBranch string) error {
	f.record("set-upstream %s", branch)
	f.upstreams[branch] = remote + "/" + remoteBranch
	return nil
}

func (f *fakeVCS) UnsetUpstream(_, branch string) error {
	f.record("unset-upstream %s", branch)
	delete(f.upstreams, branch)
	return nil
}

func (f *fakeVCS) SetRemoteURL(_, remote, url string) error {
	f.record("set-remote %s", remote)
	f.remotes[remote] = url
	return nil
}

func (f *fakeVCS) SubmoduleUpdate(context.Context, string, AuthSpec) error {
	f.record("submodule-update")
	return nil
}

func (f *fakeVCS) Init(_ string, bare bool) error {
	f.record("init")
	f.repo = true
	f.bare = bare
	f.pathKind = PathDir
	return nil
}

func (f *fakeVCS) ClearPath(string) error {
	f.record("clear")
	f.pathKind = PathEmptyDir
	f.repo = false
	f.worktree = false
	f.bare = false
	return nil
}

func (f *fakeVCS) Log(string, string, string) ([]CommitInfo, error) {
	return f.logs, nil
}

func (f *fakeVCS) ConfigGetAll(_ ConfigScope, key string) ([]string, error) {
	return f.cfg[key], nil
}

func (f *fakeVCS) ConfigGetRegexp(_ ConfigScope, keyRe, valueRe string) (map[string][]string, error) {
	keyPat, err := regexp.Compile("^(?:" + keyRe + ")$")
	if err != nil {
		return nil, err
	}
	var valuePat *regexp.Regexp
	if valueRe != "" {
		if valuePat, err = regexp.Compile(valueRe); err != nil {
			return nil, err
		}
	}
	out := map[string][]string{}
	for key, values := range f.cfg {
		if !keyPat.MatchString(key) {
			continue
		}
		for _, v := range values {
			if valuePat == nil || valuePat.MatchString(v) {
				out[key] = append(out[key], v)
			}
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (f *fakeVCS) ConfigSet(_ ConfigScope, key string, values []string) error {
	f.record("config-set %s", key)
	f.cfg[key] = append([]string(nil), values...)
	return nil
}

func (f *fakeVCS) ConfigUnset(scope ConfigScope, keyRe, valueRe string, all bool) error {
	f.record("config-unset %s", keyRe)
	matches, err := f.ConfigGetRegexp(scope, keyRe, valueRe)
	if err != nil {
		return err
	}
	for key, removed := range matches {
		if !all && len(removed) > 1 {
			return WrapErrorf(ErrAmbiguousUnset, "key %q", key)
		}
	}
	for key, removed := range matches {
		var keep []string
		for _, v := range f.cfg[key] {
			if !containsString(removed, v) {
				keep = append(keep, v)
			}
		}
		if len(keep) == 0 {
			delete(f.cfg, key)
		} else {
			f.cfg[key] = keep
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// mutated reports whether any recorded mutation matches the prefix, or any
// mutation at all when prefix is empty.
func (f *fakeVCS) mutated(prefix string) bool {
	for _, m := range f.mutations {
		if prefix == "" || strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}
