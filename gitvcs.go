package gitstate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/stateforge/gitstate/internal/auth"
)

// GoGit is the production VCS implementation, backed by go-git. All
// operations work on plain on-disk repositories; linked worktrees are
// supported through the common-dir indirection.
type GoGit struct{}

// NewGoGit returns the go-git backed VCS.
func NewGoGit() *GoGit {
	return &GoGit{}
}

func (g *GoGit) open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, WrapErrorf(err, "failed to open repository at %s", path)
	}
	return repo, nil
}

func authMethod(url string, a AuthSpec) (transport.AuthMethod, error) {
	return auth.ForSpec(a.Identity, a.Username, a.Password).Method(url)
}

// StatPath classifies what currently exists at path.
func (g *GoGit) StatPath(path string) (PathKind, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PathMissing, nil
		}
		return PathMissing, WrapError(err, "failed to stat path")
	}
	if !fi.IsDir() {
		return PathFile, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return PathDir, WrapError(err, "failed to read directory")
	}
	if len(entries) == 0 {
		return PathEmptyDir, nil
	}
	return PathDir, nil
}

// IsRepo reports whether path holds a git repository: a .git directory, or
// the HEAD-plus-objects layout of a bare repository.
func (g *GoGit) IsRepo(path string) bool {
	if fi, err := os.Stat(filepath.Join(path, ".git")); err == nil && fi.IsDir() {
		return true
	}
	if _, err := os.Stat(filepath.Join(path, "HEAD")); err != nil {
		return false
	}
	fi, err := os.Stat(filepath.Join(path, "objects"))
	return err == nil && fi.IsDir()
}

// IsWorktree reports whether path is a linked worktree: a .git file
// pointing at the parent repository's worktree administrative area.
func (g *GoGit) IsWorktree(path string) bool {
	fi, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && fi.Mode().IsRegular()
}

// IsBareRepo reports whether path holds a bare repository.
func (g *GoGit) IsBareRepo(path string) bool {
	if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
		return false
	}
	return g.IsRepo(path)
}

// ListRemoteRefs snapshots the refs advertised by the remote at url,
// including peeled annotated-tag entries and a resolved HEAD.
func (g *GoGit) ListRemoteRefs(ctx context.Context, url string, a AuthSpec) (RefMap, error) {
	method, err := authMethod(url, a)
	if err != nil {
		return nil, WrapError(err, "failed to build credentials")
	}

	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: DefaultRemoteName,
		URLs: []string{url},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{
		Auth:          method,
		PeelingOption: git.AppendPeeled,
	})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return RefMap{}, nil
		}
		return nil, WrapError(ErrRemoteQuery, stripErr(err))
	}

	out := RefMap{}
	var symbolic []*plumbing.Reference
	for _, ref := range refs {
		if ref.Type() == plumbing.SymbolicReference {
			symbolic = append(symbolic, ref)
			continue
		}
		out[ref.Name().String()] = ref.Hash().String()
	}
	// HEAD (and any other symref) resolves through its advertised target.
	for _, ref := range symbolic {
		if sha, ok := out[ref.Target().String()]; ok {
			out[ref.Name().String()] = sha
		}
	}
	return out, nil
}

// HeadRevision returns the SHA of HEAD, or "" for a repository with no
// commits.
func (g *GoGit) HeadRevision(path string) (string, error) {
	repo, err := g.open(path)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", WrapError(err, "failed to resolve HEAD")
	}
	return head.Hash().String(), nil
}

// CurrentBranch returns the checked-out branch, or "" when HEAD is detached
// or the branch is unborn.
func (g *GoGit) CurrentBranch(path string) (string, error) {
	repo, err := g.open(path)
	if err != nil {
		return "", err
	}
	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil || head.Type() != plumbing.SymbolicReference {
		return "", nil
	}
	name := head.Target()
	if !name.IsBranch() {
		return "", nil
	}
	if _, err := repo.Reference(name, true); err != nil {
		return "", nil
	}
	return name.Short(), nil
}

// LocalBranches lists local branch names.
func (g *GoGit) LocalBranches(path string) ([]string, error) {
	repo, err := g.open(path)
	if err != nil {
		return nil, err
	}
	iter, err := repo.Branches()
	if err != nil {
		return nil, WrapError(err, "failed to list branches")
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to list branches")
	}
	sort.Strings(names)
	return names, nil
}

// LocalTags lists local tag names.
func (g *GoGit) LocalTags(path string) ([]string, error) {
	repo, err := g.open(path)
	if err != nil {
		return nil, err
	}
	iter, err := repo.Tags()
	if err != nil {
		return nil, WrapError(err, "failed to list tags")
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to list tags")
	}
	sort.Strings(names)
	return names, nil
}

// Remotes maps remote names to their first fetch URL.
func (g *GoGit) Remotes(path string) (map[string]string, error) {
	repo, err := g.open(path)
	if err != nil {
		return nil, err
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return nil, WrapError(err, "failed to list remotes")
	}
	out := make(map[string]string, len(remotes))
	for _, r := range remotes {
		cfg := r.Config()
		if len(cfg.URLs) > 0 {
			out[cfg.Name] = cfg.URLs[0]
		}
	}
	return out, nil
}

// RevParse resolves rev to a commit SHA, peeling annotated tags.
func (g *GoGit) RevParse(path, rev string) (string, error) {
	repo, err := g.open(path)
	if err != nil {
		return "", err
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", WrapErrorf(ErrRevisionNotFound, "%s", rev)
	}
	sha := *hash
	if tag, err := repo.TagObject(sha); err == nil {
		commit, err := tag.Commit()
		if err != nil {
			return "", WrapErrorf(err, "failed to peel tag %s", rev)
		}
		sha = commit.Hash
	}
	return sha.String(), nil
}

// IsAncestor reports whether base is an ancestor of target.
func (g *GoGit) IsAncestor(path, base, target string) (bool, error) {
	repo, err := g.open(path)
	if err != nil {
		return false, err
	}
	baseCommit, err := repo.CommitObject(plumbing.NewHash(base))
	if err != nil {
		return false, WrapErrorf(err, "unknown commit %s", shortSHA(base))
	}
	targetCommit, err := repo.CommitObject(plumbing.NewHash(target))
	if err != nil {
		return false, WrapErrorf(err, "unknown commit %s", shortSHA(target))
	}
	ok, err := baseCommit.IsAncestor(targetCommit)
	if err != nil {
		return false, WrapError(err, "ancestry walk failed")
	}
	return ok, nil
}

// Upstream returns branch's configured tracking branch as
// "<remote>/<branch>", or "" when none is configured.
func (g *GoGit) Upstream(path, branch string) (string, error) {
	repo, err := g.open(path)
	if err != nil {
		return "", err
	}
	cfg, err := repo.Config()
	if err != nil {
		return "", WrapError(err, "failed to read repository config")
	}
	b, ok := cfg.Branches[branch]
	if !ok || b.Remote == "" || b.Merge == "" {
		return "", nil
	}
	return b.Remote + "/" + b.Merge.Short(), nil
}

// HasLocalChanges reports whether the worktree has uncommitted changes.
func (g *GoGit) HasLocalChanges(path string) (bool, error) {
	repo, err := g.open(path)
	if err != nil {
		return false, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, WrapError(err, "failed to open worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return false, WrapError(err, "failed to compute worktree status")
	}
	return !status.IsClean(), nil
}

// Clone clones url into path. Cloning an empty remote degrades to init plus
// remote setup, matching what a command-line clone produces.
func (g *GoGit) Clone(ctx context.Context, url, path string, opts CloneOpts) error {
	method, err := authMethod(url, opts.Auth)
	if err != nil {
		return WrapError(err, "failed to build credentials")
	}
	cloneOpts := &git.CloneOptions{
		URL:        url,
		RemoteName: opts.RemoteName,
		Auth:       method,
		Mirror:     opts.Mirror,
		Tags:       git.AllTags,
	}
	if opts.Depth > 0 {
		cloneOpts.Depth = opts.Depth
	}
	_, err = git.PlainCloneContext(ctx, path, opts.Bare || opts.Mirror, cloneOpts)
	if err == nil {
		return nil
	}
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		if err := g.Init(path, opts.Bare || opts.Mirror); err != nil {
			return err
		}
		return g.SetRemoteURL(path, opts.RemoteName, url)
	}
	return WrapError(err, "clone failed")
}

// refSnapshot captures the remote-tracking branches and tags a fetch can
// move, so before/after diffing can summarize what it did.
func refSnapshot(repo *git.Repository, remote string) (map[string]string, error) {
	iter, err := repo.References()
	if err != nil {
		return nil, WrapError(err, "failed to list references")
	}
	remotePrefix := "refs/remotes/" + remote + "/"
	out := map[string]string{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name().String()
		if strings.HasPrefix(name, remotePrefix) || strings.HasPrefix(name, "refs/tags/") {
			out[name] = ref.Hash().String()
		}
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to list references")
	}
	return out, nil
}

// Fetch updates path from the named remote and summarizes the ref movements
// by diffing the remote-tracking refs and tags around the operation.
func (g *GoGit) Fetch(ctx context.Context, path, remote string, force bool, refspecs []string, a AuthSpec) (FetchSummary, error) {
	var sum FetchSummary

	repo, err := g.open(path)
	if err != nil {
		return sum, err
	}
	rem, err := repo.Remote(remote)
	if err != nil {
		return sum, WrapErrorf(err, "remote %q not found", remote)
	}
	var url string
	if urls := rem.Config().URLs; len(urls) > 0 {
		url = urls[0]
	}
	method, err := authMethod(url, a)
	if err != nil {
		return sum, WrapError(err, "failed to build credentials")
	}

	before, err := refSnapshot(repo, remote)
	if err != nil {
		return sum, err
	}

	fetchOpts := &git.FetchOptions{
		RemoteName: remote,
		Auth:       method,
		Force:      force,
		Tags:       git.NoTags,
	}
	for _, spec := range refspecs {
		if force && !strings.HasPrefix(spec, "+") {
			spec = "+" + spec
		}
		fetchOpts.RefSpecs = append(fetchOpts.RefSpecs, config.RefSpec(spec))
	}
	if err := repo.FetchContext(ctx, fetchOpts); err != nil &&
		!errors.Is(err, git.NoErrAlreadyUpToDate) {
		return sum, WrapError(err, "fetch failed")
	}

	after, err := refSnapshot(repo, remote)
	if err != nil {
		return sum, err
	}
	return diffRefs(before, after, remote), nil
}

func diffRefs(before, after map[string]string, remote string) FetchSummary {
	sum := FetchSummary{UpdatedBranches: map[string]Change{}}
	remotePrefix := "refs/remotes/" + remote + "/"
	for name, sha := range after {
		old, existed := before[name]
		if existed && old == sha {
			continue
		}
		switch {
		case strings.HasPrefix(name, remotePrefix):
			short := strings.TrimPrefix(name, remotePrefix)
			if !existed {
				sum.NewBranches = append(sum.NewBranches, short)
			} else {
				sum.UpdatedBranches[short] = Change{Old: old, New: sha}
			}
		case strings.HasPrefix(name, "refs/tags/"):
			short := strings.TrimPrefix(name, "refs/tags/")
			if !existed {
				sum.NewTags = append(sum.NewTags, short)
			} else {
				sum.UpdatedTags = append(sum.UpdatedTags, short)
			}
		}
	}
	sort.Strings(sum.NewBranches)
	sort.Strings(sum.NewTags)
	sort.Strings(sum.UpdatedTags)
	if len(sum.UpdatedBranches) == 0 {
		sum.UpdatedBranches = nil
	}
	return sum
}

// Checkout switches the worktree to rev, optionally creating newBranch at
// rev first. rev is a full SHA or a local branch name.
func (g *GoGit) Checkout(path, rev, newBranch string, force bool) error {
	repo, err := g.open(path)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return WrapError(err, "failed to open worktree")
	}
	opts := &git.CheckoutOptions{Force: force}
	switch {
	case newBranch != "":
		opts.Branch = plumbing.NewBranchReferenceName(newBranch)
		opts.Create = true
		opts.Hash = plumbing.NewHash(rev)
	case isHex(rev) && len(rev) == 40:
		opts.Hash = plumbing.NewHash(rev)
	default:
		opts.Branch = plumbing.NewBranchReferenceName(rev)
	}
	if err := wt.Checkout(opts); err != nil {
		return WrapErrorf(err, "checkout of %s failed", rev)
	}
	return nil
}

// HardReset moves HEAD (and its branch, if any) to sha and resets the
// worktree to match.
func (g *GoGit) HardReset(path, sha string) error {
	repo, err := g.open(path)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return WrapError(err, "failed to open worktree")
	}
	err = wt.Reset(&git.ResetOptions{
		Mode:   git.HardReset,
		Commit: plumbing.NewHash(sha),
	})
	if err != nil {
		return WrapErrorf(err, "hard reset to %s failed", shortSHA(sha))
	}
	return nil
}

// MergeFF fast-forwards the current branch to sha and syncs the worktree.
func (g *GoGit) MergeFF(path, sha string) error {
	repo, err := g.open(path)
	if err != nil {
		return err
	}
	hash := plumbing.NewHash(sha)
	ref := plumbing.NewHashReference(plumbing.ReferenceName("MERGE_FF_TARGET"), hash)
	err = repo.Merge(*ref, git.MergeOptions{Strategy: git.FastForwardMerge})
	if err != nil {
		if errors.Is(err, git.ErrFastForwardMergeNotPossible) {
			return WrapErrorf(ErrNotFastForward, "cannot fast-forward to %s", shortSHA(sha))
		}
		return WrapError(err, "merge failed")
	}
	// Merge moves the ref; the worktree still needs to follow it.
	wt, err := repo.Worktree()
	if err != nil {
		return WrapError(err, "failed to open worktree")
	}
	err = wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: hash})
	if err != nil {
		return WrapError(err, "failed to update worktree after merge")
	}
	return nil
}

// SetUpstream configures branch to track remoteBranch on remote.
func (g *GoGit) SetUpstream(path, branch, remote, remoteBranch string) error {
	repo, err := g.open(path)
	if err != nil {
		return err
	}
	cfg, err := repo.Config()
	if err != nil {
		return WrapError(err, "failed to read repository config")
	}
	b, ok := cfg.Branches[branch]
	if !ok {
		b = &config.Branch{Name: branch}
		cfg.Branches[branch] = b
	}
	b.Remote = remote
	b.Merge = plumbing.NewBranchReferenceName(remoteBranch)
	if err := repo.SetConfig(cfg); err != nil {
		return WrapErrorf(err, "failed to set upstream for %q", branch)
	}
	return nil
}

// UnsetUpstream removes branch's tracking configuration.
func (g *GoGit) UnsetUpstream(path, branch string) error {
	repo, err := g.open(path)
	if err != nil {
		return err
	}
	cfg, err := repo.Config()
	if err != nil {
		return WrapError(err, "failed to read repository config")
	}
	b, ok := cfg.Branches[branch]
	if !ok {
		return nil
	}
	b.Remote = ""
	b.Merge = ""
	if err := repo.SetConfig(cfg); err != nil {
		return WrapErrorf(err, "failed to unset upstream for %q", branch)
	}
	return nil
}

// SetRemoteURL points the named remote at url, creating it if missing.
func (g *GoGit) SetRemoteURL(path, remote, url string) error {
	repo, err := g.open(path)
	if err != nil {
		return err
	}
	cfg, err := repo.Config()
	if err != nil {
		return WrapError(err, "failed to read repository config")
	}
	rc, ok := cfg.Remotes[remote]
	if !ok {
		rc = &config.RemoteConfig{
			Name:  remote,
			Fetch: []config.RefSpec{config.RefSpec("+refs/heads/*:refs/remotes/" + remote + "/*")},
		}
		cfg.Remotes[remote] = rc
	}
	rc.URLs = []string{url}
	if err := repo.SetConfig(cfg); err != nil {
		return WrapErrorf(err, "failed to set URL for remote %q", remote)
	}
	return nil
}

// SubmoduleUpdate initializes and recursively updates submodules.
func (g *GoGit) SubmoduleUpdate(ctx context.Context, path string, a AuthSpec) error {
	repo, err := g.open(path)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return WrapError(err, "failed to open worktree")
	}
	subs, err := wt.Submodules()
	if err != nil {
		return WrapError(err, "failed to list submodules")
	}
	for _, sub := range subs {
		method, err := authMethod(sub.Config().URL, a)
		if err != nil {
			return WrapError(err, "failed to build credentials")
		}
		err = sub.UpdateContext(ctx, &git.SubmoduleUpdateOptions{
			Init:              true,
			Auth:              method,
			RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
		})
		if err != nil {
			return WrapErrorf(err, "failed to update submodule %q", sub.Config().Name)
		}
	}
	return nil
}

// Init creates a new repository at path.
func (g *GoGit) Init(path string, bare bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return WrapError(err, "failed to create directory")
	}
	if _, err := git.PlainInit(path, bare); err != nil {
		return WrapErrorf(err, "failed to initialize repository at %s", path)
	}
	return nil
}

// ClearPath removes a symlink, or a directory's contents, so a clone can
// take the path's place.
func (g *GoGit) ClearPath(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return WrapError(err, "failed to stat path")
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(path); err != nil {
			return WrapError(err, "failed to remove symlink")
		}
		return nil
	}
	root := osfs.New(path)
	entries, err := root.ReadDir(".")
	if err != nil {
		return WrapError(err, "failed to read directory")
	}
	for _, entry := range entries {
		if err := util.RemoveAll(root, entry.Name()); err != nil {
			return WrapErrorf(err, "failed to remove %s", entry.Name())
		}
	}
	return nil
}

// Log returns the commits reachable from newSHA but not from oldSHA, newest
// first.
func (g *GoGit) Log(path, oldSHA, newSHA string) ([]CommitInfo, error) {
	repo, err := g.open(path)
	if err != nil {
		return nil, err
	}
	iter, err := repo.Log(&git.LogOptions{From: plumbing.NewHash(newSHA)})
	if err != nil {
		return nil, WrapError(err, "failed to walk history")
	}

	// Everything reachable from the old tip is excluded, so the walk
	// reports exactly what the update brought in.
	excluded := map[plumbing.Hash]bool{}
	if oldSHA != "" {
		oldIter, err := repo.Log(&git.LogOptions{From: plumbing.NewHash(oldSHA)})
		if err == nil {
			_ = oldIter.ForEach(func(c *object.Commit) error {
				excluded[c.Hash] = true
				return nil
			})
		}
	}

	var out []CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if excluded[c.Hash] {
			return nil
		}
		out = append(out, CommitInfo{SHA: c.Hash.String(), Message: c.Message})
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to walk history")
	}
	return out, nil
}
