package gitstate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepo wraps a real on-disk repository built for a test.
type testRepo struct {
	t    *testing.T
	path string
	repo *git.Repository
}

func initTestRepo(t *testing.T) *testRepo {
	t.Helper()
	path := t.TempDir()
	repo, err := git.PlainInit(path, false)
	require.NoError(t, err)
	return &testRepo{t: t, path: path, repo: repo}
}

func (r *testRepo) commit(file, content, msg string) string {
	r.t.Helper()
	require.NoError(r.t, os.WriteFile(filepath.Join(r.path, file), []byte(content), 0o644))
	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)
	_, err = wt.Add(file)
	require.NoError(r.t, err)
	sha, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(r.t, err)
	return sha.String()
}

func (r *testRepo) tag(name, sha string, annotated bool) {
	r.t.Helper()
	var opts *git.CreateTagOptions
	if annotated {
		opts = &git.CreateTagOptions{
			Message: "release " + name,
			Tagger:  &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
		}
	}
	_, err := r.repo.CreateTag(name, plumbing.NewHash(sha), opts)
	require.NoError(r.t, err)
}

func TestGoGitStatPath(t *testing.T) {
	g := NewGoGit()
	base := t.TempDir()

	kind, err := g.StatPath(filepath.Join(base, "missing"))
	require.NoError(t, err)
	assert.Equal(t, PathMissing, kind)

	file := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	kind, err = g.StatPath(file)
	require.NoError(t, err)
	assert.Equal(t, PathFile, kind)

	empty := filepath.Join(base, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	kind, err = g.StatPath(empty)
	require.NoError(t, err)
	assert.Equal(t, PathEmptyDir, kind)

	kind, err = g.StatPath(base)
	require.NoError(t, err)
	assert.Equal(t, PathDir, kind)
}

func TestGoGitRepoDetection(t *testing.T) {
	g := NewGoGit()

	plain := initTestRepo(t)
	assert.True(t, g.IsRepo(plain.path))
	assert.False(t, g.IsBareRepo(plain.path))
	assert.False(t, g.IsWorktree(plain.path))

	barePath := t.TempDir()
	_, err := git.PlainInit(barePath, true)
	require.NoError(t, err)
	assert.True(t, g.IsRepo(barePath))
	assert.True(t, g.IsBareRepo(barePath))

	assert.False(t, g.IsRepo(t.TempDir()))
}

func TestGoGitHeadAndBranch(t *testing.T) {
	g := NewGoGit()
	r := initTestRepo(t)

	head, err := g.HeadRevision(r.path)
	require.NoError(t, err)
	assert.Empty(t, head, "empty repository has no HEAD commit")

	branch, err := g.CurrentBranch(r.path)
	require.NoError(t, err)
	assert.Empty(t, branch, "unborn branch does not count")

	sha := r.commit("a.txt", "one", "first commit")

	head, err = g.HeadRevision(r.path)
	require.NoError(t, err)
	assert.Equal(t, sha, head)

	branch, err = g.CurrentBranch(r.path)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestGoGitRevParse(t *testing.T) {
	g := NewGoGit()
	r := initTestRepo(t)
	sha := r.commit("a.txt", "one", "first commit")
	r.tag("v1.0", sha, true)
	r.tag("light", sha, false)

	got, err := g.RevParse(r.path, sha)
	require.NoError(t, err)
	assert.Equal(t, sha, got)

	got, err = g.RevParse(r.path, "master")
	require.NoError(t, err)
	assert.Equal(t, sha, got)

	got, err = g.RevParse(r.path, "v1.0")
	require.NoError(t, err)
	assert.Equal(t, sha, got, "annotated tag peels to its commit")

	got, err = g.RevParse(r.path, "light")
	require.NoError(t, err)
	assert.Equal(t, sha, got)

	got, err = g.RevParse(r.path, sha[:8])
	require.NoError(t, err)
	assert.Equal(t, sha, got, "abbreviated hashes widen to the full hash")

	_, err = g.RevParse(r.path, "no-such-rev")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRevisionNotFound)
}

func TestGoGitIsAncestor(t *testing.T) {
	g := NewGoGit()
	r := initTestRepo(t)
	first := r.commit("a.txt", "one", "first")
	second := r.commit("a.txt", "two", "second")

	ok, err := g.IsAncestor(r.path, first, second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsAncestor(r.path, second, first)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGoGitListRemoteRefs(t *testing.T) {
	g := NewGoGit()
	src := initTestRepo(t)
	sha := src.commit("a.txt", "one", "first")
	src.tag("v1.0", sha, true)

	refs, err := g.ListRemoteRefs(context.Background(), src.path, AuthSpec{})
	require.NoError(t, err)

	assert.Equal(t, sha, refs["refs/heads/master"])
	assert.Equal(t, sha, refs["HEAD"], "HEAD resolves through its symref target")
	assert.Contains(t, refs, "refs/tags/v1.0")
	assert.Equal(t, sha, refs["refs/tags/v1.0^{}"], "annotated tags advertise a peeled entry")
}

func TestGoGitCloneAndFetch(t *testing.T) {
	g := NewGoGit()
	src := initTestRepo(t)
	first := src.commit("a.txt", "one", "first")

	dst := filepath.Join(t.TempDir(), "clone")
	err := g.Clone(context.Background(), src.path, dst, CloneOpts{RemoteName: "origin"})
	require.NoError(t, err)

	head, err := g.HeadRevision(dst)
	require.NoError(t, err)
	assert.Equal(t, first, head)

	// Advance the source and fetch: the summary reports the moved branch
	// and the new tag.
	second := src.commit("a.txt", "two", "second")
	src.tag("v1.0", second, false)

	sum, err := g.Fetch(context.Background(), dst, "origin", false, []string{
		"refs/heads/*:refs/remotes/origin/*",
		"+refs/tags/*:refs/tags/*",
	}, AuthSpec{})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.0"}, sum.NewTags)
	require.Contains(t, sum.UpdatedBranches, "master")
	assert.Equal(t, Change{Old: first, New: second}, sum.UpdatedBranches["master"])

	// A second fetch changes nothing.
	sum, err = g.Fetch(context.Background(), dst, "origin", false, nil, AuthSpec{})
	require.NoError(t, err)
	assert.True(t, sum.Empty())
}

func TestGoGitCloneEmptyRemote(t *testing.T) {
	g := NewGoGit()
	src := initTestRepo(t) // no commits

	dst := filepath.Join(t.TempDir(), "clone")
	err := g.Clone(context.Background(), src.path, dst, CloneOpts{RemoteName: "origin"})
	require.NoError(t, err)

	assert.True(t, g.IsRepo(dst))
	remotes, err := g.Remotes(dst)
	require.NoError(t, err)
	assert.Equal(t, src.path, remotes["origin"])
}

func TestGoGitCheckoutResetMerge(t *testing.T) {
	g := NewGoGit()
	r := initTestRepo(t)
	first := r.commit("a.txt", "one", "first")
	second := r.commit("a.txt", "two", "second")

	// New branch at an older commit.
	require.NoError(t, g.Checkout(r.path, first, "pinned", false))
	head, err := g.HeadRevision(r.path)
	require.NoError(t, err)
	assert.Equal(t, first, head)
	branch, err := g.CurrentBranch(r.path)
	require.NoError(t, err)
	assert.Equal(t, "pinned", branch)

	// Fast-forward the branch back to the newer commit.
	require.NoError(t, g.MergeFF(r.path, second))
	head, err = g.HeadRevision(r.path)
	require.NoError(t, err)
	assert.Equal(t, second, head)

	// Hard reset back.
	require.NoError(t, g.HardReset(r.path, first))
	head, err = g.HeadRevision(r.path)
	require.NoError(t, err)
	assert.Equal(t, first, head)

	// Existing branch by name.
	require.NoError(t, g.Checkout(r.path, "master", "", false))
	branch, err = g.CurrentBranch(r.path)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestGoGitUpstream(t *testing.T) {
	g := NewGoGit()
	r := initTestRepo(t)
	r.commit("a.txt", "one", "first")

	up, err := g.Upstream(r.path, "master")
	require.NoError(t, err)
	assert.Empty(t, up)

	require.NoError(t, g.SetUpstream(r.path, "master", "origin", "main"))
	up, err = g.Upstream(r.path, "master")
	require.NoError(t, err)
	assert.Equal(t, "origin/main", up)

	require.NoError(t, g.UnsetUpstream(r.path, "master"))
	up, err = g.Upstream(r.path, "master")
	require.NoError(t, err)
	assert.Empty(t, up)
}

func TestGoGitSetRemoteURL(t *testing.T) {
	g := NewGoGit()
	r := initTestRepo(t)

	require.NoError(t, g.SetRemoteURL(r.path, "origin", "https://example.com/a.git"))
	remotes, err := g.Remotes(r.path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.git", remotes["origin"])

	require.NoError(t, g.SetRemoteURL(r.path, "origin", "https://example.com/b.git"))
	remotes, err = g.Remotes(r.path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b.git", remotes["origin"])
}

func TestGoGitHasLocalChanges(t *testing.T) {
	g := NewGoGit()
	r := initTestRepo(t)
	r.commit("a.txt", "one", "first")

	dirty, err := g.HasLocalChanges(r.path)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(r.path, "a.txt"), []byte("changed"), 0o644))
	dirty, err = g.HasLocalChanges(r.path)
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestGoGitClearPath(t *testing.T) {
	g := NewGoGit()

	t.Run("directory contents removed", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub", "deeper"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte("x"), 0o644))

		require.NoError(t, g.ClearPath(dir))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "directory itself survives, contents do not")
	})

	t.Run("symlink removed", func(t *testing.T) {
		base := t.TempDir()
		link := filepath.Join(base, "link")
		require.NoError(t, os.Symlink(base, link))

		require.NoError(t, g.ClearPath(link))
		_, err := os.Lstat(link)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("missing path is a no-op", func(t *testing.T) {
		assert.NoError(t, g.ClearPath(filepath.Join(t.TempDir(), "missing")))
	})
}

func TestGoGitLog(t *testing.T) {
	g := NewGoGit()
	r := initTestRepo(t)
	first := r.commit("a.txt", "one", "feat: first")
	second := r.commit("a.txt", "two", "fix: second")
	third := r.commit("a.txt", "three", "feat: third")

	commits, err := g.Log(r.path, first, third)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, third, commits[0].SHA, "newest first")
	assert.Equal(t, second, commits[1].SHA)
	assert.Contains(t, commits[0].Message, "feat: third")
}
