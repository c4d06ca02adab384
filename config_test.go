package gitstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoScope() ConfigScope { return ConfigScope{Repo: "/srv/repo"} }

func TestConfigSet(t *testing.T) {
	t.Run("sets a missing key", func(t *testing.T) {
		f := newFakeVCS()

		res := New(Options{VCS: f}).ConfigSet(ConfigKeyState{
			Key: "user.name", Values: []string{"Deploy Bot"}, Scope: repoScope(),
		})

		require.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, Change{Old: nil, New: []string{"Deploy Bot"}}, res.Changes["user.name"])
		assert.Contains(t, res.Comment, `was set to "Deploy Bot"`)
		assert.Equal(t, []string{"Deploy Bot"}, f.cfg["user.name"])
	})

	t.Run("already set is a no-op", func(t *testing.T) {
		f := newFakeVCS()
		f.cfg["user.name"] = []string{"Deploy Bot"}

		res := New(Options{VCS: f}).ConfigSet(ConfigKeyState{
			Key: "user.name", Values: []string{"Deploy Bot"}, Scope: repoScope(),
		})

		require.Equal(t, StatusSuccess, res.Status)
		assert.Empty(t, res.Changes)
		assert.Contains(t, res.Comment, "already set")
		assert.False(t, f.mutated(""))
	})

	t.Run("replaces a multivar in order", func(t *testing.T) {
		f := newFakeVCS()
		f.cfg["remote.origin.fetch"] = []string{"+refs/heads/*:refs/remotes/origin/*"}

		want := []string{
			"+refs/heads/*:refs/remotes/origin/*",
			"+refs/tags/*:refs/tags/*",
		}
		res := New(Options{VCS: f}).ConfigSet(ConfigKeyState{
			Key: "remote.origin.fetch", Values: want, Scope: repoScope(),
		})

		require.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, want, f.cfg["remote.origin.fetch"])
		change := res.Changes["remote.origin.fetch"].(Change)
		assert.Equal(t, want, change.New)
	})

	t.Run("dry-run predicts without writing", func(t *testing.T) {
		f := newFakeVCS()

		res := New(Options{VCS: f, DryRun: true}).ConfigSet(ConfigKeyState{
			Key: "user.name", Values: []string{"Deploy Bot"}, Scope: repoScope(),
		})

		require.Equal(t, StatusPending, res.Status)
		assert.Contains(t, res.Comment, "would be set")
		assert.Equal(t, Change{Old: nil, New: []string{"Deploy Bot"}}, res.Changes["user.name"])
		assert.False(t, f.mutated(""))
	})

	t.Run("rejects empty input", func(t *testing.T) {
		e := New(Options{VCS: newFakeVCS()})
		assert.Equal(t, StatusFailed, e.ConfigSet(ConfigKeyState{Values: []string{"x"}}).Status)
		assert.Equal(t, StatusFailed, e.ConfigSet(ConfigKeyState{Key: "user.name"}).Status)
	})
}

func TestConfigUnset(t *testing.T) {
	t.Run("unsets matching keys", func(t *testing.T) {
		f := newFakeVCS()
		f.cfg["user.name"] = []string{"Deploy Bot"}
		f.cfg["user.email"] = []string{"deploy@example.com"}

		res := New(Options{VCS: f}).ConfigUnset(ConfigUnsetState{
			Key: `user\..*`, Scope: repoScope(),
		})

		require.Equal(t, StatusSuccess, res.Status)
		assert.Contains(t, res.Comment, "user.email, user.name")
		assert.Equal(t, Change{Old: []string{"Deploy Bot"}, New: nil}, res.Changes["user.name"])
		assert.Empty(t, f.cfg)
	})

	t.Run("no matching keys is a no-op", func(t *testing.T) {
		f := newFakeVCS()

		res := New(Options{VCS: f}).ConfigUnset(ConfigUnsetState{
			Key: `user\.name`, Scope: repoScope(),
		})

		require.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, "No matching keys are set", res.Comment)
		assert.Empty(t, res.Changes)
	})

	t.Run("ambiguous multivar refuses without all", func(t *testing.T) {
		f := newFakeVCS()
		f.cfg["remote.origin.fetch"] = []string{"specA", "specB"}

		res := New(Options{VCS: f}).ConfigUnset(ConfigUnsetState{
			Key: `remote\.origin\.fetch`, Scope: repoScope(),
		})

		require.Equal(t, StatusFailed, res.Status)
		assert.Contains(t, res.Comment, "Set all to true")
		assert.Equal(t, []string{"specA", "specB"}, f.cfg["remote.origin.fetch"],
			"a refused unset must not mutate")
	})

	t.Run("all unsets every matching value", func(t *testing.T) {
		f := newFakeVCS()
		f.cfg["remote.origin.fetch"] = []string{"specA", "specB"}

		res := New(Options{VCS: f}).ConfigUnset(ConfigUnsetState{
			Key: `remote\.origin\.fetch`, All: true, Scope: repoScope(),
		})

		require.Equal(t, StatusSuccess, res.Status)
		assert.NotContains(t, f.cfg, "remote.origin.fetch")
	})

	t.Run("value regex narrows the match", func(t *testing.T) {
		f := newFakeVCS()
		f.cfg["remote.origin.fetch"] = []string{"specA", "specB"}

		res := New(Options{VCS: f}).ConfigUnset(ConfigUnsetState{
			Key: `remote\.origin\.fetch`, ValueRegex: "specB", Scope: repoScope(),
		})

		require.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, []string{"specA"}, f.cfg["remote.origin.fetch"])
	})

	t.Run("dry-run predicts without mutating", func(t *testing.T) {
		f := newFakeVCS()
		f.cfg["user.name"] = []string{"Deploy Bot"}

		res := New(Options{VCS: f, DryRun: true}).ConfigUnset(ConfigUnsetState{
			Key: `user\.name`, Scope: repoScope(),
		})

		require.Equal(t, StatusPending, res.Status)
		assert.Contains(t, res.Comment, "would be unset")
		assert.False(t, f.mutated(""))
		assert.Equal(t, []string{"Deploy Bot"}, f.cfg["user.name"])
	})
}
