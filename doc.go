// Package gitstate converges local git repositories to a declared desired
// state and reports exactly what changed.
//
// The central entry point is Engine.Latest: given a DesiredState (remote URL,
// revision, target path, tracking and submodule policy) it decides whether to
// clone, fetch, checkout, hard-reset, fast-forward merge, or do nothing, and
// returns a structured Result describing the changes it made. Invocations are
// idempotent: once a repository matches its desired state, re-running Latest
// reports no changes.
//
// All repository operations go through the VCS collaborator interface. The
// default implementation is backed by go-git; tests may inject a fake to
// exercise the decision logic without touching disk or network.
//
// A dry-run Engine predicts the same change-set the real run would produce
// without mutating anything.
package gitstate
