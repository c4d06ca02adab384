package gitstate

import (
	"fmt"
	"path/filepath"
)

const (
	// DefaultRev is the revision converged to when none is specified.
	DefaultRev = "HEAD"

	// DefaultRemoteName is the remote name used when none is specified.
	DefaultRemoteName = "origin"
)

// DesiredState declares the target state of a single repository. It is the
// complete input to Engine.Latest; nothing is read from ambient state.
type DesiredState struct {
	// Remote is the URL of the remote repository, as passed to clone.
	Remote string `yaml:"remote"`

	// Rev is the remote branch, tag, or revision ID to converge to.
	// Defaults to "HEAD". When Rev names a branch the tracking branch is
	// set to "<remote>/<rev>"; for tags and SHA1s the tracking branch is
	// unset; for "HEAD" tracking is left alone.
	Rev string `yaml:"rev"`

	// Target is the absolute path of the local working copy.
	Target string `yaml:"target"`

	// Branch is the local branch to check the revision out into. When
	// empty, whatever branch is currently checked out is left in place.
	Branch string `yaml:"branch,omitempty"`

	// RemoteName is the git remote to operate on. Defaults to "origin".
	RemoteName string `yaml:"remote_name,omitempty"`

	// FetchTags fetches all tags when fetching, even those not reachable
	// from any branch. NewDesiredState enables this by default.
	FetchTags bool `yaml:"fetch_tags"`

	// Depth limits history when a clone is needed. Zero means full clone.
	// Only compatible with branch or HEAD revisions.
	Depth int `yaml:"depth,omitempty"`

	// Bare clones the repository without a working tree. Incompatible with
	// any Rev other than "HEAD".
	Bare bool `yaml:"bare,omitempty"`

	// Mirror clones the repository as a mirror. Implies Bare.
	Mirror bool `yaml:"mirror,omitempty"`

	// Submodules updates submodules (init, recursive) after clone or
	// revision change.
	Submodules bool `yaml:"submodules,omitempty"`

	// ForceClone clears a non-repository target directory and clones into
	// it instead of failing.
	ForceClone bool `yaml:"force_clone,omitempty"`

	// ForceCheckout discards uncommitted local changes when a branch
	// checkout is required instead of failing.
	ForceCheckout bool `yaml:"force_checkout,omitempty"`

	// ForceFetch allows non-fast-forward fetches.
	ForceFetch bool `yaml:"force_fetch,omitempty"`

	// ForceReset hard-resets to the remote revision when the update is not
	// a fast-forward instead of failing.
	ForceReset bool `yaml:"force_reset,omitempty"`

	// Identity lists absolute paths of SSH private keys to try for
	// authenticated remotes.
	Identity []string `yaml:"identity,omitempty"`

	// HTTPSUser and HTTPSPass supply HTTP Basic Auth credentials for
	// https remotes only.
	HTTPSUser string `yaml:"https_user,omitempty"`
	HTTPSPass string `yaml:"https_pass,omitempty"`

	// OnlyIf, when set, is a shell command that must exit zero for the
	// convergence to run; otherwise the run is skipped successfully.
	OnlyIf string `yaml:"onlyif,omitempty"`

	// Unless, when set, is a shell command that must exit non-zero for the
	// convergence to run; otherwise the run is skipped successfully.
	Unless string `yaml:"unless,omitempty"`
}

// NewDesiredState returns a DesiredState for the given remote URL and target
// path with the defaults applied (Rev "HEAD", remote "origin", tags fetched).
func NewDesiredState(remote, target string) *DesiredState {
	return &DesiredState{
		Remote:     remote,
		Rev:        DefaultRev,
		Target:     target,
		RemoteName: DefaultRemoteName,
		FetchTags:  true,
	}
}

// applyDefaults fills unset fields that have non-zero defaults. FetchTags is
// deliberately left alone: callers constructing the struct literally own
// that choice, NewDesiredState enables it.
func (d *DesiredState) applyDefaults() {
	if d.Rev == "" {
		d.Rev = DefaultRev
	}
	if d.RemoteName == "" {
		d.RemoteName = DefaultRemoteName
	}
	if d.Mirror {
		d.Bare = true
	}
}

// Validate checks the declared state for contradictions before anything is
// touched. It must be called after applyDefaults.
func (d *DesiredState) Validate() error {
	if d.Remote == "" {
		return WrapError(ErrInvalidState, "remote URL is required")
	}
	if d.Target == "" {
		return WrapError(ErrInvalidState, "target path is required")
	}
	if !filepath.IsAbs(d.Target) {
		return WrapErrorf(ErrInvalidState, "target %q is not an absolute path", d.Target)
	}
	if d.Bare && d.Rev != DefaultRev {
		return WrapError(ErrInvalidState, "rev is not compatible with the mirror and bare arguments")
	}
	for _, ident := range d.Identity {
		if !filepath.IsAbs(ident) {
			return WrapErrorf(ErrInvalidState, "identity %q is not an absolute path", ident)
		}
	}
	return nil
}

// refspecs returns the fetch refspecs implied by the tag policy: all heads
// into the remote-tracking namespace plus a forced tag refspec when tags are
// wanted, or none (the remote's configured default) when they are not.
func (d *DesiredState) refspecs() []string {
	if !d.FetchTags {
		return nil
	}
	return []string{
		fmt.Sprintf("refs/heads/*:refs/remotes/%s/*", d.RemoteName),
		"+refs/tags/*:refs/tags/*",
	}
}
