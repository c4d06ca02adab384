package gitstate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// PresentState declares that a repository, with no particular content,
// exists at Target.
type PresentState struct {
	// Target is the absolute path the repository must exist at.
	Target string `yaml:"target"`

	// Bare initializes without a working tree. NewPresentState enables
	// this by default.
	Bare bool `yaml:"bare"`

	// Force clears a non-empty, non-repository target directory and
	// initializes into it instead of failing.
	Force bool `yaml:"force,omitempty"`
}

// NewPresentState returns a PresentState for target with the defaults
// applied (bare repository).
func NewPresentState(target string) *PresentState {
	return &PresentState{Target: target, Bare: true}
}

// Present converges "a repository exists at Target". An existing repository
// of the requested layout is left untouched; anything else in the way needs
// Force.
func (e *Engine) Present(ctx context.Context, desired PresentState) *Result {
	ret := newResult(desired.Target)

	if desired.Target == "" {
		return ret.fail("target path is required", nil)
	}

	if e.isPresent(&desired) {
		ret.Comment = fmt.Sprintf("Repository already exists at %s", desired.Target)
		return ret
	}

	kind, err := e.vcs.StatPath(desired.Target)
	if err != nil {
		return ret.failf(nil, "cannot stat target %s: %s", desired.Target, stripErr(err))
	}
	if kind == PathFile {
		return ret.failf(nil, "target %q exists and is a regular file, cannot proceed", desired.Target)
	}

	layout := "git"
	if desired.Bare {
		layout = "bare git"
	}

	if kind == PathDir {
		if !desired.Force {
			return ret.failf(nil, "target %q exists, is non-empty, and is not a "+
				"git repository. Set force to true to remove this directory's "+
				"contents and proceed with initializing a repository", desired.Target)
		}
		if e.dryRun {
			ret.Changes["forced init"] = true
			ret.Changes["new"] = desired.Target
			return ret.pending(fmt.Sprintf("Target directory %s exists. Since "+
				"force is set, the contents of %s would be removed, and a %s "+
				"repository would be initialized in its place.",
				desired.Target, desired.Target, layout))
		}
		e.log.Debug("clearing target for forced init", zap.String("target", desired.Target))
		if err := e.vcs.ClearPath(desired.Target); err != nil {
			return ret.failf(nil, "unable to remove %s: %s", desired.Target, stripErr(err))
		}
		ret.Changes["forced init"] = true
	}

	if e.dryRun {
		ret.Changes["new"] = desired.Target
		return ret.pending(fmt.Sprintf("New %s repository would be initialized at %s",
			layout, desired.Target))
	}

	if err := e.vcs.Init(desired.Target, desired.Bare); err != nil {
		return ret.fail(stripErr(err), nil)
	}
	e.log.Info("repository initialized",
		zap.String("target", desired.Target), zap.Bool("bare", desired.Bare))
	ret.Changes["new"] = desired.Target
	ret.Comment = fmt.Sprintf("Initialized %s repository at %s", layout, desired.Target)
	return ret
}

// isPresent reports whether a repository of the requested layout already
// exists: a bare layout satisfies Bare, a .git directory or linked worktree
// satisfies non-bare. A repository of the wrong layout does not satisfy and
// falls through to the force handling.
func (e *Engine) isPresent(d *PresentState) bool {
	if d.Bare {
		return e.vcs.IsBareRepo(d.Target)
	}
	if e.vcs.IsWorktree(d.Target) {
		return true
	}
	return e.vcs.IsRepo(d.Target) && !e.vcs.IsBareRepo(d.Target)
}
