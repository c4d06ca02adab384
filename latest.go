package gitstate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// run carries the per-invocation state of one Latest call: the normalized
// desired state, the result being built, and the comment accumulators. The
// planner appends to it instead of mutating ad-hoc maps so the dry-run and
// real-run paths share one construction site per decision.
type run struct {
	e        *Engine
	d        *DesiredState
	ret      *Result
	resolved *ResolvedRevision

	// comments collects applied-change descriptions (real run).
	comments []string

	// actions collects predicted-change descriptions (dry-run).
	actions []string

	// Facts the apply phase refines. ff is re-derived after a fetch, which
	// is the only mutation that can change it.
	ff         FastForward
	baseRev    string
	baseBranch string
}

// step is one planned convergence action. would and predict describe the
// step for a dry-run; apply performs it and records what actually happened.
// Both renderings are built in the same place, so a dry-run and a real run
// cannot disagree about what the plan is.
type step struct {
	would   string
	predict Changes
	apply   func(ctx context.Context) error
}

// execute walks the plan. In dry-run mode it only merges predictions; in a
// real run it applies each step, aborting on the first error so the caller
// can report the changes already made.
func (r *run) execute(ctx context.Context, steps []step) error {
	for _, s := range steps {
		if r.e.dryRun {
			for k, v := range s.predict {
				r.ret.Changes[k] = v
			}
			if s.would != "" {
				r.actions = append(r.actions, s.would)
			}
			continue
		}
		if s.apply == nil {
			continue
		}
		if err := s.apply(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Latest converges the repository at d.Target to the desired state and
// returns a structured Result. It never returns an unhandled error: all
// failures are folded into the Result.
func (e *Engine) Latest(ctx context.Context, desired DesiredState) *Result {
	d := desired
	d.applyDefaults()
	ret := newResult(d.Target)

	if err := d.Validate(); err != nil {
		return ret.fail(err.Error(), nil)
	}
	if _, err := addBasicAuth(d.Remote, d.HTTPSUser, d.HTTPSPass); err != nil {
		return ret.fail(err.Error(), nil)
	}

	pathKind, err := e.vcs.StatPath(d.Target)
	if err != nil {
		return ret.failf(nil, "cannot stat target %s: %s", d.Target, stripErr(err))
	}
	if pathKind == PathFile {
		return ret.failf(nil, "target %q exists and is a regular file, cannot proceed", d.Target)
	}

	if skip, comment := runPreconditions(ctx, d.OnlyIf, d.Unless); skip {
		ret.Comment = comment
		return ret
	}

	e.log.Info("checking remote revision",
		zap.String("remote", redactBasicAuth(d.Remote)),
		zap.String("rev", d.Rev))

	refs, err := e.vcs.ListRemoteRefs(ctx, d.fetchURL(), d.auth())
	if err != nil {
		return ret.failf(nil, "failed to check remote refs: %s", stripErr(err))
	}

	resolved, err := resolveRemoteRev(refs, d.Rev, d.RemoteName)
	if err != nil {
		return ret.fail(err.Error(), nil)
	}

	local, err := inspectLocal(e.vcs, d.Target)
	if err != nil {
		return ret.fail(stripErr(err), nil)
	}

	r := &run{e: e, d: &d, ret: ret, resolved: resolved}
	if local.Exists {
		if d.Bare {
			return r.updateBare(ctx, local)
		}
		return r.update(ctx, local)
	}
	return r.clone(ctx, pathKind)
}

// update converges an existing non-bare repository.
func (r *run) update(ctx context.Context, local *LocalState) *Result {
	d, ret, vcs, resolved := r.d, r.ret, r.e.vcs, r.resolved

	if resolved.SHA == "" && local.HeadSHA != "" {
		return ret.fail(WrapError(ErrRemoteEmpty,
			"cannot update a non-empty repository from an empty remote").Error(), nil)
	}
	if resolved.SHA == "" {
		// Empty remote, empty local checkout: nothing to converge.
		return ret.uptodate(d.Target, nil)
	}

	// The base is what any reset or merge starts from: the current branch,
	// unless a different existing local branch was requested, in which case
	// that branch's tip becomes the base (it will be checked out first).
	r.baseRev, r.baseBranch = local.HeadSHA, local.Branch
	if d.Branch != "" && d.Branch != local.Branch && local.hasBranch(d.Branch) {
		sha, err := vcs.RevParse(d.Target, d.Branch)
		if err != nil {
			return ret.failf(r.comments,
				"unable to get position of local branch %q: %s", d.Branch, stripErr(err))
		}
		r.baseRev, r.baseBranch = sha, d.Branch
	}

	hasRemoteRev, failed := r.verifyRemoteRev(local)
	if failed != nil {
		return failed
	}

	ff, err := classifyFastForward(vcs, d.Target, r.baseRev, resolved.SHA, hasRemoteRev)
	if err != nil {
		return ret.fail(stripErr(err), r.comments)
	}
	if ff == FFFalse && !d.ForceReset {
		return ret.fail(notFastForwardMsg(r.baseRev, resolved.SHA, d.Branch, local.Branch), r.comments)
	}
	r.ff = ff

	mergeAction := "updated"
	switch ff {
	case FFTrue:
		mergeAction = "fast-forwarded"
	case FFFalse:
		mergeAction = "hard-reset"
	}

	// Read the upstream of the branch the tracking step will write: the
	// requested branch when given, else the base. A branch that does not
	// exist yet has no upstream.
	trackBranch := r.baseBranch
	if d.Branch != "" {
		trackBranch = d.Branch
	}
	var upstream string
	if trackBranch != "" && local.hasBranch(trackBranch) {
		upstream, _ = vcs.Upstream(d.Target, trackBranch)
	}

	var steps []step
	steps = append(steps, r.remoteURLStep(local)...)
	steps = append(steps, r.fetchStep(hasRemoteRev, local)...)
	steps = append(steps, r.revisionPredictionStep(local, mergeAction, hasRemoteRev)...)
	steps = append(steps, r.checkoutStep(local, mergeAction)...)
	steps = append(steps, r.hardResetStep()...)
	steps = append(steps, r.trackingStep(upstream, true)...)
	steps = append(steps, r.fastForwardStep()...)
	steps = append(steps, r.submoduleStep()...)

	if err := r.execute(ctx, steps); err != nil {
		r.e.log.Error("convergence step failed", zap.String("target", d.Target), zap.Error(err))
		return ret.fail(stripErr(err), r.comments)
	}

	if r.e.dryRun {
		if len(ret.Changes) > 0 {
			return ret.pending(formatComments(r.actions))
		}
		return ret.uptodate(d.Target, r.actions)
	}

	newRev, _ := vcs.HeadRevision(d.Target)
	if !revsEqual(newRev, resolved.SHA, resolved.Kind) {
		return ret.fail("failed to update repository", r.comments)
	}
	if local.HeadSHA != newRev {
		r.e.log.Info("repository updated",
			zap.String("target", d.Target),
			zap.String("old", shortSHA(local.HeadSHA)),
			zap.String("new", shortSHA(newRev)))
		r.summarizeIncoming(local.HeadSHA, newRev)
		ret.Comment = formatComments(r.comments)
		ret.Changes["revision"] = Change{Old: orNil(local.HeadSHA), New: newRev}
		return ret
	}
	return ret.uptodate(d.Target, r.comments)
}

// verifyRemoteRev decides whether the desired remote revision is already
// locally present. Object reachability alone is not enough: the local ref
// for the tracking branch or tag must still agree with the remote SHA,
// otherwise a force-pushed remote would look satisfied by stale objects.
// A moved tag without force-reset fails the run immediately.
func (r *run) verifyRemoteRev(local *LocalState) (bool, *Result) {
	d, ret, vcs, resolved := r.d, r.ret, r.e.vcs, r.resolved

	r.widenAbbrevSHA()

	if (resolved.Kind == RevSHA || resolved.Kind == RevHead) &&
		r.baseRev != "" && revsEqual(r.baseRev, resolved.SHA, RevSHA) {
		return true, nil
	}

	if _, err := vcs.RevParse(d.Target, resolved.SHA); err != nil {
		// Object not present locally; only a fetch can tell us more.
		return false, nil
	}

	switch resolved.Kind {
	case RevBranch:
		if _, ok := local.Remotes[d.RemoteName]; !ok {
			return false, nil
		}
		localCopy, err := vcs.RevParse(d.Target, resolved.Upstream)
		if err != nil {
			return false, nil
		}
		return localCopy == resolved.SHA, nil
	case RevTag:
		if !local.hasTag(d.Rev) {
			return false, nil
		}
		localTagSHA, err := vcs.RevParse(d.Target, d.Rev)
		if err != nil {
			return false, nil
		}
		if localTagSHA == resolved.SHA {
			return true, nil
		}
		if !d.ForceReset {
			// The tag moved upstream. A fetch would update the local tag,
			// after which only a reset could make the checkout match, so
			// refuse now unless that reset was authorized.
			return false, ret.failf(r.comments,
				"%q is a tag, but the remote SHA1 for this tag (%s) doesn't "+
					"match the local SHA1 (%s). Set force_reset to true to "+
					"force this update.",
				d.Rev, shortSHA(resolved.SHA), shortSHA(localTagSHA))
		}
		return false, nil
	default:
		// Raw SHA1 (or HEAD): the object being present is the whole story.
		return true, nil
	}
}

// widenAbbrevSHA expands an abbreviated raw-SHA revision to the full local
// hash once the object exists in the checkout. Ancestry walks and resets
// take exact hashes and cannot work with a prefix. A no-op until the object
// is locally present.
func (r *run) widenAbbrevSHA() {
	resolved := r.resolved
	if resolved.Kind != RevSHA || len(resolved.SHA) == 40 {
		return
	}
	if full, err := r.e.vcs.RevParse(r.d.Target, resolved.SHA); err == nil {
		resolved.SHA = full
	}
}

// remoteURLStep updates the named remote's fetch URL when it has drifted
// from the desired URL. URLs are compared in credential-redacted form so
// embedded Basic Auth never blocks (or fakes) equality.
func (r *run) remoteURLStep(local *LocalState) []step {
	d, ret, resolved := r.d, r.ret, r.resolved
	if resolved.SHA == "" {
		return nil
	}
	current, exists := local.Remotes[d.RemoteName]
	desired := redactBasicAuth(d.fetchURL())
	if exists && redactBasicAuth(current) == desired {
		return nil
	}
	if !exists {
		r.e.log.Debug("remote not found in checkout",
			zap.String("remote", d.RemoteName), zap.String("target", d.Target))
	}
	key := "remotes/" + d.RemoteName
	change := Change{Old: orNil(redactBasicAuth(current)), New: desired}
	return []step{{
		would:   fmt.Sprintf("Remote %q would be set to %s", d.RemoteName, desired),
		predict: Changes{key: change},
		apply: func(ctx context.Context) error {
			if err := r.e.vcs.SetRemoteURL(d.Target, d.RemoteName, d.fetchURL()); err != nil {
				return WrapErrorf(err, "failed to set remote %q", d.RemoteName)
			}
			ret.Changes[key] = change
			r.comments = append(r.comments,
				fmt.Sprintf("Remote %q set to %s", d.RemoteName, desired))
			return nil
		},
	}}
}

// fetchStep fetches when the remote revision is not verified locally
// present. After a real fetch the fast-forward relationship is re-derived,
// since the pre-fetch answer was unknowable, and the divergence gate is
// re-applied.
func (r *run) fetchStep(hasRemoteRev bool, local *LocalState) []step {
	d, ret, vcs, resolved := r.d, r.ret, r.e.vcs, r.resolved
	if hasRemoteRev {
		return nil
	}
	return []step{{
		would: fmt.Sprintf("Remote %q would be fetched", d.RemoteName),
		apply: func(ctx context.Context) error {
			summary, err := vcs.Fetch(ctx, d.Target, d.RemoteName, d.ForceFetch, d.refspecs(), d.auth())
			if err != nil {
				return fmt.Errorf("fetch failed. Set force_fetch to true to "+
					"force the fetch if the failure was due to it being "+
					"non-fast-forward: %s", stripErr(err))
			}
			if !summary.Empty() {
				ret.Changes["fetch"] = summary.asChange()
			}
			full, err := vcs.RevParse(d.Target, resolved.SHA)
			if err != nil {
				return fmt.Errorf("fetch did not successfully retrieve rev %s: %s",
					d.Rev, stripErr(err))
			}
			if resolved.Kind == RevSHA {
				resolved.SHA = full
			}
			ff, err := classifyFastForward(vcs, d.Target, r.baseRev, resolved.SHA, true)
			if err != nil {
				return err
			}
			if ff == FFFalse && !d.ForceReset {
				return errors.New(notFastForwardMsg(r.baseRev, resolved.SHA, d.Branch, local.Branch))
			}
			r.ff = ff
			return nil
		},
	}}
}

// revisionPredictionStep records the predicted revision movement. It has no
// apply: the real run reports the revision change from the observed
// before/after HEADs instead of the prediction.
func (r *run) revisionPredictionStep(local *LocalState, mergeAction string, hasRemoteRev bool) []step {
	d, resolved := r.d, r.resolved
	if revsEqual(local.HeadSHA, resolved.SHA, resolved.Kind) {
		return nil
	}
	predict := Changes{"revision": Change{Old: orNil(local.HeadSHA), New: resolved.SHA}}
	if r.ff == FFFalse {
		predict["forced update"] = true
	}
	var would string
	if d.Branch == "" || d.Branch == local.Branch {
		action := mergeAction
		if r.ff != FFTrue && !(d.ForceReset && hasRemoteRev) {
			action = "updated"
		}
		would = fmt.Sprintf("Repository would be %s from %s to %s",
			action, shortSHA(local.HeadSHA), shortSHA(resolved.SHA))
	}
	return []step{{would: would, predict: predict}}
}

// checkoutStep switches to (or creates) the requested local branch.
// Uncommitted changes fail the step unless force-checkout was requested.
func (r *run) checkoutStep(local *LocalState, mergeAction string) []step {
	d, ret, vcs, resolved := r.d, r.ret, r.e.vcs, r.resolved
	if d.Branch == "" || d.Branch == local.Branch {
		return nil
	}
	exists := local.hasBranch(d.Branch)
	change := Change{Old: orNil(local.Branch), New: d.Branch}
	predict := Changes{"local branch": change}
	var would string
	if exists {
		would = fmt.Sprintf("Branch %q would be checked out and %s to %s",
			d.Branch, mergeAction, shortSHA(resolved.SHA))
		if r.ff == FFFalse {
			predict["forced update"] = true
		}
	} else {
		would = fmt.Sprintf("New branch %q would be checked out, with %s (%s) as a starting point",
			d.Branch, resolved.RefName, shortSHA(resolved.SHA))
	}
	return []step{{
		would:   would,
		predict: predict,
		apply: func(ctx context.Context) error {
			dirty, err := vcs.HasLocalChanges(d.Target)
			if err != nil {
				return WrapError(err, "failed to check for local changes")
			}
			if dirty && !d.ForceCheckout {
				return WrapErrorf(ErrLocalChanges,
					"local branch %q has uncommitted changes. Set "+
						"force_checkout to true to discard them and proceed", local.Branch)
			}
			if exists {
				err = vcs.Checkout(d.Target, d.Branch, "", d.ForceCheckout)
			} else {
				err = vcs.Checkout(d.Target, resolved.SHA, d.Branch, d.ForceCheckout)
			}
			if err != nil {
				return WrapErrorf(err, "failed to checkout branch %q", d.Branch)
			}
			ret.Changes["local branch"] = change
			return nil
		},
	}}
}

// hardResetStep resets to the remote revision when the histories diverged
// (the divergence gate has already required force-reset by the time this
// runs). Decided at apply time because a fetch may have refined the
// fast-forward answer; the prediction lives in revisionPredictionStep.
func (r *run) hardResetStep() []step {
	d, ret, vcs, resolved := r.d, r.ret, r.e.vcs, r.resolved
	return []step{{
		apply: func(ctx context.Context) error {
			if r.ff != FFFalse {
				return nil
			}
			if err := vcs.HardReset(d.Target, resolved.SHA); err != nil {
				return WrapError(err, "hard reset failed")
			}
			ret.Changes["forced update"] = true
			r.comments = append(r.comments,
				fmt.Sprintf("Repository was hard-reset to %s (%s)",
					resolved.RefName, shortSHA(resolved.SHA)))
			return nil
		},
	}}
}

// trackingStep reconciles the tracking branch: set when missing, unset when
// undesired, update when different, otherwise nothing. recordChange is false
// on the clone path, which reports tracking in comments only.
func (r *run) trackingStep(upstream string, recordChange bool) []step {
	d, ret, vcs, resolved := r.d, r.ret, r.e.vcs, r.resolved

	branch := r.baseBranch
	if d.Branch != "" {
		branch = d.Branch
	}
	if branch == "" {
		return nil
	}

	var set bool
	var action string
	switch {
	case upstream == "" && resolved.Tracking == TrackBranch:
		set = true
		action = fmt.Sprintf("Tracking branch was set to %s", resolved.Upstream)
	case upstream != "" && resolved.Tracking == TrackNone:
		action = "Tracking branch was unset"
	case resolved.Tracking == TrackBranch && upstream != resolved.Upstream:
		set = true
		action = fmt.Sprintf("Tracking branch was updated to %s", resolved.Upstream)
	default:
		return nil
	}

	change := Change{Old: orNil(upstream), New: orNil(resolved.Upstream)}
	would := "Tracking branch would be unset"
	if set {
		would = fmt.Sprintf("Tracking branch would be set to %s", resolved.Upstream)
	}
	var predict Changes
	if recordChange {
		predict = Changes{"upstream": change}
	}
	return []step{{
		would:   would,
		predict: predict,
		apply: func(ctx context.Context) error {
			var err error
			if set {
				err = vcs.SetUpstream(d.Target, branch, d.RemoteName, d.Rev)
			} else {
				err = vcs.UnsetUpstream(d.Target, branch)
			}
			if err != nil {
				return WrapError(err, "failed to update tracking branch")
			}
			if recordChange {
				ret.Changes["upstream"] = change
			}
			r.comments = append(r.comments, action)
			return nil
		},
	}}
}

// fastForwardStep advances to the remote revision when the update is a
// fast-forward and the base is not already there: a merge when HEAD is on a
// branch, a hard reset otherwise (detached HEAD, tags and raw SHA1s have
// nothing to merge into). Decided at apply time for the same reason as
// hardResetStep.
func (r *run) fastForwardStep() []step {
	d, vcs, resolved := r.d, r.e.vcs, r.resolved
	return []step{{
		apply: func(ctx context.Context) error {
			if r.ff != FFTrue || revsEqual(r.baseRev, resolved.SHA, resolved.Kind) {
				return nil
			}
			current, _ := vcs.CurrentBranch(d.Target)
			if resolved.Tracking != TrackNone && current != "" {
				if err := vcs.MergeFF(d.Target, resolved.SHA); err != nil {
					return WrapErrorf(err, "failed to merge %s", resolved.RefName)
				}
				r.comments = append(r.comments,
					fmt.Sprintf("Repository was fast-forwarded to %s (%s)",
						resolved.RefName, shortSHA(resolved.SHA)))
				return nil
			}
			if err := vcs.HardReset(d.Target, resolved.SHA); err != nil {
				return WrapErrorf(err, "failed to reset to %s", d.Rev)
			}
			r.comments = append(r.comments,
				fmt.Sprintf("Repository was reset to %s (fast-forward)", d.Rev))
			return nil
		},
	}}
}

// submoduleStep updates submodules after the revision moved.
func (r *run) submoduleStep() []step {
	d, vcs := r.d, r.e.vcs
	if !d.Submodules {
		return nil
	}
	return []step{{
		apply: func(ctx context.Context) error {
			return WrapError(vcs.SubmoduleUpdate(ctx, d.Target, d.auth()),
				"submodule update failed")
		},
	}}
}

// updateBare converges an existing bare or mirror repository: the remote
// URL is reconciled, then everything is fetched. There is no checkout, no
// fast-forward semantics, and no tracking branch.
func (r *run) updateBare(ctx context.Context, local *LocalState) *Result {
	d, ret, vcs := r.d, r.ret, r.e.vcs

	steps := r.remoteURLStep(local)
	steps = append(steps, step{
		would: fmt.Sprintf("Bare repository at %s would be fetched", d.Target),
		apply: func(ctx context.Context) error {
			summary, err := vcs.Fetch(ctx, d.Target, d.RemoteName, d.ForceFetch, d.refspecs(), d.auth())
			if err != nil {
				return fmt.Errorf("fetch failed: %s", stripErr(err))
			}
			if !summary.Empty() {
				ret.Changes["fetch"] = summary.asChange()
			}
			r.comments = append(r.comments,
				fmt.Sprintf("Bare repository at %s was fetched", d.Target))
			return nil
		},
	})

	if err := r.execute(ctx, steps); err != nil {
		return ret.fail(stripErr(err), r.comments)
	}

	if r.e.dryRun {
		if len(ret.Changes) > 0 {
			return ret.pending(formatComments(r.actions))
		}
		return ret.uptodate(d.Target, r.actions)
	}

	newRev, _ := vcs.HeadRevision(d.Target)
	if local.HeadSHA != newRev {
		ret.Comment = formatComments(r.comments)
		ret.Changes["revision"] = Change{Old: orNil(local.HeadSHA), New: newRev}
		return ret
	}
	return ret.uptodate(d.Target, r.comments)
}

// clone creates the repository from scratch. A non-empty, non-repository
// target is only cleared when force-clone authorizes it.
func (r *run) clone(ctx context.Context, pathKind PathKind) *Result {
	d, ret, vcs, resolved := r.d, r.ret, r.e.vcs, r.resolved

	if pathKind == PathDir {
		if !d.ForceClone {
			return ret.failf(nil, "target %q exists, is non-empty and is not a "+
				"git repository. Set force_clone to true to remove this "+
				"directory's contents and proceed with cloning the remote repository",
				d.Target)
		}
		if r.e.dryRun {
			ret.Changes["forced clone"] = true
			ret.Changes["new"] = d.Remote + " => " + d.Target
			return ret.pending(fmt.Sprintf(
				"Target directory %s exists. Since force_clone is set, the "+
					"contents of %s would be deleted, and %s would be cloned "+
					"into this directory.", d.Target, d.Target, redactBasicAuth(d.Remote)))
		}
		r.e.log.Debug("clearing target for forced clone", zap.String("target", d.Target))
		if err := vcs.ClearPath(d.Target); err != nil {
			return ret.failf(r.comments, "unable to remove %s: %s", d.Target, stripErr(err))
		}
		ret.Changes["forced clone"] = true
	}

	r.e.log.Debug("target is not a repository, clone required", zap.String("target", d.Target))
	if r.e.dryRun {
		ret.Changes["new"] = d.Remote + " => " + d.Target
		return ret.pending(fmt.Sprintf("Repository %s would be cloned to %s",
			redactBasicAuth(d.Remote), d.Target))
	}

	err := vcs.Clone(ctx, d.fetchURL(), d.Target, CloneOpts{
		Bare:       d.Bare,
		Mirror:     d.Mirror,
		RemoteName: d.RemoteName,
		Depth:      d.Depth,
		Auth:       d.auth(),
	})
	if err != nil {
		return ret.failf(r.comments, "clone failed: %s", stripErr(err))
	}
	ret.Changes["new"] = d.Remote + " => " + d.Target
	suffix := ""
	if d.Mirror {
		suffix = " as mirror"
	} else if d.Bare {
		suffix = " as bare repository"
	}
	r.comments = append(r.comments,
		fmt.Sprintf("%s cloned to %s%s", redactBasicAuth(d.Remote), d.Target, suffix))

	if !d.Bare {
		if resolved.SHA == "" {
			if d.Rev != DefaultRev {
				// Resolution has already rejected concrete revs missing from
				// the remote; kept as a guard against racing remotes.
				return ret.failf(r.comments,
					"repository was cloned but is empty, so %s/%s cannot be checked out",
					d.RemoteName, d.Rev)
			}
		} else if res := r.postCloneSetup(ctx); res != nil {
			return res
		}
	}

	if d.Submodules && !d.Bare && resolved.SHA != "" {
		if err := vcs.SubmoduleUpdate(ctx, d.Target, d.auth()); err != nil {
			return ret.failf(r.comments, "submodule update failed: %s", stripErr(err))
		}
	}

	newRev, _ := vcs.HeadRevision(d.Target)
	msg := formatComments(r.comments)
	r.e.log.Info(msg)
	ret.Comment = msg
	if newRev != "" {
		ret.Changes["revision"] = Change{Old: nil, New: newRev}
	}
	return ret
}

// postCloneSetup brings a fresh non-bare clone onto the desired revision,
// branch, and tracking configuration.
func (r *run) postCloneSetup(ctx context.Context) *Result {
	d, ret, vcs, resolved := r.d, r.ret, r.e.vcs, r.resolved

	r.widenAbbrevSHA()

	if resolved.Kind == RevTag {
		tags, err := vcs.LocalTags(d.Target)
		if err != nil || !containsString(tags, d.Rev) {
			return ret.failf(r.comments, "revision %q does not exist in clone", d.Rev)
		}
	}

	if d.Branch != "" {
		branches, err := vcs.LocalBranches(d.Target)
		if err != nil {
			return ret.fail(stripErr(err), r.comments)
		}
		if !containsString(branches, d.Branch) {
			if err := vcs.Checkout(d.Target, resolved.SHA, d.Branch, false); err != nil {
				return ret.failf(r.comments, "failed to checkout branch %q: %s",
					d.Branch, stripErr(err))
			}
			r.comments = append(r.comments,
				fmt.Sprintf("Branch %q checked out, with %s (%s) as a starting point",
					d.Branch, resolved.RefName, shortSHA(resolved.SHA)))
		}
	}

	localRev, _ := vcs.HeadRevision(d.Target)
	localBranch, _ := vcs.CurrentBranch(d.Target)

	if !revsEqual(localRev, resolved.SHA, resolved.Kind) {
		if err := vcs.HardReset(d.Target, resolved.SHA); err != nil {
			return ret.failf(r.comments, "failed to reset to %s: %s",
				resolved.RefName, stripErr(err))
		}
		r.comments = append(r.comments,
			fmt.Sprintf("Repository was reset to %s (%s)",
				resolved.RefName, shortSHA(resolved.SHA)))
	}

	if localBranch != "" {
		upstream, _ := vcs.Upstream(d.Target, localBranch)
		r.baseBranch = localBranch
		steps := r.trackingStep(upstream, false)
		if err := r.execute(ctx, steps); err != nil {
			return ret.fail(stripErr(err), r.comments)
		}
	}
	return nil
}

// summarizeIncoming attaches a conventional-commit summary of the commits
// the update brought in, when the engine was asked for one.
func (r *run) summarizeIncoming(oldSHA, newSHA string) {
	if !r.e.summarize || oldSHA == "" || oldSHA == newSHA {
		return
	}
	commits, err := r.e.vcs.Log(r.d.Target, oldSHA, newSHA)
	if err != nil {
		r.e.log.Debug("incoming summary unavailable", zap.Error(err))
		return
	}
	if summary := summarizeCommits(commits); len(summary) > 0 {
		r.ret.Changes["incoming"] = summary
	}
}

// notFastForwardMsg is the divergence failure message, naming the two
// revisions and the flag that would allow the update.
func notFastForwardMsg(pre, post, branch, localBranch string) string {
	var suffix string
	if branch != "" && branch != localBranch {
		suffix = fmt.Sprintf(" (after checking out local branch %q)", branch)
	}
	return fmt.Sprintf("repository would be updated from %s to %s%s, but this "+
		"is not a fast-forward merge. Set force_reset to true to force this update.",
		shortSHA(pre), shortSHA(post), suffix)
}

// orNil maps the empty string to nil so change entries render absent values
// the way the result format expects.
func orNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
