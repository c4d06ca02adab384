package gitstate

// LocalState is a point-in-time snapshot of the target path. It is captured
// once at the start of a run; only the fast-forward relationship is
// re-derived after a fetch, since that is the only fact a fetch can change
// that the planner depends on.
type LocalState struct {
	// Exists reports whether the path holds a repository or linked
	// worktree at all. When false the remaining fields are zero.
	Exists bool

	// HeadSHA is the current HEAD commit, or "" for an empty repository.
	HeadSHA string

	// Branch is the checked-out branch, or "" when detached or unborn.
	Branch string

	// Branches and Tags are the local ref names.
	Branches []string
	Tags     []string

	// Remotes maps remote names to fetch URLs.
	Remotes map[string]string
}

// hasBranch reports whether name is a local branch.
func (s *LocalState) hasBranch(name string) bool {
	for _, b := range s.Branches {
		if b == name {
			return true
		}
	}
	return false
}

// hasTag reports whether name is a local tag.
func (s *LocalState) hasTag(name string) bool {
	for _, t := range s.Tags {
		if t == name {
			return true
		}
	}
	return false
}

// inspectLocal gathers the local facts for path. A repository with no
// commits yields empty HeadSHA/Branch rather than an error; genuine read
// failures propagate.
func inspectLocal(vcs VCS, path string) (*LocalState, error) {
	if !vcs.IsRepo(path) && !vcs.IsWorktree(path) {
		return &LocalState{}, nil
	}

	st := &LocalState{Exists: true}

	var err error
	if st.Branches, err = vcs.LocalBranches(path); err != nil {
		return nil, WrapError(err, "failed to list local branches")
	}
	if st.Tags, err = vcs.LocalTags(path); err != nil {
		return nil, WrapError(err, "failed to list local tags")
	}
	if st.Remotes, err = vcs.Remotes(path); err != nil {
		return nil, WrapError(err, "failed to list remotes")
	}

	// HEAD and branch reads tolerate empty/odd repositories: both come
	// back empty instead of failing the inspection.
	st.HeadSHA, _ = vcs.HeadRevision(path)
	st.Branch, _ = vcs.CurrentBranch(path)

	return st, nil
}
