package gitstate

// FastForward is the three-valued outcome of the ancestry check.
type FastForward int

const (
	// FFUnknown means the remote revision is not locally present, so the
	// relationship cannot be known until after a fetch.
	FFUnknown FastForward = iota

	// FFTrue means moving the base to the remote revision is a
	// fast-forward (including bootstrapping an empty repository).
	FFTrue

	// FFFalse means the histories have diverged; proceeding requires a
	// forced reset.
	FFFalse
)

// String returns a human-readable string representation of the FastForward
// classification.
func (f FastForward) String() string {
	switch f {
	case FFUnknown:
		return "unknown"
	case FFTrue:
		return "fast-forward"
	case FFFalse:
		return "diverged"
	default:
		return "invalid"
	}
}

// classifyFastForward decides whether moving from baseSHA to remoteSHA is a
// fast-forward. hasRemoteRev says whether the remote revision is verified
// locally present (object reachable AND the corresponding local ref still
// agrees); when it is not, the answer is unknowable until after a fetch.
// An empty baseSHA (no local commits) with a locally-present remote rev is
// always a fast-forward.
func classifyFastForward(vcs VCS, path, baseSHA, remoteSHA string, hasRemoteRev bool) (FastForward, error) {
	if !hasRemoteRev {
		return FFUnknown, nil
	}
	if baseSHA == "" || baseSHA == remoteSHA {
		return FFTrue, nil
	}
	ok, err := vcs.IsAncestor(path, baseSHA, remoteSHA)
	if err != nil {
		return FFUnknown, WrapError(err, "ancestry check failed")
	}
	if ok {
		return FFTrue, nil
	}
	return FFFalse, nil
}
