package gitstate

import (
	"strings"
)

// RevKind classifies what a desired revision turned out to be on the remote.
type RevKind int

const (
	// RevHead means the default revision: whatever the remote's HEAD is.
	RevHead RevKind = iota

	// RevBranch means the revision names a remote branch.
	RevBranch

	// RevTag means the revision names a tag (annotated or lightweight).
	RevTag

	// RevSHA means the revision is a raw (possibly abbreviated) SHA1 that
	// the remote does not advertise as a ref.
	RevSHA
)

// String returns a human-readable string representation of the RevKind.
func (k RevKind) String() string {
	switch k {
	case RevHead:
		return "head"
	case RevBranch:
		return "branch"
	case RevTag:
		return "tag"
	case RevSHA:
		return "sha1"
	default:
		return "unknown"
	}
}

// TrackingPolicy says what to do about the local branch's tracking
// configuration once converged.
type TrackingPolicy int

const (
	// TrackAsIs leaves any existing tracking configuration alone
	// (revision "HEAD": we follow whatever upstream currently is).
	TrackAsIs TrackingPolicy = iota

	// TrackBranch sets the tracking branch to ResolvedRevision.Upstream.
	TrackBranch

	// TrackNone unsets any tracking branch (tags and raw SHA1s have no
	// upstream to track).
	TrackNone
)

// ResolvedRevision is the outcome of classifying the desired revision
// against the remote's advertised refs.
type ResolvedRevision struct {
	// SHA is the remote SHA1 the revision resolves to. Empty means the
	// remote advertises nothing (empty remote, revision "HEAD").
	SHA string

	// Kind is the closed classification of the revision.
	Kind RevKind

	// Upstream is "<remote>/<branch>" when Kind is RevBranch, else "".
	Upstream string

	// Tracking is the tracking-branch policy implied by Kind.
	Tracking TrackingPolicy

	// RefName is the symbolic name used in comments and as the checkout
	// starting point: "<remote>/HEAD" for RevHead, Upstream for RevBranch,
	// the literal revision otherwise.
	RefName string
}

// resolveRemoteRev classifies rev against the advertised refs of the remote.
// The classification order matches git's own ref preference: branch first,
// then annotated tag (peeled), then lightweight tag, then raw SHA1. A rev
// that matches none of these and is not plausible hex is ErrRevisionNotFound.
func resolveRemoteRev(refs RefMap, rev, remoteName string) (*ResolvedRevision, error) {
	if rev == DefaultRev {
		sha, ok := refs["HEAD"]
		if !ok {
			// Empty remote. Only an error when a concrete rev was
			// requested, which is not the case here.
			return &ResolvedRevision{Kind: RevHead, Tracking: TrackAsIs}, nil
		}
		return &ResolvedRevision{
			SHA:      sha,
			Kind:     RevHead,
			Tracking: TrackAsIs,
			RefName:  remoteName + "/HEAD",
		}, nil
	}

	if sha, ok := refs["refs/heads/"+rev]; ok {
		upstream := remoteName + "/" + rev
		return &ResolvedRevision{
			SHA:      sha,
			Kind:     RevBranch,
			Upstream: upstream,
			Tracking: TrackBranch,
			RefName:  upstream,
		}, nil
	}

	// Annotated tags advertise a peeled entry pointing at the underlying
	// commit; prefer it over the tag object itself.
	if sha, ok := refs["refs/tags/"+rev+"^{}"]; ok {
		return &ResolvedRevision{SHA: sha, Kind: RevTag, Tracking: TrackNone, RefName: rev}, nil
	}
	if sha, ok := refs["refs/tags/"+rev]; ok {
		return &ResolvedRevision{SHA: sha, Kind: RevTag, Tracking: TrackNone, RefName: rev}, nil
	}

	if isHex(rev) && len(rev) <= 40 {
		// Not advertised, but a plausible SHA1: assume the caller wants
		// that exact commit.
		sha := strings.ToLower(rev)
		return &ResolvedRevision{SHA: sha, Kind: RevSHA, Tracking: TrackNone, RefName: sha}, nil
	}

	return nil, WrapErrorf(ErrRevisionNotFound,
		"no revision matching %q exists in the remote repository", rev)
}

// isHex reports whether s is entirely hexadecimal digits.
func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
