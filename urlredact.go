package gitstate

import (
	"net/url"
	"regexp"
)

// credentialRe matches userinfo embedded in a URL so it can be scrubbed out
// of error text.
var credentialRe = regexp.MustCompile(`(://)[^/@\s]+@`)

// addBasicAuth embeds HTTP Basic Auth credentials into rawurl. Credentials
// are only supported for https URLs; any other scheme is an error.
func addBasicAuth(rawurl, user, pass string) (string, error) {
	if user == "" && pass == "" {
		return rawurl, nil
	}
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", WrapErrorf(ErrInvalidState, "invalid remote URL %q", rawurl)
	}
	if u.Scheme != "https" {
		return "", WrapError(ErrInvalidState, "basic auth is only supported for https remotes")
	}
	if pass == "" {
		u.User = url.User(user)
	} else {
		u.User = url.UserPassword(user, pass)
	}
	return u.String(), nil
}

// redactBasicAuth strips any embedded userinfo from rawurl. Unparseable
// URLs (e.g. scp-style ssh addresses) pass through with a best-effort
// regex scrub.
func redactBasicAuth(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil || u.Scheme == "" {
		return credentialRe.ReplaceAllString(rawurl, "$1")
	}
	if u.User == nil {
		return rawurl
	}
	u.User = nil
	return u.String()
}

// stripErr renders an error for inclusion in a result comment, scrubbing
// anything that looks like embedded URL credentials.
func stripErr(err error) string {
	if err == nil {
		return ""
	}
	return credentialRe.ReplaceAllString(err.Error(), "$1")
}

// fetchURL is the desired fetch URL with any Basic Auth credentials
// embedded. Validation has already rejected credentials on non-https URLs.
func (d *DesiredState) fetchURL() string {
	withAuth, err := addBasicAuth(d.Remote, d.HTTPSUser, d.HTTPSPass)
	if err != nil {
		return d.Remote
	}
	return withAuth
}

// auth is the credential material implied by the desired state.
func (d *DesiredState) auth() AuthSpec {
	return AuthSpec{
		Identity: d.Identity,
		Username: d.HTTPSUser,
		Password: d.HTTPSPass,
	}
}
