// Package auth builds go-git transport credentials from declared desired
// state: SSH identity files for ssh remotes and HTTP Basic Auth for https
// remotes. Providers are selected by the remote URL's scheme.
package auth

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Provider yields the transport.AuthMethod to use for a remote URL.
// A nil method with a nil error means anonymous access.
type Provider interface {
	Method(remoteURL string) (transport.AuthMethod, error)
}

// anonymous is the no-credentials provider.
type anonymous struct{}

func (anonymous) Method(string) (transport.AuthMethod, error) { return nil, nil }

// composite routes to the provider matching the URL's transport.
type composite struct {
	https Provider
	ssh   Provider
}

func (c composite) Method(remoteURL string) (transport.AuthMethod, error) {
	switch {
	case isSSHURL(remoteURL):
		if c.ssh != nil {
			return c.ssh.Method(remoteURL)
		}
	case strings.HasPrefix(remoteURL, "https://"), strings.HasPrefix(remoteURL, "http://"):
		if c.https != nil {
			return c.https.Method(remoteURL)
		}
	}
	return nil, nil
}

// ForSpec builds a Provider from declared credential material: identity is a
// list of SSH private key paths tried in order, username/password are HTTP
// Basic Auth credentials. With neither configured the provider is anonymous.
func ForSpec(identity []string, username, password string) Provider {
	c := composite{}
	if username != "" || password != "" {
		c.https = &BasicAuthProvider{Username: username, Password: password}
	}
	if len(identity) > 0 {
		c.ssh = &IdentityProvider{Paths: identity}
	}
	if c.https == nil && c.ssh == nil {
		return anonymous{}
	}
	return c
}

// isSSHURL reports whether the URL uses an SSH transport, including the
// scp-style "user@host:path" form.
func isSSHURL(remoteURL string) bool {
	if strings.HasPrefix(remoteURL, "ssh://") {
		return true
	}
	if strings.Contains(remoteURL, "://") {
		return false
	}
	// scp-style: user@host:path, with the colon before any slash
	at := strings.Index(remoteURL, "@")
	colon := strings.Index(remoteURL, ":")
	slash := strings.Index(remoteURL, "/")
	return at > 0 && colon > at && (slash == -1 || colon < slash)
}
