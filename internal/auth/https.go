package auth

import (
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// BasicAuthProvider supplies HTTP Basic Auth for https remotes. For token
// authentication (GitHub, GitLab) pass the token as the password.
type BasicAuthProvider struct {
	Username string
	Password string
}

// Method returns the Basic Auth method.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *BasicAuthProvider) Method(string) (transport.AuthMethod, error) {
	username := p.Username
	password := p.Password
	if username == "" && password != "" {
		// Many providers accept the token as username with empty password
		username = password
		password = ""
	}
	return &http.BasicAuth{Username: username, Password: password}, nil
}
