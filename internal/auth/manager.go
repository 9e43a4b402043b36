// Package auth resolves the credentials used for pushing release tags and
// for submitting publications to repository targets.
package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/shipwright/internal/config"
)

// AuthError represents an authentication-related error.
type AuthError struct {
	Type    config.AuthType
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error (%s): %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth error (%s): %s", e.Type, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// GitAuth creates the go-git auth method for pushing to a remote.
// Returns nil, nil when no authentication is configured.
func GitAuth(cfg *config.AuthConfig) (transport.AuthMethod, error) {
	if cfg.IsZero() {
		return nil, nil
	}
	switch cfg.Type {
	case config.AuthTypeSSH:
		keyPath := cfg.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		if _, err := os.Stat(keyPath); err != nil {
			return nil, &AuthError{Type: cfg.Type, Message: "SSH key file does not exist: " + keyPath, Cause: err}
		}
		keys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, &AuthError{Type: cfg.Type, Message: "failed to load SSH key from " + keyPath, Cause: err}
		}
		return keys, nil
	case config.AuthTypeToken:
		if cfg.Token == "" {
			return nil, &AuthError{Type: cfg.Type, Message: "token authentication requires a token"}
		}
		// Most Git hosting services accept "token" as the username.
		return &http.BasicAuth{Username: "token", Password: cfg.Token}, nil
	case config.AuthTypeBasic:
		if cfg.Username == "" || cfg.Password == "" {
			return nil, &AuthError{Type: cfg.Type, Message: "basic authentication requires username and password"}
		}
		return &http.BasicAuth{Username: cfg.Username, Password: cfg.Password}, nil
	default:
		return nil, &AuthError{Type: cfg.Type, Message: "unsupported authentication type"}
	}
}
