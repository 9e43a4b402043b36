package auth

import (
	"os"
	"strings"

	"git.home.luguber.info/inful/shipwright/internal/config"
)

// Credentials authenticate against a repository target.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// IsZero reports whether nothing was resolved.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == "" && c.Token == ""
}

// Resolver turns an opaque credential reference into credentials.
type Resolver interface {
	Resolve(ref string) (Credentials, error)
}

// EnvResolver reads <REF>_USERNAME, <REF>_PASSWORD and <REF>_TOKEN from the
// environment. The reference is upper-cased with non-alphanumerics mapped to '_'.
type EnvResolver struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

func (r EnvResolver) Resolve(ref string) (Credentials, error) {
	if ref == "" {
		return Credentials{}, nil
	}
	lookup := r.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	prefix := envPrefix(ref)
	get := func(suffix string) string {
		v, _ := lookup(prefix + "_" + suffix)
		return v
	}
	creds := Credentials{
		Username: get("USERNAME"),
		Password: get("PASSWORD"),
		Token:    get("TOKEN"),
	}
	if creds.IsZero() {
		return Credentials{}, &AuthError{
			Type:    config.AuthTypeBasic,
			Message: "no credentials found in environment for reference " + ref + " (expected " + prefix + "_USERNAME/" + prefix + "_PASSWORD)",
		}
	}
	return creds, nil
}

func envPrefix(ref string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, ref)
}
