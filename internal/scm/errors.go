package scm

import (
	"strings"

	"git.home.luguber.info/inful/shipwright/internal/foundation/errors"
)

// classify translates go-git errors into classified errors, keeping the
// original in the chain so callers can still match sentinels.
func classify(err error, op, target string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())
	msg := "git " + op + " failed"
	var b *errors.ErrorBuilder
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "not authorized") || strings.Contains(l, "invalid credentials"):
		b = errors.AuthError(msg)
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") || strings.Contains(l, "timeout") || strings.Contains(l, "no route to host"):
		b = errors.NetworkError(msg)
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		b = errors.NewError(errors.CategoryConfig, msg)
	default:
		b = errors.GitError(msg)
	}
	b = b.WithCause(err).
		WithContext("op", op).
		WithContext("target", target)
	return b.Build()
}
