// Package scm is the source-control collaborator of the release
// coordinator: branch query, remote lookup, tag create/push/delete and the
// commit log since a tag.
package scm

import (
	"context"
	"errors"
)

var (
	ErrDetachedHead   = errors.New("HEAD is detached")
	ErrTagExists      = errors.New("tag already exists")
	ErrTagMissing     = errors.New("tag does not exist")
	ErrRemoteNotFound = errors.New("remote not found")
	ErrPushRejected   = errors.New("push rejected")
)

// Repository is what a release needs from source control.
type Repository interface {
	CurrentBranch(ctx context.Context) (string, error)
	HasRemote(ctx context.Context, name string) (bool, error)
	TagExists(ctx context.Context, name string) (bool, error)
	// CreateTag creates an annotated tag on HEAD.
	CreateTag(ctx context.Context, name, message string) error
	// PushTag pushes refs/tags/<name> to remote and returns once the remote acknowledged it.
	PushTag(ctx context.Context, remote, name string) error
	DeleteTag(ctx context.Context, name string) error
	// Tags lists tag names, sorted.
	Tags(ctx context.Context) ([]string, error)
	// CommitsSince returns commit messages reachable from HEAD, newest first,
	// stopping at the commit tag points to. An empty tag walks the full history.
	CommitsSince(ctx context.Context, tag string) ([]string, error)
}
