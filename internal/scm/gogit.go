package scm

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// GoGit implements Repository on a working copy with go-git.
type GoGit struct {
	repo   *git.Repository
	path   string
	auth   transport.AuthMethod
	tagger *object.Signature
}

// Option configures GoGit.
type Option func(*GoGit)

// WithAuth sets the auth method used for pushes.
func WithAuth(auth transport.AuthMethod) Option {
	return func(g *GoGit) { g.auth = auth }
}

// WithTagger overrides the identity recorded on annotated tags.
func WithTagger(name, email string) Option {
	return func(g *GoGit) { g.tagger = &object.Signature{Name: name, Email: email} }
}

// Open opens the repository containing path, searching parent directories.
func Open(path string, opts ...Option) (*GoGit, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, classify(err, "open", path)
	}
	g := &GoGit{repo: repo, path: path}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GoGit) CurrentBranch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	head, err := g.repo.Head()
	if err != nil {
		return "", classify(err, "head", g.path)
	}
	if !head.Name().IsBranch() {
		return "", classify(ErrDetachedHead, "head", g.path)
	}
	return head.Name().Short(), nil
}

func (g *GoGit) HasRemote(_ context.Context, name string) (bool, error) {
	_, err := g.repo.Remote(name)
	if stderrors.Is(err, git.ErrRemoteNotFound) {
		return false, nil
	}
	if err != nil {
		return false, classify(err, "remote", name)
	}
	return true, nil
}

func (g *GoGit) TagExists(_ context.Context, name string) (bool, error) {
	_, err := g.repo.Reference(plumbing.NewTagReferenceName(name), true)
	if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, classify(err, "tag lookup", name)
	}
	return true, nil
}

func (g *GoGit) CreateTag(ctx context.Context, name, message string) error {
	if name == "" {
		return classify(fmt.Errorf("tag name cannot be empty"), "tag", name)
	}
	exists, err := g.TagExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return classify(fmt.Errorf("%w: %s", ErrTagExists, name), "tag", name)
	}
	head, err := g.repo.Head()
	if err != nil {
		return classify(err, "head", g.path)
	}
	if message == "" {
		message = name
	}
	_, err = g.repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Tagger:  g.signature(),
		Message: message,
	})
	return classify(err, "tag", name)
}

func (g *GoGit) PushTag(ctx context.Context, remote, name string) error {
	ok, err := g.HasRemote(ctx, remote)
	if err != nil {
		return err
	}
	if !ok {
		return classify(fmt.Errorf("%w: %s", ErrRemoteNotFound, remote), "push", remote)
	}
	ref := plumbing.NewTagReferenceName(name)
	err = g.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(ref.String() + ":" + ref.String())},
		Auth:       g.auth,
	})
	if err == nil || stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return classify(fmt.Errorf("%w: %w", ErrPushRejected, err), "push", remote)
}

func (g *GoGit) DeleteTag(ctx context.Context, name string) error {
	exists, err := g.TagExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return classify(fmt.Errorf("%w: %s", ErrTagMissing, name), "delete tag", name)
	}
	return classify(g.repo.DeleteTag(name), "delete tag", name)
}

func (g *GoGit) Tags(_ context.Context) ([]string, error) {
	iter, err := g.repo.Tags()
	if err != nil {
		return nil, classify(err, "tags", g.path)
	}
	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, classify(err, "tags", g.path)
	}
	slices.Sort(tags)
	return tags, nil
}

func (g *GoGit) CommitsSince(ctx context.Context, tag string) ([]string, error) {
	var stop plumbing.Hash
	if tag != "" {
		h, err := g.tagCommit(tag)
		if err != nil {
			return nil, err
		}
		stop = h
	}
	head, err := g.repo.Head()
	if err != nil {
		return nil, classify(err, "head", g.path)
	}
	iter, err := g.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, classify(err, "log", g.path)
	}
	defer iter.Close()

	var messages []string
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Hash == stop {
			return storer.ErrStop
		}
		messages = append(messages, c.Message)
		return nil
	})
	if err != nil {
		return nil, classify(err, "log", g.path)
	}
	return messages, nil
}

// tagCommit peels annotated tags to the commit they point at.
func (g *GoGit) tagCommit(name string) (plumbing.Hash, error) {
	ref, err := g.repo.Tag(name)
	if err != nil {
		if stderrors.Is(err, git.ErrTagNotFound) {
			return plumbing.ZeroHash, classify(fmt.Errorf("%w: %s", ErrTagMissing, name), "log", name)
		}
		return plumbing.ZeroHash, classify(err, "log", name)
	}
	obj, err := g.repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		c, err := obj.Commit()
		if err != nil {
			return plumbing.ZeroHash, classify(err, "log", name)
		}
		return c.Hash, nil
	case stderrors.Is(err, plumbing.ErrObjectNotFound):
		return ref.Hash(), nil
	default:
		return plumbing.ZeroHash, classify(err, "log", name)
	}
}

func (g *GoGit) signature() *object.Signature {
	sig := object.Signature{Name: "shipwright", Email: "shipwright@localhost"}
	if g.tagger != nil {
		sig = *g.tagger
	} else if cfg, err := g.repo.ConfigScoped(gitconfig.GlobalScope); err == nil && cfg.User.Name != "" {
		sig.Name, sig.Email = cfg.User.Name, cfg.User.Email
	}
	sig.When = time.Now()
	return &sig
}
