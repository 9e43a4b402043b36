package publication

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"git.home.luguber.info/inful/shipwright/internal/auth"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
)

// HTTPTransport uploads each file with an HTTP PUT to
// <base>/<group path>/<artifact>/<version>/<file>, the way Maven deploys.
type HTTPTransport struct {
	base   string
	params string
	creds  auth.Credentials
	client *http.Client
}

// NewHTTPTransport creates a transport for base. Matrix parameters after ';'
// in the base URL (e.g. ";publish=1") are appended to every upload path.
func NewHTTPTransport(base string, creds auth.Credentials, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	base, params, _ := strings.Cut(base, ";")
	if params != "" {
		params = ";" + params
	}
	return &HTTPTransport{base: strings.TrimRight(base, "/"), params: params, creds: creds, client: client}
}

func (t *HTTPTransport) Publish(ctx context.Context, pub *Publication, files []File) error {
	for _, f := range withChecksums(files) {
		if err := t.put(ctx, pub.Coordinates.Dir()+"/"+f.Name, f); err != nil {
			return err
		}
	}
	return nil
}

func (t *HTTPTransport) put(ctx context.Context, path string, f File) error {
	url := t.base + "/" + path + t.params
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(f.Data))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", f.Name, err)
	}
	req.ContentLength = int64(len(f.Data))
	req.Header.Set("Content-Type", f.MediaType)
	switch {
	case t.creds.Token != "":
		req.Header.Set("Authorization", "Bearer "+t.creds.Token)
	case t.creds.Username != "":
		req.SetBasicAuth(t.creds.Username, t.creds.Password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "upload failed").
			Retryable().
			WithContext("file", f.Name).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ferrors.AuthError(fmt.Sprintf("upload of %s rejected: %s", f.Name, resp.Status)).Build()
	default:
		b := ferrors.PublicationError(fmt.Sprintf("upload of %s rejected: %s", f.Name, resp.Status)).
			WithContext("status", resp.StatusCode)
		if resp.StatusCode >= 500 {
			b = b.Retryable()
		}
		return b.Build()
	}
}
