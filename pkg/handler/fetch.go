package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jacktea/xavatar/pkg/imageedit"
	"github.com/jacktea/xavatar/pkg/xerrors"
)

// MaxFetchBytes bounds the body of a remote avatar.
const MaxFetchBytes = 8 << 20

var errRemoteNotFound = errors.New("remote returned 404")

// fetch GETs rawURL and returns the body with its MIME type. The
// Content-Type header must satisfy allowed and agree with the sniffed body.
func (c *core) fetch(ctx context.Context, rawURL string, allowed func(string) bool) ([]byte, string, error) {
	const op = "handler.fetch"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", xerrors.Wrap(xerrors.KindInvalidSourceURL, op, rawURL, err)
	}
	req.Header.Set("Accept", "image/*")
	req.Header.Set("User-Agent", "xavatar")
	resp, err := c.opts.Client.Do(req)
	if err != nil {
		return nil, "", xerrors.Wrap(xerrors.KindFetchFailed, op, rawURL, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", xerrors.Wrap(xerrors.KindFetchFailed, op, rawURL, errRemoteNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, "", xerrors.Wrap(xerrors.KindFetchFailed, op, rawURL, fmt.Errorf("unexpected status %s", resp.Status))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchBytes+1))
	if err != nil {
		return nil, "", xerrors.Wrap(xerrors.KindFetchFailed, op, rawURL, err)
	}
	if len(data) == 0 {
		return nil, "", xerrors.Wrap(xerrors.KindFetchFailed, op, rawURL, xerrors.ErrEmptyPayload)
	}
	if len(data) > MaxFetchBytes {
		return nil, "", xerrors.Wrap(xerrors.KindFetchFailed, op, rawURL, fmt.Errorf("body exceeds %d bytes", MaxFetchBytes))
	}
	mime := imageedit.NormalizeMime(resp.Header.Get("Content-Type"))
	if !allowed(mime) {
		return nil, "", xerrors.Wrap(xerrors.KindInvalidMimeType, op, rawURL, fmt.Errorf("content type %q", mime))
	}
	if sniffed := imageedit.Sniff(data); sniffed != mime {
		return nil, "", xerrors.Wrap(xerrors.KindInvalidMimeType, op, rawURL, fmt.Errorf("declared %q but body is %q", mime, sniffed))
	}
	return data, mime, nil
}
