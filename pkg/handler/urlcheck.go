package handler

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/jacktea/xavatar/pkg/xerrors"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true, ".svg": true,
}

// ValidateURL checks that raw addresses an image on siteURL's origin, or on
// any http(s) origin when allowRemote is set. Paths starting with "/" are
// resolved against siteURL. The returned URL is absolute whenever siteURL
// is.
func ValidateURL(raw, siteURL string, allowRemote bool) (*url.URL, error) {
	const op = "handler.ValidateURL"
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if raw == "" || err != nil {
		return nil, xerrors.Wrap(xerrors.KindInvalidSourceURL, op, raw, fmt.Errorf("unparsable url"))
	}
	var site *url.URL
	if siteURL != "" {
		if site, err = url.Parse(siteURL); err != nil {
			return nil, xerrors.Wrap(xerrors.KindInvalidSourceURL, op, siteURL, err)
		}
	}
	if !u.IsAbs() {
		if u.Host != "" || !strings.HasPrefix(u.Path, "/") {
			return nil, xerrors.Wrap(xerrors.KindInvalidSourceURL, op, raw, fmt.Errorf("relative url must start with /"))
		}
		if site != nil {
			u = site.ResolveReference(u)
		}
	} else {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, xerrors.Wrap(xerrors.KindInvalidSourceURL, op, raw, fmt.Errorf("scheme %q not allowed", u.Scheme))
		}
		if u.Host == "" {
			return nil, xerrors.Wrap(xerrors.KindInvalidSourceURL, op, raw, fmt.Errorf("missing host"))
		}
		if !allowRemote && !sameOrigin(u, site) {
			return nil, xerrors.Wrap(xerrors.KindInvalidSourceURL, op, raw, fmt.Errorf("remote origin not allowed"))
		}
	}
	if !imageExts[strings.ToLower(path.Ext(u.Path))] {
		return nil, xerrors.Wrap(xerrors.KindInvalidSourceURL, op, raw, fmt.Errorf("not an image path"))
	}
	return u, nil
}

func sameOrigin(u, site *url.URL) bool {
	if site == nil {
		return false
	}
	return strings.EqualFold(u.Scheme, site.Scheme) && strings.EqualFold(u.Host, site.Host)
}
