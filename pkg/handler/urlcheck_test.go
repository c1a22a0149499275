package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacktea/xavatar/pkg/xerrors"
)

func TestValidateURL(t *testing.T) {
	const site = "https://site.example"
	cases := []struct {
		name   string
		raw    string
		site   string
		remote bool
		want   string
		ok     bool
	}{
		{name: "same origin", raw: "https://site.example/a/b.png", site: site, want: "https://site.example/a/b.png", ok: true},
		{name: "host case", raw: "https://SITE.example/b.JPG", site: site, want: "https://SITE.example/b.JPG", ok: true},
		{name: "relative", raw: "/uploads/b.gif", site: site, want: "https://site.example/uploads/b.gif", ok: true},
		{name: "relative without site", raw: "/uploads/b.gif", want: "/uploads/b.gif", ok: true},
		{name: "foreign origin", raw: "https://other.example/b.png", site: site},
		{name: "foreign allowed", raw: "https://other.example/b.png", site: site, remote: true, want: "https://other.example/b.png", ok: true},
		{name: "scheme mismatch", raw: "http://site.example/b.png", site: site},
		{name: "port mismatch", raw: "https://site.example:8443/b.png", site: site},
		{name: "ftp", raw: "ftp://site.example/b.png", site: site, remote: true},
		{name: "javascript", raw: "javascript:alert(1)", site: site, remote: true},
		{name: "protocol relative", raw: "//other.example/b.png", site: site},
		{name: "bare word", raw: "mystery", site: site},
		{name: "not an image", raw: "https://site.example/index.html", site: site},
		{name: "no extension", raw: "https://site.example/avatar", site: site},
		{name: "empty", raw: "  ", site: site},
		{name: "remote without site", raw: "https://site.example/b.png"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := ValidateURL(tc.raw, tc.site, tc.remote)
			if !tc.ok {
				require.Error(t, err)
				assert.True(t, xerrors.Is(err, xerrors.KindInvalidSourceURL))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, u.String())
		})
	}
}
