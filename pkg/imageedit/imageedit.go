// Package imageedit sniffs, decodes, crops, resizes and re-encodes raster
// avatars.
package imageedit

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"regexp"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/jacktea/xavatar/pkg/xerrors"
)

// MIME types the engine understands.
const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeGIF  = "image/gif"
	MimeSVG  = "image/svg+xml"
	MimeWebP = "image/webp"
	MimeBMP  = "image/bmp"
)

const sniffLen = 1024

var (
	svgTagRegex      = regexp.MustCompile(`(?si)\A\s*(?:(<!--.*?-->|<!DOCTYPE\s+svg([\s:]+.*?>|>))\s*)*<svg[\s>\/]`)
	svgTagInXMLRegex = regexp.MustCompile(`(?si)\A<\?xml\b.*?\?>\s*(?:(<!--.*?-->|<!DOCTYPE\s+svg([\s:]+.*?>|>))\s*)*<svg[\s>\/]`)
)

// Sniff returns the MIME type of data without parameters. SVG documents,
// which the standard sniffer reports as text, are recognised explicitly.
func Sniff(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	ct := http.DetectContentType(data)
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if (strings.HasPrefix(ct, "text/plain") || strings.HasPrefix(ct, "text/html")) && svgTagRegex.Match(head) ||
		strings.HasPrefix(ct, "text/xml") && svgTagInXMLRegex.Match(head) {
		ct = MimeSVG
	}
	return NormalizeMime(ct)
}

// NormalizeMime lower-cases m and strips parameters.
func NormalizeMime(m string) string {
	m, _, _ = strings.Cut(m, ";")
	m = strings.ToLower(strings.TrimSpace(m))
	if m == "image/jpg" || m == "image/pjpeg" {
		return MimeJPEG
	}
	return m
}

// Ext maps a MIME type to the cache file extension.
func Ext(mime string) (string, bool) {
	switch NormalizeMime(mime) {
	case MimePNG:
		return "png", true
	case MimeJPEG:
		return "jpg", true
	case MimeGIF:
		return "gif", true
	case MimeSVG:
		return "svg", true
	case MimeWebP:
		return "webp", true
	}
	return "", false
}

// MimeForExt is the inverse of Ext.
func MimeForExt(ext string) (string, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return MimePNG, true
	case "jpg", "jpeg":
		return MimeJPEG, true
	case "gif":
		return MimeGIF, true
	case "svg":
		return MimeSVG, true
	case "webp":
		return MimeWebP, true
	}
	return "", false
}

// IsRaster reports whether mime is a raster format the editor can decode.
func IsRaster(mime string) bool {
	switch NormalizeMime(mime) {
	case MimePNG, MimeJPEG, MimeGIF, MimeWebP, MimeBMP:
		return true
	}
	return false
}

// IsEncodable reports whether mime is a format the editor can write.
func IsEncodable(mime string) bool {
	switch NormalizeMime(mime) {
	case MimePNG, MimeJPEG, MimeGIF:
		return true
	}
	return false
}

// Editor performs the crop/resize/encode pipeline. The zero value is usable.
type Editor struct {
	// JPEGQuality defaults to 90.
	JPEGQuality int
	// MaxPixels rejects sources whose width*height exceeds it; 0 means
	// 4096*4096.
	MaxPixels int
}

// Decode parses data after checking its dimensions.
func (e Editor) Decode(data []byte) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", xerrors.Wrap(xerrors.KindInvalidMimeType, "imageedit.Decode", "", err)
	}
	limit := e.MaxPixels
	if limit <= 0 {
		limit = 4096 * 4096
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > limit {
		return nil, "", xerrors.Wrap(xerrors.KindGenerationFailed, "imageedit.Decode", "",
			fmt.Errorf("image dimensions %dx%d out of range", cfg.Width, cfg.Height))
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", xerrors.Wrap(xerrors.KindInvalidMimeType, "imageedit.Decode", format, err)
	}
	return img, format, nil
}

// Resize crops data to a centred square, scales it to size×size and
// encodes it as mime.
func (e Editor) Resize(data []byte, size int, mime string) ([]byte, error) {
	if size <= 0 {
		return nil, xerrors.Wrap(xerrors.KindInvalid, "imageedit.Resize", "", fmt.Errorf("size %d", size))
	}
	img, _, err := e.Decode(data)
	if err != nil {
		return nil, err
	}
	return e.Encode(Scale(Square(img), size), mime)
}

// Encode writes img in the given format.
func (e Editor) Encode(img image.Image, mime string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch NormalizeMime(mime) {
	case MimePNG:
		err = png.Encode(&buf, img)
	case MimeJPEG:
		q := e.JPEGQuality
		if q <= 0 {
			q = 90
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: q})
	case MimeGIF:
		err = gif.Encode(&buf, img, nil)
	default:
		return nil, xerrors.E(xerrors.KindInvalidMimeType, "imageedit.Encode", mime)
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindGenerationFailed, "imageedit.Encode", mime, err)
	}
	return buf.Bytes(), nil
}

// Square returns the largest centred square of img.
func Square(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == h {
		return img
	}
	side := min(w, h)
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	rect := image.Rect(x0, y0, x0+side, y0+side)
	if s, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	xdraw.Draw(dst, dst.Bounds(), img, rect.Min, xdraw.Src)
	return dst
}

// Scale resamples img to size×size with Catmull-Rom filtering.
func Scale(img image.Image, size int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
