// Package sharder derives the content-addressed relative paths used by the
// avatar cache: {namespace}/{h0}/{h1}/{hash}-{size}.{ext}.
package sharder

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Entry describes a cache path in its decomposed form.
type Entry struct {
	Namespace string
	Hash      string
	Size      int
	Ext       string
}

// Shard returns the shard segments for hash: the first and second hex
// characters as separate path elements ("f0e4..." => "f/0"). Hashes shorter
// than two characters are padded with "0".
func Shard(hash string) string {
	h := strings.ToLower(hash)
	for len(h) < 2 {
		h += "0"
	}
	return h[:1] + "/" + h[1:2]
}

// Filename returns the base name of a cache entry.
func Filename(hash string, size int, ext string) string {
	return hash + "-" + strconv.Itoa(size) + "." + strings.TrimPrefix(ext, ".")
}

// Path returns the cache path relative to the cache root.
func Path(namespace, hash string, size int, ext string) string {
	return path.Join(namespace, Shard(hash), Filename(hash, size, ext))
}

// Path renders e as a relative cache path.
func (e Entry) Path() string {
	return Path(e.Namespace, e.Hash, e.Size, e.Ext)
}

// Parse decomposes a relative cache path. It rejects paths whose shard
// segments do not agree with the hash.
func Parse(rel string) (Entry, error) {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	parts := strings.Split(rel, "/")
	if len(parts) != 4 {
		return Entry{}, fmt.Errorf("sharder: malformed path %q", rel)
	}
	name := parts[3]
	dot := strings.LastIndexByte(name, '.')
	dash := strings.LastIndexByte(name, '-')
	if dot <= 0 || dash <= 0 || dash > dot {
		return Entry{}, fmt.Errorf("sharder: malformed filename %q", name)
	}
	size, err := strconv.Atoi(name[dash+1 : dot])
	if err != nil || size <= 0 {
		return Entry{}, fmt.Errorf("sharder: invalid size in %q", name)
	}
	e := Entry{
		Namespace: parts[0],
		Hash:      name[:dash],
		Size:      size,
		Ext:       name[dot+1:],
	}
	if !isHex(e.Hash) {
		return Entry{}, fmt.Errorf("sharder: hash %q is not hex", e.Hash)
	}
	if Shard(e.Hash) != parts[1]+"/"+parts[2] {
		return Entry{}, fmt.Errorf("sharder: shard %s/%s does not match hash %s", parts[1], parts[2], e.Hash)
	}
	return e, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
