package s3gw

import (
	"bytes"
	"context"
	"crypto/md5"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/johannesboyne/gofakes3"

	"github.com/jacktea/xavatar/pkg/blob"
	"github.com/jacktea/xavatar/pkg/filecache"
	"github.com/jacktea/xavatar/pkg/handler"
	"github.com/jacktea/xavatar/pkg/sharder"
)

// Backend implements gofakes3.Backend over an avatar cache. The cache is
// exposed as a single bucket; objects can be read, listed and deleted but
// not written, since every entry is produced by the engine itself.
type Backend struct {
	cache   *filecache.Cache
	handler handler.Handler
	bucket  string
	created time.Time
}

var _ gofakes3.Backend = (*Backend)(nil)

// NewBackend exposes cache as bucket. A non-nil h rebuilds missing entries
// on read.
func NewBackend(cache *filecache.Cache, h handler.Handler, bucket string) *Backend {
	return &Backend{cache: cache, handler: h, bucket: bucket, created: time.Now()}
}

func (b *Backend) ListBuckets() ([]gofakes3.BucketInfo, error) {
	return []gofakes3.BucketInfo{{
		Name:         b.bucket,
		CreationDate: gofakes3.NewContentTime(b.created),
	}}, nil
}

func (b *Backend) ListBucket(name string, prefix *gofakes3.Prefix, page gofakes3.ListBucketPage) (*gofakes3.ObjectList, error) {
	if err := b.ensureBucket(name); err != nil {
		return nil, err
	}
	if prefix == nil {
		prefix = &gofakes3.Prefix{}
	}
	limit := int(page.MaxKeys)
	if limit <= 0 {
		limit = gofakes3.DefaultMaxBucketKeys
	}
	results := gofakes3.NewObjectList()
	seenPrefixes := make(map[string]struct{})
	var (
		lastKey string
		count   int
	)
	err := b.cache.Store().Walk(context.Background(), walkRoot(prefix), func(info blob.Info) error {
		if page.Marker != "" && info.Key <= page.Marker {
			return nil
		}
		match := gofakes3.PrefixMatch{Key: info.Key, MatchedPart: info.Key}
		if prefix.HasPrefix || prefix.HasDelimiter {
			if !prefix.Match(info.Key, &match) {
				return nil
			}
		}
		if match.CommonPrefix {
			if _, ok := seenPrefixes[match.MatchedPart]; ok {
				return nil
			}
			seenPrefixes[match.MatchedPart] = struct{}{}
			if count >= limit {
				results.IsTruncated = true
				return blob.SkipAll
			}
			results.AddPrefix(match.MatchedPart)
			lastKey = match.MatchedPart
			count++
			return nil
		}
		if count >= limit {
			results.IsTruncated = true
			return blob.SkipAll
		}
		results.Add(&gofakes3.Content{
			Key:          info.Key,
			LastModified: gofakes3.NewContentTime(info.ModTime),
			Size:         info.Size,
		})
		lastKey = info.Key
		count++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if results.IsTruncated {
		results.NextMarker = lastKey
	}
	return results, nil
}

// walkRoot narrows the store walk to the directory part of the prefix.
func walkRoot(prefix *gofakes3.Prefix) string {
	if !prefix.HasPrefix {
		return ""
	}
	if i := strings.LastIndexByte(prefix.Prefix, '/'); i >= 0 {
		return prefix.Prefix[:i]
	}
	return ""
}

func (b *Backend) CreateBucket(name string) error {
	if name == b.bucket {
		return gofakes3.ResourceError(gofakes3.ErrBucketAlreadyExists, name)
	}
	return gofakes3.ErrNotImplemented
}

func (b *Backend) BucketExists(name string) (bool, error) {
	return name == b.bucket, nil
}

func (b *Backend) DeleteBucket(name string) error {
	if err := b.ensureBucket(name); err != nil {
		return err
	}
	return gofakes3.ErrNotImplemented
}

func (b *Backend) ForceDeleteBucket(name string) error {
	return b.DeleteBucket(name)
}

func (b *Backend) GetObject(bucket, object string, rangeRequest *gofakes3.ObjectRangeRequest) (*gofakes3.Object, error) {
	if err := b.ensureBucket(bucket); err != nil {
		return nil, err
	}
	data, info, err := b.read(context.Background(), object)
	if err != nil {
		return nil, err
	}
	var rng *gofakes3.ObjectRange
	if rangeRequest != nil {
		if rng, err = rangeRequest.Range(int64(len(data))); err != nil {
			return nil, err
		}
	}
	body := data
	if rng != nil {
		body = data[rng.Start : rng.Start+rng.Length]
	}
	return b.object(object, data, info, rng, io.NopCloser(bytes.NewReader(body))), nil
}

func (b *Backend) HeadObject(bucket, object string) (*gofakes3.Object, error) {
	if err := b.ensureBucket(bucket); err != nil {
		return nil, err
	}
	data, info, err := b.read(context.Background(), object)
	if err != nil {
		return nil, err
	}
	return b.object(object, data, info, nil, io.NopCloser(bytes.NewReader(nil))), nil
}

func (b *Backend) DeleteObject(bucket, object string) (gofakes3.ObjectDeleteResult, error) {
	if err := b.ensureBucket(bucket); err != nil {
		return gofakes3.ObjectDeleteResult{}, err
	}
	if err := b.cache.Delete(context.Background(), object); err != nil {
		return gofakes3.ObjectDeleteResult{}, err
	}
	return gofakes3.ObjectDeleteResult{}, nil
}

func (b *Backend) PutObject(bucket, key string, meta map[string]string, input io.Reader, _ int64, conditions *gofakes3.PutConditions) (gofakes3.PutObjectResult, error) {
	if err := b.ensureBucket(bucket); err != nil {
		return gofakes3.PutObjectResult{}, err
	}
	return gofakes3.PutObjectResult{}, gofakes3.ErrNotImplemented
}

func (b *Backend) DeleteMulti(bucket string, objects ...string) (gofakes3.MultiDeleteResult, error) {
	if err := b.ensureBucket(bucket); err != nil {
		return gofakes3.MultiDeleteResult{}, err
	}
	var result gofakes3.MultiDeleteResult
	for _, key := range objects {
		if _, err := b.DeleteObject(bucket, key); err != nil {
			result.Error = append(result.Error, gofakes3.ErrorResultFromError(err))
		} else {
			result.Deleted = append(result.Deleted, gofakes3.ObjectID{Key: key})
		}
	}
	return result, result.AsError()
}

func (b *Backend) CopyObject(srcBucket, srcKey, dstBucket, dstKey string, meta map[string]string) (gofakes3.CopyObjectResult, error) {
	return gofakes3.CopyObjectResult{}, gofakes3.ErrNotImplemented
}

// Multipart uploads are refused like every other write.

func (b *Backend) CreateMultipartUpload(bucket, object string, meta map[string]string) (gofakes3.UploadID, error) {
	return "", gofakes3.ErrNotImplemented
}

func (b *Backend) UploadPart(bucket, object string, id gofakes3.UploadID, partNumber int, contentLength int64, input io.Reader) (string, error) {
	return "", gofakes3.ErrNotImplemented
}

func (b *Backend) ListMultipartUploads(bucket string, marker *gofakes3.UploadListMarker, prefix gofakes3.Prefix, limit int64) (*gofakes3.ListMultipartUploadsResult, error) {
	if err := b.ensureBucket(bucket); err != nil {
		return nil, err
	}
	return &gofakes3.ListMultipartUploadsResult{Bucket: bucket, MaxUploads: limit}, nil
}

func (b *Backend) ListParts(bucket, object string, uploadID gofakes3.UploadID, marker int, limit int64) (*gofakes3.ListMultipartUploadPartsResult, error) {
	return nil, gofakes3.ErrNoSuchUpload
}

func (b *Backend) AbortMultipartUpload(bucket, object string, id gofakes3.UploadID) error {
	return gofakes3.ErrNoSuchUpload
}

func (b *Backend) CompleteMultipartUpload(bucket, object string, id gofakes3.UploadID, input *gofakes3.CompleteMultipartUploadRequest) (gofakes3.VersionID, string, error) {
	return "", "", gofakes3.ErrNoSuchUpload
}

func (b *Backend) ensureBucket(name string) error {
	if name != b.bucket {
		return gofakes3.BucketNotFound(name)
	}
	return nil
}

// read returns the cached object, rebuilding it through the handler when
// it is missing and the key is a well-formed cache path.
func (b *Backend) read(ctx context.Context, key string) ([]byte, blob.Info, error) {
	data, info, err := b.cache.Get(ctx, key)
	if err == nil {
		return data, info, nil
	}
	if !blob.IsNotFound(err) {
		return nil, blob.Info{}, err
	}
	if b.handler != nil {
		if entry, perr := sharder.Parse(key); perr == nil &&
			b.handler.CacheImage(ctx, entry.Namespace, entry.Hash, entry.Size, entry.Namespace, entry.Ext) {
			if data, info, err = b.cache.Get(ctx, entry.Path()); err == nil {
				return data, info, nil
			}
		}
	}
	return nil, blob.Info{}, gofakes3.KeyNotFound(key)
}

func (b *Backend) object(key string, data []byte, info blob.Info, rng *gofakes3.ObjectRange, body io.ReadCloser) *gofakes3.Object {
	sum := md5.Sum(data)
	headers := map[string]string{
		"Last-Modified": info.ModTime.UTC().Format(http.TimeFormat),
	}
	if ct := mimeFor(key); ct != "" {
		headers["Content-Type"] = ct
	}
	return &gofakes3.Object{
		Name:     key,
		Metadata: headers,
		Size:     int64(len(data)),
		Contents: body,
		Hash:     sum[:],
		Range:    rng,
	}
}

func mimeFor(key string) string {
	switch path.Ext(key) {
	case ".png":
		return "image/png"
	case ".jpg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	}
	return ""
}
