package blob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jacktea/xavatar/pkg/cache"
)

// RemoteStore persists objects in object storage compatible with S3/OSS/COS.
// Keys map one to one onto object names inside the bucket.
type RemoteStore struct {
	client  *http.Client
	baseURL string
	signer  Signer
	cache   *cache.Cache[[]byte]
}

// RemoteConfig is a generic configuration used by provider helpers.
type RemoteConfig struct {
	Endpoint     string
	Bucket       string
	Client       *http.Client
	CacheEntries int
	CacheTTL     time.Duration
}

// Signer signs HTTP requests for remote providers.
type Signer interface {
	Sign(req *http.Request, payloadHash string) error
}

// NewRemoteStore builds a RemoteStore with a signer. A negative
// CacheEntries disables the in-memory read cache.
func NewRemoteStore(cfg RemoteConfig, signer Signer) (*RemoteStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("remote store requires endpoint and bucket")
	}
	bucket := strings.Trim(cfg.Bucket, "/")
	if bucket == "" {
		return nil, fmt.Errorf("remote store bucket invalid")
	}
	base := strings.TrimSuffix(cfg.Endpoint, "/") + "/" + bucket
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	var readCache *cache.Cache[[]byte]
	if cfg.CacheEntries == 0 {
		cfg.CacheEntries = 512
	}
	if cfg.CacheEntries > 0 {
		readCache = cache.New[[]byte](cfg.CacheEntries, cfg.CacheTTL)
	}
	return &RemoteStore{client: client, baseURL: base, signer: signer, cache: readCache}, nil
}

// Close releases the read cache.
func (r *RemoteStore) Close() error {
	if r.cache != nil {
		return r.cache.Close()
	}
	return nil
}

// Put uploads an object via HTTP PUT.
func (r *RemoteStore) Put(ctx context.Context, key string, src io.Reader, size int64, opts PutOptions) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if !opts.Overwrite {
		if _, err := r.Stat(ctx, name); err == nil {
			return nil
		} else if !IsNotFound(err) {
			return err
		}
	}
	payload, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(payload)) != size {
		return fmt.Errorf("remote put %s: short read %d of %d bytes", name, len(payload), size)
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	md5Sum := md5.Sum(payload)
	payloadDigest := sha256.Sum256(payload)
	payloadHash := hex.EncodeToString(payloadDigest[:])
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.objectURL(name), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Length", strconv.Itoa(len(payload)))
	req.Header.Set("Content-MD5", base64.StdEncoding.EncodeToString(md5Sum[:]))
	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("Host", req.URL.Host)
	if err := r.signer.Sign(req, payloadHash); err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote put %s: %s", resp.Status, string(body))
	}
	r.cachePut(name, payload)
	return nil
}

// Get retrieves an object via HTTP GET, serving repeated reads from the
// in-memory cache. Cached reads carry no modification time.
func (r *RemoteStore) Get(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, Info{}, err
	}
	if data, ok := r.cacheGet(name); ok {
		return io.NopCloser(bytes.NewReader(data)), Info{Key: name, Size: int64(len(data))}, nil
	}
	resp, err := r.do(ctx, http.MethodGet, r.objectURL(name))
	if err != nil {
		return nil, Info{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		r.cacheDrop(name)
		return nil, Info{}, notFound("RemoteStore.Get", name)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, Info{}, fmt.Errorf("remote get %s: %s", resp.Status, string(body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Info{}, err
	}
	r.cachePut(name, data)
	info := infoFromHeaders(name, resp.Header)
	info.Size = int64(len(data))
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

// Stat issues a HEAD request for key.
func (r *RemoteStore) Stat(ctx context.Context, key string) (Info, error) {
	name, err := cleanKey(key)
	if err != nil {
		return Info{}, err
	}
	resp, err := r.do(ctx, http.MethodHead, r.objectURL(name))
	if err != nil {
		return Info{}, err
	}
	resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		return infoFromHeaders(name, resp.Header), nil
	case resp.StatusCode == http.StatusNotFound:
		return Info{}, notFound("RemoteStore.Stat", name)
	default:
		return Info{}, fmt.Errorf("remote head %s", resp.Status)
	}
}

// Delete removes an object.
func (r *RemoteStore) Delete(ctx context.Context, key string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	r.cacheDrop(name)
	resp, err := r.do(ctx, http.MethodDelete, r.objectURL(name))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote delete %s: %s", resp.Status, string(body))
	}
	return nil
}

type listBucketResult struct {
	IsTruncated           bool   `xml:"IsTruncated"`
	NextContinuationToken string `xml:"NextContinuationToken"`
	Contents              []struct {
		Key          string `xml:"Key"`
		LastModified string `xml:"LastModified"`
		Size         int64  `xml:"Size"`
	} `xml:"Contents"`
}

// Walk pages through ListObjectsV2 results under prefix.
func (r *RemoteStore) Walk(ctx context.Context, prefix string, fn WalkFunc) error {
	p := strings.Trim(path.Clean("/"+prefix), "/")
	if p != "" {
		p += "/"
	}
	token := ""
	for {
		q := url.Values{}
		q.Set("list-type", "2")
		if p != "" {
			q.Set("prefix", p)
		}
		if token != "" {
			q.Set("continuation-token", token)
		}
		resp, err := r.do(ctx, http.MethodGet, r.baseURL+"?"+q.Encode())
		if err != nil {
			return err
		}
		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("remote list %s: %s", resp.Status, string(body))
		}
		var page listBucketResult
		err = xml.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("remote list decode: %w", err)
		}
		sort.Slice(page.Contents, func(i, j int) bool { return page.Contents[i].Key < page.Contents[j].Key })
		for _, c := range page.Contents {
			modTime, _ := time.Parse(time.RFC3339, c.LastModified)
			if err := fn(Info{Key: c.Key, Size: c.Size, ModTime: modTime}); err != nil {
				if errors.Is(err, SkipAll) {
					return nil
				}
				return err
			}
		}
		if !page.IsTruncated || page.NextContinuationToken == "" {
			return nil
		}
		token = page.NextContinuationToken
	}
}

func (r *RemoteStore) do(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	payloadHash := emptyPayloadHash()
	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("Host", req.URL.Host)
	if err := r.signer.Sign(req, payloadHash); err != nil {
		return nil, err
	}
	return r.client.Do(req)
}

func (r *RemoteStore) objectURL(object string) string {
	return strings.TrimSuffix(r.baseURL, "/") + "/" + object
}

func infoFromHeaders(key string, h http.Header) Info {
	info := Info{Key: key}
	if n, err := strconv.ParseInt(h.Get("Content-Length"), 10, 64); err == nil {
		info.Size = n
	}
	if ts, err := http.ParseTime(h.Get("Last-Modified")); err == nil {
		info.ModTime = ts
	}
	return info
}

func (r *RemoteStore) cacheGet(key string) ([]byte, bool) {
	if r == nil || r.cache == nil {
		return nil, false
	}
	if data, ok := r.cache.Get(key); ok {
		return append([]byte(nil), data...), true
	}
	return nil, false
}

func (r *RemoteStore) cachePut(key string, data []byte) {
	if r == nil || r.cache == nil || len(data) == 0 {
		return
	}
	r.cache.Set(key, append([]byte(nil), data...))
}

func (r *RemoteStore) cacheDrop(key string) {
	if r == nil || r.cache == nil {
		return
	}
	r.cache.Delete(key)
}

func emptyPayloadHash() string {
	sum := sha256.Sum256(nil)
	return hex.EncodeToString(sum[:])
}

// S3Config describes the parameters for AWS S3-compatible stores.
type S3Config struct {
	RemoteConfig
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
}

// NewS3Store builds a RemoteStore with AWS SigV4 signing.
func NewS3Store(cfg S3Config) (*RemoteStore, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Region == "" {
		return nil, fmt.Errorf("s3 store requires access key, secret key, and region")
	}
	signer := &s3Signer{
		accessKey: cfg.AccessKey,
		secretKey: cfg.SecretKey,
		region:    cfg.Region,
		token:     cfg.SessionToken,
	}
	return NewRemoteStore(cfg.RemoteConfig, signer)
}

// OSSConfig describes the parameters for Aliyun OSS.
type OSSConfig struct {
	RemoteConfig
	AccessKey string
	SecretKey string
}

// NewOSSStore builds a RemoteStore for Aliyun OSS.
func NewOSSStore(cfg OSSConfig) (*RemoteStore, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("oss store requires access key and secret key")
	}
	return NewRemoteStore(cfg.RemoteConfig, &ossSigner{accessKey: cfg.AccessKey, secretKey: cfg.SecretKey})
}

// COSConfig describes Tencent COS parameters.
type COSConfig struct {
	RemoteConfig
	AccessKey string
	SecretKey string
}

// NewCOSStore builds a RemoteStore for Tencent COS.
func NewCOSStore(cfg COSConfig) (*RemoteStore, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("cos store requires access key and secret key")
	}
	return NewRemoteStore(cfg.RemoteConfig, &cosSigner{accessKey: cfg.AccessKey, secretKey: cfg.SecretKey})
}

// --- Signer implementations ---

type s3Signer struct {
	accessKey string
	secretKey string
	region    string
	token     string
	now       func() time.Time
}

func (s *s3Signer) Sign(req *http.Request, payloadHash string) error {
	now := s.now
	if now == nil {
		now = time.Now
	}
	t := now().UTC()
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")
	req.Header.Set("x-amz-date", amzDate)
	req.Header.Set("host", req.URL.Host)
	if s.token != "" {
		req.Header.Set("x-amz-security-token", s.token)
	}
	if payloadHash == "" {
		payloadHash = emptyPayloadHash()
	}
	canonicalHeaders, signedHeaders := canonicalHeaderStrings(req.Header)
	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI(req.URL),
		canonicalQueryString(req.URL),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")
	hashedRequest := sha256.Sum256([]byte(canonicalRequest))
	credentialScope := fmt.Sprintf("%s/%s/s3/aws4_request", dateStamp, s.region)
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		credentialScope,
		hex.EncodeToString(hashedRequest[:]),
	}, "\n")
	signature := hex.EncodeToString(hmacSHA256(s.deriveKey(dateStamp), stringToSign))
	req.Header.Set("Authorization", fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		s.accessKey, credentialScope, signedHeaders, signature))
	return nil
}

func (s *s3Signer) deriveKey(date string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+s.secretKey), date)
	kRegion := hmacSHA256(kDate, s.region)
	kService := hmacSHA256(kRegion, "s3")
	return hmacSHA256(kService, "aws4_request")
}

type ossSigner struct {
	accessKey string
	secretKey string
}

func (o *ossSigner) Sign(req *http.Request, payloadHash string) error {
	date := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set("Date", date)
	stringToSign := strings.Join([]string{
		req.Method,
		req.Header.Get("Content-MD5"),
		req.Header.Get("Content-Type"),
		date,
		ossCanonicalHeaders(req.Header) + req.URL.EscapedPath(),
	}, "\n")
	mac := hmac.New(sha1.New, []byte(o.secretKey))
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	req.Header.Set("Authorization", fmt.Sprintf("OSS %s:%s", o.accessKey, signature))
	return nil
}

type cosSigner struct {
	accessKey string
	secretKey string
	now       func() time.Time
}

func (c *cosSigner) Sign(req *http.Request, payloadHash string) error {
	now := c.now
	if now == nil {
		now = time.Now
	}
	ts := now()
	signTime := fmt.Sprintf("%d;%d", ts.Add(-time.Minute).Unix(), ts.Add(15*time.Minute).Unix())
	headerList, canonicalHeaders := cosCanonicalHeaders(req.Header)
	queryList, canonicalQuery := cosCanonicalQuery(req.URL)
	p := req.URL.EscapedPath()
	if p == "" {
		p = "/"
	}
	httpString := strings.Join([]string{strings.ToLower(req.Method), p, canonicalQuery, canonicalHeaders}, "\n")
	httpHash := sha1.Sum([]byte(httpString))
	stringToSign := fmt.Sprintf("sha1\n%s\n%x\n", signTime, httpHash)
	signature := hmacSHA1(hmacSHA1([]byte(c.secretKey), signTime), stringToSign)
	req.Header.Set("Authorization", fmt.Sprintf("q-sign-algorithm=sha1&q-ak=%s&q-sign-time=%s&q-key-time=%s&q-header-list=%s&q-url-param-list=%s&q-signature=%s",
		c.accessKey, signTime, signTime, headerList, queryList, hex.EncodeToString(signature)))
	return nil
}

func canonicalURI(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func canonicalQueryString(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	values, _ := url.ParseQuery(u.RawQuery)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for _, v := range vs {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

func canonicalHeaderStrings(h http.Header) (string, string) {
	keys := make([]string, 0, len(h))
	lower := make(map[string][]string)
	for k, v := range h {
		lk := strings.ToLower(k)
		keys = append(keys, lk)
		lower[lk] = append(lower[lk], v...)
	}
	sort.Strings(keys)
	keys = unique(keys)
	var canonical []string
	for _, k := range keys {
		values := append([]string(nil), lower[k]...)
		sort.Strings(values)
		canonical = append(canonical, k+":"+strings.TrimSpace(strings.Join(values, ",")))
	}
	return strings.Join(canonical, "\n") + "\n", strings.Join(keys, ";")
}

func ossCanonicalHeaders(h http.Header) string {
	var keys []string
	values := make(map[string]string)
	for k, v := range h {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "x-oss-") {
			keys = append(keys, lk)
			values[lk] = strings.Join(v, ",")
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s:%s\n", k, values[k])
	}
	return b.String()
}

func cosCanonicalHeaders(h http.Header) (string, string) {
	var keys []string
	values := make(map[string][]string)
	for k, v := range h {
		lk := strings.ToLower(k)
		keys = append(keys, lk)
		values[lk] = append(values[lk], v...)
	}
	sort.Strings(keys)
	keys = unique(keys)
	var parts []string
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		parts = append(parts, k+"="+url.QueryEscape(strings.Join(vs, ",")))
	}
	return strings.Join(keys, ";"), strings.Join(parts, "&")
}

func cosCanonicalQuery(u *url.URL) (string, string) {
	if u.RawQuery == "" {
		return "", ""
	}
	raw := u.Query()
	keys := make([]string, 0, len(raw))
	values := make(map[string][]string)
	for k, v := range raw {
		lk := strings.ToLower(k)
		keys = append(keys, lk)
		values[lk] = append(values[lk], v...)
	}
	sort.Strings(keys)
	keys = unique(keys)
	var parts []string
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for _, v := range vs {
			parts = append(parts, k+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(keys, ";"), strings.Join(parts, "&")
}

func unique(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := []string{in[0]}
	for i := 1; i < len(in); i++ {
		if in[i] != in[i-1] {
			out = append(out, in[i])
		}
	}
	return out
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hmacSHA1(key []byte, data string) []byte {
	mac := hmac.New(sha1.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
