package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jacktea/xavatar/pkg/blob"
	"github.com/jacktea/xavatar/pkg/filecache"
	"github.com/jacktea/xavatar/pkg/icon"
)

func TestBuildBlobStoreLocal(t *testing.T) {
	root := t.TempDir()
	store, err := buildBlobStore("local", storageOptions{Root: root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store == nil {
		t.Fatalf("expected path store instance")
	}
	if _, err := buildBlobStore("local", storageOptions{}); err == nil {
		t.Fatalf("expected error without root")
	}
}

func TestBuildBlobStoreS3Validation(t *testing.T) {
	if _, err := buildBlobStore("s3", storageOptions{}); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := buildBlobStore("oss", storageOptions{Endpoint: "https://oss.example.com"}); err == nil {
		t.Fatalf("expected oss validation error")
	}
	if _, err := buildBlobStore("ftp", storageOptions{}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func TestBuildBlobStoreS3Success(t *testing.T) {
	store, err := buildBlobStore("s3", storageOptions{
		Endpoint:  "https://s3.example.com",
		Bucket:    "bucket",
		Region:    "us-east-1",
		AccessKey: "ak",
		SecretKey: "sk",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store == nil {
		t.Fatalf("expected store instance")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := newLogger("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestSweepRules(t *testing.T) {
	rules := sweepRules([]string{"gravatar", " ", "legacy "}, time.Hour)
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[1].Subdir != "legacy" || rules[1].MaxAge != time.Hour {
		t.Fatalf("unexpected rule %+v", rules[1])
	}
}

func TestRateLimitDisabled(t *testing.T) {
	if opts := rateLimit(0, time.Second); opts.Requests != 0 {
		t.Fatalf("expected disabled limiter, got %+v", opts)
	}
	if opts := rateLimit(5, time.Second); !opts.PerClient || opts.Requests != 5 {
		t.Fatalf("unexpected limiter %+v", opts)
	}
}

func TestDoGenerate(t *testing.T) {
	var buf bytes.Buffer
	hash := strings.Repeat("ab", 32)
	if err := doGenerate(&buf, icon.Default(), "identicon", hash, 48); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Fatalf("expected svg output, got %q", buf.String())
	}
	if err := doGenerate(&buf, icon.Default(), "mystery", hash, 48); err == nil {
		t.Fatalf("expected static type to be rejected")
	}
}

func TestDoInvalidate(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore(time.Now)
	cache, err := filecache.New(store, "/cache")
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	hash := strings.Repeat("cd", 32)
	for _, rel := range []string{
		"legacy/c/d/" + hash + "-32.png",
		"legacy/c/d/" + hash + "-64.png",
		"identicon/c/d/" + hash + "-32.svg",
	} {
		if err := cache.Set(ctx, rel, []byte("data"), false); err != nil {
			t.Fatalf("seed %s: %v", rel, err)
		}
	}
	var out bytes.Buffer
	if err := doInvalidate(ctx, &out, cache, "legacy", `-32\.png$`, 0); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if got := out.String(); got != "removed 1 files (4 B)\n" {
		t.Fatalf("unexpected output %q", got)
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 entries left, got %d", store.Len())
	}
	if err := doInvalidate(ctx, &out, cache, "legacy", "(", 0); err == nil {
		t.Fatalf("expected invalid pattern error")
	}
}

func TestDoProviders(t *testing.T) {
	var out bytes.Buffer
	if err := doProviders(&out, icon.Default()); err != nil {
		t.Fatalf("providers: %v", err)
	}
	for _, want := range []string{"OPTION", "identicon", "monsterid", "generator", "static"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
}
