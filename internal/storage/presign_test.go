package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestMockPresigner_PresignUpload(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	p := &MockPresigner{
		Bucket:    "bucket",
		Region:    "ap-northeast-2",
		KeyPrefix: "uploads",
		TTL:       10 * time.Minute,
		Now:       func() time.Time { return fixed },
	}

	got, err := p.PresignUpload(context.Background(), "avatars/7", "me.PNG", "image/png")
	if err != nil {
		t.Fatalf("PresignUpload() error = %v", err)
	}
	if !strings.HasPrefix(got.Key, "uploads/avatars/7/") || !strings.HasSuffix(got.Key, ".png") {
		t.Errorf("Key = %q", got.Key)
	}
	if got.ExpiresAt != fixed.Add(10*time.Minute).Unix() {
		t.Errorf("ExpiresAt = %d", got.ExpiresAt)
	}

	u, err := url.Parse(got.UploadURL)
	if err != nil {
		t.Fatalf("bad url %q: %v", got.UploadURL, err)
	}
	if u.Host != "bucket.s3.ap-northeast-2.amazonaws.com" {
		t.Errorf("Host = %q", u.Host)
	}
	if u.Query().Get("X-Amz-Expires") != "600" {
		t.Errorf("X-Amz-Expires = %q", u.Query().Get("X-Amz-Expires"))
	}
}

func TestMockPresigner_UniqueKeys(t *testing.T) {
	p := &MockPresigner{Bucket: "b", Region: "r"}
	a, _ := p.PresignUpload(context.Background(), "f", "a.txt", "")
	b, _ := p.PresignUpload(context.Background(), "f", "a.txt", "")
	if a.Key == b.Key {
		t.Error("keys should differ per call")
	}
}

func TestMockPresigner_NoBucket(t *testing.T) {
	p := &MockPresigner{}
	if _, err := p.PresignUpload(context.Background(), "f", "a.txt", ""); err == nil {
		t.Error("expected error without bucket")
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"a.jpg":               ".jpg",
		"a.JPEG":              ".jpeg",
		"noext":               "",
		"a.ph p":              "",
		"a.verylongextension": "",
		"../../x.png":         ".png",
	}
	for in, want := range tests {
		if got := extension(in); got != want {
			t.Errorf("extension(%q) = %q, expected %q", in, got, want)
		}
	}
}
