// Package storage issues upload URLs for user assets.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PresignedUpload is what a client needs to PUT one object.
type PresignedUpload struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	ExpiresAt int64  `json:"expires_at"`
}

// Presigner issues a time-limited upload URL for a new object under
// folder.
type Presigner interface {
	PresignUpload(ctx context.Context, folder, filename, contentType string) (*PresignedUpload, error)
}

// MockPresigner builds unsigned S3-style URLs without credentials, for
// local development and tests. Keys are unique per call.
type MockPresigner struct {
	Bucket    string
	Region    string
	KeyPrefix string
	TTL       time.Duration
	Now       func() time.Time
}

var _ Presigner = (*MockPresigner)(nil)

func (p *MockPresigner) PresignUpload(_ context.Context, folder, filename, contentType string) (*PresignedUpload, error) {
	if p.Bucket == "" {
		return nil, fmt.Errorf("presign: bucket not configured")
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	ttl := p.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	key := objectKey(p.KeyPrefix, folder, filename)
	expires := now().Add(ttl)

	q := url.Values{}
	q.Set("X-Amz-Expires", fmt.Sprintf("%d", int(ttl.Seconds())))
	if contentType != "" {
		q.Set("Content-Type", contentType)
	}
	u := url.URL{
		Scheme:   "https",
		Host:     fmt.Sprintf("%s.s3.%s.amazonaws.com", p.Bucket, p.Region),
		Path:     "/" + key,
		RawQuery: q.Encode(),
	}
	return &PresignedUpload{UploadURL: u.String(), Key: key, ExpiresAt: expires.Unix()}, nil
}

// objectKey places a fresh uuid name under prefix/folder.
func objectKey(prefix, folder, filename string) string {
	return path.Join(prefix, folder, uuid.NewString()+extension(filename))
}

// extension keeps a short, safe suffix from the client's file name.
func extension(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
