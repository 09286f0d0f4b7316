package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures an S3Presigner.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	KeyPrefix string
	TTL       time.Duration
}

// S3Presigner signs PUT URLs with SigV4. Signing is local; the client
// never calls S3.
type S3Presigner struct {
	presign   *s3.PresignClient
	bucket    string
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

var _ Presigner = (*S3Presigner)(nil)

// NewS3Presigner loads credentials from the AWS default chain
// (environment, shared config, instance role).
func NewS3Presigner(ctx context.Context, opts S3Options) (*S3Presigner, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 presign: bucket not set")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 presign: load default AWS config: %w", err)
	}
	if opts.Region != "" {
		awsCfg.Region = opts.Region
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3PresignerFromClient(client, opts), nil
}

func NewS3PresignerFromClient(client *s3.Client, opts S3Options) *S3Presigner {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Presigner{
		presign:   s3.NewPresignClient(client),
		bucket:    opts.Bucket,
		keyPrefix: opts.KeyPrefix,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (p *S3Presigner) PresignUpload(ctx context.Context, folder, filename, contentType string) (*PresignedUpload, error) {
	key := objectKey(p.keyPrefix, folder, filename)
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	expires := p.now().Add(p.ttl)
	req, err := p.presign.PresignPutObject(ctx, in, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return nil, fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return &PresignedUpload{UploadURL: req.URL, Key: key, ExpiresAt: expires.Unix()}, nil
}
