// Package storage provides access to the scraper drop bucket: listing
// exports land in S3 and are imported through the same pipeline as
// direct uploads.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the slice of the S3 API the fetcher needs; it lets
// tests substitute a fake client.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher streams CSV exports out of the configured drop bucket.
type S3Fetcher struct {
	client ObjectGetter
	bucket string
}

// NewS3Fetcher builds a fetcher using the default AWS credential chain,
// or a shared-config profile when one is set (local development).
func NewS3Fetcher(ctx context.Context, region, profile, bucket string) (*S3Fetcher, error) {
	var awsCfg aws.Config
	var err error
	if profile != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &S3Fetcher{client: s3.NewFromConfig(awsCfg), bucket: bucket}, nil
}

// NewS3FetcherWithClient wires an existing client (tests).
func NewS3FetcherWithClient(client ObjectGetter, bucket string) *S3Fetcher {
	return &S3Fetcher{client: client, bucket: bucket}
}

// Client returns the underlying S3 client when the fetcher was built
// from AWS config, nil otherwise. Health checks use it for HeadBucket.
func (f *S3Fetcher) Client() *s3.Client {
	if c, ok := f.client.(*s3.Client); ok {
		return c
	}
	return nil
}

// Fetch opens the object for reading. An empty bucket falls back to the
// configured drop bucket. The caller closes the returned body.
func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if bucket == "" {
		bucket = f.bucket
	}
	if bucket == "" {
		return nil, fmt.Errorf("no S3 bucket configured")
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}
