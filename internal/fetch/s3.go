package fetch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source fetches images addressed as s3://bucket/key. Municipal backends
// frequently hand the verifier pre-uploaded object URLs instead of public
// HTTP links.
type S3Source struct {
	client *s3.Client
}

// NewS3Source builds an S3 image source using the default AWS credential
// chain (environment, shared config, IAM role).
func NewS3Source(ctx context.Context, region string) (*S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Source{client: s3.NewFromConfig(awsCfg)}, nil
}

func (s *S3Source) Fetch(ctx context.Context, url string) ([]byte, error) {
	bucket, key, err := splitS3URL(url)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}

	return data, nil
}

func splitS3URL(url string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(url, "s3://")
	if rest == url {
		return "", "", fmt.Errorf("not an s3 URL: %s", url)
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 URL: %s", url)
	}
	return parts[0], parts[1], nil
}
