package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/boxabirds/docqa/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client builds an S3 client from the AWS_* environment. Returns nil
// when AWS_ENDPOINT, AWS_ACCESS_KEY and AWS_SECRET_KEY are all unset, or
// when the AWS config cannot be loaded; callers treat a nil client as
// "local filesystem only".
func NewS3Client(ctx context.Context) *s3.Client {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")
	if accessKey == "" && secretKey == "" && endpoint == "" {
		return nil
	}

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client
}

// ParseS3Path splits an s3://bucket/key path into its bucket and key.
func ParseS3Path(path string) (bucket string, key string, err error) {
	trimmed := strings.TrimPrefix(path, "s3://")
	if trimmed == path {
		return "", "", fmt.Errorf("not an s3 path: %s", path)
	}

	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 path: %s", path)
	}
	return bucket, key, nil
}

// OpenS3Path streams the object behind an s3://bucket/key path. The caller
// closes the returned body.
func OpenS3Path(ctx context.Context, client *s3.Client, path string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3Path(path)
	if err != nil {
		return nil, err
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return result.Body, nil
}
