package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileUploader copies a local file to object storage.
type FileUploader interface {
	UploadFile(ctx context.Context, bucket, key, path, contentType string) error
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader puts export files into a bucket.
type S3Uploader struct {
	client s3API
}

// NewS3Client creates a new S3 client from AWS config. Path-style addressing
// is used when a custom endpoint is configured.
func NewS3Client(cfg sdkaws.Config) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
}

func NewS3Uploader(cfg sdkaws.Config) *S3Uploader {
	return &S3Uploader{client: NewS3Client(cfg)}
}

// UploadFile streams the file at path to bucket/key.
func (u *S3Uploader) UploadFile(ctx context.Context, bucket, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        sdkaws.String(bucket),
		Key:           sdkaws.String(key),
		Body:          f,
		ContentLength: sdkaws.Int64(info.Size()),
		ContentType:   sdkaws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
