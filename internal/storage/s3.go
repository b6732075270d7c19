package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/M365x55907051/juice-shop/internal/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const profileImagePrefix = "profile-images/"

// S3API is the subset of the S3 client the uploader calls
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Uploader handles profile image uploads to AWS S3
type S3Uploader struct {
	client  S3API
	bucket  string
	region  string
	baseURL string
}

// NewS3Uploader creates a new S3 uploader
func NewS3Uploader(ctx context.Context, region, bucket, baseURL string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3UploaderWithClient(s3.NewFromConfig(cfg), region, bucket, baseURL), nil
}

// NewS3UploaderWithClient builds an uploader around an existing client.
// An empty baseURL falls back to the bucket's virtual-hosted endpoint.
func NewS3UploaderWithClient(client S3API, region, bucket, baseURL string) *S3Uploader {
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}

	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		region:  region,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// PutProfileImage uploads to profile-images/{userID}{ext}, overwriting the previous object
func (u *S3Uploader) PutProfileImage(ctx context.Context, userID, extension string, data []byte) (*UploadResult, error) {
	name, err := profileImageObjectName(userID, extension)
	if err != nil {
		return nil, err
	}
	key := profileImagePrefix + name
	contentType := ContentTypeForExtension(filepath.Ext(name))

	ctx, span := telemetry.TraceStorageCall(ctx, "s3", "put_object", key)
	defer span.End()

	putObjectInput := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),

		// Profile images are overwritten in place, keep caches short
		CacheControl: aws.String("max-age=300"),

		Metadata: map[string]string{
			"user-id":          userID,
			"upload-timestamp": time.Now().UTC().Format(time.RFC3339),
			"file-type":        "profile-image",
		},
	}

	if _, err := u.client.PutObject(ctx, putObjectInput); err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		Key:         key,
		URL:         fmt.Sprintf("%s/%s", u.baseURL, key),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// DeleteFile deletes a file from S3
func (u *S3Uploader) DeleteFile(ctx context.Context, key string) error {
	ctx, span := telemetry.TraceStorageCall(ctx, "s3", "delete_object", key)
	defer span.End()

	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

// CheckAccess verifies that we can access the S3 bucket
func (u *S3Uploader) CheckAccess(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.bucket),
	})
	if err != nil {
		return fmt.Errorf("cannot access S3 bucket %s: %w", u.bucket, err)
	}

	return nil
}
