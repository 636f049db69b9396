package reporter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the subset of the S3 client used for uploads
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader handles uploading session artifacts to S3
type S3Uploader struct {
	client     ObjectPutter
	bucketName string
	region     string
}

// NewS3Uploader creates a new S3 uploader
func NewS3Uploader(ctx context.Context, bucketName, region string) (*S3Uploader, error) {
	if bucketName == "" {
		bucketName = os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			return nil, fmt.Errorf("report upload requires a bucket name")
		}
	}

	if region == "" {
		region = os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1" // Default
		}
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3UploaderWithClient(s3.NewFromConfig(cfg), bucketName, region), nil
}

// NewS3UploaderWithClient uses an existing client
func NewS3UploaderWithClient(client ObjectPutter, bucketName, region string) *S3Uploader {
	return &S3Uploader{
		client:     client,
		bucketName: bucketName,
		region:     region,
	}
}

// UploadFile uploads a file to S3 and returns its URL
func (u *S3Uploader) UploadFile(ctx context.Context, path, s3Key string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucketName),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(path)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return u.objectURL(s3Key), nil
}

// contentType determines content type from file extension
func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func (u *S3Uploader) objectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucketName, u.region, key)
}

// UploadReport uploads every saved question screenshot and then the report itself.
// Screenshot URLs are written back into the report entries before it is uploaded.
func (u *S3Uploader) UploadReport(ctx context.Context, report *Report) (string, error) {
	for i := range report.Entries {
		e := &report.Entries[i]
		if e.ScreenshotPath == "" {
			continue
		}
		key := fmt.Sprintf("sessions/%s/questions/%03d_%s", report.ReportID, e.Iteration, filepath.Base(e.ScreenshotPath))
		url, err := u.UploadFile(ctx, e.ScreenshotPath, key)
		if err != nil {
			return "", fmt.Errorf("failed to upload screenshot for iteration %d: %w", e.Iteration, err)
		}
		e.S3URL = url
	}

	reportPath, err := report.SaveToDir("")
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	defer os.Remove(reportPath)

	return u.UploadFile(ctx, reportPath, fmt.Sprintf("sessions/%s/report.json", report.ReportID))
}
