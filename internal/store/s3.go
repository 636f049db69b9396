package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ObjectAPI is the subset of the S3 client used by the s3 backend
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 keeps the flat answer document as a single S3 object. Several processes
// may share the object: writes merge the changed keys into the latest remote
// copy and are conditional on its ETag.
type S3 struct {
	client ObjectAPI
	bucket string
	key    string
	doc    *document

	writeMu sync.Mutex
	pending map[string]string
}

// maxWriteAttempts bounds retries after a concurrent writer changed the object
const maxWriteAttempts = 2

// NewS3 loads AWS config and the answer document from bucket/key
func NewS3(ctx context.Context, bucket, key, region string) (*S3, error) {
	if bucket == "" {
		bucket = os.Getenv("S3_BUCKET_NAME")
		if bucket == "" {
			return nil, fmt.Errorf("s3 store requires a bucket name")
		}
	}

	if region == "" {
		region = os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3WithClient(ctx, s3.NewFromConfig(cfg), bucket, key)
}

// NewS3WithClient uses an existing client; a missing object starts an empty store
func NewS3WithClient(ctx context.Context, client ObjectAPI, bucket, key string) (*S3, error) {
	if key == "" {
		key = "answers.json"
	}

	s := &S3{
		client:  client,
		bucket:  bucket,
		key:     key,
		doc:     newDocument(),
		pending: make(map[string]string),
	}
	records, _, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.doc.replace(records)
	return s, nil
}

// fetch downloads the object. A missing object yields no records and an empty ETag.
func (s *S3) fetch(ctx context.Context) (map[string]string, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return map[string]string{}, "", nil
		}
		return nil, "", fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, s.key, err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, "", err
	}
	return records, aws.ToString(out.ETag), nil
}

// Get returns the answer for identifier. A miss re-reads the object so answers
// written by other processes since the load are seen.
func (s *S3) Get(ctx context.Context, identifier string) (string, bool, error) {
	if a, ok := s.doc.get(identifier); ok {
		return a, true, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	records, _, err := s.fetch(ctx)
	if err != nil {
		return "", false, err
	}
	s.refresh(records)
	a, ok := s.doc.get(identifier)
	return a, ok, nil
}

// Put records the answer and uploads it
func (s *S3) Put(ctx context.Context, identifier, answer string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.doc.put(identifier, answer)
	s.pending[identifier] = answer
	return s.sync(ctx)
}

// All returns a copy of the document
func (s *S3) All(context.Context) (map[string]string, error) {
	return s.doc.all(), nil
}

// Flush uploads answers a failed Put left behind
func (s *S3) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.sync(ctx)
}

// sync merges pending answers into the remote document. Callers hold writeMu.
func (s *S3) sync(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		var records map[string]string
		var etag string
		records, etag, err = s.fetch(ctx)
		if err != nil {
			return err
		}
		for k, v := range s.pending {
			records[k] = v
		}

		err = s.upload(ctx, records, etag)
		if err == nil {
			s.doc.replace(records)
			s.pending = make(map[string]string)
			return nil
		}
		if !isWriteConflict(err) {
			break
		}
	}
	return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, s.key, err)
}

func (s *S3) upload(ctx context.Context, records map[string]string, etag string) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode answer document: %w", err)
	}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if etag == "" {
		in.IfNoneMatch = aws.String("*")
	} else {
		in.IfMatch = aws.String(etag)
	}
	_, err = s.client.PutObject(ctx, in)
	return err
}

// refresh adopts remote records while keeping answers not yet uploaded
func (s *S3) refresh(records map[string]string) {
	for k, v := range s.pending {
		records[k] = v
	}
	s.doc.replace(records)
}

// isWriteConflict reports whether a conditional write lost to another writer
func isWriteConflict(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}

// Close uploads any answers still pending
func (s *S3) Close() error {
	return s.Flush(context.Background())
}
