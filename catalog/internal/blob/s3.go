package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/nevc-media/vidstream/common/logging"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Options struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint (MinIO, LocalStack) and switches
	// to path-style addressing.
	Endpoint string
	Prefix   string
}

// S3Store keeps blobs in an S3 bucket under an optional key prefix.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store builds a client from the default AWS credential chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, opts.Bucket, opts.Prefix), nil
}

func NewS3StoreWithClient(client S3API, bucket, prefix string) *S3Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) objectKey(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return s.prefix + key, nil
}

// Stage spools the upload to a temporary file first so PutObject gets a
// seekable body with a known length.
func (s *S3Store) Stage(ctx context.Context, r io.Reader) (string, int64, error) {
	spool, err := os.CreateTemp("", "vidstream-upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create spool file: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	n, err := io.Copy(spool, contextReader{ctx: ctx, r: r})
	if err != nil {
		return "", 0, fmt.Errorf("failed to spool upload: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return "", 0, fmt.Errorf("failed to rewind spool file: %w", err)
	}

	key := stagingDir + "/" + uuid.NewString()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.prefix + key),
		Body:          spool,
		ContentLength: aws.Int64(n),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, n, nil
}

// Promote copies the staged object server-side and then removes the staged copy.
func (s *S3Store) Promote(ctx context.Context, stagingKey, finalKey string) error {
	if !strings.HasPrefix(stagingKey, stagingDir+"/") || strings.HasPrefix(finalKey, stagingDir+"/") {
		return ErrInvalidKey
	}
	src, err := s.objectKey(stagingKey)
	if err != nil {
		return err
	}
	dst, err := s.objectKey(finalKey)
	if err != nil {
		return err
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(copySource(s.bucket, src)),
		Key:        aws.String(dst),
	})
	if err != nil {
		if isS3NotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to promote blob: %w", err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(src),
	}); err != nil {
		slog.Warn("failed to delete staged object", logging.BlobKey(stagingKey), logging.Error(err))
	}
	return nil
}

func (s *S3Store) Discard(ctx context.Context, stagingKey string) error {
	if !strings.HasPrefix(stagingKey, stagingDir+"/") {
		return ErrInvalidKey
	}
	return s.Delete(ctx, stagingKey)
}

// Open streams the object. The body is not seekable, so callers serving
// byte ranges must fall back to a plain copy.
func (s *S3Store) Open(ctx context.Context, key string) (*Object, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return &Object{
		Content: out.Body,
		Size:    aws.ToInt64(out.ContentLength),
		ModTime: aws.ToTime(out.LastModified),
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// copySource URL-encodes each segment of bucket/key, keeping the separators.
func copySource(bucket, key string) string {
	parts := strings.Split(bucket+"/"+key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
