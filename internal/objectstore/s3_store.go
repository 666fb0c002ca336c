package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/book-expert/automuse/internal/core"
)

const contentTypeWAV = "audio/wav"

// S3API is the subset of the S3 client the store needs.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures an S3Store.
type S3Options struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint, e.g. for MinIO. Empty uses AWS.
	Endpoint string
}

// S3Store implements core.ObjectStore on an S3 bucket.
type S3Store struct {
	client S3API
	opts   S3Options
}

// NewS3 wraps an existing client.
func NewS3(client S3API, opts S3Options) *S3Store {
	return &S3Store{client: client, opts: opts}
}

// NewS3FromConfig builds a client from the default AWS credential chain.
func NewS3FromConfig(ctx context.Context, opts S3Options) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3(client, opts), nil
}

// Stat issues a HEAD request for key. Only an explicit not-found answer counts
// as free; transport and auth errors are reported as a failed check.
func (s *S3Store) Stat(ctx context.Context, key string) (core.Presence, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return core.PresenceFound, nil
	}

	var (
		notFound  *types.NotFound
		noSuchKey *types.NoSuchKey
	)

	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return core.PresenceNotFound, nil
	}

	return core.PresenceCheckFailed, fmt.Errorf("failed to head s3://%s/%s: %w", s.opts.Bucket, key, err)
}

// UploadFile puts the local file at key.
func (s *S3Store) UploadFile(ctx context.Context, key, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open '%s' for upload: %w", localPath, err)
	}
	defer file.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentTypeWAV),
	})
	if err != nil {
		return fmt.Errorf("failed to upload '%s' to s3://%s/%s: %w", localPath, s.opts.Bucket, key, err)
	}

	return nil
}

// List returns every object under prefix, following continuation tokens.
func (s *S3Store) List(ctx context.Context, prefix string) ([]core.ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.opts.Bucket),
		Prefix: aws.String(prefix),
	})

	var objects []core.ObjectInfo

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.opts.Bucket, prefix, err)
		}

		for _, object := range page.Contents {
			objects = append(objects, core.ObjectInfo{
				Key:      aws.ToString(object.Key),
				Size:     aws.ToInt64(object.Size),
				Modified: aws.ToTime(object.LastModified),
			})
		}
	}

	return objects, nil
}

// URL returns the public URL of key.
func (s *S3Store) URL(key string) string {
	if s.opts.Endpoint != "" {
		return strings.TrimSuffix(s.opts.Endpoint, "/") + "/" + s.opts.Bucket + "/" + key
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, key)
}
