package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// s3API is the subset of the S3 client the store uses.
type s3API interface {
	HeadObjectWithContext(ctx aws.Context, input *s3.HeadObjectInput, opts ...request.Option) (*s3.HeadObjectOutput, error)
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// S3Options configures an S3Store.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Store keeps documents as objects named after their digest in an S3 (or
// S3 compatible) bucket.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Store creates an S3 backed store. Static credentials are used when both keys
// are set, otherwise the default AWS credential chain applies.
func NewS3Store(opts S3Options, logger *zap.Logger) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	cfg := aws.Config{Region: aws.String(opts.Region)}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		// MinIO and most compatible services don't support virtual hosted buckets.
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return newS3Store(s3.New(sess), opts.Bucket, opts.Prefix, logger), nil
}

func newS3Store(client s3API, bucket, prefix string, logger *zap.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

func (s *S3Store) key(id ledger.SecureHash) string {
	return path.Join(s.prefix, id.String())
}

func isNotFound(err error) bool {
	var aerr awserr.RequestFailure
	if errors.As(err, &aerr) && aerr.StatusCode() == http.StatusNotFound {
		return true
	}
	var cerr awserr.Error
	if errors.As(err, &cerr) {
		return cerr.Code() == s3.ErrCodeNoSuchKey || cerr.Code() == "NotFound"
	}
	return false
}

func (s *S3Store) Exists(ctx context.Context, id ledger.SecureHash) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}
	return true, nil
}

func (s *S3Store) Fetch(ctx context.Context, id ledger.SecureHash) ([]byte, error) {
	start := time.Now()
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	if Digest(data) != id {
		return nil, fmt.Errorf("%w: object %s", ErrCorrupt, s.key(id))
	}

	s.logger.Debug("Fetched attachment from S3",
		zap.String("bucket", s.bucket),
		zap.String("key", s.key(id)),
		zap.Int("size", len(data)),
		zap.Duration("duration", time.Since(start)))
	return data, nil
}

// Import uploads data unless an object with the same digest already exists.
// Concurrent uploads of identical content write identical bytes to the same key.
func (s *S3Store) Import(ctx context.Context, data []byte) (id ledger.SecureHash, err error) {
	defer func() { recordImport("s3", err) }()

	id = Digest(data)
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return id, err
	}
	if exists {
		return id, nil
	}

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return id, fmt.Errorf("failed to upload object to S3: %w", err)
	}

	s.logger.Debug("Stored attachment in S3",
		zap.String("bucket", s.bucket),
		zap.String("key", s.key(id)))
	return id, nil
}
