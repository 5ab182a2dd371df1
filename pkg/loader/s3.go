package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/config"
)

// S3API is the subset of the S3 client used to fetch extracts
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Opener opens extracts stored as objects under a bucket prefix
type S3Opener struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Opener builds an S3 client from the default AWS credential chain
func NewS3Opener(ctx context.Context, cfg config.S3Config) (*S3Opener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3OpenerWithClient(client, cfg.Bucket, cfg.Prefix)
}

// NewS3OpenerWithClient wraps an existing client
func NewS3OpenerWithClient(client S3API, bucket, prefix string) (*S3Opener, error) {
	if client == nil {
		return nil, errors.New("s3 client cannot be nil")
	}
	if bucket == "" {
		return nil, errors.New("bucket cannot be empty")
	}
	return &S3Opener{client: client, bucket: bucket, prefix: prefix}, nil
}

// Open fetches the object for name; a missing object reports fs.ErrNotExist
func (o *S3Opener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := path.Join(o.prefix, name)
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", o.bucket, key, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", o.bucket, key, err)
	}
	return out.Body, nil
}

// Describe names the bucket and prefix
func (o *S3Opener) Describe() string {
	return "s3://" + path.Join(o.bucket, o.prefix)
}
