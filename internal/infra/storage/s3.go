package storage

import (
	"context"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// DefaultExpiry is the lifetime of presigned URLs.
const DefaultExpiry = 60 * time.Minute

// S3Options configures an S3 store.
type S3Options struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string // for S3-compatible services
	UsePathStyle bool
	Expiry       time.Duration
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type objectHeader interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store hands out presigned GET URLs for objects under a key prefix.
type S3Store struct {
	presigner objectPresigner
	header    objectHeader
	bucket    string
	prefix    string
	expiry    time.Duration
}

// NewS3Store creates an S3 store using the AWS default credential chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	zlog.Info().Msgf("storage: s3 bucket=%s prefix=%s expiry=%s", opts.Bucket, opts.Prefix, opts.Expiry)
	return newS3Store(s3.NewPresignClient(client), client, opts), nil
}

func newS3Store(presigner objectPresigner, header objectHeader, opts S3Options) *S3Store {
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &S3Store{
		presigner: presigner,
		header:    header,
		bucket:    opts.Bucket,
		prefix:    opts.Prefix,
		expiry:    expiry,
	}
}

func (s *S3Store) key(location string) (string, error) {
	rel, err := cleanLocation(location)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return rel, nil
	}
	return path.Join(s.prefix, rel), nil
}

// Resolve returns a presigned URL. The object is not checked.
func (s *S3Store) Resolve(ctx context.Context, location string) (Content, error) {
	key, err := s.key(location)
	if err != nil {
		return Content{}, err
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return Content{}, errors.Wrapf(err, "failed to presign %s", key)
	}
	return Content{URL: req.URL}, nil
}

// Exists checks the object with a HEAD request.
func (s *S3Store) Exists(ctx context.Context, location string) (bool, error) {
	key, err := s.key(location)
	if err != nil {
		return false, err
	}
	_, err = s.header.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to head %s", key)
	}
	return true, nil
}

// Name returns the storage type.
func (s *S3Store) Name() string {
	return "s3"
}
