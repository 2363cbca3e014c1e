package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// presignTTL is the lifetime of a URL handed out by Resolve. It only has
// to outlive one page view, since every read signs a fresh one.
const presignTTL = time.Hour

const scheme = "s3://"

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner signs GET requests for private buckets.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Config struct {
	Region string
	Bucket string
	// PublicBaseURL, when set, is joined with the object key to form the
	// reference (a CDN or public bucket). Otherwise the reference is
	// s3://bucket/key and Resolve presigns it.
	PublicBaseURL string
	Prefix        string
}

// S3 uploads images to a bucket under Prefix, keyed by trial id.
type S3 struct {
	api     ObjectAPI
	presign Presigner
	cfg     S3Config
}

// NewS3 loads AWS credentials from the default chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("imagestore: S3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("imagestore: loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return NewS3WithClient(client, s3.NewPresignClient(client), cfg), nil
}

// NewS3WithClient builds the store on an existing client; tests pass fakes.
func NewS3WithClient(api ObjectAPI, presign Presigner, cfg S3Config) *S3 {
	if cfg.Prefix == "" {
		cfg.Prefix = "trials/"
	}
	return &S3{api: api, presign: presign, cfg: cfg}
}

func (s *S3) Put(ctx context.Context, name string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	key := s.cfg.Prefix + name + extension(mimeType)

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("imagestore: uploading %s: %w", key, err)
	}

	if s.cfg.PublicBaseURL != "" {
		return joinURL(s.cfg.PublicBaseURL, key)
	}
	return scheme + s.cfg.Bucket + "/" + key, nil
}

// Resolve presigns s3:// references into this store's bucket. Public URLs,
// data URIs and references into other buckets are returned as they are.
func (s *S3) Resolve(ctx context.Context, ref string) (string, error) {
	key, ok := strings.CutPrefix(ref, scheme+s.cfg.Bucket+"/")
	if !ok || key == "" {
		return ref, nil
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", fmt.Errorf("imagestore: presigning %s: %w", key, err)
	}
	return req.URL, nil
}

func joinURL(base, key string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/" + key)
	if err != nil {
		return "", fmt.Errorf("imagestore: building public URL: %w", err)
	}
	return u.String(), nil
}
