package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/roach88/gqlcache/internal/gql"
)

// S3API is the subset of *s3.Client used by S3Sink.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Sink stores hydration payloads as JSON objects under Bucket/Prefix.
type S3Sink struct {
	Client S3API
	Bucket string
	Prefix string
}

// NewS3Sink creates a sink.
func NewS3Sink(client S3API, bucket, prefix string) *S3Sink {
	return &S3Sink{Client: client, Bucket: bucket, Prefix: prefix}
}

// Key returns the object key for name.
func (s *S3Sink) Key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return path.Join(s.Prefix, name)
}

// Put uploads cache as name.
func (s *S3Sink) Put(ctx context.Context, name string, cache gql.Cache) error {
	data, err := gql.MarshalCache(cache)
	if err != nil {
		return err
	}
	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.Key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.Bucket, s.Key(name), err)
	}
	return nil
}

// Get downloads the cache stored as name.
func (s *S3Sink) Get(ctx context.Context, name string) (gql.Cache, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.Bucket, s.Key(name), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.Bucket, s.Key(name), err)
	}
	return gql.UnmarshalCache(data)
}

// LoadAWSConfig loads the default AWS config chain (env, shared config,
// IMDS). A non-empty region overrides the chain's region.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

// NewS3Client constructs an S3 client from cfg.
func NewS3Client(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
	return s3.NewFromConfig(cfg, optFns...)
}
