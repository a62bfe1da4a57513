// Package s3store is the default blobstore.BlobStore backed by
// github.com/aws/aws-sdk-go's S3 client, grounded on the teacher's
// producer/awsS3.go and core/components/awsMultiClient.go credential
// resolution (shared/static/env/instance-role).
package s3store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

const defaultEndpoint = "s3.amazonaws.com"

// CredentialType selects how AWS credentials are resolved, mirroring the
// teacher's components.AwsCredentials type selector.
type CredentialType string

const (
	CredentialEnv    CredentialType = "environment"
	CredentialStatic CredentialType = "static"
	CredentialShared CredentialType = "shared"
	CredentialNone   CredentialType = "none"
)

// Config is the primitive configuration needed to build a Store; no
// config back-reference is held (spec.md §9).
type Config struct {
	Region         string
	Endpoint       string
	CredentialType CredentialType
	StaticID       string
	StaticSecret   string
	StaticToken    string
	SharedFile     string
	SharedProfile  string
}

func (c Config) resolveCredentials() *credentials.Credentials {
	switch c.CredentialType {
	case CredentialEnv:
		return credentials.NewEnvCredentials()
	case CredentialStatic:
		return credentials.NewStaticCredentials(c.StaticID, c.StaticSecret, c.StaticToken)
	case CredentialShared:
		return credentials.NewSharedCredentials(c.SharedFile, c.SharedProfile)
	default:
		return credentials.AnonymousCredentials
	}
}

// Store implements blobstore.BlobStore against a single AWS region.
type Store struct {
	client   *s3.S3
	uploader *s3manager.Uploader
}

// New builds a Store from Config, resolving the S3 endpoint the same way
// the teacher's AwsMultiClient.Configure does: default to the region's
// regional endpoint unless one is explicitly set.
func New(cfg Config) (*Store, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if region != "us-east-1" {
			endpoint = fmt.Sprintf("s3-%s.amazonaws.com", region)
		} else {
			endpoint = defaultEndpoint
		}
	}

	awsConfig := aws.NewConfig().
		WithRegion(region).
		WithEndpoint(endpoint).
		WithCredentials(cfg.resolveCredentials())
	awsConfig.CredentialsChainVerboseErrors = aws.Bool(true)

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsConfig,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "s3store: creating session")
	}

	client := s3.New(sess, awsConfig)
	return &Store{client: client, uploader: s3manager.NewUploaderWithClient(client)}, nil
}

// bucketAndKey splits a "bucket/key/with/slashes" remote URI the way the
// teacher's awsS3 producer does (strings.SplitN on the first "/").
func bucketAndKey(remoteURI string) (bucket, key string) {
	trimmed := strings.TrimPrefix(remoteURI, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// Upload streams localPath's contents into bucket/key via the S3 managed
// uploader (multipart above the SDK's default part-size threshold),
// overwriting any existing object with the same key — which is exactly
// what makes a retried upload idempotent (spec.md §8 property 4).
func (s *Store) Upload(ctx context.Context, localPath, remoteURI string) error {
	bucket, key := bucketAndKey(remoteURI)

	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "s3store: opening %s for upload", localPath)
	}
	defer f.Close()

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return errors.Wrapf(err, "s3store: uploading %s to s3://%s/%s", localPath, bucket, key)
	}
	return nil
}

// List enumerates objects under prefix, returning them as s3:// URIs.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	bucket, key := bucketAndKey(prefix)

	var uris []string
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			uris = append(uris, fmt.Sprintf("s3://%s/%s", bucket, aws.StringValue(obj.Key)))
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "s3store: listing s3://%s/%s", bucket, key)
	}
	return uris, nil
}

// Delete removes the object at remoteURI.
func (s *Store) Delete(ctx context.Context, remoteURI string) error {
	bucket, key := bucketAndKey(remoteURI)
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "s3store: deleting s3://%s/%s", bucket, key)
	}
	return nil
}
