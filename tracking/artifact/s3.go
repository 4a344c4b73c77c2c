package artifact

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of the S3 client the repository uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Repository uploads artifacts under s3://<bucket>/<prefix>.
type S3Repository struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Client builds an S3 client from the default AWS credential chain.
// endpoint overrides the service URL, for MinIO and other S3-compatible
// stores, and switches to path-style addressing.
func NewS3Client(ctx context.Context, endpoint string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load AWS configuration")
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Repository parses an s3:// artifact URI.
func NewS3Repository(client PutObjectAPI, uri string) (*S3Repository, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "parse artifact URI %s", uri)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return nil, errors.NewValueError("artifact.NewS3Repository", "not an s3://bucket URI: "+uri)
	}
	return &S3Repository{
		client: client,
		bucket: u.Host,
		prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// LogArtifact uploads localPath to <prefix>/<artifactPath>/<base name>.
func (r *S3Repository) LogArtifact(ctx context.Context, localPath, artifactPath string) error {
	return r.put(ctx, localPath, joinKey(r.prefix, artifactPath, filepath.Base(localPath)))
}

// LogArtifacts uploads every regular file under localDir.
func (r *S3Repository) LogArtifacts(ctx context.Context, localDir, artifactPath string) error {
	return walkFiles(ctx, localDir, func(abs, rel string) error {
		return r.put(ctx, abs, joinKey(r.prefix, artifactPath, rel))
	})
}

func (r *S3Repository) put(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", localPath)
	}
	defer f.Close()

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return errors.Wrapf(err, "put s3://%s/%s", r.bucket, key)
	}
	return nil
}
