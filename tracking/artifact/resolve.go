package artifact

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/tracking"
)

// Resolver maps artifact URIs to repositories. The S3 client is created on
// first use so that runs never touching S3 need no AWS configuration.
type Resolver struct {
	// S3Endpoint overrides the S3 service URL (MLFLOW_S3_ENDPOINT_URL).
	S3Endpoint string
	// Proxy serves mlflow-artifacts: URIs; nil disables them.
	Proxy Uploader

	mu       sync.Mutex
	s3Client PutObjectAPI
}

// WithS3Client installs a preconstructed S3 client.
func (r *Resolver) WithS3Client(c PutObjectAPI) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s3Client = c
	return r
}

// Repository implements tracking.ArtifactRepositoryFactory.
func (r *Resolver) Repository(ctx context.Context, uri string) (tracking.ArtifactRepository, error) {
	scheme := "file"
	if u, err := url.Parse(uri); err == nil && len(u.Scheme) > 1 {
		scheme = strings.ToLower(u.Scheme)
	}

	switch scheme {
	case "file":
		repo, err := NewLocalRepository(uri)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "s3":
		client, err := r.s3(ctx)
		if err != nil {
			return nil, err
		}
		repo, err := NewS3Repository(client, uri)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "mlflow-artifacts":
		if r.Proxy == nil {
			return nil, errors.NewValueError("artifact.Resolve", "mlflow-artifacts URI without a tracking server: "+uri)
		}
		repo, err := NewProxyRepository(r.Proxy, uri)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, errors.Wrapf(tracking.ErrUnsupportedScheme, "artifact URI %s", uri)
	}
}

func (r *Resolver) s3(ctx context.Context) (PutObjectAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.s3Client != nil {
		return r.s3Client, nil
	}
	c, err := NewS3Client(ctx, r.S3Endpoint)
	if err != nil {
		return nil, err
	}
	r.s3Client = c
	return c, nil
}
