package artifact

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// Uploader sends one artifact to the tracking server's artifact proxy.
// path is relative to the proxy root.
type Uploader interface {
	UploadArtifact(ctx context.Context, path string, file *os.File) error
}

// ProxyRepository stores artifacts through a tracking server that serves
// mlflow-artifacts: URIs.
type ProxyRepository struct {
	up   Uploader
	base string
}

// NewProxyRepository parses an mlflow-artifacts: URI. Both the
// mlflow-artifacts:/path and mlflow-artifacts://host/path forms are accepted;
// the host, if any, is ignored in favor of the uploader's server.
func NewProxyRepository(up Uploader, uri string) (*ProxyRepository, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "parse artifact URI %s", uri)
	}
	if u.Scheme != "mlflow-artifacts" {
		return nil, errors.NewValueError("artifact.NewProxyRepository", "not an mlflow-artifacts URI: "+uri)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return &ProxyRepository{up: up, base: strings.Trim(p, "/")}, nil
}

// LogArtifact uploads localPath to <base>/<artifactPath>/<base name>.
func (r *ProxyRepository) LogArtifact(ctx context.Context, localPath, artifactPath string) error {
	return r.upload(ctx, localPath, joinKey(r.base, artifactPath, filepath.Base(localPath)))
}

// LogArtifacts uploads every regular file under localDir.
func (r *ProxyRepository) LogArtifacts(ctx context.Context, localDir, artifactPath string) error {
	return walkFiles(ctx, localDir, func(abs, rel string) error {
		return r.upload(ctx, abs, joinKey(r.base, artifactPath, rel))
	})
}

func (r *ProxyRepository) upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", localPath)
	}
	defer f.Close()
	return r.up.UploadArtifact(ctx, key, f)
}
