// Package artifact implements run artifact repositories: a local directory,
// an S3 bucket, and the MLflow tracking server's artifact proxy.
package artifact

import (
	"context"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// LocalRepository copies artifacts into a directory tree.
type LocalRepository struct {
	root string
}

// NewLocalRepository accepts a file:// URI or a plain path.
func NewLocalRepository(uri string) (*LocalRepository, error) {
	root := uri
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		root = u.Path
	}
	if root == "" {
		return nil, errors.NewValueError("artifact.NewLocalRepository", "empty artifact location")
	}
	return &LocalRepository{root: filepath.FromSlash(root)}, nil
}

// Root returns the directory artifacts are written to.
func (r *LocalRepository) Root() string { return r.root }

// LogArtifact copies localPath to <root>/<artifactPath>/<base name>.
func (r *LocalRepository) LogArtifact(ctx context.Context, localPath, artifactPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := filepath.Join(r.root, filepath.FromSlash(artifactPath), filepath.Base(localPath))
	return copyFile(localPath, dst)
}

// LogArtifacts copies every regular file under localDir into
// <root>/<artifactPath>, keeping relative paths.
func (r *LocalRepository) LogArtifacts(ctx context.Context, localDir, artifactPath string) error {
	return walkFiles(ctx, localDir, func(abs, rel string) error {
		dst := filepath.Join(r.root, filepath.FromSlash(artifactPath), filepath.FromSlash(rel))
		return copyFile(abs, dst)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(dst))
	}
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copy %s", src)
	}
	return errors.Wrapf(out.Close(), "close %s", dst)
}

// walkFiles calls fn for each regular file under dir with its absolute path
// and its slash-separated path relative to dir.
func walkFiles(ctx context.Context, dir string, fn func(abs, rel string) error) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		return fn(p, filepath.ToSlash(rel))
	})
}

// joinKey joins slash-separated key parts, skipping empty ones.
func joinKey(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return path.Join(nonEmpty...)
}
