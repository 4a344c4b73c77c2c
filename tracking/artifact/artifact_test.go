package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/tracking"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stageModelDir creates MLmodel, model.json, and nested/extra.txt.
func stageModelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MLmodel"), []byte("artifact_path: model\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte("{}"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "extra.txt"), []byte("x"), 0o644))
	return dir
}

type fakeS3 struct {
	mu   sync.Mutex
	keys map[string]string
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = map[string]string{}
	}
	f.keys[*in.Bucket+"/"+*in.Key] = string(body)
	return &s3.PutObjectOutput{}, nil
}

type fakeUploader struct {
	paths []string
}

func (f *fakeUploader) UploadArtifact(ctx context.Context, path string, file *os.File) error {
	f.paths = append(f.paths, path)
	return nil
}

func TestLocalRepository(t *testing.T) {
	root := t.TempDir()
	repo, err := NewLocalRepository("file://" + root)
	require.NoError(t, err)
	assert.Equal(t, root, repo.Root())

	src := stageModelDir(t)
	require.NoError(t, repo.LogArtifacts(context.Background(), src, "model"))
	require.NoError(t, repo.LogArtifact(context.Background(), filepath.Join(src, "model.json"), "plots"))

	for _, p := range []string{"model/MLmodel", "model/model.json", "model/nested/extra.txt", "plots/model.json"} {
		assert.FileExists(t, filepath.Join(root, filepath.FromSlash(p)))
	}

	_, err = NewLocalRepository("")
	assert.Error(t, err)
}

func TestS3Repository(t *testing.T) {
	client := &fakeS3{}
	repo, err := NewS3Repository(client, "s3://bucket/mlflow/1/abc/artifacts")
	require.NoError(t, err)

	src := stageModelDir(t)
	require.NoError(t, repo.LogArtifacts(context.Background(), src, "model"))
	require.NoError(t, repo.LogArtifact(context.Background(), filepath.Join(src, "MLmodel"), ""))

	keys := make([]string, 0, len(client.keys))
	for k := range client.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"bucket/mlflow/1/abc/artifacts/MLmodel",
		"bucket/mlflow/1/abc/artifacts/model/MLmodel",
		"bucket/mlflow/1/abc/artifacts/model/model.json",
		"bucket/mlflow/1/abc/artifacts/model/nested/extra.txt",
	}, keys)
	assert.Equal(t, "{}", client.keys["bucket/mlflow/1/abc/artifacts/model/model.json"])

	client.err = errors.New("access denied")
	assert.Error(t, repo.LogArtifacts(context.Background(), src, "model"))

	_, err = NewS3Repository(client, "s3:///no-bucket")
	assert.Error(t, err)
}

func TestProxyRepository(t *testing.T) {
	up := &fakeUploader{}
	repo, err := NewProxyRepository(up, "mlflow-artifacts:/0/abc/artifacts")
	require.NoError(t, err)

	require.NoError(t, repo.LogArtifact(context.Background(), filepath.Join(stageModelDir(t), "MLmodel"), "model"))
	assert.Equal(t, []string{"0/abc/artifacts/model/MLmodel"}, up.paths)

	repo, err = NewProxyRepository(up, "mlflow-artifacts://tracking.example.com/5/def/artifacts")
	require.NoError(t, err)
	up.paths = nil
	require.NoError(t, repo.LogArtifacts(context.Background(), stageModelDir(t), ""))
	assert.Contains(t, up.paths, "5/def/artifacts/nested/extra.txt")
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	r := (&Resolver{Proxy: &fakeUploader{}}).WithS3Client(&fakeS3{})

	repo, err := r.Repository(ctx, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &LocalRepository{}, repo)

	repo, err = r.Repository(ctx, "s3://bucket/prefix")
	require.NoError(t, err)
	assert.IsType(t, &S3Repository{}, repo)

	repo, err = r.Repository(ctx, "mlflow-artifacts:/1/run/artifacts")
	require.NoError(t, err)
	assert.IsType(t, &ProxyRepository{}, repo)

	_, err = r.Repository(ctx, "gs://bucket/prefix")
	assert.True(t, errors.Is(err, tracking.ErrUnsupportedScheme))

	_, err = (&Resolver{}).Repository(ctx, "mlflow-artifacts:/1/run/artifacts")
	assert.Error(t, err)
}
