package tracking

import (
	"context"
	"net/url"
	"strings"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// Errors shared by every backend. Backends mark their own errors with these
// so callers can test with errors.Is.
var (
	ErrNotFound          = errors.New("resource does not exist")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrRunNotActive      = errors.New("run is not active")
	ErrUnsupportedScheme = errors.New("unsupported tracking URI scheme")
	ErrNoRegistry        = errors.New("tracking backend has no model registry")
)

// CreateRunRequest describes a run to create.
type CreateRunRequest struct {
	ExperimentID string
	UserID       string
	RunName      string
	StartTime    int64
	Tags         []RunTag
}

// Store persists experiments and runs.
type Store interface {
	// GetExperimentByName returns ErrNotFound when no active experiment has
	// the name.
	GetExperimentByName(ctx context.Context, name string) (*Experiment, error)
	CreateExperiment(ctx context.Context, name, artifactLocation string) (string, error)
	CreateRun(ctx context.Context, req CreateRunRequest) (*RunInfo, error)
	LogBatch(ctx context.Context, runID string, metrics []Metric, params []Param, tags []RunTag) error
	UpdateRun(ctx context.Context, runID string, status RunStatus, endTime int64) (*RunInfo, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
}

// ModelRegistry versions models produced by runs.
type ModelRegistry interface {
	// CreateRegisteredModel returns ErrAlreadyExists when name is taken.
	CreateRegisteredModel(ctx context.Context, name string) error
	CreateModelVersion(ctx context.Context, name, source, runID string) (*ModelVersion, error)
}

// ArtifactRepository stores files under a run's artifact URI.
type ArtifactRepository interface {
	// LogArtifact uploads one local file into artifactPath ("" is the root).
	LogArtifact(ctx context.Context, localPath, artifactPath string) error
	// LogArtifacts uploads the contents of localDir into artifactPath.
	LogArtifacts(ctx context.Context, localDir, artifactPath string) error
}

// ArtifactRepositoryFactory returns the repository for a run's artifact URI.
type ArtifactRepositoryFactory func(ctx context.Context, artifactURI string) (ArtifactRepository, error)

// Scheme returns the lower-cased scheme of a tracking URI. Bare paths, Windows
// drive letters, and the empty string yield "file".
func Scheme(uri string) string {
	if uri == "" {
		return "file"
	}
	u, err := url.Parse(uri)
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// UsesRegistry reports whether models logged against uri are registered. The
// local file store has no registry.
func UsesRegistry(uri string) bool {
	return Scheme(uri) != "file"
}
