package tracking

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/YuminosukeSato/winequality/core/model"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Files written for a logged model.
const (
	MLModelFile      = "MLmodel"
	ModelWeightsFile = "model.json"
	ModelGobFile     = "model.gob"

	// FlavorGoLinear names the flavor block describing a Go linear model.
	FlavorGoLinear = "go_linear"
)

// MLModel is the MLmodel descriptor stored next to a model's files.
type MLModel struct {
	ArtifactPath   string                            `yaml:"artifact_path" json:"artifact_path"`
	Flavors        map[string]map[string]interface{} `yaml:"flavors" json:"flavors"`
	ModelUUID      string                            `yaml:"model_uuid" json:"model_uuid"`
	RunID          string                            `yaml:"run_id" json:"run_id"`
	UTCTimeCreated string                            `yaml:"utc_time_created" json:"utc_time_created"`
}

// ReadMLModel decodes an MLmodel descriptor.
func ReadMLModel(r io.Reader) (*MLModel, error) {
	var m MLModel
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(err, "decode MLmodel")
	}
	return &m, nil
}

// ModelSource is the registry source URI of a model logged by a run.
func ModelSource(runID, artifactPath string) string {
	return "runs:/" + runID + "/" + artifactPath
}

// LogModel writes m under artifactPath as an MLmodel descriptor, the JSON
// weights, and a gob copy of the weights. When registeredName is not empty the
// model is also registered and the new version returned; a registry failure
// is returned as an error.
func (r *ActiveRun) LogModel(ctx context.Context, artifactPath string, m model.WeightExporter, registeredName string) (*ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireActive("log model"); err != nil {
		return nil, err
	}
	if registeredName != "" && r.session.registry == nil {
		return nil, errors.Wrapf(ErrNoRegistry, "register %q", registeredName)
	}

	weights, err := m.ExportWeights()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "winequality-model-")
	if err != nil {
		return nil, errors.Wrap(err, "create model staging directory")
	}
	defer os.RemoveAll(dir)

	desc := &MLModel{
		ArtifactPath: artifactPath,
		Flavors: map[string]map[string]interface{}{
			FlavorGoLinear: {
				"model_type":     weights.ModelType,
				"data":           ModelWeightsFile,
				"gob":            ModelGobFile,
				"format_version": weights.Version,
				"go_version":     runtime.Version(),
			},
		},
		ModelUUID:      uuid.NewString(),
		RunID:          r.info.RunID,
		UTCTimeCreated: r.session.now().UTC().Format("2006-01-02 15:04:05.000000"),
	}
	if err := writeModelFiles(dir, desc, weights); err != nil {
		return nil, err
	}

	repo, err := r.repository(ctx)
	if err != nil {
		return nil, err
	}
	if err := repo.LogArtifacts(ctx, dir, artifactPath); err != nil {
		return nil, errors.Wrapf(err, "upload model to %s", artifactPath)
	}

	history, err := json.Marshal([]*MLModel{desc})
	if err != nil {
		return nil, errors.Wrap(err, "encode model history")
	}
	if err := r.session.store.LogBatch(ctx, r.info.RunID, nil, nil,
		[]RunTag{{Key: TagLogModel, Value: string(history)}}); err != nil {
		return nil, errors.Wrap(err, "tag logged model")
	}
	r.log.Info("Model logged", log.ArtifactPathKey, artifactPath, log.ModelNameKey, weights.ModelType)

	if registeredName == "" {
		return nil, nil
	}
	return r.register(ctx, registeredName, ModelSource(r.info.RunID, artifactPath))
}

func (r *ActiveRun) register(ctx context.Context, name, source string) (*ModelVersion, error) {
	reg := r.session.registry
	if err := reg.CreateRegisteredModel(ctx, name); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return nil, errors.Wrapf(err, "create registered model %q", name)
	}
	mv, err := reg.CreateModelVersion(ctx, name, source, r.info.RunID)
	if err != nil {
		return nil, errors.Wrapf(err, "create model version of %q", name)
	}
	r.log.Info("Model registered",
		log.RegisteredModelKey, name,
		log.ModelVersionKey, mv.Version,
	)
	return mv, nil
}

func writeModelFiles(dir string, desc *MLModel, weights *model.ModelWeights) error {
	descBytes, err := yaml.Marshal(desc)
	if err != nil {
		return errors.Wrap(err, "encode MLmodel")
	}
	if err := os.WriteFile(filepath.Join(dir, MLModelFile), descBytes, 0o644); err != nil {
		return errors.Wrap(err, "write MLmodel")
	}

	js, err := weights.ToJSON()
	if err != nil {
		return errors.Wrap(err, "encode model weights")
	}
	if err := os.WriteFile(filepath.Join(dir, ModelWeightsFile), js, 0o644); err != nil {
		return errors.Wrap(err, "write model weights")
	}

	f, err := os.Create(filepath.Join(dir, ModelGobFile))
	if err != nil {
		return errors.Wrap(err, "create model.gob")
	}
	if err := model.SaveWeights(weights, f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close model.gob")
}
