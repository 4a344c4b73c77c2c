// Package tracking records training runs (parameters, metrics, tags, and
// artifacts) in an MLflow-compatible experiment tracking backend.
//
// A Session is built once per process from a tracking URI and hands out
// ActiveRun handles. Session.Run scopes a run to a function call and always
// closes it with a terminal status.
package tracking

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// RunStatus is the lifecycle status of a run. Values match the MLflow enum.
type RunStatus int

const (
	StatusRunning   RunStatus = 1
	StatusScheduled RunStatus = 2
	StatusFinished  RunStatus = 3
	StatusFailed    RunStatus = 4
	StatusKilled    RunStatus = 5
)

var statusNames = map[RunStatus]string{
	StatusRunning:   "RUNNING",
	StatusScheduled: "SCHEDULED",
	StatusFinished:  "FINISHED",
	StatusFailed:    "FAILED",
	StatusKilled:    "KILLED",
}

func (s RunStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RunStatus(%d)", int(s))
}

// Terminal reports whether s ends a run.
func (s RunStatus) Terminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusKilled
}

// ParseRunStatus converts an MLflow status name into a RunStatus.
func ParseRunStatus(name string) (RunStatus, error) {
	for s, n := range statusNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, errors.NewValueError("tracking.ParseRunStatus", fmt.Sprintf("unknown run status %q", name))
}

// Lifecycle stages.
const (
	LifecycleActive  = "active"
	LifecycleDeleted = "deleted"
)

// Default experiment created implicitly by every backend.
const (
	DefaultExperimentID   = "0"
	DefaultExperimentName = "Default"
)

// Experiment groups runs.
type Experiment struct {
	ID               string
	Name             string
	ArtifactLocation string
	LifecycleStage   string
	CreationTime     int64
	LastUpdateTime   int64
}

// RunInfo is the metadata of a run.
type RunInfo struct {
	RunID          string
	RunName        string
	ExperimentID   string
	UserID         string
	Status         RunStatus
	StartTime      int64
	EndTime        int64
	ArtifactURI    string
	LifecycleStage string
}

// Param is a string-valued hyperparameter. Params are write-once.
type Param struct {
	Key   string
	Value string
}

// Metric is one observation of a numeric value. Timestamp is in Unix
// milliseconds.
type Metric struct {
	Key       string
	Value     float64
	Timestamp int64
	Step      int64
}

// RunTag is a mutable string annotation on a run.
type RunTag struct {
	Key   string
	Value string
}

// RunData is everything logged to a run. Metrics hold the latest value per key.
type RunData struct {
	Params  []Param
	Metrics []Metric
	Tags    []RunTag
}

// Param returns the value of key and whether it was logged.
func (d RunData) Param(key string) (string, bool) {
	for _, p := range d.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Metric returns the latest value of key and whether it was logged.
func (d RunData) Metric(key string) (float64, bool) {
	for _, m := range d.Metrics {
		if m.Key == key {
			return m.Value, true
		}
	}
	return 0, false
}

// Tag returns the value of key and whether it was set.
func (d RunData) Tag(key string) (string, bool) {
	for _, t := range d.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// Run is a run with its data.
type Run struct {
	Info RunInfo
	Data RunData
}

// ModelVersion is one registered version of a model.
type ModelVersion struct {
	Name         string
	Version      string
	Source       string
	RunID        string
	Status       string
	CreationTime int64
}

// Standard tag keys.
const (
	TagRunName    = "mlflow.runName"
	TagUser       = "mlflow.user"
	TagSourceName = "mlflow.source.name"
	TagSourceType = "mlflow.source.type"
	TagLogModel   = "mlflow.log-model.history"
)
