package tracking

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
)

type runState int

const (
	runNotStarted runState = iota
	runActive
	runClosed
)

// ActiveRun is a handle on one tracking run. It moves NotStarted → Active →
// Closed and never reopens. Logging outside the active state returns
// ErrRunNotActive.
type ActiveRun struct {
	session *Session

	mu    sync.Mutex
	state runState
	info  RunInfo
	log   log.Logger
}

func (r *ActiveRun) start(ctx context.Context, experimentID string, opts RunOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != runNotStarted {
		return errors.Wrap(ErrRunNotActive, "run already started")
	}

	s := r.session
	tags := []RunTag{
		{Key: TagUser, Value: s.user},
		{Key: TagSourceType, Value: "LOCAL"},
		{Key: TagSourceName, Value: "winequality"},
	}
	if opts.RunName != "" {
		tags = append(tags, RunTag{Key: TagRunName, Value: opts.RunName})
	}
	tags = append(tags, sortedTags(opts.Tags)...)

	info, err := s.store.CreateRun(ctx, CreateRunRequest{
		ExperimentID: experimentID,
		UserID:       s.user,
		RunName:      opts.RunName,
		StartTime:    s.millis(),
		Tags:         tags,
	})
	if err != nil {
		return errors.Wrap(err, "create run")
	}

	r.info = *info
	r.state = runActive
	r.log = s.log.With(log.RunIDKey, info.RunID, log.ExperimentIDKey, info.ExperimentID)
	r.log.Info("Run started", log.ArtifactPathKey, info.ArtifactURI)
	return nil
}

func sortedTags(m map[string]string) []RunTag {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tags := make([]RunTag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, RunTag{Key: k, Value: m[k]})
	}
	return tags
}

// ID returns the run id.
func (r *ActiveRun) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info.RunID
}

// Info returns a snapshot of the run metadata.
func (r *ActiveRun) Info() RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// Active reports whether the run accepts logging.
func (r *ActiveRun) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == runActive
}

func (r *ActiveRun) requireActive(op string) error {
	if r.state != runActive {
		return errors.Wrapf(ErrRunNotActive, "%s", op)
	}
	return nil
}

// LogBatch records metrics, params, and tags in one backend call.
func (r *ActiveRun) LogBatch(ctx context.Context, metrics []Metric, params []Param, tags []RunTag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireActive("log batch"); err != nil {
		return err
	}
	if err := r.session.store.LogBatch(ctx, r.info.RunID, metrics, params, tags); err != nil {
		return errors.Wrap(err, "log batch")
	}
	return nil
}

// LogParam records one parameter.
func (r *ActiveRun) LogParam(ctx context.Context, key, value string) error {
	return r.LogBatch(ctx, nil, []Param{{Key: key, Value: value}}, nil)
}

// LogParams records parameters in key order.
func (r *ActiveRun) LogParams(ctx context.Context, params map[string]string) error {
	tags := sortedTags(params)
	ps := make([]Param, len(tags))
	for i, t := range tags {
		ps[i] = Param{Key: t.Key, Value: t.Value}
	}
	return r.LogBatch(ctx, nil, ps, nil)
}

// FormatFloat renders a float the way Python's repr does: shortest
// round-trip digits, fixed notation for decimal exponents in [-4, 16) with a
// trailing ".0" on integral values, and exponent notation outside it.
func FormatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	sci := strconv.FormatFloat(v, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// LogMetric records one metric at step 0.
func (r *ActiveRun) LogMetric(ctx context.Context, key string, value float64) error {
	return r.LogBatch(ctx, []Metric{{Key: key, Value: value, Timestamp: r.session.millis()}}, nil, nil)
}

// LogMetrics records metrics in key order with a shared timestamp.
func (r *ActiveRun) LogMetrics(ctx context.Context, metrics map[string]float64) error {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ts := r.session.millis()
	ms := make([]Metric, len(keys))
	for i, k := range keys {
		ms[i] = Metric{Key: k, Value: metrics[k], Timestamp: ts}
	}
	return r.LogBatch(ctx, ms, nil, nil)
}

// SetTag sets one tag.
func (r *ActiveRun) SetTag(ctx context.Context, key, value string) error {
	return r.LogBatch(ctx, nil, nil, []RunTag{{Key: key, Value: value}})
}

func (r *ActiveRun) repository(ctx context.Context) (ArtifactRepository, error) {
	if r.session.artifacts == nil {
		return nil, errors.New("tracking session has no artifact repository")
	}
	repo, err := r.session.artifacts(ctx, r.info.ArtifactURI)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve artifact repository for %s", r.info.ArtifactURI)
	}
	return repo, nil
}

// LogArtifact uploads a local file into the run's artifacts under artifactPath.
func (r *ActiveRun) LogArtifact(ctx context.Context, localPath, artifactPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireActive("log artifact"); err != nil {
		return err
	}
	repo, err := r.repository(ctx)
	if err != nil {
		return err
	}
	if err := repo.LogArtifact(ctx, localPath, artifactPath); err != nil {
		return errors.Wrapf(err, "log artifact %s", localPath)
	}
	r.log.Debug("Artifact logged", log.ArtifactPathKey, artifactPath)
	return nil
}

// End closes the run with a terminal status. Ending a closed run returns
// ErrRunNotActive.
func (r *ActiveRun) End(ctx context.Context, status RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireActive("end run"); err != nil {
		return err
	}
	if !status.Terminal() {
		return errors.NewValueError("ActiveRun.End", "status "+status.String()+" does not end a run")
	}

	// The run is closed even if the backend update fails; it cannot be reused.
	r.state = runClosed
	info, err := r.session.store.UpdateRun(ctx, r.info.RunID, status, r.session.millis())
	if err != nil {
		r.log.Error("Unable to close run", log.ErrAttrKey, err, log.RunStatusKey, status.String())
		return errors.Wrap(err, "update run")
	}
	r.info = *info
	if status == StatusFinished {
		r.log.Info("Run closed", log.RunStatusKey, status.String())
	} else {
		r.log.Warn("Run closed", log.RunStatusKey, status.String())
	}
	return nil
}
