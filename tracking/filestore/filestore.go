// Package filestore is a tracking.Store over the MLflow mlruns/ directory
// layout:
//
//	<root>/<experiment id>/meta.yaml
//	<root>/<experiment id>/<run id>/meta.yaml
//	<root>/<experiment id>/<run id>/params/<key>
//	<root>/<experiment id>/<run id>/metrics/<key>   "<timestamp> <value> <step>" per line
//	<root>/<experiment id>/<run id>/tags/<key>
//	<root>/<experiment id>/<run id>/artifacts/
package filestore

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/tracking"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultRoot is used when the tracking URI names no directory.
const DefaultRoot = "mlruns"

const metaFile = "meta.yaml"

// Store keeps experiments and runs under a root directory. One mutex guards
// the tree; the store is not safe for concurrent use by several processes.
type Store struct {
	root string
	now  func() time.Time
	mu   sync.Mutex
}

// Open returns a store rooted at the path named by uri (file:///abs/path, a
// bare path, or "" for ./mlruns). The directory is created if missing.
func Open(uri string) (*Store, error) {
	root := uri
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		root = u.Path
	}
	if root == "" {
		root = DefaultRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", root)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", abs)
	}
	return &Store{root: abs, now: time.Now}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string { return s.root }

type experimentMeta struct {
	ArtifactLocation string `yaml:"artifact_location"`
	CreationTime     int64  `yaml:"creation_time"`
	ExperimentID     string `yaml:"experiment_id"`
	LastUpdateTime   int64  `yaml:"last_update_time"`
	LifecycleStage   string `yaml:"lifecycle_stage"`
	Name             string `yaml:"name"`
}

type runMeta struct {
	ArtifactURI    string   `yaml:"artifact_uri"`
	EndTime        *int64   `yaml:"end_time"`
	EntryPointName string   `yaml:"entry_point_name"`
	ExperimentID   string   `yaml:"experiment_id"`
	LifecycleStage string   `yaml:"lifecycle_stage"`
	RunID          string   `yaml:"run_id"`
	RunName        string   `yaml:"run_name"`
	RunUUID        string   `yaml:"run_uuid"`
	SourceName     string   `yaml:"source_name"`
	SourceType     int      `yaml:"source_type"`
	SourceVersion  string   `yaml:"source_version"`
	StartTime      int64    `yaml:"start_time"`
	Status         int      `yaml:"status"`
	Tags           []string `yaml:"tags"`
	UserID         string   `yaml:"user_id"`
}

// sourceTypeLocal is the MLflow SourceType enum value for LOCAL.
const sourceTypeLocal = 4

func fileURI(p string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}

func readYAML(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, v)
}

func writeYAML(path string, v interface{}) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// experiments lists experiment metadata, creating the default experiment when
// the root is empty.
func (s *Store) experiments() ([]experimentMeta, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.root)
	}
	var out []experimentMeta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var m experimentMeta
		if err := readYAML(filepath.Join(s.root, e.Name(), metaFile), &m); err != nil {
			// Not an experiment directory (.trash, models, ...).
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		m, err := s.createExperiment(tracking.DefaultExperimentID, tracking.DefaultExperimentName, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *Store) createExperiment(id, name, artifactLocation string) (*experimentMeta, error) {
	dir := filepath.Join(s.root, id)
	if artifactLocation == "" {
		artifactLocation = fileURI(dir)
	}
	now := s.now().UnixMilli()
	m := &experimentMeta{
		ArtifactLocation: artifactLocation,
		CreationTime:     now,
		ExperimentID:     id,
		LastUpdateTime:   now,
		LifecycleStage:   tracking.LifecycleActive,
		Name:             name,
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create experiment directory %s", dir)
	}
	if err := writeYAML(filepath.Join(dir, metaFile), m); err != nil {
		return nil, errors.Wrapf(err, "write experiment %s", id)
	}
	return m, nil
}

func toExperiment(m experimentMeta) *tracking.Experiment {
	return &tracking.Experiment{
		ID:               m.ExperimentID,
		Name:             m.Name,
		ArtifactLocation: m.ArtifactLocation,
		LifecycleStage:   m.LifecycleStage,
		CreationTime:     m.CreationTime,
		LastUpdateTime:   m.LastUpdateTime,
	}
}

// GetExperimentByName implements tracking.Store.
func (s *Store) GetExperimentByName(ctx context.Context, name string) (*tracking.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exps, err := s.experiments()
	if err != nil {
		return nil, err
	}
	for _, m := range exps {
		if m.Name == name && m.LifecycleStage == tracking.LifecycleActive {
			return toExperiment(m), nil
		}
	}
	return nil, errors.Wrapf(tracking.ErrNotFound, "experiment %q", name)
}

// CreateExperiment implements tracking.Store. Ids are allocated sequentially.
func (s *Store) CreateExperiment(ctx context.Context, name, artifactLocation string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		return "", errors.NewValueError("filestore.CreateExperiment", "experiment name must not be empty")
	}
	exps, err := s.experiments()
	if err != nil {
		return "", err
	}
	next := 0
	for _, m := range exps {
		if m.Name == name {
			return "", errors.Wrapf(tracking.ErrAlreadyExists, "experiment %q", name)
		}
		if id, err := strconv.Atoi(m.ExperimentID); err == nil && id >= next {
			next = id + 1
		}
	}
	m, err := s.createExperiment(strconv.Itoa(next), name, artifactLocation)
	if err != nil {
		return "", err
	}
	return m.ExperimentID, nil
}

// CreateRun implements tracking.Store.
func (s *Store) CreateRun(ctx context.Context, req tracking.CreateRunRequest) (*tracking.RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.experiments(); err != nil {
		return nil, err
	}
	var exp experimentMeta
	if err := readYAML(filepath.Join(s.root, req.ExperimentID, metaFile), &exp); err != nil {
		return nil, errors.Wrapf(tracking.ErrNotFound, "experiment %s", req.ExperimentID)
	}
	if exp.LifecycleStage != tracking.LifecycleActive {
		return nil, errors.Newf("experiment %s is %s", req.ExperimentID, exp.LifecycleStage)
	}

	runID := strings.ReplaceAll(uuid.NewString(), "-", "")
	runName := req.RunName
	if runName == "" {
		runName = "run-" + runID[:8]
	}
	runDir := filepath.Join(s.root, req.ExperimentID, runID)
	for _, sub := range []string{"params", "metrics", "tags", "artifacts"} {
		if err := os.MkdirAll(filepath.Join(runDir, sub), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create run directory %s", runDir)
		}
	}

	artifactURI := strings.TrimRight(exp.ArtifactLocation, "/") + "/" + runID + "/artifacts"
	m := &runMeta{
		ArtifactURI:    artifactURI,
		ExperimentID:   req.ExperimentID,
		LifecycleStage: tracking.LifecycleActive,
		RunID:          runID,
		RunName:        runName,
		RunUUID:        runID,
		SourceType:     sourceTypeLocal,
		StartTime:      req.StartTime,
		Status:         int(tracking.StatusRunning),
		Tags:           []string{},
		UserID:         req.UserID,
	}
	if err := writeYAML(filepath.Join(runDir, metaFile), m); err != nil {
		return nil, errors.Wrapf(err, "write run %s", runID)
	}

	tags := append([]tracking.RunTag{{Key: tracking.TagRunName, Value: runName}}, req.Tags...)
	for _, t := range tags {
		if err := writeValue(filepath.Join(runDir, "tags"), t.Key, t.Value); err != nil {
			return nil, err
		}
	}
	return toRunInfo(m), nil
}

func toRunInfo(m *runMeta) *tracking.RunInfo {
	info := &tracking.RunInfo{
		RunID:          m.RunID,
		RunName:        m.RunName,
		ExperimentID:   m.ExperimentID,
		UserID:         m.UserID,
		Status:         tracking.RunStatus(m.Status),
		StartTime:      m.StartTime,
		ArtifactURI:    m.ArtifactURI,
		LifecycleStage: m.LifecycleStage,
	}
	if m.EndTime != nil {
		info.EndTime = *m.EndTime
	}
	return info
}

// runDir finds the directory of runID by scanning experiments.
func (s *Store) runDir(runID string) (string, *runMeta, error) {
	if runID == "" || strings.ContainsAny(runID, `/\.`) {
		return "", nil, errors.NewValueError("filestore", fmt.Sprintf("invalid run id %q", runID))
	}
	matches, err := filepath.Glob(filepath.Join(s.root, "*", runID, metaFile))
	if err != nil {
		return "", nil, err
	}
	if len(matches) == 0 {
		return "", nil, errors.Wrapf(tracking.ErrNotFound, "run %s", runID)
	}
	var m runMeta
	if err := readYAML(matches[0], &m); err != nil {
		return "", nil, errors.Wrapf(err, "read run %s", runID)
	}
	return filepath.Dir(matches[0]), &m, nil
}

// validKey rejects keys that would escape their directory. Slashes are
// allowed and create nested files, as MLflow does.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, `\`) {
		return errors.NewValueError("filestore", fmt.Sprintf("invalid key %q", key))
	}
	return nil
}

func writeValue(dir, key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	p := filepath.Join(dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(p))
	}
	return errors.Wrapf(os.WriteFile(p, []byte(value), 0o644), "write %s", p)
}

// LogBatch implements tracking.Store. A param may be logged again only with
// the same value.
func (s *Store) LogBatch(ctx context.Context, runID string, metrics []tracking.Metric, params []tracking.Param, tags []tracking.RunTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, m, err := s.runDir(runID)
	if err != nil {
		return err
	}
	if tracking.RunStatus(m.Status).Terminal() {
		return errors.Wrapf(tracking.ErrRunNotActive, "run %s is %s", runID, tracking.RunStatus(m.Status))
	}

	for _, p := range params {
		if err := validKey(p.Key); err != nil {
			return err
		}
		path := filepath.Join(dir, "params", filepath.FromSlash(p.Key))
		if old, err := os.ReadFile(path); err == nil {
			if string(old) != p.Value {
				return errors.Wrapf(tracking.ErrAlreadyExists,
					"param %q already logged with value %q, got %q", p.Key, old, p.Value)
			}
			continue
		}
		if err := writeValue(filepath.Join(dir, "params"), p.Key, p.Value); err != nil {
			return err
		}
	}

	for _, mt := range metrics {
		if err := validKey(mt.Key); err != nil {
			return err
		}
		path := filepath.Join(dir, "metrics", filepath.FromSlash(mt.Key))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.Wrapf(err, "create %s", filepath.Dir(path))
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		_, werr := fmt.Fprintf(f, "%d %s %d\n", mt.Timestamp, formatMetric(mt.Value), mt.Step)
		cerr := f.Close()
		if werr != nil {
			return errors.Wrapf(werr, "append %s", path)
		}
		if cerr != nil {
			return errors.Wrapf(cerr, "close %s", path)
		}
	}

	for _, t := range tags {
		if err := writeValue(filepath.Join(dir, "tags"), t.Key, t.Value); err != nil {
			return err
		}
	}
	return nil
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// UpdateRun implements tracking.Store.
func (s *Store) UpdateRun(ctx context.Context, runID string, status tracking.RunStatus, endTime int64) (*tracking.RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, m, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	m.Status = int(status)
	if status.Terminal() {
		m.EndTime = &endTime
	}
	if err := writeYAML(filepath.Join(dir, metaFile), m); err != nil {
		return nil, errors.Wrapf(err, "write run %s", runID)
	}
	return toRunInfo(m), nil
}

// GetRun implements tracking.Store. Each metric reports its latest value by
// (step, timestamp).
func (s *Store) GetRun(ctx context.Context, runID string) (*tracking.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, m, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	run := &tracking.Run{Info: *toRunInfo(m)}

	params, err := readValues(filepath.Join(dir, "params"))
	if err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(params) {
		run.Data.Params = append(run.Data.Params, tracking.Param{Key: k, Value: params[k]})
	}

	tags, err := readValues(filepath.Join(dir, "tags"))
	if err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(tags) {
		run.Data.Tags = append(run.Data.Tags, tracking.RunTag{Key: k, Value: tags[k]})
	}

	metricFiles, err := readValues(filepath.Join(dir, "metrics"))
	if err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(metricFiles) {
		latest, err := latestMetric(k, metricFiles[k])
		if err != nil {
			return nil, err
		}
		run.Data.Metrics = append(run.Data.Metrics, latest)
	}
	return run, nil
}

// readValues returns file contents keyed by slash-separated relative path.
func readValues(dir string) (map[string]string, error) {
	out := map[string]string{}
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}
	return out, nil
}

func latestMetric(key, content string) (tracking.Metric, error) {
	var latest tracking.Metric
	found := false
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return latest, errors.Newf("malformed metric line %q for %s", sc.Text(), key)
		}
		ts, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return latest, errors.Wrapf(err, "metric %s timestamp", key)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return latest, errors.Wrapf(err, "metric %s value", key)
		}
		var step int64
		if len(fields) > 2 {
			if step, err = strconv.ParseInt(fields[2], 10, 64); err != nil {
				return latest, errors.Wrapf(err, "metric %s step", key)
			}
		}
		m := tracking.Metric{Key: key, Value: v, Timestamp: ts, Step: step}
		if !found || m.Step > latest.Step || (m.Step == latest.Step && m.Timestamp >= latest.Timestamp) {
			latest = m
			found = true
		}
	}
	return latest, sc.Err()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
