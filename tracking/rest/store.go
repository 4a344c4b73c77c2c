package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/tracking"
)

// int64Value decodes an int64 the server may render as a JSON number or a
// string.
type int64Value int64

func (v *int64Value) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*v = int64Value(n)
	return nil
}

// floatValue decodes a metric value, including the "NaN" and "Infinity"
// strings the server emits for non-finite values.
type floatValue float64

func (v *floatValue) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	switch s {
	case "NaN":
		*v = floatValue(math.NaN())
		return nil
	case "Infinity":
		*v = floatValue(math.Inf(1))
		return nil
	case "-Infinity":
		*v = floatValue(math.Inf(-1))
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*v = floatValue(f)
	return nil
}

func (v floatValue) MarshalJSON() ([]byte, error) {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	}
	return json.Marshal(f)
}

type experimentJSON struct {
	ExperimentID     string     `json:"experiment_id"`
	Name             string     `json:"name"`
	ArtifactLocation string     `json:"artifact_location"`
	LifecycleStage   string     `json:"lifecycle_stage"`
	CreationTime     int64Value `json:"creation_time"`
	LastUpdateTime   int64Value `json:"last_update_time"`
}

type runInfoJSON struct {
	RunID          string     `json:"run_id"`
	RunName        string     `json:"run_name"`
	ExperimentID   string     `json:"experiment_id"`
	UserID         string     `json:"user_id"`
	Status         string     `json:"status"`
	StartTime      int64Value `json:"start_time"`
	EndTime        int64Value `json:"end_time"`
	ArtifactURI    string     `json:"artifact_uri"`
	LifecycleStage string     `json:"lifecycle_stage"`
}

func (r runInfoJSON) info() (*tracking.RunInfo, error) {
	status := tracking.StatusRunning
	if r.Status != "" {
		var err error
		if status, err = tracking.ParseRunStatus(r.Status); err != nil {
			return nil, err
		}
	}
	return &tracking.RunInfo{
		RunID:          r.RunID,
		RunName:        r.RunName,
		ExperimentID:   r.ExperimentID,
		UserID:         r.UserID,
		Status:         status,
		StartTime:      int64(r.StartTime),
		EndTime:        int64(r.EndTime),
		ArtifactURI:    r.ArtifactURI,
		LifecycleStage: r.LifecycleStage,
	}, nil
}

type keyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type metricJSON struct {
	Key       string     `json:"key"`
	Value     floatValue `json:"value"`
	Timestamp int64Value `json:"timestamp"`
	Step      int64Value `json:"step"`
}

// GetExperimentByName implements tracking.Store.
func (c *Client) GetExperimentByName(ctx context.Context, name string) (*tracking.Experiment, error) {
	var resp struct {
		Experiment experimentJSON `json:"experiment"`
	}
	q := url.Values{"experiment_name": {name}}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"experiments/get-by-name", q, nil, &resp); err != nil {
		return nil, err
	}
	e := resp.Experiment
	return &tracking.Experiment{
		ID:               e.ExperimentID,
		Name:             e.Name,
		ArtifactLocation: e.ArtifactLocation,
		LifecycleStage:   e.LifecycleStage,
		CreationTime:     int64(e.CreationTime),
		LastUpdateTime:   int64(e.LastUpdateTime),
	}, nil
}

// CreateExperiment implements tracking.Store.
func (c *Client) CreateExperiment(ctx context.Context, name, artifactLocation string) (string, error) {
	req := map[string]string{"name": name}
	if artifactLocation != "" {
		req["artifact_location"] = artifactLocation
	}
	var resp struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"experiments/create", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.ExperimentID, nil
}

func toKeyValues[T tracking.Param | tracking.RunTag](in []T) []keyValue {
	out := make([]keyValue, len(in))
	for i, v := range in {
		out[i] = keyValue(v)
	}
	return out
}

// CreateRun implements tracking.Store.
func (c *Client) CreateRun(ctx context.Context, r tracking.CreateRunRequest) (*tracking.RunInfo, error) {
	req := struct {
		ExperimentID string     `json:"experiment_id"`
		UserID       string     `json:"user_id,omitempty"`
		RunName      string     `json:"run_name,omitempty"`
		StartTime    int64      `json:"start_time"`
		Tags         []keyValue `json:"tags,omitempty"`
	}{r.ExperimentID, r.UserID, r.RunName, r.StartTime, toKeyValues(r.Tags)}

	var resp struct {
		Run struct {
			Info runInfoJSON `json:"info"`
		} `json:"run"`
	}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"runs/create", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Run.Info.info()
}

// LogBatch implements tracking.Store.
func (c *Client) LogBatch(ctx context.Context, runID string, metrics []tracking.Metric, params []tracking.Param, tags []tracking.RunTag) error {
	ms := make([]metricJSON, len(metrics))
	for i, m := range metrics {
		ms[i] = metricJSON{Key: m.Key, Value: floatValue(m.Value), Timestamp: int64Value(m.Timestamp), Step: int64Value(m.Step)}
	}
	req := struct {
		RunID   string       `json:"run_id"`
		Metrics []metricJSON `json:"metrics"`
		Params  []keyValue   `json:"params"`
		Tags    []keyValue   `json:"tags"`
	}{runID, ms, toKeyValues(params), toKeyValues(tags)}
	return c.do(ctx, http.MethodPost, apiPrefix+"runs/log-batch", nil, req, nil)
}

// UpdateRun implements tracking.Store.
func (c *Client) UpdateRun(ctx context.Context, runID string, status tracking.RunStatus, endTime int64) (*tracking.RunInfo, error) {
	req := struct {
		RunID   string `json:"run_id"`
		Status  string `json:"status"`
		EndTime int64  `json:"end_time,omitempty"`
	}{RunID: runID, Status: status.String()}
	if status.Terminal() {
		req.EndTime = endTime
	}
	var resp struct {
		RunInfo runInfoJSON `json:"run_info"`
	}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"runs/update", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.RunInfo.RunID == "" {
		resp.RunInfo.RunID = runID
		resp.RunInfo.Status = status.String()
		resp.RunInfo.EndTime = int64Value(req.EndTime)
	}
	return resp.RunInfo.info()
}

// GetRun implements tracking.Store.
func (c *Client) GetRun(ctx context.Context, runID string) (*tracking.Run, error) {
	var resp struct {
		Run struct {
			Info runInfoJSON `json:"info"`
			Data struct {
				Metrics []metricJSON `json:"metrics"`
				Params  []keyValue   `json:"params"`
				Tags    []keyValue   `json:"tags"`
			} `json:"data"`
		} `json:"run"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"runs/get", url.Values{"run_id": {runID}}, nil, &resp); err != nil {
		return nil, err
	}
	info, err := resp.Run.Info.info()
	if err != nil {
		return nil, err
	}
	run := &tracking.Run{Info: *info}
	for _, m := range resp.Run.Data.Metrics {
		run.Data.Metrics = append(run.Data.Metrics, tracking.Metric{
			Key: m.Key, Value: float64(m.Value), Timestamp: int64(m.Timestamp), Step: int64(m.Step),
		})
	}
	for _, p := range resp.Run.Data.Params {
		run.Data.Params = append(run.Data.Params, tracking.Param(p))
	}
	for _, t := range resp.Run.Data.Tags {
		run.Data.Tags = append(run.Data.Tags, tracking.RunTag(t))
	}
	return run, nil
}

// CreateRegisteredModel implements tracking.ModelRegistry.
func (c *Client) CreateRegisteredModel(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, apiPrefix+"registered-models/create", nil, map[string]string{"name": name}, nil)
}

// CreateModelVersion implements tracking.ModelRegistry.
func (c *Client) CreateModelVersion(ctx context.Context, name, source, runID string) (*tracking.ModelVersion, error) {
	req := map[string]string{"name": name, "source": source, "run_id": runID}
	var resp struct {
		ModelVersion struct {
			Name              string     `json:"name"`
			Version           string     `json:"version"`
			Source            string     `json:"source"`
			RunID             string     `json:"run_id"`
			Status            string     `json:"status"`
			CreationTimestamp int64Value `json:"creation_timestamp"`
		} `json:"model_version"`
	}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"model-versions/create", nil, req, &resp); err != nil {
		return nil, errors.Wrapf(err, "create version of %q", name)
	}
	mv := resp.ModelVersion
	return &tracking.ModelVersion{
		Name:         mv.Name,
		Version:      mv.Version,
		Source:       mv.Source,
		RunID:        mv.RunID,
		Status:       mv.Status,
		CreationTime: int64(mv.CreationTimestamp),
	}, nil
}
