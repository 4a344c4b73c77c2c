// Package pipeline runs the training job: load, split, train, evaluate,
// record.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/winequality/dataset"
	"github.com/YuminosukeSato/winequality/internal/config"
	"github.com/YuminosukeSato/winequality/internal/telemetry"
	"github.com/YuminosukeSato/winequality/linear"
	"github.com/YuminosukeSato/winequality/metrics"
	"github.com/YuminosukeSato/winequality/modelselection"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/plotting"
	"github.com/YuminosukeSato/winequality/tracking"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/mat"
)

// Stage names, used for spans, metrics, and logs.
const (
	StageLoad     = "load"
	StageSplit    = "split"
	StageTrain    = "train"
	StageEvaluate = "evaluate"
	StageRecord   = "record"
)

// Tracking parameter keys.
const (
	ParamAlpha   = "alpha"
	ParamL1Ratio = "l1_ratio"
)

// PlotArtifactDir holds the prediction plot inside a run.
const PlotArtifactDir = "plots"

// Deps are the collaborators of Run. Session and Loader are required.
type Deps struct {
	Session *tracking.Session
	Loader  *dataset.Loader
	Metrics *telemetry.Metrics
	Stdout  io.Writer
	Log     log.Logger
}

// Result is what one pipeline execution produced.
type Result struct {
	RunID        string
	Report       metrics.RegressionReport
	Model        *linear.ElasticNet
	ModelVersion *tracking.ModelVersion
	TrainRows    int
	TestRows     int
}

type splitData struct {
	XTrain, XTest *dataset.Frame
	yTrain, yTest *mat.VecDense
}

// Run executes the pipeline once. Loading and splitting happen before the
// tracking run is opened; training, evaluation, and recording happen inside
// it, so any failure there closes the run FAILED (or KILLED on cancellation).
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Result, error) {
	if deps.Session == nil || deps.Loader == nil {
		return nil, errors.NewValueError("pipeline.Run", "session and loader are required")
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	logger := deps.Log
	if logger == nil {
		logger = log.GetLogger()
	}
	logger = logger.With(log.ComponentKey, "pipeline")
	p := &runner{cfg: cfg, deps: deps, log: logger}

	frame, err := stage(ctx, p, StageLoad, func(ctx context.Context) (*dataset.Frame, error) {
		return deps.Loader.Load(ctx, cfg.Data.URL)
	})
	if err != nil {
		return nil, err
	}

	data, err := stage(ctx, p, StageSplit, func(ctx context.Context) (*splitData, error) {
		return p.split(frame)
	})
	if err != nil {
		return nil, err
	}

	res := &Result{TrainRows: data.XTrain.Data.RawMatrix().Rows, TestRows: data.XTest.Data.RawMatrix().Rows}
	runOpts := tracking.RunOptions{ExperimentName: cfg.Tracking.Experiment, RunName: cfg.Tracking.RunName}
	err = deps.Session.Run(ctx, runOpts, func(ctx context.Context, run *tracking.ActiveRun) error {
		res.RunID = run.ID()
		return p.inRun(ctx, run, data, res)
	})
	if deps.Metrics != nil {
		status := tracking.StatusFinished
		switch {
		case err == nil:
		case ctx.Err() != nil:
			status = tracking.StatusKilled
		default:
			status = tracking.StatusFailed
		}
		deps.Metrics.RunCompleted(status.String())
	}
	if err != nil {
		logger.Error("Pipeline failed", log.ErrAttrKey, err, log.RunIDKey, res.RunID)
		return nil, err
	}
	return res, nil
}

type runner struct {
	cfg  *config.Config
	deps Deps
	log  log.Logger
}

// stage wraps fn with a span, a duration observation, and a debug log.
func stage[T any](ctx context.Context, p *runner, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, span := telemetry.StartStage(ctx, name)
	out, err := fn(ctx)
	telemetry.EndStage(span, err)
	if p.deps.Metrics != nil {
		p.deps.Metrics.ObserveStage(name, start)
	}
	p.log.Debug("Stage finished", log.PhaseKey, name, log.DurationMsKey, time.Since(start).Milliseconds())
	return out, err
}

func (p *runner) split(frame *dataset.Frame) (*splitData, error) {
	n, _ := frame.Dims()
	s, err := modelselection.TrainTestSplit(n, p.cfg.Data.TestSize, p.cfg.Data.SplitSeed)
	if err != nil {
		return nil, err
	}
	train, err := frame.Rows(s.Train)
	if err != nil {
		return nil, err
	}
	test, err := frame.Rows(s.Test)
	if err != nil {
		return nil, err
	}

	var d splitData
	if d.XTrain, d.yTrain, err = train.XY(p.cfg.Data.Target); err != nil {
		return nil, err
	}
	if d.XTest, d.yTest, err = test.XY(p.cfg.Data.Target); err != nil {
		return nil, err
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.SetRows("all", n)
		p.deps.Metrics.SetRows("train", len(s.Train))
		p.deps.Metrics.SetRows("test", len(s.Test))
	}
	p.log.Info("Dataset split",
		log.OperationKey, log.OperationSplit,
		"data.train_rows", len(s.Train),
		"data.test_rows", len(s.Test),
		log.TargetKey, p.cfg.Data.Target,
	)
	return &d, nil
}

func (p *runner) inRun(ctx context.Context, run *tracking.ActiveRun, d *splitData, res *Result) error {
	cfg := p.cfg.Model

	model, err := stage(ctx, p, StageTrain, func(ctx context.Context) (*linear.ElasticNet, error) {
		m := linear.NewElasticNet(
			linear.WithAlpha(cfg.Alpha),
			linear.WithL1Ratio(cfg.L1Ratio),
			linear.WithRandomState(cfg.RandomState),
			linear.WithMaxIter(cfg.MaxIter),
			linear.WithTol(cfg.Tol),
			linear.WithFeatureNames(d.XTrain.Columns),
		)
		if err := m.FitContext(ctx, d.XTrain.Data, d.yTrain); err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		return err
	}
	res.Model = model

	var pred mat.Matrix
	report, err := stage(ctx, p, StageEvaluate, func(ctx context.Context) (metrics.RegressionReport, error) {
		var err error
		if pred, err = model.Predict(d.XTest.Data); err != nil {
			return metrics.RegressionReport{}, err
		}
		return metrics.EvaluateRegression(d.yTest, pred)
	})
	if err != nil {
		return err
	}
	res.Report = report
	if p.deps.Metrics != nil {
		p.deps.Metrics.SetEvaluation(report.Map())
	}
	p.log.Info("Model evaluated", "report", report, log.AlphaKey, cfg.Alpha, log.L1RatioKey, cfg.L1Ratio)

	if err := WriteReport(p.deps.Stdout, cfg.Alpha, cfg.L1Ratio, report); err != nil {
		return errors.Wrap(err, "write report")
	}

	_, err = stage(ctx, p, StageRecord, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.record(ctx, run, model, d.yTest, pred, res)
	})
	return err
}

func (p *runner) record(ctx context.Context, run *tracking.ActiveRun, model *linear.ElasticNet, yTest *mat.VecDense, pred mat.Matrix, res *Result) error {
	cfg := p.cfg
	if err := run.LogParams(ctx, map[string]string{
		ParamAlpha:   tracking.FormatFloat(cfg.Model.Alpha),
		ParamL1Ratio: tracking.FormatFloat(cfg.Model.L1Ratio),
	}); err != nil {
		return err
	}
	if err := run.LogMetrics(ctx, res.Report.Map()); err != nil {
		return err
	}

	registered := ""
	if tracking.UsesRegistry(p.deps.Session.URI()) {
		registered = cfg.Tracking.RegisteredModel
	}
	mv, err := run.LogModel(ctx, cfg.Tracking.ArtifactPath, model, registered)
	if err != nil {
		return err
	}
	res.ModelVersion = mv

	if cfg.Tracking.LogPlot {
		if err := p.logPlot(ctx, run, yTest, pred); err != nil {
			return err
		}
	}
	return nil
}

func (p *runner) logPlot(ctx context.Context, run *tracking.ActiveRun, yTest *mat.VecDense, pred mat.Matrix) error {
	dir, err := os.MkdirTemp("", "winequality-plot-")
	if err != nil {
		return errors.Wrap(err, "create plot directory")
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "predictions.png")
	if err := plotting.SavePredictionPlot(yTest, mat.NewVecDense(yTest.Len(), mat.Col(nil, 0, pred)), path); err != nil {
		return err
	}
	_, span := telemetry.StartStage(ctx, "plot", attribute.String("artifact.path", PlotArtifactDir))
	err = run.LogArtifact(ctx, path, PlotArtifactDir)
	telemetry.EndStage(span, err)
	return err
}

// WriteReport prints the evaluation summary.
func WriteReport(w io.Writer, alpha, l1Ratio float64, r metrics.RegressionReport) error {
	_, err := fmt.Fprintf(w, "Elasticnet model (alpha=%f, l1_ratio=%f):\n  RMSE: %s\n  MAE: %s\n  R2: %s\n",
		alpha, l1Ratio, formatValue(r.RMSE), formatValue(r.MAE), formatValue(r.R2))
	return err
}

func formatValue(v float64) string {
	return tracking.FormatFloat(v)
}
