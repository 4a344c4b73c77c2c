package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/YuminosukeSato/winequality/dataset"
	"github.com/YuminosukeSato/winequality/internal/config"
	"github.com/YuminosukeSato/winequality/internal/pipeline"
	"github.com/YuminosukeSato/winequality/internal/telemetry"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/tracking/backend"
	"github.com/YuminosukeSato/winequality/tracking/rest"
	"github.com/spf13/cobra"
)

func newRootCmd(stdout io.Writer) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "winequality [alpha [l1_ratio]]",
		Short: "Train an ElasticNet wine quality model and track the run",
		Long: `Loads the wine quality dataset, splits it, fits an ElasticNet regression,
prints RMSE/MAE/R2 on the test split, and records params, metrics, and the
model in an MLflow-compatible tracking backend (MLFLOW_TRACKING_URI).`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			alpha, l1Ratio, err := parseHyperparams(args, cfg.Model.Alpha, cfg.Model.L1Ratio)
			if err != nil {
				return err
			}
			cfg.Model.Alpha, cfg.Model.L1Ratio = alpha, l1Ratio
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := log.SetupLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, stdout)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "YAML configuration file")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	flags.String("tracking-uri", "", "tracking backend URI (file path, sqlite://, postgresql://, http(s)://)")
	flags.String("experiment", "", "experiment name")
	flags.String("run-name", "", "run name")
	flags.String("data-url", "", "dataset URL or path")
	flags.String("delimiter", "", "dataset field delimiter")
	return cmd
}

// parseHyperparams reads alpha and l1_ratio from the positional arguments.
// Each argument is independent: a missing one keeps its default.
func parseHyperparams(args []string, alpha, l1Ratio float64) (float64, float64, error) {
	if len(args) > 2 {
		return 0, 0, errors.NewValueError("winequality", fmt.Sprintf("expected at most 2 arguments, got %d", len(args)))
	}
	if len(args) > 0 {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return 0, 0, errors.NewValidationError("alpha", "must be a number", args[0])
		}
		alpha = v
	}
	if len(args) > 1 {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return 0, 0, errors.NewValidationError("l1_ratio", "must be a number", args[1])
		}
		l1Ratio = v
	}
	return alpha, l1Ratio, nil
}

func run(ctx context.Context, cfg *config.Config, stdout io.Writer) (err error) {
	logger := log.GetLogger()

	shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdown(context.WithoutCancel(ctx)); serr != nil {
			logger.Warn("Unable to flush traces", log.ErrAttrKey, serr)
		}
	}()

	session, err := backend.Open(ctx, cfg.Tracking.URI, backend.Options{
		ArtifactRoot: cfg.Tracking.ArtifactRoot,
		S3Endpoint:   cfg.Tracking.S3Endpoint,
		Credentials: rest.Credentials{
			Token:    cfg.Tracking.Token,
			Username: cfg.Tracking.Username,
			Password: cfg.Tracking.Password,
			Insecure: cfg.Tracking.InsecureTLS,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close tracking backend")
		}
	}()

	loader := dataset.NewLoader(logger)
	loader.Delimiter = cfg.Data.Delim()
	metrics := telemetry.NewMetrics()

	_, err = pipeline.Run(ctx, cfg, pipeline.Deps{
		Session: session,
		Loader:  loader,
		Metrics: metrics,
		Stdout:  stdout,
		Log:     logger,
	})
	if perr := metrics.Push(context.WithoutCancel(ctx), cfg.Telemetry.PushgatewayURL, cfg.Telemetry.ServiceName); perr != nil {
		logger.Warn("Unable to push metrics", log.ErrAttrKey, perr)
	}
	return err
}
