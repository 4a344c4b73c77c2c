// Package config loads the job configuration from defaults, an optional YAML
// file, environment variables, and command-line flags, in increasing order of
// precedence.
package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/YuminosukeSato/winequality/dataset"
	"github.com/YuminosukeSato/winequality/modelselection"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable (WINEQ_MODEL_ALPHA, ...).
const EnvPrefix = "WINEQ"

// Default hyperparameters used when no argument overrides them.
const (
	DefaultAlpha   = 0.5
	DefaultL1Ratio = 0.5
)

// RegisteredModelName is the registry name used for non-file backends.
const RegisteredModelName = "ElasticnetWineModel"

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Data      DataConfig      `mapstructure:"data"`
	Model     ModelConfig     `mapstructure:"model"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DataConfig struct {
	URL       string  `mapstructure:"url"`
	Delimiter string  `mapstructure:"delimiter"`
	Target    string  `mapstructure:"target"`
	TestSize  float64 `mapstructure:"test_size"`
	SplitSeed uint64  `mapstructure:"split_seed"`
}

type ModelConfig struct {
	Alpha       float64 `mapstructure:"alpha"`
	L1Ratio     float64 `mapstructure:"l1_ratio"`
	RandomState uint64  `mapstructure:"random_state"`
	MaxIter     int     `mapstructure:"max_iter"`
	Tol         float64 `mapstructure:"tol"`
}

type TrackingConfig struct {
	URI             string `mapstructure:"uri"`
	Experiment      string `mapstructure:"experiment"`
	RunName         string `mapstructure:"run_name"`
	ArtifactPath    string `mapstructure:"artifact_path"`
	RegisteredModel string `mapstructure:"registered_model"`
	ArtifactRoot    string `mapstructure:"artifact_root"`
	S3Endpoint      string `mapstructure:"s3_endpoint"`
	Token           string `mapstructure:"token"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	InsecureTLS     bool   `mapstructure:"insecure_tls"`
	LogPlot         bool   `mapstructure:"log_plot"`
}

type TelemetryConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// Delim returns the data delimiter as a rune.
func (c DataConfig) Delim() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")

	v.SetDefault("data.url", dataset.DefaultURL)
	v.SetDefault("data.delimiter", string(dataset.DefaultDelimiter))
	v.SetDefault("data.target", "quality")
	v.SetDefault("data.test_size", modelselection.DefaultTestSize)
	v.SetDefault("data.split_seed", modelselection.DefaultSeed)

	v.SetDefault("model.alpha", DefaultAlpha)
	v.SetDefault("model.l1_ratio", DefaultL1Ratio)
	v.SetDefault("model.random_state", 42)
	v.SetDefault("model.max_iter", 1000)
	v.SetDefault("model.tol", 1e-4)

	v.SetDefault("tracking.uri", "")
	v.SetDefault("tracking.experiment", "")
	v.SetDefault("tracking.run_name", "")
	v.SetDefault("tracking.artifact_path", "model")
	v.SetDefault("tracking.registered_model", RegisteredModelName)
	v.SetDefault("tracking.artifact_root", "")
	v.SetDefault("tracking.s3_endpoint", "")
	v.SetDefault("tracking.token", "")
	v.SetDefault("tracking.username", "")
	v.SetDefault("tracking.password", "")
	v.SetDefault("tracking.insecure_tls", false)
	v.SetDefault("tracking.log_plot", true)

	v.SetDefault("telemetry.pushgateway_url", "")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "winequality")
}

// mlflowEnv lists the MLflow client variables honoured for each key, after
// the WINEQ_ variable.
var mlflowEnv = map[string]string{
	"tracking.uri":           "MLFLOW_TRACKING_URI",
	"tracking.experiment":    "MLFLOW_EXPERIMENT_NAME",
	"tracking.run_name":      "MLFLOW_RUN_NAME",
	"tracking.token":         "MLFLOW_TRACKING_TOKEN",
	"tracking.username":      "MLFLOW_TRACKING_USERNAME",
	"tracking.password":      "MLFLOW_TRACKING_PASSWORD",
	"tracking.insecure_tls":  "MLFLOW_TRACKING_INSECURE_TLS",
	"tracking.s3_endpoint":   "MLFLOW_S3_ENDPOINT_URL",
	"tracking.artifact_root": "MLFLOW_ARTIFACT_ROOT",
}

// FlagKeys maps command-line flag names onto configuration keys.
var FlagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"tracking-uri": "tracking.uri",
	"experiment":   "tracking.experiment",
	"run-name":     "tracking.run_name",
	"data-url":     "data.url",
	"delimiter":    "data.delimiter",
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load builds the configuration. path names an optional YAML file; flags, if
// not nil, override everything else for the flags that were set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range mlflowEnv {
		if err := v.BindEnv(key, envName(key), alias); err != nil {
			return nil, errors.Wrapf(err, "bind env for %s", key)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag --%s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Model.Alpha < 0:
		return errors.NewValidationError("model.alpha", "must be non-negative", c.Model.Alpha)
	case c.Model.L1Ratio < 0 || c.Model.L1Ratio > 1:
		return errors.NewValidationError("model.l1_ratio", "must be in [0, 1]", c.Model.L1Ratio)
	case c.Model.MaxIter <= 0:
		return errors.NewValidationError("model.max_iter", "must be positive", c.Model.MaxIter)
	case c.Model.Tol < 0:
		return errors.NewValidationError("model.tol", "must be non-negative", c.Model.Tol)
	case c.Data.TestSize <= 0 || c.Data.TestSize >= 1:
		return errors.NewValidationError("data.test_size", "must be in (0, 1)", c.Data.TestSize)
	case utf8.RuneCountInString(c.Data.Delimiter) != 1:
		return errors.NewValidationError("data.delimiter", "must be a single character", c.Data.Delimiter)
	case c.Data.URL == "":
		return errors.NewValidationError("data.url", "is required", c.Data.URL)
	case c.Data.Target == "":
		return errors.NewValidationError("data.target", "is required", c.Data.Target)
	case c.Tracking.ArtifactPath == "":
		return errors.NewValidationError("tracking.artifact_path", "is required", c.Tracking.ArtifactPath)
	}
	if _, err := ParseLogFormat(c.Log.Format); err != nil {
		return err
	}
	return nil
}

// ParseLogFormat accepts "console" and "json".
func ParseLogFormat(s string) (string, error) {
	switch strings.ToLower(s) {
	case "console", "":
		return "console", nil
	case "json":
		return "json", nil
	default:
		return "", errors.NewValidationError("log.format", fmt.Sprintf("unknown format %q", s), s)
	}
}
