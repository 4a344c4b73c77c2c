// Package log defines standard attribute keys for the training pipeline.
//
// The keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples", "tracking.run_id") so that log records from every stage can
// be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of machine learning model.
	// Examples: "ElasticNet", "LinearRegression"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score", "load", "split", "record"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is logging.
	// Examples: "dataset", "linear", "tracking"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the pipeline.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// SourceKey is the location a dataset was read from.
	SourceKey = "data.source"

	// TargetKey names the target column.
	TargetKey = "data.target"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records the objective value or duality gap.
	LossKey = "metrics.loss"

	// R2ScoreKey records R² coefficient of determination for regression.
	// Range (-∞, 1.0], with 1.0 being perfect prediction.
	R2ScoreKey = "metrics.r2_score"

	// MSEKey records the mean squared error.
	MSEKey = "metrics.mse"

	// MAEKey records the mean absolute error.
	MAEKey = "metrics.mae"

	// IterationKey records the current iteration number during iterative processes.
	IterationKey = "training.iteration"
)

// Hyperparameters and Configuration
const (
	// AlphaKey records the overall regularization strength.
	AlphaKey = "hyperparams.alpha"

	// L1RatioKey records the L1/L2 mixing parameter.
	L1RatioKey = "hyperparams.l1_ratio"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Experiment Tracking
const (
	// TrackingURIKey is the tracking backend location.
	TrackingURIKey = "tracking.uri"

	// ExperimentIDKey identifies the experiment a run belongs to.
	ExperimentIDKey = "tracking.experiment_id"

	// RunIDKey identifies a tracking run.
	RunIDKey = "tracking.run_id"

	// RunStatusKey is the terminal status a run was closed with.
	RunStatusKey = "tracking.run_status"

	// ArtifactPathKey is the artifact path inside a run.
	ArtifactPathKey = "tracking.artifact_path"

	// RegisteredModelKey is the model registry name.
	RegisteredModelKey = "tracking.registered_model"

	// ModelVersionKey is the registry version created for a model.
	ModelVersionKey = "tracking.model_version"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationLoad    = "load"
	OperationSplit   = "split"
	OperationRecord  = "record"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseTracking   = "tracking"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorSingularMatrix    = "SINGULAR_MATRIX"
)
