// Package log defines standard attribute keys for censusml operations.
//
// Keys follow a hierarchical naming convention ("model.name",
// "frame.rows") so log lines from the dataframe, model and explainer
// layers can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator or explainer type.
	// Examples: "DecisionTreeClassifier", "KernelExplainer"
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies one instance, usually a UUID.
	EstimatorIDKey = "estimator.id"

	// OperationKey is the operation being performed: "fit", "predict", "explain", ...
	OperationKey = "ml.operation"

	// ComponentKey identifies the package doing the work.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase: "training", "validation", ...
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey is the number of rows in a matrix or frame.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// ClassesKey is the number of distinct target classes.
	ClassesKey = "data.classes"

	// SourceKey is the path or name a frame was read from.
	SourceKey = "data.source"
)

// Dataframe Context
const (
	// FrameRowsKey is the row count after a frame operation.
	FrameRowsKey = "frame.rows"

	// FrameColumnsKey is the column count after a frame operation.
	FrameColumnsKey = "frame.columns"

	// ColumnKey names the column an operation targets.
	ColumnKey = "frame.column"

	// ColumnKindKey is the kind (int, float, category) of that column.
	ColumnKindKey = "frame.column_kind"
)

// Explanation Context
const (
	// ExplainerKey names the SHAP algorithm: "tree", "kernel".
	ExplainerKey = "shap.explainer"

	// CoalitionsKey is the number of feature coalitions evaluated per row.
	CoalitionsKey = "shap.coalitions"

	// BackgroundKey is the number of background rows used for expectations.
	BackgroundKey = "shap.background"

	// BaseValueKey is the expected model output.
	BaseValueKey = "shap.base_value"

	// RunIDKey identifies one explanation run.
	RunIDKey = "shap.run_id"
)

// Performance Metrics
const (
	// DurationMsKey records execution time in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy in [0, 1].
	AccuracyKey = "metrics.accuracy"

	// AUCKey records the area under the ROC curve.
	AUCKey = "metrics.auc"

	// LossKey records a loss value.
	LossKey = "metrics.loss"

	// IterationKey records the current iteration of an iterative fit.
	IterationKey = "training.iteration"
)

// Error Context
const (
	// ErrorCodeKey carries a structured error code.
	ErrorCodeKey = "error.code"

	// StacktraceKey carries the cockroachdb/errors stack of a logged error.
	StacktraceKey = "error.stacktrace"
)

// Configuration
const (
	// HyperParamsKey holds estimator hyperparameters as an object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// ConfigFileKey records the config file that was loaded.
	ConfigFileKey = "config.file"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationExplain   = "explain"
	OperationLoad      = "load"
	OperationRender    = "render"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseExplanation   = "explanation"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
)
