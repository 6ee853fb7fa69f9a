package common

import "time"

// Environment variable keys
const (
	EnvConfigFile   = "CONFIG_FILE"
	EnvHTTPPort     = "HTTP_PORT"
	EnvMetricsPort  = "METRICS_PORT"
	EnvDataPath     = "DATA_PATH"
	EnvLogLevel     = "LOG_LEVEL"
	EnvEngineSeed   = "ENGINE_SEED"
	EnvEpochDelay   = "EPOCH_DELAY"
	EnvPredictDelay = "PREDICT_DELAY"
	EnvSampleRows   = "SAMPLE_ROWS"
	EnvServerURL    = "MLSTUDIO_URL"
)

// Configuration defaults
const (
	DefaultHTTPPort     = 8090
	DefaultMetricsPort  = 9090
	DefaultLogLevel     = "info"
	DefaultEngineSeed   = 42
	DefaultEpochDelay   = 500 * time.Millisecond
	DefaultPredictDelay = 800 * time.Millisecond
	DefaultSampleRows   = 1000
	DefaultServerURL    = "http://localhost:8090"
)

// Training simulation constants
const (
	TrainingEpochs            = 10
	DefaultAlgorithm          = "Random Forest"
	DefaultModelVersion       = "1.0"
	DefaultModelDescription   = "Trained model for loan approval prediction"
	DefaultTrainingPercentage = 80
	MinTrainingPercentage     = 50
	MaxTrainingPercentage     = 90
)

// Prediction scoring constants
const (
	BaseProbability       = 0.5
	ApprovalThreshold     = 0.5
	HighCreditScore       = 700
	LowCreditScore        = 600
	HighIncome            = 80000
	LowIncome             = 40000
	LargeLoanAmount       = 200000
	MaxDebtToIncome       = 0.4
	PredictionJitterRange = 0.1
)

// Dataset defaults
const (
	DefaultDatasetID          = "default-dataset"
	DefaultDatasetName        = "Loan Approval Dataset"
	DefaultDatasetDescription = "Default dataset for loan approval prediction"
	DefaultTargetColumn       = "approved"
)

// Validation constants
const (
	MinPort          = 1024
	MaxPort          = 65535
	MaxSimulateDelay = 10 * time.Second
	MaxSampleRows    = 100000
)
