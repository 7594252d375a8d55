package common

// Environment variable keys
const (
	EnvConfigFile           = "CONFIG_FILE"
	EnvMongoDBURL           = "MONGODB_URL"
	EnvDatabaseName         = "DATABASE_NAME"
	EnvCollectionName       = "COLLECTION_NAME"
	EnvArtifactDir          = "ARTIFACT_DIR"
	EnvDataPath             = "DATA_PATH"
	EnvTestSplitRatio       = "TEST_SPLIT_RATIO"
	EnvSplitSeed            = "SPLIT_SEED"
	EnvNEstimators          = "N_ESTIMATORS"
	EnvMinSamplesSplit      = "MIN_SAMPLES_SPLIT"
	EnvMinSamplesLeaf       = "MIN_SAMPLES_LEAF"
	EnvMaxDepth             = "MAX_DEPTH"
	EnvCriterion            = "CRITERION"
	EnvMaxFeatures          = "MAX_FEATURES"
	EnvRandomState          = "RANDOM_STATE"
	EnvExpectedAccuracy     = "EXPECTED_ACCURACY"
	EnvTrainedModelFilePath = "TRAINED_MODEL_FILE_PATH"
	EnvPushgatewayURL       = "PUSHGATEWAY_URL"
	EnvMetricsJob           = "METRICS_JOB"
	EnvLogLevel             = "LOG_LEVEL"
	EnvLogDir               = "LOG_DIR"
)

// Configuration defaults
const (
	DefaultDatabaseName     = "Proj1"
	DefaultCollectionName   = "Proj1-Data"
	DefaultArtifactDir      = "artifact"
	DefaultDataPath         = "data"
	DefaultTestSplitRatio   = 0.25
	DefaultSplitSeed        = 42
	DefaultNEstimators      = 200
	DefaultMinSamplesSplit  = 7
	DefaultMinSamplesLeaf   = 6
	DefaultMaxDepth         = 10
	DefaultCriterion        = "entropy"
	DefaultRandomState      = 101
	DefaultExpectedAccuracy = 0.6
	DefaultMetricsJob       = "insurance_pipeline"
	DefaultLogLevel         = "info"
	DefaultLogDir           = "logs"
)

// Artifact layout under the artifact directory
const (
	DataIngestionDir   = "data_ingestion"
	FeatureStoreDir    = "feature_store"
	IngestedDir        = "ingested"
	FeatureStoreFile   = "data.csv"
	TrainFileName      = "train.csv"
	TestFileName       = "test.csv"
	DataValidationDir  = "data_validation"
	DriftReportFile    = "drift_report.yaml"
	DataTransformDir   = "data_transformation"
	TransformedDataDir = "transformed"
	TransformedObjDir  = "transformed_object"
	TrainArrayFile     = "train.npy"
	TestArrayFile      = "test.npy"
	PreprocessingFile  = "preprocessing.gob"
	ModelTrainerDir    = "model_trainer"
	TrainedModelDir    = "trained_model"
	ModelFileName      = "model.gob"
	PredictionDir      = "prediction"
	PredictionFile     = "predictions.csv"
	RunsDBFileName     = "pipeline-runs.db"
)

// Validation constants
const (
	MinExpectedAccuracy = 0.0
	MaxExpectedAccuracy = 2.0
	MaxEstimators       = 10000
)

// Drift thresholds between the train and test splits
const (
	KSDriftThreshold  = 0.1
	PSIDriftThreshold = 0.2
)
