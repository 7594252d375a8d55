package cfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"insurance-pipeline/internal/common"
	"insurance-pipeline/internal/ml"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	ArtifactDir          string
	DataPath             string
	MongoURL             string
	DatabaseName         string
	CollectionName       string
	TestSplitRatio       float64
	SplitSeed            int64
	Schema               Schema
	Model                ml.Params
	ExpectedAccuracy     float64
	TrainedModelFilePath string
	PushgatewayURL       string
	MetricsJob           string
	LogLevel             string
	LogDir               string
}

// Schema describes the columns of the ingested collection.
type Schema struct {
	TargetColumn     string                        `yaml:"targetColumn"`
	FeatureColumns   []string                      `yaml:"featureColumns"`
	DropColumns      []string                      `yaml:"dropColumns"`
	StandardColumns  []string                      `yaml:"standardColumns"`
	MinMaxColumns    []string                      `yaml:"minMaxColumns"`
	CategoryMappings map[string]map[string]float64 `yaml:"categoryMappings"`
}

// ModelParamsFile holds the hyperparameters set in a config file. Pointers
// tell an explicit zero (maxDepth: 0 is unlimited) apart from a missing key.
type ModelParamsFile struct {
	NEstimators     *int   `yaml:"nEstimators"`
	MinSamplesSplit *int   `yaml:"minSamplesSplit"`
	MinSamplesLeaf  *int   `yaml:"minSamplesLeaf"`
	MaxDepth        *int   `yaml:"maxDepth"`
	Criterion       string `yaml:"criterion"`
	MaxFeatures     *int   `yaml:"maxFeatures"`
	RandomState     *int64 `yaml:"randomState"`
}

type ConfigFile struct {
	Pipeline struct {
		ArtifactDir string `yaml:"artifactDir"`
		DataPath    string `yaml:"dataPath"`
	} `yaml:"pipeline"`

	Mongo struct {
		DatabaseName   string `yaml:"databaseName"`
		CollectionName string `yaml:"collectionName"`
	} `yaml:"mongo"`

	Ingestion struct {
		TestSplitRatio float64 `yaml:"testSplitRatio"`
		Seed           *int64  `yaml:"seed"`
	} `yaml:"ingestion"`

	Schema Schema `yaml:"schema"`

	Trainer struct {
		ExpectedAccuracy     *float64        `yaml:"expectedAccuracy"`
		TrainedModelFilePath string          `yaml:"trainedModelFilePath"`
		ModelParams          ModelParamsFile `yaml:"modelParams"`
	} `yaml:"trainer"`

	Metrics struct {
		PushgatewayURL string `yaml:"pushgatewayURL"`
		Job            string `yaml:"job"`
	} `yaml:"metrics"`

	Log struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"log"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	schema := config.Schema
	if schema.TargetColumn == "" && len(schema.FeatureColumns) == 0 {
		schema = DefaultSchema()
	}

	params := config.Trainer.ModelParams
	expected := common.DefaultExpectedAccuracy
	if config.Trainer.ExpectedAccuracy != nil {
		expected = *config.Trainer.ExpectedAccuracy
	}

	settings := Settings{
		ArtifactDir:    getEnvOrDefault(common.EnvArtifactDir, orDefault(config.Pipeline.ArtifactDir, common.DefaultArtifactDir)),
		DataPath:       getEnvOrDefault(common.EnvDataPath, orDefault(config.Pipeline.DataPath, common.DefaultDataPath)),
		MongoURL:       os.Getenv(common.EnvMongoDBURL),
		DatabaseName:   getEnvOrDefault(common.EnvDatabaseName, orDefault(config.Mongo.DatabaseName, common.DefaultDatabaseName)),
		CollectionName: getEnvOrDefault(common.EnvCollectionName, orDefault(config.Mongo.CollectionName, common.DefaultCollectionName)),
		TestSplitRatio: getFloatFromEnvOrConfig(common.EnvTestSplitRatio, config.Ingestion.TestSplitRatio, common.DefaultTestSplitRatio),
		SplitSeed:      getInt64FromEnvOrConfig(common.EnvSplitSeed, config.Ingestion.Seed, common.DefaultSplitSeed),
		Schema:         schema,
		Model: ml.Params{
			NEstimators:     getIntFromEnvOrConfig(common.EnvNEstimators, params.NEstimators, common.DefaultNEstimators),
			MinSamplesSplit: getIntFromEnvOrConfig(common.EnvMinSamplesSplit, params.MinSamplesSplit, common.DefaultMinSamplesSplit),
			MinSamplesLeaf:  getIntFromEnvOrConfig(common.EnvMinSamplesLeaf, params.MinSamplesLeaf, common.DefaultMinSamplesLeaf),
			MaxDepth:        getIntFromEnvOrConfig(common.EnvMaxDepth, params.MaxDepth, common.DefaultMaxDepth),
			Criterion:       getEnvOrDefault(common.EnvCriterion, orDefault(params.Criterion, common.DefaultCriterion)),
			MaxFeatures:     getIntFromEnvOrConfig(common.EnvMaxFeatures, params.MaxFeatures, 0),
			RandomState:     getInt64FromEnvOrConfig(common.EnvRandomState, params.RandomState, common.DefaultRandomState),
		},
		ExpectedAccuracy:     getFloatOrDefault(common.EnvExpectedAccuracy, expected),
		TrainedModelFilePath: getEnvOrDefault(common.EnvTrainedModelFilePath, config.Trainer.TrainedModelFilePath),
		PushgatewayURL:       getEnvOrDefault(common.EnvPushgatewayURL, config.Metrics.PushgatewayURL),
		MetricsJob:           getEnvOrDefault(common.EnvMetricsJob, orDefault(config.Metrics.Job, common.DefaultMetricsJob)),
		LogLevel:             getEnvOrDefault(common.EnvLogLevel, orDefault(config.Log.Level, common.DefaultLogLevel)),
		LogDir:               getEnvOrDefault(common.EnvLogDir, orDefault(config.Log.Dir, common.DefaultLogDir)),
	}
	settings.applyDerivedPaths()

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ArtifactDir:    getEnvOrDefault(common.EnvArtifactDir, common.DefaultArtifactDir),
		DataPath:       getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		MongoURL:       os.Getenv(common.EnvMongoDBURL), // only needed for ingestion
		DatabaseName:   getEnvOrDefault(common.EnvDatabaseName, common.DefaultDatabaseName),
		CollectionName: getEnvOrDefault(common.EnvCollectionName, common.DefaultCollectionName),
		TestSplitRatio: getFloatOrDefault(common.EnvTestSplitRatio, common.DefaultTestSplitRatio),
		SplitSeed:      getInt64OrDefault(common.EnvSplitSeed, common.DefaultSplitSeed),
		Schema:         DefaultSchema(),
		Model: ml.Params{
			NEstimators:     getIntOrDefault(common.EnvNEstimators, common.DefaultNEstimators),
			MinSamplesSplit: getIntOrDefault(common.EnvMinSamplesSplit, common.DefaultMinSamplesSplit),
			MinSamplesLeaf:  getIntOrDefault(common.EnvMinSamplesLeaf, common.DefaultMinSamplesLeaf),
			MaxDepth:        getIntOrDefault(common.EnvMaxDepth, common.DefaultMaxDepth),
			Criterion:       getEnvOrDefault(common.EnvCriterion, common.DefaultCriterion),
			MaxFeatures:     getIntOrDefault(common.EnvMaxFeatures, 0),
			RandomState:     getInt64OrDefault(common.EnvRandomState, common.DefaultRandomState),
		},
		ExpectedAccuracy:     getFloatOrDefault(common.EnvExpectedAccuracy, common.DefaultExpectedAccuracy),
		TrainedModelFilePath: os.Getenv(common.EnvTrainedModelFilePath),
		PushgatewayURL:       os.Getenv(common.EnvPushgatewayURL),
		MetricsJob:           getEnvOrDefault(common.EnvMetricsJob, common.DefaultMetricsJob),
		LogLevel:             getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogDir:               getEnvOrDefault(common.EnvLogDir, common.DefaultLogDir),
	}
	settings.applyDerivedPaths()

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// DefaultSchema is the vehicle insurance cross-sell dataset.
func DefaultSchema() Schema {
	return Schema{
		TargetColumn: "Response",
		FeatureColumns: []string{
			"Gender", "Age", "Driving_License", "Region_Code", "Previously_Insured",
			"Vehicle_Age", "Vehicle_Damage", "Annual_Premium", "Policy_Sales_Channel", "Vintage",
		},
		DropColumns:     []string{"_id", "id"},
		StandardColumns: []string{"Age", "Vintage"},
		MinMaxColumns:   []string{"Annual_Premium"},
		CategoryMappings: map[string]map[string]float64{
			"Gender":         {"Female": 0, "Male": 1},
			"Vehicle_Damage": {"No": 0, "Yes": 1},
			"Vehicle_Age":    {"< 1 Year": 0, "1-2 Year": 1, "> 2 Years": 2},
		},
	}
}

// Artifact paths derived from the artifact directory.

func (s *Settings) FeatureStorePath() string {
	return filepath.Join(s.ArtifactDir, common.DataIngestionDir, common.FeatureStoreDir, common.FeatureStoreFile)
}

func (s *Settings) IngestedTrainPath() string {
	return filepath.Join(s.ArtifactDir, common.DataIngestionDir, common.IngestedDir, common.TrainFileName)
}

func (s *Settings) IngestedTestPath() string {
	return filepath.Join(s.ArtifactDir, common.DataIngestionDir, common.IngestedDir, common.TestFileName)
}

func (s *Settings) DriftReportPath() string {
	return filepath.Join(s.ArtifactDir, common.DataValidationDir, common.DriftReportFile)
}

func (s *Settings) TransformedTrainPath() string {
	return filepath.Join(s.ArtifactDir, common.DataTransformDir, common.TransformedDataDir, common.TrainArrayFile)
}

func (s *Settings) TransformedTestPath() string {
	return filepath.Join(s.ArtifactDir, common.DataTransformDir, common.TransformedDataDir, common.TestArrayFile)
}

func (s *Settings) PreprocessingObjectPath() string {
	return filepath.Join(s.ArtifactDir, common.DataTransformDir, common.TransformedObjDir, common.PreprocessingFile)
}

func (s *Settings) PredictionPath() string {
	return filepath.Join(s.ArtifactDir, common.PredictionDir, common.PredictionFile)
}

func (s *Settings) applyDerivedPaths() {
	if s.TrainedModelFilePath == "" {
		s.TrainedModelFilePath = filepath.Join(s.ArtifactDir, common.ModelTrainerDir, common.TrainedModelDir, common.ModelFileName)
	}
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue *int, defaultValue int) int {
	if configValue != nil {
		defaultValue = *configValue
	}
	return getIntOrDefault(key, defaultValue)
}

func getInt64FromEnvOrConfig(key string, configValue *int64, defaultValue int64) int64 {
	if configValue != nil {
		defaultValue = *configValue
	}
	return getInt64OrDefault(key, defaultValue)
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getFloatOrDefault(key, defaultValue)
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.ArtifactDir == "" {
		return fmt.Errorf("artifact directory cannot be empty")
	}
	if settings.DatabaseName == "" || settings.CollectionName == "" {
		return fmt.Errorf("database and collection names are required")
	}
	if settings.TestSplitRatio <= 0 || settings.TestSplitRatio >= 1 {
		return fmt.Errorf("test split ratio must be between 0 and 1, got %f", settings.TestSplitRatio)
	}

	// Validate model hyperparameters
	if settings.Model.NEstimators > common.MaxEstimators {
		return fmt.Errorf("n_estimators must be at most %d, got %d", common.MaxEstimators, settings.Model.NEstimators)
	}
	if err := settings.Model.Validate(); err != nil {
		return err
	}

	// Validate the acceptance threshold
	if settings.ExpectedAccuracy < common.MinExpectedAccuracy || settings.ExpectedAccuracy >= common.MaxExpectedAccuracy {
		return fmt.Errorf("expected accuracy must be between %.1f and %.1f, got %f",
			common.MinExpectedAccuracy, common.MaxExpectedAccuracy, settings.ExpectedAccuracy)
	}
	if settings.TrainedModelFilePath == "" {
		return fmt.Errorf("trained model file path cannot be empty")
	}

	// Validate schema
	s := settings.Schema
	if s.TargetColumn == "" {
		return fmt.Errorf("schema target column is required")
	}
	if len(s.FeatureColumns) == 0 {
		return fmt.Errorf("schema needs at least one feature column")
	}
	features := make(map[string]bool, len(s.FeatureColumns))
	for _, c := range s.FeatureColumns {
		if c == s.TargetColumn {
			return fmt.Errorf("target column %s cannot also be a feature", c)
		}
		if features[c] {
			return fmt.Errorf("duplicate feature column %s", c)
		}
		features[c] = true
	}
	for _, c := range append(append([]string{}, s.StandardColumns...), s.MinMaxColumns...) {
		if !features[c] {
			return fmt.Errorf("scaled column %s is not a feature column", c)
		}
	}
	for _, c := range s.StandardColumns {
		for _, m := range s.MinMaxColumns {
			if strings.EqualFold(c, m) {
				return fmt.Errorf("column %s cannot be both standard and min-max scaled", c)
			}
		}
	}

	return nil
}
