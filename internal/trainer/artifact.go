package trainer

import "insurance-pipeline/internal/ml"

// DataTransformationArtifact locates the outputs of the transformation stage.
type DataTransformationArtifact struct {
	TransformedTrainFilePath  string `json:"transformed_train_file_path"`
	TransformedTestFilePath   string `json:"transformed_test_file_path"`
	TransformedObjectFilePath string `json:"transformed_object_file_path"`
}

// ClassificationMetricArtifact holds the test-split scores of a trained model.
type ClassificationMetricArtifact struct {
	Accuracy  float64 `json:"accuracy"`
	F1        float64 `json:"f1_score"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

func metricArtifact(r ml.Report) ClassificationMetricArtifact {
	return ClassificationMetricArtifact{
		Accuracy:  r.Accuracy,
		F1:        r.F1,
		Precision: r.Precision,
		Recall:    r.Recall,
	}
}

// ModelTrainerArtifact is the result handed to downstream stages.
type ModelTrainerArtifact struct {
	TrainedModelFilePath string                       `json:"trained_model_file_path"`
	MetricArtifact       ClassificationMetricArtifact `json:"metric_artifact"`
}

// Config is the trainer's share of the pipeline configuration.
type Config struct {
	Params               ml.Params
	ExpectedAccuracy     float64
	TrainedModelFilePath string
}
