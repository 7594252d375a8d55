package ml

import "fmt"

// PositiveLabel is the class treated as positive by the binary metrics.
const PositiveLabel = 1.0

// Report holds binary classification scores, each in [0, 1].
type Report struct {
	Accuracy  float64 `json:"accuracy"`
	F1        float64 `json:"f1_score"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

func checkLabels(yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return fmt.Errorf("no labels to score")
	}
	if len(yTrue) != len(yPred) {
		return fmt.Errorf("got %d predictions for %d labels", len(yPred), len(yTrue))
	}
	return nil
}

// Accuracy is the fraction of exact label matches.
func Accuracy(yTrue, yPred []float64) (float64, error) {
	if err := checkLabels(yTrue, yPred); err != nil {
		return 0, err
	}
	hits := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(yTrue)), nil
}

// PrecisionRecallF1 scores the positive class. Undefined ratios are 0.
func PrecisionRecallF1(yTrue, yPred []float64) (prec, rec, f1 float64, err error) {
	if err = checkLabels(yTrue, yPred); err != nil {
		return 0, 0, 0, err
	}
	tp, fp, fn := 0, 0, 0
	for i := range yTrue {
		truePos := yTrue[i] == PositiveLabel
		predPos := yPred[i] == PositiveLabel
		switch {
		case truePos && predPos:
			tp++
		case predPos:
			fp++
		case truePos:
			fn++
		}
	}
	if tp+fp > 0 {
		prec = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		rec = float64(tp) / float64(tp+fn)
	}
	if prec+rec > 0 {
		f1 = 2 * prec * rec / (prec + rec)
	}
	return prec, rec, f1, nil
}

// ClassificationReport computes all four scores.
func ClassificationReport(yTrue, yPred []float64) (Report, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}
	prec, rec, f1, err := PrecisionRecallF1(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}
	return Report{Accuracy: acc, F1: f1, Precision: prec, Recall: rec}, nil
}
