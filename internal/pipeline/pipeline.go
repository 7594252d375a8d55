// Package pipeline runs the pipeline stages in order and records what each
// trainer run produced.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"insurance-pipeline/internal/apperr"
	"insurance-pipeline/internal/cfg"
	"insurance-pipeline/internal/ingest"
	"insurance-pipeline/internal/prediction"
	"insurance-pipeline/internal/storage"
	"insurance-pipeline/internal/trainer"
	"insurance-pipeline/internal/transform"
	"insurance-pipeline/internal/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	StageIngest    = "ingest"
	StageValidate  = "validate"
	StageTransform = "transform"
	StageTrain     = "train"
	StagePredict   = "predict"
)

// AllStages lists every stage in execution order.
var AllStages = []string{StageIngest, StageValidate, StageTransform, StageTrain, StagePredict}

// OutcomeCompleted marks a successful run that did not train a model.
const OutcomeCompleted = "completed"

// MetricsInterface defines the metrics the pipeline and its stages report.
type MetricsInterface interface {
	trainer.MetricsInterface
	ingest.MetricsInterface
	StageDurationObserve(stage string, seconds float64)
	ErrorsInc(kind string)
}

// RunStore persists trainer runs and stage executions.
type RunStore interface {
	RecordRun(run storage.RunRecord) (storage.RunRecord, error)
	StoreStage(record storage.StageRecord) error
}

// Pusher exports gathered metrics at the end of a run.
type Pusher interface {
	Push(ctx context.Context, url, job string) error
}

type Pipeline struct {
	settings cfg.Settings
	source   ingest.DocumentSource
	store    RunStore
	metrics  MetricsInterface
	pusher   Pusher
	factory  trainer.ModelFactory
}

type Option func(*Pipeline)

func WithSource(s ingest.DocumentSource) Option { return func(p *Pipeline) { p.source = s } }

func WithStore(s RunStore) Option { return func(p *Pipeline) { p.store = s } }

func WithMetrics(m MetricsInterface) Option { return func(p *Pipeline) { p.metrics = m } }

func WithPusher(ps Pusher) Option { return func(p *Pipeline) { p.pusher = ps } }

func WithModelFactory(f trainer.ModelFactory) Option { return func(p *Pipeline) { p.factory = f } }

func New(settings cfg.Settings, opts ...Option) *Pipeline {
	p := &Pipeline{settings: settings}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Result summarises a pipeline run.
type Result struct {
	RunID          string
	Outcome        string
	Ingestion      *ingest.DataIngestionArtifact
	Validation     *validation.DataValidationArtifact
	Transformation *trainer.DataTransformationArtifact
	Artifact       *trainer.ModelTrainerArtifact
	Prediction     *prediction.PredictionArtifact
	TrainAccuracy  float64
}

// Run executes the selected stages in pipeline order. An empty selection runs
// every stage. A model rejected by the gate yields OutcomeRejected together
// with the rejection error.
func (p *Pipeline) Run(ctx context.Context, stages []string) (Result, error) {
	selected, err := selectStages(stages)
	if err != nil {
		return Result{Outcome: trainer.OutcomeFailed}, err
	}

	res := Result{RunID: uuid.NewString()}
	log.Info().Str("run_id", res.RunID).Strs("stages", selected).Msg("Starting pipeline")

	err = p.runStages(ctx, selected, &res)
	switch {
	case err == nil && res.Artifact != nil:
		res.Outcome = trainer.OutcomeAccepted
	case err == nil:
		res.Outcome = OutcomeCompleted
	case apperr.KindOf(err) == apperr.KindModelRejected:
		res.Outcome = trainer.OutcomeRejected
	default:
		res.Outcome = trainer.OutcomeFailed
	}
	if err != nil && p.metrics != nil {
		p.metrics.ErrorsInc(apperr.KindOf(err).String())
	}

	p.push(ctx)

	log.Info().Str("run_id", res.RunID).Str("outcome", res.Outcome).Msg("Pipeline finished")
	return res, err
}

func (p *Pipeline) runStages(ctx context.Context, selected []string, res *Result) error {
	transformation := p.transformationArtifact()

	for _, stage := range selected {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline cancelled before %s: %w", stage, err)
		}

		started := time.Now()
		artifacts := map[string]string{}
		var err error

		switch stage {
		case StageIngest:
			var a ingest.DataIngestionArtifact
			a, err = p.ingest(ctx)
			if err == nil {
				res.Ingestion = &a
				artifacts["feature_store"] = a.FeatureStoreFilePath
				artifacts["train"] = a.TrainFilePath
				artifacts["test"] = a.TestFilePath
			}
		case StageValidate:
			var a validation.DataValidationArtifact
			a, err = p.validate()
			if err == nil {
				res.Validation = &a
				artifacts["drift_report"] = a.DriftReportFilePath
			}
		case StageTransform:
			transformation, err = p.transform()
			if err == nil {
				res.Transformation = &transformation
				artifacts["train"] = transformation.TransformedTrainFilePath
				artifacts["test"] = transformation.TransformedTestFilePath
				artifacts["object"] = transformation.TransformedObjectFilePath
			}
		case StageTrain:
			var a *trainer.ModelTrainerArtifact
			a, err = p.train(res.RunID, started, transformation, res)
			if err == nil {
				res.Artifact = a
				artifacts["model"] = a.TrainedModelFilePath
			}
		case StagePredict:
			var a prediction.PredictionArtifact
			a, err = p.predict()
			if err == nil {
				res.Prediction = &a
				artifacts["predictions"] = a.PredictionFilePath
			}
		}

		p.recordStage(res.RunID, stage, started, artifacts, err)
		if err != nil {
			log.Error().Err(err).Str("stage", stage).Msg("Pipeline stage failed")
			return err
		}
	}
	return nil
}

func (p *Pipeline) ingest(ctx context.Context) (ingest.DataIngestionArtifact, error) {
	if p.source == nil {
		return ingest.DataIngestionArtifact{}, apperr.Config("pipeline.ingest", fmt.Errorf("no document source configured"))
	}
	s := p.settings
	var m ingest.MetricsInterface
	if p.metrics != nil {
		m = p.metrics
	}
	return ingest.New(p.source, ingest.Config{
		Collection:       s.CollectionName,
		FeatureStorePath: s.FeatureStorePath(),
		TrainPath:        s.IngestedTrainPath(),
		TestPath:         s.IngestedTestPath(),
		TestSplitRatio:   s.TestSplitRatio,
		Seed:             s.SplitSeed,
		DropColumns:      s.Schema.DropColumns,
	}, m).Run(ctx)
}

func (p *Pipeline) validate() (validation.DataValidationArtifact, error) {
	s := p.settings
	return validation.New(validation.Config{
		TrainPath:  s.IngestedTrainPath(),
		TestPath:   s.IngestedTestPath(),
		Schema:     s.Schema,
		ReportPath: s.DriftReportPath(),
	}).Run()
}

func (p *Pipeline) transform() (trainer.DataTransformationArtifact, error) {
	s := p.settings
	return transform.New(transform.Config{
		TrainPath:            s.IngestedTrainPath(),
		TestPath:             s.IngestedTestPath(),
		Schema:               s.Schema,
		TransformedTrainPath: s.TransformedTrainPath(),
		TransformedTestPath:  s.TransformedTestPath(),
		ObjectPath:           s.PreprocessingObjectPath(),
	}).Run()
}

func (p *Pipeline) train(runID string, started time.Time, artifact trainer.DataTransformationArtifact, res *Result) (*trainer.ModelTrainerArtifact, error) {
	s := p.settings
	var opts []trainer.Option
	if p.metrics != nil {
		opts = append(opts, trainer.WithMetrics(p.metrics))
	}
	if p.factory != nil {
		opts = append(opts, trainer.WithModelFactory(p.factory))
	}

	t := trainer.New(artifact, trainer.Config{
		Params:               s.Model,
		ExpectedAccuracy:     s.ExpectedAccuracy,
		TrainedModelFilePath: s.TrainedModelFilePath,
	}, opts...)
	out, err := t.Run()
	res.TrainAccuracy = t.TrainAccuracy()

	run := storage.RunRecord{
		ID:               runID,
		StartedAt:        started,
		FinishedAt:       time.Now(),
		TrainAccuracy:    t.TrainAccuracy(),
		ExpectedAccuracy: s.ExpectedAccuracy,
	}
	if scores, ok := t.Scores(); ok {
		run.Metrics = &storage.RunMetrics{
			Accuracy:  scores.Accuracy,
			F1:        scores.F1,
			Precision: scores.Precision,
			Recall:    scores.Recall,
		}
	}
	if imp := t.FeatureImportance(); len(imp) == len(s.Schema.FeatureColumns) {
		run.FeatureImportance = make(map[string]float64, len(imp))
		for i, name := range s.Schema.FeatureColumns {
			run.FeatureImportance[name] = imp[i]
		}
	}
	switch {
	case err == nil:
		run.Outcome = trainer.OutcomeAccepted
		run.ModelPath = out.TrainedModelFilePath
	case apperr.KindOf(err) == apperr.KindModelRejected:
		run.Outcome = trainer.OutcomeRejected
		run.Error = err.Error()
	default:
		run.Outcome = trainer.OutcomeFailed
		run.Error = err.Error()
	}
	if p.store != nil {
		if _, serr := p.store.RecordRun(run); serr != nil {
			log.Warn().Err(serr).Str("run_id", runID).Msg("Failed to record trainer run")
		}
	}

	if err != nil {
		return nil, err
	}
	return &out, nil
}

// predict scores the ingested test split with the persisted bundle.
func (p *Pipeline) predict() (prediction.PredictionArtifact, error) {
	s := p.settings
	return prediction.New(prediction.Config{
		ModelPath:  s.TrainedModelFilePath,
		InputPath:  s.IngestedTestPath(),
		OutputPath: s.PredictionPath(),
		Schema:     s.Schema,
	}).Run()
}

func (p *Pipeline) recordStage(runID, stage string, started time.Time, artifacts map[string]string, err error) {
	elapsed := time.Since(started)
	if p.metrics != nil {
		p.metrics.StageDurationObserve(stage, elapsed.Seconds())
	}
	if p.store == nil {
		return
	}
	record := storage.StageRecord{
		RunID:     runID,
		Stage:     stage,
		StartedAt: started,
		Duration:  elapsed,
		Artifacts: artifacts,
	}
	if err != nil {
		record.Error = err.Error()
	}
	if serr := p.store.StoreStage(record); serr != nil {
		log.Warn().Err(serr).Str("stage", stage).Msg("Failed to record stage")
	}
}

func (p *Pipeline) push(ctx context.Context) {
	if p.pusher == nil || p.settings.PushgatewayURL == "" {
		return
	}
	if err := p.pusher.Push(ctx, p.settings.PushgatewayURL, p.settings.MetricsJob); err != nil {
		log.Warn().Err(err).Msg("Failed to push metrics")
		return
	}
	log.Debug().Str("url", p.settings.PushgatewayURL).Msg("Metrics pushed")
}

// transformationArtifact points at the outputs a previous transform stage left
// under the artifact directory.
func (p *Pipeline) transformationArtifact() trainer.DataTransformationArtifact {
	return trainer.DataTransformationArtifact{
		TransformedTrainFilePath:  p.settings.TransformedTrainPath(),
		TransformedTestFilePath:   p.settings.TransformedTestPath(),
		TransformedObjectFilePath: p.settings.PreprocessingObjectPath(),
	}
}

func selectStages(stages []string) ([]string, error) {
	if len(stages) == 0 {
		return AllStages, nil
	}
	want := make(map[string]bool, len(stages))
	for _, s := range stages {
		if s == "all" {
			return AllStages, nil
		}
		known := false
		for _, a := range AllStages {
			if s == a {
				known = true
				break
			}
		}
		if !known {
			return nil, apperr.Config("pipeline.stages", fmt.Errorf("unknown stage %q", s))
		}
		want[s] = true
	}

	var out []string
	for _, s := range AllStages {
		if want[s] {
			out = append(out, s)
		}
	}
	return out, nil
}
