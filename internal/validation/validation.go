// Package validation checks the ingested splits against the schema and
// reports distribution drift between train and test.
package validation

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"insurance-pipeline/internal/apperr"
	"insurance-pipeline/internal/cfg"
	"insurance-pipeline/internal/common"
	"insurance-pipeline/internal/ingest"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// DriftMethod names the statistic a column was scored with.
type DriftMethod string

const (
	KolmogorovSmirnov        DriftMethod = "kolmogorov_smirnov"
	PopulationStabilityIndex DriftMethod = "population_stability_index"
)

const numBins = 10

// ColumnDrift is the drift result for one column.
type ColumnDrift struct {
	Method    DriftMethod `yaml:"method"`
	Score     float64     `yaml:"score"`
	PSI       float64     `yaml:"psi,omitempty"`
	Threshold float64     `yaml:"threshold"`
	Drifted   bool        `yaml:"drifted"`
	Severity  string      `yaml:"severity"`
}

// Report is written to the drift report file.
type Report struct {
	GeneratedAt   time.Time              `yaml:"generated_at"`
	TrainRows     int                    `yaml:"train_rows"`
	TestRows      int                    `yaml:"test_rows"`
	DriftDetected bool                   `yaml:"drift_detected"`
	Columns       map[string]ColumnDrift `yaml:"columns"`
}

type DataValidationArtifact struct {
	ValidationStatus    bool
	Message             string
	DriftReportFilePath string
}

type Config struct {
	TrainPath    string
	TestPath     string
	Schema       cfg.Schema
	ReportPath   string
	KSThreshold  float64
	PSIThreshold float64
}

type Validator struct {
	config Config
}

func New(config Config) *Validator {
	if config.KSThreshold <= 0 {
		config.KSThreshold = common.KSDriftThreshold
	}
	if config.PSIThreshold <= 0 {
		config.PSIThreshold = common.PSIDriftThreshold
	}
	return &Validator{config: config}
}

// Run fails with a DataLoad error when either split misses schema columns.
// Drift is reported but never fails the run.
func (v *Validator) Run() (DataValidationArtifact, error) {
	trainHeader, trainRows, err := ingest.ReadCSV(v.config.TrainPath)
	if err != nil {
		return DataValidationArtifact{}, apperr.DataLoad("validation.Read", err)
	}
	testHeader, testRows, err := ingest.ReadCSV(v.config.TestPath)
	if err != nil {
		return DataValidationArtifact{}, apperr.DataLoad("validation.Read", err)
	}

	var problems []string
	if missing := missingColumns(trainHeader, v.config.Schema); len(missing) > 0 {
		problems = append(problems, "train split is missing columns: "+strings.Join(missing, ", "))
	}
	if missing := missingColumns(testHeader, v.config.Schema); len(missing) > 0 {
		problems = append(problems, "test split is missing columns: "+strings.Join(missing, ", "))
	}
	if len(problems) > 0 {
		msg := strings.Join(problems, "; ")
		return DataValidationArtifact{Message: msg}, apperr.DataLoad("validation.Schema", fmt.Errorf("%s", msg))
	}

	report := Report{
		GeneratedAt: time.Now().UTC(),
		TrainRows:   len(trainRows),
		TestRows:    len(testRows),
		Columns:     make(map[string]ColumnDrift),
	}
	train := columns(trainHeader, trainRows)
	test := columns(testHeader, testRows)
	for _, name := range v.config.Schema.FeatureColumns {
		var d ColumnDrift
		if _, categorical := v.config.Schema.CategoryMappings[name]; categorical {
			d = ColumnDrift{
				Method:    PopulationStabilityIndex,
				Score:     categoricalPSI(train[name], test[name]),
				Threshold: v.config.PSIThreshold,
			}
		} else {
			a, b := numeric(train[name]), numeric(test[name])
			d = ColumnDrift{
				Method:    KolmogorovSmirnov,
				Score:     ksStatistic(a, b),
				PSI:       numericPSI(a, b),
				Threshold: v.config.KSThreshold,
			}
		}
		ratio := math.Max(d.Score/d.Threshold, d.PSI/v.config.PSIThreshold)
		d.Drifted = ratio > 1
		d.Severity = severity(ratio)
		report.Columns[name] = d
		if d.Drifted {
			report.DriftDetected = true
			log.Warn().
				Str("column", name).
				Str("method", string(d.Method)).
				Float64("score", d.Score).
				Str("severity", d.Severity).
				Msg("Distribution drift between train and test splits")
		}
	}

	if err := writeReport(v.config.ReportPath, report); err != nil {
		return DataValidationArtifact{}, apperr.Persist("validation.Report", err)
	}

	msg := "no drift detected"
	if report.DriftDetected {
		msg = "drift detected"
	}
	log.Info().
		Bool("drift_detected", report.DriftDetected).
		Str("report", v.config.ReportPath).
		Msg("Data validation completed")

	return DataValidationArtifact{
		ValidationStatus:    true,
		Message:             msg,
		DriftReportFilePath: v.config.ReportPath,
	}, nil
}

// ReadReport loads a drift report written by Run.
func ReadReport(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read drift report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("parse drift report: %w", err)
	}
	return r, nil
}

func writeReport(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal drift report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func missingColumns(header []string, schema cfg.Schema) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, c := range append(append([]string{}, schema.FeatureColumns...), schema.TargetColumn) {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func columns(header []string, rows [][]string) map[string][]string {
	out := make(map[string][]string, len(header))
	for j, h := range header {
		col := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				col[i] = strings.TrimSpace(row[j])
			}
		}
		out[h] = col
	}
	return out
}

// numeric parses cells, skipping blanks and non-numbers, and returns them sorted.
func numeric(cells []string) []float64 {
	out := make([]float64, 0, len(cells))
	for _, c := range cells {
		if v, err := strconv.ParseFloat(c, 64); err == nil && !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// ksStatistic is the two-sample Kolmogorov-Smirnov distance of sorted samples.
func ksStatistic(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return stat.KolmogorovSmirnov(a, nil, b, nil)
}

// categoricalPSI compares category shares. Categories missing from one side
// contribute with a small floor share.
func categoricalPSI(base, current []string) float64 {
	if len(base) == 0 || len(current) == 0 {
		return 0
	}
	baseCounts := make(map[string]float64)
	currentCounts := make(map[string]float64)
	for _, c := range base {
		baseCounts[c]++
	}
	for _, c := range current {
		currentCounts[c]++
	}
	keys := make(map[string]bool)
	for k := range baseCounts {
		keys[k] = true
	}
	for k := range currentCounts {
		keys[k] = true
	}

	psi := 0.0
	for k := range keys {
		p := share(baseCounts[k], float64(len(base)))
		q := share(currentCounts[k], float64(len(current)))
		psi += (q - p) * math.Log(q/p)
	}
	return psi
}

// numericPSI bins both sorted samples over their joint range.
func numericPSI(base, current []float64) float64 {
	if len(base) == 0 || len(current) == 0 {
		return 0
	}
	lo := math.Min(base[0], current[0])
	hi := math.Max(base[len(base)-1], current[len(current)-1])
	if hi == lo {
		return 0
	}
	width := (hi - lo) / numBins
	bin := func(v float64) int {
		b := int((v - lo) / width)
		if b >= numBins {
			b = numBins - 1
		}
		if b < 0 {
			b = 0
		}
		return b
	}

	baseBins := make([]float64, numBins)
	currentBins := make([]float64, numBins)
	for _, v := range base {
		baseBins[bin(v)]++
	}
	for _, v := range current {
		currentBins[bin(v)]++
	}

	psi := 0.0
	for i := 0; i < numBins; i++ {
		p := share(baseBins[i], float64(len(base)))
		q := share(currentBins[i], float64(len(current)))
		psi += (q - p) * math.Log(q/p)
	}
	return psi
}

func share(count, total float64) float64 {
	const floor = 1e-4
	s := count / total
	if s < floor {
		return floor
	}
	return s
}

// severity grades a score relative to its threshold.
func severity(ratio float64) string {
	switch {
	case ratio > 3:
		return "critical"
	case ratio > 2:
		return "high"
	case ratio > 1:
		return "medium"
	default:
		return "low"
	}
}
