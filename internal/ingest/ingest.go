// Package ingest exports the source collection into the feature store and
// splits it into train and test CSV files.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"insurance-pipeline/internal/apperr"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentSource yields every document of a collection.
type DocumentSource interface {
	Documents(ctx context.Context, collection string) ([]bson.M, error)
}

// MetricsInterface defines the metrics the ingestor reports.
type MetricsInterface interface {
	IngestedDocumentsAdd(n int)
}

type Config struct {
	Collection       string
	FeatureStorePath string
	TrainPath        string
	TestPath         string
	TestSplitRatio   float64
	Seed             int64
	DropColumns      []string
}

type DataIngestionArtifact struct {
	FeatureStoreFilePath string
	TrainFilePath        string
	TestFilePath         string
	Documents            int
}

type Ingestor struct {
	source  DocumentSource
	config  Config
	metrics MetricsInterface
}

func New(source DocumentSource, config Config, metrics MetricsInterface) *Ingestor {
	return &Ingestor{source: source, config: config, metrics: metrics}
}

// Run exports the collection and writes the train/test split.
func (i *Ingestor) Run(ctx context.Context) (DataIngestionArtifact, error) {
	start := time.Now()
	if i.config.TestSplitRatio <= 0 || i.config.TestSplitRatio >= 1 {
		return DataIngestionArtifact{}, apperr.Config("ingest.Run",
			fmt.Errorf("test split ratio must be between 0 and 1, got %f", i.config.TestSplitRatio))
	}

	docs, err := i.source.Documents(ctx, i.config.Collection)
	if err != nil {
		return DataIngestionArtifact{}, apperr.DataLoad("ingest.Documents", err)
	}
	if len(docs) == 0 {
		return DataIngestionArtifact{}, apperr.DataLoad("ingest.Documents",
			fmt.Errorf("collection %s is empty", i.config.Collection))
	}
	if i.metrics != nil {
		i.metrics.IngestedDocumentsAdd(len(docs))
	}

	header, rows := tabulate(docs, i.config.DropColumns)
	if len(header) == 0 {
		return DataIngestionArtifact{}, apperr.DataLoad("ingest.Tabulate",
			fmt.Errorf("collection %s has no usable columns", i.config.Collection))
	}
	if err := WriteCSV(i.config.FeatureStorePath, header, rows); err != nil {
		return DataIngestionArtifact{}, apperr.Persist("ingest.FeatureStore", err)
	}

	train, test, err := split(rows, i.config.TestSplitRatio, i.config.Seed)
	if err != nil {
		return DataIngestionArtifact{}, apperr.DataLoad("ingest.Split", err)
	}
	if err := WriteCSV(i.config.TrainPath, header, train); err != nil {
		return DataIngestionArtifact{}, apperr.Persist("ingest.Train", err)
	}
	if err := WriteCSV(i.config.TestPath, header, test); err != nil {
		return DataIngestionArtifact{}, apperr.Persist("ingest.Test", err)
	}

	log.Info().
		Str("collection", i.config.Collection).
		Int("documents", len(docs)).
		Int("train", len(train)).
		Int("test", len(test)).
		Dur("elapsed", time.Since(start)).
		Msg("Data ingestion completed")

	return DataIngestionArtifact{
		FeatureStoreFilePath: i.config.FeatureStorePath,
		TrainFilePath:        i.config.TrainPath,
		TestFilePath:         i.config.TestPath,
		Documents:            len(docs),
	}, nil
}

// tabulate flattens documents into rows under the sorted union of their keys.
// Missing fields become empty cells.
func tabulate(docs []bson.M, drop []string) ([]string, [][]string) {
	dropped := make(map[string]bool, len(drop))
	for _, c := range drop {
		dropped[c] = true
	}

	seen := make(map[string]bool)
	var header []string
	for _, doc := range docs {
		for k := range doc {
			if dropped[k] || seen[k] {
				continue
			}
			seen[k] = true
			header = append(header, k)
		}
	}
	sort.Strings(header)

	rows := make([][]string, len(docs))
	for r, doc := range docs {
		row := make([]string, len(header))
		for c, k := range header {
			row[c] = formatValue(doc[k])
		}
		rows[r] = row
	}
	return header, rows
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// split shuffles rows with seed and cuts off ceil(n*ratio) rows for test.
func split(rows [][]string, ratio float64, seed int64) ([][]string, [][]string, error) {
	n := len(rows)
	nTest := int(math.Ceil(float64(n) * ratio))
	if nTest < 1 || n-nTest < 1 {
		return nil, nil, fmt.Errorf("cannot split %d rows with test ratio %.2f", n, ratio)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test := make([][]string, 0, nTest)
	train := make([][]string, 0, n-nTest)
	for i, idx := range perm {
		if i < nTest {
			test = append(test, rows[idx])
		} else {
			train = append(train, rows[idx])
		}
	}
	return train, test, nil
}

// WriteCSV writes header and rows to path, creating parent directories.
func WriteCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return f.Close()
}

// ReadCSV reads a CSV written by the ingestion stage and returns its header
// and data rows.
func ReadCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}
	return records[0], records[1:], nil
}
