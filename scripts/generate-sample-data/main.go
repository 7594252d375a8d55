package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"insurance-pipeline/internal/cfg"
	"insurance-pipeline/internal/ingest"
	"insurance-pipeline/internal/mongodb"

	"go.mongodb.org/mongo-driver/bson"
)

// memorySource serves generated documents to the ingestion stage.
type memorySource struct {
	docs []bson.M
}

func (m memorySource) Documents(context.Context, string) ([]bson.M, error) {
	return m.docs, nil
}

func main() {
	var (
		artifactDir = flag.String("artifact-dir", "artifact", "Artifact directory to write the ingested CSVs into")
		rows        = flag.Int("rows", 2000, "Number of customers to generate")
		seed        = flag.Int64("seed", 1, "Random seed")
		mongoURL    = flag.String("mongo-url", "", "Also insert the customers into this MongoDB")
		database    = flag.String("database", "Proj1", "MongoDB database")
		collection  = flag.String("collection", "Proj1-Data", "MongoDB collection")
	)
	flag.Parse()

	fmt.Printf("Generating %d sample customers...\n", *rows)
	fmt.Printf("  Artifact Dir: %s\n", *artifactDir)

	docs := generateCustomers(*rows, *seed)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *mongoURL != "" {
		if err := insert(ctx, *mongoURL, *database, *collection, docs); err != nil {
			log.Fatalf("Failed to insert into MongoDB: %v", err)
		}
		fmt.Printf("  Inserted into %s.%s\n", *database, *collection)
	}

	settings := cfg.Settings{ArtifactDir: *artifactDir}
	schema := cfg.DefaultSchema()
	artifact, err := ingest.New(memorySource{docs: docs}, ingest.Config{
		Collection:       *collection,
		FeatureStorePath: settings.FeatureStorePath(),
		TrainPath:        settings.IngestedTrainPath(),
		TestPath:         settings.IngestedTestPath(),
		TestSplitRatio:   0.25,
		Seed:             *seed,
		DropColumns:      schema.DropColumns,
	}, nil).Run(ctx)
	if err != nil {
		log.Fatalf("Failed to write sample data: %v", err)
	}

	fmt.Println("Sample data generated:")
	fmt.Printf("  Feature store: %s\n", artifact.FeatureStoreFilePath)
	fmt.Printf("  Train: %s\n", artifact.TrainFilePath)
	fmt.Printf("  Test: %s\n", artifact.TestFilePath)
	fmt.Println("Run: pipeline -stage transform,train")
}

// generateCustomers draws customers in the vehicle insurance schema. The
// response leans on damage history and prior insurance the way real data does.
func generateCustomers(n int, seed int64) []bson.M {
	rng := rand.New(rand.NewSource(seed))
	vehicleAges := []string{"< 1 Year", "1-2 Year", "> 2 Years"}

	docs := make([]bson.M, n)
	for i := 0; i < n; i++ {
		gender := "Male"
		if rng.Float64() < 0.46 {
			gender = "Female"
		}
		age := 20 + rng.Intn(65)
		insured := rng.Intn(2)
		damage := "No"
		if rng.Float64() < 0.5 {
			damage = "Yes"
		}
		vehicleAge := vehicleAges[rng.Intn(len(vehicleAges))]
		premium := math.Round(2630 + rng.ExpFloat64()*28000)

		score := -1.5
		if damage == "Yes" {
			score += 2
		}
		if insured == 1 {
			score -= 2.5
		}
		if age > 30 && age < 55 {
			score += 0.6
		}
		response := 0
		if rng.Float64() < 1/(1+math.Exp(-score)) {
			response = 1
		}

		docs[i] = bson.M{
			"id":                   i + 1,
			"Gender":               gender,
			"Age":                  age,
			"Driving_License":      boolToInt(rng.Float64() < 0.998),
			"Region_Code":          float64(rng.Intn(53)),
			"Previously_Insured":   insured,
			"Vehicle_Age":          vehicleAge,
			"Vehicle_Damage":       damage,
			"Annual_Premium":       premium,
			"Policy_Sales_Channel": float64(1 + rng.Intn(163)),
			"Vintage":              10 + rng.Intn(290),
			"Response":             response,
		}
	}
	return docs
}

func insert(ctx context.Context, url, database, collection string, docs []bson.M) error {
	manager, err := mongodb.NewManager(url, database)
	if err != nil {
		return err
	}
	defer manager.Close(context.Background())

	db, err := manager.Database(ctx)
	if err != nil {
		return err
	}
	batch := make([]interface{}, len(docs))
	for i, d := range docs {
		batch[i] = d
	}
	_, err = db.Collection(collection).InsertMany(ctx, batch)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
