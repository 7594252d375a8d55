package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"insurance-pipeline/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager("", "Proj1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConfig)
	assert.ErrorIs(t, err, errMissingURI)

	_, err = NewManager("mongodb://localhost:27017", "")
	assert.ErrorIs(t, err, apperr.ErrConfig)

	m, err := NewManager("mongodb://localhost:27017", "Proj1")
	require.NoError(t, err)
	assert.Nil(t, m.client)
}

func TestCloseWithoutConnection(t *testing.T) {
	m, err := NewManager("mongodb://localhost:27017", "Proj1")
	require.NoError(t, err)
	assert.NoError(t, m.Close(context.Background()))
}

func TestDatabaseInvalidURI(t *testing.T) {
	m, err := NewManager("not-a-mongo-uri", "Proj1")
	require.NoError(t, err)

	_, err = m.Database(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrDataLoad)
	assert.Nil(t, m.client)
}

// TestDocumentsIntegration needs a reachable server in MONGODB_TEST_URL.
func TestDocumentsIntegration(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URL")
	if uri == "" {
		t.Skip("MONGODB_TEST_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	m, err := NewManager(uri, "pipeline_test")
	require.NoError(t, err)
	defer m.Close(ctx)

	db, err := m.Database(ctx)
	require.NoError(t, err)
	coll := db.Collection("documents_test")
	defer coll.Drop(ctx)

	_, err = coll.InsertMany(ctx, []interface{}{
		bson.M{"Age": 30, "Gender": "Male"},
		bson.M{"Age": 41, "Gender": "Female"},
	})
	require.NoError(t, err)

	docs, err := m.Documents(ctx, "documents_test")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	// second call reuses the client
	again, err := m.Database(ctx)
	require.NoError(t, err)
	assert.Equal(t, db.Name(), again.Name())
}
