//go:build integration
// +build integration

package integration_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/airhist/internal/acquire"
	"github.com/tejusbharadwaj/airhist/internal/config"
	"github.com/tejusbharadwaj/airhist/internal/database"
	"github.com/tejusbharadwaj/airhist/internal/fields"
	"github.com/tejusbharadwaj/airhist/internal/models"
)

// Helper function to get environment variables with defaults
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func connString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnvOrDefault("DB_HOST", "db"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_USER", "airhist"),
		getEnvOrDefault("DB_PASSWORD", "airhist"),
		getEnvOrDefault("DB_NAME", "airhist"),
	)
}

// setupTestDB creates the schema and clears data from earlier runs.
func setupTestDB(t *testing.T) {
	connStr := connString()

	store, err := database.Open(context.Background(), "postgres", connStr)
	require.NoError(t, err)
	store.Close()

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("TRUNCATE TABLE sensor_rows, sensor_batches, sensor_attrs")
	require.NoError(t, err)
}

// setupMockAPIServer serves hourly readings with random values for every
// requested segment.
func setupMockAPIServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/sensors/"), "/")
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			http.NotFound(w, r)
			return
		}

		if len(parts) == 1 {
			json.NewEncoder(w).Encode(map[string]any{"sensor": map[string]any{
				"id": id, "latitude": 44.05, "longitude": -123.09,
				"location_type": "outside", "name": fmt.Sprintf("station %d", id), "model": "PA-II",
			}})
			return
		}

		q := r.URL.Query()
		start, _ := time.Parse(time.RFC3339, q.Get("start"))
		end, _ := time.Parse(time.RFC3339, q.Get("end"))

		var data [][]any
		for ts := start; ts.Before(end); ts = ts.Add(time.Hour) {
			data = append(data, []any{ts.Unix(), rand.Float64() * 50, rand.Float64() * 30})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"fields": []string{"created_at", "PM2.5 (CF=1) ug/m3", "Temperature_F"},
			"data":   data,
		})
	}))
}

func TestAcquirePostgresE2E(t *testing.T) {
	setupTestDB(t)

	mockAPI := setupMockAPIServer(t)
	defer mockAPI.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg := config.Default()
	cfg.Acquisition.SensorIDs = []int{101, 102, 103, 104}
	cfg.Acquisition.Workers = 3
	cfg.Acquisition.SegmentDays = 3
	cfg.Acquisition.StartDate = "2023-03-01"
	cfg.Acquisition.StopDate = "2023-03-08"
	cfg.API.URL = mockAPI.URL
	cfg.API.RateLimit = 500
	cfg.Store.Driver = "postgres"
	cfg.Store.Path = connString()

	fieldSet, err := fields.PurpleAir.Select(fields.PM2_5, fields.Temperature)
	require.NoError(t, err)

	ctx := context.Background()
	err = acquire.Acquire(ctx, cfg, fieldSet,
		acquire.WithLogger(logger),
		acquire.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	store, err := database.Open(ctx, "postgres", connString())
	require.NoError(t, err)
	defer store.Close()

	groups, err := store.Groups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 4)

	for _, id := range cfg.Acquisition.SensorIDs {
		rec, err := store.ReadSensor(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("station %d", id), rec.Name)

		// three segments: 03-05..03-08, 03-02..03-05, 03-01..03-02
		primary := rec.Table(models.ChannelA, models.Primary)
		assert.Equal(t, 7*24, primary.Len())
		_, ok := primary.Column("Temperature_F")
		assert.True(t, ok)

		batches, err := store.BatchCount(ctx, models.TableKey(id, models.ChannelB, models.Primary))
		require.NoError(t, err)
		assert.Equal(t, 3, batches)
	}
}
