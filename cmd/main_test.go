package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/airhist/internal/config"
	"github.com/tejusbharadwaj/airhist/internal/database"
	"github.com/tejusbharadwaj/airhist/internal/models"
)

func TestInspectNeedsOnlyStoreConfig(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "air.db")

	ctx := context.Background()
	store, err := database.Open(ctx, "sqlite", storePath)
	require.NoError(t, err)
	tbl := models.Table{
		Time:    []time.Time{time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		Columns: []models.Column{{Name: "pm", Values: []float64{3}}},
	}
	require.NoError(t, store.AppendTable(ctx, models.TableKey(7, models.ChannelA, models.Primary), tbl))
	require.NoError(t, store.SetAttribute(ctx, models.GroupKey(7), database.AttrName, "porch"))
	require.NoError(t, store.Close())

	// no api, acquisition or date settings
	configFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("store:\n  path: "+storePath+"\n"), 0644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"inspect", "--config", configFile})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "sensor_7")
	assert.Contains(t, out.String(), "porch")
	assert.Contains(t, out.String(), "channelA/primary")
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LoggingConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	_, err = newLogger(config.LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
	_, err = newLogger(config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func TestServeMetricsShutsDownCleanly(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "airhist_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	logger, hook := test.NewNullLogger()
	addr := freeAddr(t)
	stop := serveMetrics(addr, reg, logger)

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, body, "airhist_test_total 1")

	stop()
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, e.Level, e.Message)
		assert.NotEqual(t, logrus.ErrorLevel, e.Level, e.Message)
	}
	_, err := http.Get("http://" + addr + "/metrics")
	assert.Error(t, err)
}
