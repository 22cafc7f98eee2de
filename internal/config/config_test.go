package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"worldCenterMode": "user",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "user", viper.GetString("worldCenterMode"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, "auto", viper.GetString("worldCenterMode"))
	assert.Equal(t, 33*time.Millisecond, GetDuration("frameInterval"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "statesync", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "127.0.0.1:8090", viper.GetString("status.address"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)
	viper.Set("testDur", "2s")

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
	assert.Equal(t, 2*time.Second, GetDuration("testDur"))
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./recordings", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, "sqlite", cfg.SQL.Driver)
	assert.Equal(t, 500, cfg.SQL.BatchSize)
	assert.Equal(t, time.Second, cfg.SQL.FlushInterval)
	assert.Equal(t, 3*time.Minute, cfg.SQL.DumpInterval)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sql",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sql": { "driver": "postgres", "dumpInterval": "10m" },
			"websocket": { "url": "ws://viewer:8080/ingest" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sql", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, "postgres", sc.SQL.Driver)
	assert.Equal(t, 10*time.Minute, sc.SQL.DumpInterval)
	assert.Equal(t, "ws://viewer:8080/ingest", sc.WebSocket.URL)
}

func TestGetOTelConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": { "enabled": true, "serviceName": "bench", "exportInterval": "5s", "logEndpoint": "collector:4318" }
	}`)))

	oc := GetOTelConfig()
	assert.True(t, oc.Enabled)
	assert.Equal(t, "bench", oc.ServiceName)
	assert.Equal(t, 5*time.Second, oc.ExportInterval)
	assert.False(t, oc.Stdout)
	assert.False(t, oc.LogFile)
	assert.Equal(t, "collector:4318", oc.LogEndpoint)
}

func TestGetGeoAndS3Config(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"geo": { "enabled": true, "lon": 13.4, "lat": 52.5 },
		"s3": { "enabled": true, "bucket": "frames", "endpoint": "http://minio:9000" }
	}`)))

	g := GetGeoConfig()
	assert.True(t, g.Enabled)
	assert.InDelta(t, 13.4, g.Lon, 1e-9)
	assert.InDelta(t, 52.5, g.Lat, 1e-9)

	s := GetS3Config()
	assert.True(t, s.Enabled)
	assert.Equal(t, "frames", s.Bucket)
	assert.Equal(t, "us-east-1", s.Region)
	assert.Equal(t, "http://minio:9000", s.Endpoint)
	assert.Equal(t, "sessions/", s.Prefix)
}
