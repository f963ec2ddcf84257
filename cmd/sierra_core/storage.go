package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RogersSierra/extension/internal/config"
	"github.com/RogersSierra/extension/internal/influx"
	"github.com/RogersSierra/extension/internal/storage"
	gormstorage "github.com/RogersSierra/extension/internal/storage/gorm"
	influxstorage "github.com/RogersSierra/extension/internal/storage/influx"
	"github.com/RogersSierra/extension/internal/storage/memory"
	pgstorage "github.com/RogersSierra/extension/internal/storage/postgres"
	sqlitestorage "github.com/RogersSierra/extension/internal/storage/sqlite"
	wsstorage "github.com/RogersSierra/extension/internal/storage/websocket"
)

// streamPath is appended to the journey server URL when no websocket URL is
// configured.
const streamPath = "/api/v1/stream"

func createStorageBackend(storageCfg config.StorageConfig, influxCfg config.InfluxConfig) (storage.Backend, error) {
	telemetryCfg := config.GetTelemetryConfig()
	writer := gormstorage.Config{
		FlushInterval: telemetryCfg.FlushInterval,
		QueueLimit:    telemetryCfg.QueueLimit,
	}

	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend initialized", "host", storageCfg.Postgres.Host)
		return pgstorage.New(storageCfg.Postgres, writer, ZLogger), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			OutputDir:    resolvePath(storageCfg.Memory.OutputDir),
		}, writer, ZLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized")
		return backend, nil

	case "influx":
		if influxManager == nil {
			return nil, errors.New("influx storage selected without an influx manager")
		}
		Logger.Info("Influx storage backend initialized", "url", influxCfg.URL(), "bucket", influxCfg.Bucket)
		return influxstorage.New(influxManager, influxCfg.Bucket, ZLogger), nil

	case "websocket":
		apiCfg := config.GetAPIConfig()
		wsURL := storageCfg.WebSocket.URL
		if wsURL == "" {
			wsURL = httpToWS(apiCfg.ServerURL) + streamPath
		}
		secret := storageCfg.WebSocket.Secret
		if secret == "" {
			secret = apiCfg.APIKey
		}
		Logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: secret,
		}, Logger), nil

	default:
		memCfg := storageCfg.Memory
		memCfg.OutputDir = resolvePath(memCfg.OutputDir)
		Logger.Info("Memory storage backend initialized", "outputDir", memCfg.OutputDir)
		return memory.New(memCfg), nil
	}
}

// newInfluxManager creates the manager shared by the influx storage backend
// and the monitor. Writes go to a gzip line-protocol file while the server is
// unreachable.
func newInfluxManager(influxCfg config.InfluxConfig, storageCfg config.StorageConfig) *influx.Manager {
	buckets := []string{influx.PerformanceBucket}
	if storageCfg.Type == "influx" {
		buckets = append(buckets, influxCfg.Bucket)
	}
	backup := filepath.Join(ModuleFolder, fmt.Sprintf("%s_influx_%s.lp.gz", ExtensionName, SessionStartTime.Format("20060102_150405")))
	return influx.NewManager(influx.Config{
		URL:        influxCfg.URL(),
		Token:      influxCfg.Token,
		Org:        influxCfg.Org,
		Buckets:    buckets,
		BackupPath: backup,
	}, ZLogger)
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
