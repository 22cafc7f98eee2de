package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/arscene/statesync/internal/config"
	"github.com/arscene/statesync/internal/database"
	"github.com/arscene/statesync/internal/geo"
	"github.com/arscene/statesync/internal/storage"
	"github.com/arscene/statesync/internal/storage/memory"
	sqlstorage "github.com/arscene/statesync/internal/storage/sql"
	wsstorage "github.com/arscene/statesync/internal/storage/websocket"
	"github.com/rs/zerolog"
)

// storageHandle bundles the active backend with the resources it owns.
type storageHandle struct {
	backend storage.Backend
	// sql is set when the backend is the GORM one; it also records frame stats.
	sql *sqlstorage.Backend
	db  *database.Manager
	log zerolog.Logger
}

func createStorageBackend(storageCfg config.StorageConfig, dbCfg config.DBConfig, geoRef *geo.Reference, startedAt time.Time, log zerolog.Logger) (*storageHandle, error) {
	h := &storageHandle{log: log}

	switch storageCfg.Type {
	case "sql":
		h.db = database.NewManager(dbCfg, log)
		if err := h.db.Connect(storageCfg.SQL.Driver); err != nil {
			return nil, fmt.Errorf("failed to connect storage database: %w", err)
		}
		dumpPath := storageCfg.SQL.DumpPath
		if dumpPath == "" && h.db.InMemory {
			dumpPath = filepath.Join(
				filepath.Dir(h.db.DumpPath),
				fmt.Sprintf("%s_%s.db", AppName, startedAt.Format("20060102_150405")),
			)
		}
		h.db.DumpPath = dumpPath
		h.sql = sqlstorage.New(sqlstorage.Dependencies{
			DB:     h.db.DB,
			Geo:    geoRef,
			Logger: log,
		}, sqlstorage.Config{
			BatchSize:     storageCfg.SQL.BatchSize,
			FlushInterval: storageCfg.SQL.FlushInterval,
			DumpInterval:  storageCfg.SQL.DumpInterval,
			DumpPath:      dumpPath,
		})
		h.backend = h.sql
		log.Info().Str("driver", storageCfg.SQL.Driver).Str("dumpPath", dumpPath).Msg("SQL storage backend initialized")

	case "websocket":
		wsURL := storageCfg.WebSocket.URL
		secret := storageCfg.WebSocket.Secret
		if wsURL == "" {
			apiCfg := config.GetAPIConfig()
			wsURL = httpToWS(apiCfg.ServerURL) + "/api"
			secret = apiCfg.APIKey
		}
		h.backend = wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: secret,
		}, log)
		log.Info().Str("url", wsURL).Msg("WebSocket storage backend initialized")

	case "memory", "":
		h.backend = memory.New(storageCfg.Memory)
		log.Info().Str("outputDir", storageCfg.Memory.OutputDir).Msg("Memory storage backend initialized")

	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageCfg.Type)
	}
	return h, nil
}

// Close closes the backend, writes the final in-memory dump and releases
// the database connection.
func (h *storageHandle) Close() error {
	err := h.backend.Close()
	if h.db == nil {
		return err
	}
	if h.db.InMemory && h.db.DumpPath != "" {
		if derr := h.db.DumpMemoryToDisk(); derr != nil {
			err = errors.Join(err, derr)
		} else {
			h.log.Info().Str("path", h.db.DumpPath).Msg("Database dumped to disk")
		}
	}
	return errors.Join(err, h.db.Close())
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
