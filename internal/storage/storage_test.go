package storage_test

import (
	"github.com/arscene/statesync/internal/storage"
	"github.com/arscene/statesync/internal/storage/memory"
	sqlstorage "github.com/arscene/statesync/internal/storage/sql"
	"github.com/arscene/statesync/internal/storage/websocket"
)

var (
	_ storage.Backend    = (*memory.Backend)(nil)
	_ storage.Uploadable = (*memory.Backend)(nil)
	_ storage.Backend    = (*sqlstorage.Backend)(nil)
	_ storage.Backend    = (*websocket.Backend)(nil)
)
