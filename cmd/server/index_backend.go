package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"voxelreplay.ai/internal/persistence/indexdb"
)

type runtimeIndex interface {
	RecordExport(r indexdb.ExportRow)
	RecordSeek(r indexdb.SeekRow)
	Stats() indexdb.Stats
	Close() error
}

func openRuntimeIndex(dataDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VR_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "replay.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.Printf("index: sqlite %s", dbPath)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported VR_INDEX_BACKEND: %s", backend)
	}
}
