package main

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"voxelreplay.ai/internal/persistence/indexdb"
	persistlog "voxelreplay.ai/internal/persistence/log"
)

func TestQueryIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordExport(indexdb.ExportRow{Path: "a.json", Digest: "d", Layers: []string{"terrain"}, VoxelOps: 3})
	at := time.Date(2021, 7, 17, 19, 0, 0, 0, time.UTC)
	idx.RecordSeek(indexdb.SeekRow{Seq: 1, At: at, From: "x", To: "y", Ops: 2})
	idx.RecordSeek(indexdb.SeekRow{Seq: 2, At: at, From: "y", To: "x", Ops: 2})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var out bytes.Buffer
	if err := query(db, &out, "exports", 0); err != nil {
		t.Fatalf("exports: %v", err)
	}
	if !strings.Contains(out.String(), `"layers":["terrain"]`) || !strings.Contains(out.String(), `"voxel_ops":3`) {
		t.Fatalf("exports output: %s", out.String())
	}

	out.Reset()
	if err := query(db, &out, "seeks", 1); err != nil {
		t.Fatalf("seeks: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out.String()), "\n"); len(lines) != 1 || !strings.Contains(lines[0], `"seq":2`) {
		t.Fatalf("seeks output: %s", out.String())
	}

	if err := query(db, &out, "ticks", 1); err == nil {
		t.Fatalf("expected unknown query error")
	}
}

func TestPrintJournal(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewSeekLogger(dir)
	for i := 1; i <= 3; i++ {
		if err := l.WriteSeek(persistlog.SeekEntry{Seq: uint64(i)}); err != nil {
			t.Fatalf("WriteSeek: %v", err)
		}
	}
	_ = l.Close()

	var out bytes.Buffer
	if err := printJournal(&out, filepath.Join(dir, "seeks"), 2); err != nil {
		t.Fatalf("printJournal: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], `{"seq":2`) {
		t.Fatalf("journal output: %s", out.String())
	}
}
