package main

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	persistlog "voxelreplay.ai/internal/persistence/log"
	"voxelreplay.ai/internal/sim/replaytest"
)

func TestRuntimeServesAndRecords(t *testing.T) {
	t.Setenv("VR_INDEX_BACKEND", "sqlite")
	dir := t.TempDir()
	path := replaytest.WriteSample(t, dir, "sample.json.zst")
	logger := log.New(io.Discard, "", 0)

	rt, err := newRuntime(serverConfig{ExportPath: path, DataDir: dir}, logger)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	ts := httptest.NewServer(rt.routes(logger))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var health map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["ok"] != true || health["cursor"] != "2021-07-17T18:48:00Z" {
		t.Fatalf("health=%v", health)
	}

	rt.sim.Seek(rt.sim.Span().End)

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `voxelreplay_seeks_total{direction="forward"} 1`) {
		t.Fatalf("metrics missing forward seek:\n%s", body)
	}
	rt.Close()

	files, err := persistlog.Files(filepath.Join(dir, "seeks"), "seeks")
	if err != nil || len(files) != 1 {
		t.Fatalf("journal files=%v err=%v", files, err)
	}
	entries, err := persistlog.ReadLines[persistlog.SeekEntry](files[0])
	if err != nil || len(entries) != 1 || entries[0].Ops != 8 {
		t.Fatalf("journal=%+v err=%v", entries, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "index", "replay.sqlite"))
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var exports, seeks, voxelOps int
	if err := db.QueryRow(`SELECT COUNT(*), MAX(voxel_ops) FROM exports`).Scan(&exports, &voxelOps); err != nil {
		t.Fatalf("exports: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM seeks`).Scan(&seeks); err != nil {
		t.Fatalf("seeks: %v", err)
	}
	if exports != 1 || voxelOps != 5 || seeks != 1 {
		t.Fatalf("exports=%d voxel_ops=%d seeks=%d", exports, voxelOps, seeks)
	}
}

func TestRunReturnsListenErrorAfterCleanup(t *testing.T) {
	t.Setenv("VR_INDEX_BACKEND", "sqlite")
	dir := t.TempDir()
	path := replaytest.WriteSample(t, dir, "sample.json")

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	err = run(serverConfig{ExportPath: path, DataDir: dir}, busy.Addr().String(), log.New(io.Discard, "", 0))
	if err == nil || !strings.Contains(err.Error(), "ListenAndServe") {
		t.Fatalf("expected listen error, got %v", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "index", "replay.sqlite"))
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var exports int
	if err := db.QueryRow(`SELECT COUNT(*) FROM exports`).Scan(&exports); err != nil || exports != 1 {
		t.Fatalf("exports=%d err=%v", exports, err)
	}
}

func TestOpenRuntimeIndexBackends(t *testing.T) {
	t.Setenv("VR_INDEX_BACKEND", "none")
	if idx, err := openRuntimeIndex(t.TempDir(), false, nil); err != nil || idx != nil {
		t.Fatalf("none: idx=%v err=%v", idx, err)
	}
	t.Setenv("VR_INDEX_BACKEND", "d1")
	if _, err := openRuntimeIndex(t.TempDir(), false, nil); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
	if idx, err := openRuntimeIndex(t.TempDir(), true, nil); err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}
}
