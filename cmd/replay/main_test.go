package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	persistlog "voxelreplay.ai/internal/persistence/log"
	"voxelreplay.ai/internal/sim/replaytest"
	"voxelreplay.ai/internal/sim/tuning"
)

func TestRunVerifiesSample(t *testing.T) {
	dir := t.TempDir()
	path := replaytest.WriteSample(t, dir, "sample.json.zst")

	var out bytes.Buffer
	if err := run(&out, path, tuning.Defaults(), 7, "2021-07-17T18:48:25", ""); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	s := out.String()
	if !strings.Contains(s, "forward: 8 ops in 7 seeks") || !strings.Contains(s, "backward: 8 ops") {
		t.Fatalf("unexpected output:\n%s", s)
	}
	if !strings.Contains(s, "at 2021-07-17T18:48:25Z: ops=3") || !strings.Contains(s, "replay ok:") {
		t.Fatalf("unexpected output:\n%s", s)
	}
}

func TestRunReplaysJournal(t *testing.T) {
	dir := t.TempDir()
	path := replaytest.WriteSample(t, dir, "sample.json")

	l := persistlog.NewSeekLogger(dir)
	entries := []persistlog.SeekEntry{
		{Seq: 1, From: "2021-07-17T18:48:00Z", To: "2021-07-17T18:48:12Z", Ops: 1, Chunks: 2},
		{Seq: 2, From: "2021-07-17T18:48:12Z", To: "2021-07-17T18:48:00Z", Ops: 1, Chunks: 2},
	}
	for _, e := range entries {
		e.At = time.Now().UTC().Format(time.RFC3339Nano)
		if err := l.WriteSeek(e); err != nil {
			t.Fatalf("WriteSeek: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var out bytes.Buffer
	if err := run(&out, path, tuning.Defaults(), 3, "", filepath.Join(dir, "seeks")); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "journal_seeks=2") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	badDir := t.TempDir()
	bad := persistlog.NewSeekLogger(badDir)
	_ = bad.WriteSeek(persistlog.SeekEntry{Seq: 1, From: "2021-07-17T18:48:00Z", To: "2021-07-17T18:49:00Z", Ops: 99})
	_ = bad.Close()
	if err := run(&bytes.Buffer{}, path, tuning.Defaults(), 3, "", filepath.Join(badDir, "seeks")); err == nil {
		t.Fatalf("expected journal mismatch")
	}
}
