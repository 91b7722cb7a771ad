package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "exports"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "replay.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := query(db, os.Stdout, q, *limit); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

func query(db *sql.DB, w io.Writer, q string, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	switch q {
	case "exports":
		return queryExports(db, w, limit)
	case "seeks":
		return querySeeks(db, w, limit)
	default:
		return fmt.Errorf("unknown query %q (want exports|seeks)", q)
	}
}

func queryExports(db *sql.DB, w io.Writer, limit int) error {
	rows, err := db.Query(`SELECT path,digest,loaded_at,bbox,span_start,span_end,layers,voxel_ops,chunks FROM exports ORDER BY loaded_at DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	enc := json.NewEncoder(w)
	for rows.Next() {
		var (
			r struct {
				Path      string          `json:"path"`
				Digest    string          `json:"digest"`
				LoadedAt  string          `json:"loaded_at"`
				BBox      json.RawMessage `json:"bbox"`
				SpanStart string          `json:"span_start"`
				SpanEnd   string          `json:"span_end"`
				Layers    json.RawMessage `json:"layers"`
				VoxelOps  int             `json:"voxel_ops"`
				Chunks    int             `json:"chunks"`
			}
			bbox, layers string
		)
		if err := rows.Scan(&r.Path, &r.Digest, &r.LoadedAt, &bbox, &r.SpanStart, &r.SpanEnd, &layers, &r.VoxelOps, &r.Chunks); err != nil {
			return err
		}
		r.BBox = json.RawMessage(bbox)
		r.Layers = json.RawMessage(layers)
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func querySeeks(db *sql.DB, w io.Writer, limit int) error {
	rows, err := db.Query(`SELECT seq,at,from_ts,to_ts,ops,chunks,duration_us FROM seeks ORDER BY at DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	enc := json.NewEncoder(w)
	for rows.Next() {
		var r struct {
			Seq        int64  `json:"seq"`
			At         string `json:"at"`
			From       string `json:"from"`
			To         string `json:"to"`
			Ops        int    `json:"ops"`
			Chunks     int    `json:"chunks"`
			DurationUS int64  `json:"duration_us"`
		}
		if err := rows.Scan(&r.Seq, &r.At, &r.From, &r.To, &r.Ops, &r.Chunks, &r.DurationUS); err != nil {
			return err
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return rows.Err()
}
