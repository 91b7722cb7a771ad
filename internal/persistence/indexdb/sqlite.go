package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex is a queryable read model of loaded exports and the seeks
// served over them. Writes are queued and applied by one goroutine; the
// seek journal stays the source of truth when the queue overflows.
type SQLiteIndex struct {
	db *sql.DB

	ch         chan req
	flushEvery time.Duration
	wg         sync.WaitGroup
	once       sync.Once

	closed atomic.Bool

	dropExport atomic.Uint64
	dropSeek   atomic.Uint64
}

type reqKind int

const (
	reqExport reqKind = iota + 1
	reqSeek
)

type req struct {
	kind reqKind

	export ExportRow
	seek   SeekRow
}

// ExportRow summarizes one loaded export.
type ExportRow struct {
	Path     string
	Digest   string
	LoadedAt time.Time
	BBox     [3][2]int
	Span     [2]string
	Layers   []string
	VoxelOps int
	Chunks   int
}

// SeekRow is one served seek.
type SeekRow struct {
	Seq      uint64
	At       time.Time
	From     string
	To       string
	Ops      int
	Chunks   int
	Duration time.Duration
}

type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	DropExportTotal uint64
	DropSeekTotal   uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536, time.Second)
}

func openSQLite(path string, queue int, flushEvery time.Duration) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queue), flushEvery: flushEvery}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS exports (
			path TEXT NOT NULL,
			digest TEXT NOT NULL,
			loaded_at TEXT NOT NULL,
			bbox TEXT NOT NULL,
			span_start TEXT NOT NULL,
			span_end TEXT NOT NULL,
			layers TEXT NOT NULL,
			voxel_ops INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			PRIMARY KEY (path, digest)
		);`,
		`CREATE TABLE IF NOT EXISTS seeks (
			seq INTEGER NOT NULL,
			at TEXT NOT NULL,
			from_ts TEXT NOT NULL,
			to_ts TEXT NOT NULL,
			ops INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			duration_us INTEGER NOT NULL,
			PRIMARY KEY (at, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_seeks_to_ts ON seeks(to_ts);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) RecordExport(r ExportRow) {
	if s == nil || s.closed.Load() {
		return
	}
	if r.LoadedAt.IsZero() {
		r.LoadedAt = time.Now()
	}
	select {
	case s.ch <- req{kind: reqExport, export: r}:
	default:
		s.dropExport.Add(1)
	}
}

func (s *SQLiteIndex) RecordSeek(r SeekRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSeek, seek: r}:
	default:
		s.dropSeek.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropExportTotal: s.dropExport.Load(),
		DropSeekTotal:   s.dropSeek.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertExport, _ := s.db.Prepare(`INSERT OR REPLACE INTO exports(path,digest,loaded_at,bbox,span_start,span_end,layers,voxel_ops,chunks) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSeek, _ := s.db.Prepare(`INSERT OR REPLACE INTO seeks(seq,at,from_ts,to_ts,ops,chunks,duration_us) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertExport != nil {
			_ = insertExport.Close()
		}
		if insertSeek != nil {
			_ = insertSeek.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = s.flushEvery
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	handle := func(r req) {
		begin()
		if tx == nil {
			return
		}
		switch r.kind {
		case reqExport:
			e := r.export
			bbox, _ := json.Marshal(e.BBox)
			layers, _ := json.Marshal(e.Layers)
			if insertExport == nil {
				return
			}
			if _, err := tx.Stmt(insertExport).Exec(
				e.Path,
				e.Digest,
				e.LoadedAt.UTC().Format(time.RFC3339Nano),
				string(bbox),
				e.Span[0], e.Span[1],
				string(layers),
				e.VoxelOps,
				e.Chunks,
			); err != nil {
				rollback()
				return
			}
			opCount++
			// exports commit immediately
			commit()
			return

		case reqSeek:
			sk := r.seek
			if insertSeek == nil {
				return
			}
			if _, err := tx.Stmt(insertSeek).Exec(
				int64(sk.Seq),
				sk.At.UTC().Format(time.RFC3339Nano),
				sk.From,
				sk.To,
				sk.Ops,
				sk.Chunks,
				sk.Duration.Microseconds(),
			); err != nil {
				rollback()
				return
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	// an idle writer still commits pending seeks within commitMaxWait
	flush := time.NewTicker(commitMaxWait)
	defer flush.Stop()
	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			handle(r)
		case <-flush.C:
			commit()
		}
	}
}
