package log

import "path/filepath"

// SeekEntry is one journaled seek.
type SeekEntry struct {
	Seq        uint64 `json:"seq"`
	At         string `json:"at"`
	From       string `json:"from"`
	To         string `json:"to"`
	Ops        int    `json:"ops"`
	Chunks     int    `json:"chunks"`
	DurationUS int64  `json:"duration_us"`
}

// SeekLogger writes seek entries under <dataDir>/seeks.
type SeekLogger struct{ j *Journal }

func NewSeekLogger(dataDir string) *SeekLogger {
	return &SeekLogger{j: NewJournal(filepath.Join(dataDir, "seeks"), "seeks")}
}

func (l *SeekLogger) WriteSeek(e SeekEntry) error { return l.j.Write(e) }
func (l *SeekLogger) Close() error                { return l.j.Close() }
