package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	persistlog "voxelreplay.ai/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "journal":
			journalCmd(os.Args[2:])
			return
		case "state":
			getCmd("state", "/healthz", os.Args[2:])
			return
		case "bootstrap":
			getCmd("bootstrap", "/v1/bootstrap", os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin db|journal|state|bootstrap [flags]")
	os.Exit(2)
}

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	limit := fs.Int("limit", 0, "print only the last N entries (0 = all)")
	_ = fs.Parse(args)

	if err := printJournal(os.Stdout, filepath.Join(*dataDir, "seeks"), *limit); err != nil {
		fmt.Fprintln(os.Stderr, "journal:", err)
		os.Exit(1)
	}
}

func printJournal(w io.Writer, dir string, limit int) error {
	files, err := persistlog.Files(dir, "seeks")
	if err != nil {
		return err
	}
	var all []persistlog.SeekEntry
	for _, path := range files {
		entries, err := persistlog.ReadLines[persistlog.SeekEntry](path)
		if err != nil {
			return err
		}
		all = append(all, entries...)
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	enc := json.NewEncoder(w)
	for _, e := range all {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
