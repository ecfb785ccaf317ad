// Package cache persists compiled scripts so a script only pays the
// parse cost when its source changes. Entries are gob-encoded,
// gzip-compressed and keyed by a hash of the source text and the
// compiler version; stale entries age out by LRU eviction.
package cache

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/convolang/convo/parser"
)

const maxBytes = 256 * 1024 * 1024 // 256 MB

func init() {
	// Instruction payloads travel through the gob stream as interface
	// values and must be registered up front.
	gob.Register(parser.VariableDecl{})
	gob.Register(parser.ReconveyArgs{})
	gob.Register(parser.FuncCall{})
}

// Dir returns the base directory for compiled scripts.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "convo", "compiled"), nil
}

// Key returns the cache key for a script source. The compiler version
// is folded in so a parser change invalidates everything it compiled.
func Key(source string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(parser.Version))
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// Lookup loads the cached script for key, touching the entry so
// eviction treats it as recently used. ok is false on any miss or
// decode failure; a bad entry is removed rather than returned.
func Lookup(key string) (*parser.Script, bool) {
	dir, err := Dir()
	if err != nil {
		return nil, false
	}
	path := filepath.Join(dir, key+".gob.gz")
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		os.Remove(path)
		return nil, false
	}
	defer gr.Close()

	var script parser.Script
	if err := gob.NewDecoder(gr).Decode(&script); err != nil {
		os.Remove(path)
		return nil, false
	}
	now := time.Now()
	os.Chtimes(path, now, now)
	return &script, true
}

// Store writes a compiled script under key and evicts old entries when
// the cache grows past its cap. Failures are quiet; the cache is an
// optimization, never a requirement.
func Store(key string, script *parser.Script) {
	dir, err := Dir()
	if err != nil {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	path := filepath.Join(dir, key+".gob.gz")
	tmp, err := os.CreateTemp(dir, key+".tmp-*")
	if err != nil {
		return
	}
	gw := gzip.NewWriter(tmp)
	encErr := gob.NewEncoder(gw).Encode(script)
	if err := gw.Close(); encErr == nil {
		encErr = err
	}
	if err := tmp.Close(); encErr == nil {
		encErr = err
	}
	if encErr != nil {
		os.Remove(tmp.Name())
		return
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return
	}
	evict(dir)
}

// WriteFile gob-encodes a compiled script to an explicit path, the
// format behind .cvc files produced by the compile command.
func WriteFile(path string, script *parser.Script) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(f)
	encErr := gob.NewEncoder(gw).Encode(script)
	if err := gw.Close(); encErr == nil {
		encErr = err
	}
	if err := f.Close(); encErr == nil {
		encErr = err
	}
	if encErr != nil {
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, encErr)
	}
	return nil
}

// ReadFile loads a compiled script written by WriteFile.
func ReadFile(path string) (*parser.Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer gr.Close()
	var script parser.Script
	if err := gob.NewDecoder(gr).Decode(&script); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &script, nil
}

// evict removes least-recently-used entries until the cache fits the
// size cap again.
func evict(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	type item struct {
		path    string
		size    int64
		modTime time.Time
	}
	var items []item
	var total int64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || entry.IsDir() {
			continue
		}
		items = append(items, item{
			path:    filepath.Join(dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	if total <= maxBytes {
		return
	}
	sort.Slice(items, func(i, j int) bool { return items[i].modTime.Before(items[j].modTime) })
	for _, it := range items {
		if total <= maxBytes {
			break
		}
		if os.Remove(it.path) == nil {
			total -= it.size
		}
	}
}
