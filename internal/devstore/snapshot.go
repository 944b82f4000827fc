package devstore

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/yndnr/meshbus-go/pkg/cmap"
)

// Magic bytes identify snapshot files.
var magicBytes = []byte("MBUSSNAP")

const (
	checksumSize  = 32
	headerVersion = 1
)

var (
	ErrInvalidMagic     = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
)

type snapshotHeader struct {
	Version   int   `json:"version"`
	CreatedAt int64 `json:"created_at"`
	KeyCount  int   `json:"key_count"`
}

type snapshotRecord struct {
	DB        int               `json:"db"`
	Key       string            `json:"key"`
	Str       string            `json:"str,omitempty"`
	Hash      map[string]string `json:"hash,omitempty"`
	ExpiresAt int64             `json:"expires_at,omitempty"`
}

// SnapshotInfo describes a written or loaded snapshot.
type SnapshotInfo struct {
	Path      string `json:"path"`
	KeyCount  int    `json:"key_count"`
	CreatedAt int64  `json:"created_at"`
	Size      int64  `json:"size"`
}

// export collects the live keys of every database ordered by db and key.
func (k *Keyspace) export() []snapshotRecord {
	now := k.nowMs()
	k.mu.RLock()
	dbs := make(map[int]*cmap.Map[string, *entry], len(k.dbs))
	for n, m := range k.dbs {
		dbs[n] = m
	}
	k.mu.RUnlock()

	var records []snapshotRecord
	for n, m := range dbs {
		m.Range(func(key string, e *entry) bool {
			if e.expired(now) {
				return true
			}
			rec := snapshotRecord{DB: n, Key: key, ExpiresAt: e.expiresAt}
			if e.kind == kindHash {
				rec.Hash = e.hash
			} else {
				rec.Str = e.str
			}
			records = append(records, rec)
			return true
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].DB != records[j].DB {
			return records[i].DB < records[j].DB
		}
		return records[i].Key < records[j].Key
	})
	return records
}

// restore replaces the contents with records, skipping expired ones.
func (k *Keyspace) restore(records []snapshotRecord) int {
	now := k.nowMs()
	k.mu.Lock()
	k.dbs = make(map[int]*cmap.Map[string, *entry])
	k.mu.Unlock()

	n := 0
	for _, rec := range records {
		e := &entry{kind: kindString, str: rec.Str, expiresAt: rec.ExpiresAt}
		if rec.Hash != nil {
			e = &entry{kind: kindHash, hash: rec.Hash, expiresAt: rec.ExpiresAt}
		}
		if e.expired(now) {
			continue
		}
		k.db(rec.DB).Set(rec.Key, e)
		n++
	}
	return n
}

// SaveSnapshot writes the keyspace to path atomically. The file holds the
// magic bytes, a length-prefixed JSON header, the length-prefixed JSON
// records and a SHA-256 trailer over everything before it.
func (k *Keyspace) SaveSnapshot(path string) (*SnapshotInfo, error) {
	records := k.export()
	now := time.Now()

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer os.Remove(tempPath)

	hash := sha256.New()
	w := io.MultiWriter(file, hash)

	hdr, err := json.Marshal(snapshotHeader{Version: headerVersion, CreatedAt: now.UnixMilli(), KeyCount: len(records)})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: marshal header: %w", err)
	}
	data, err := json.Marshal(records)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: marshal records: %w", err)
	}

	if _, err := w.Write(magicBytes); err != nil {
		file.Close()
		return nil, err
	}
	if err := writeBlock(w, hdr); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write header: %w", err)
	}
	if err := writeBlock(w, data); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write data: %w", err)
	}

	// Checksum trailer is not part of the hash.
	if _, err := file.Write(hash.Sum(nil)); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write checksum: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: close: %w", err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tempPath, path); err != nil {
		return nil, fmt.Errorf("snapshot: rename: %w", err)
	}

	return &SnapshotInfo{Path: path, KeyCount: len(records), CreatedAt: now.UnixMilli(), Size: stat.Size()}, nil
}

// LoadSnapshot verifies the snapshot at path and replaces the keyspace with
// its contents. Keys that expired since the snapshot was taken are dropped.
func (k *Keyspace) LoadSnapshot(path string) (*SnapshotInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() < int64(len(magicBytes))+checksumSize {
		return nil, ErrChecksumMismatch
	}

	bodyLen := stat.Size() - checksumSize
	expected := make([]byte, checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, bodyLen, checksumSize), expected); err != nil {
		return nil, err
	}
	h := sha256.New()
	if _, err := io.CopyN(h, io.NewSectionReader(f, 0, bodyLen), bodyLen); err != nil {
		return nil, err
	}
	if !bytes.Equal(h.Sum(nil), expected) {
		return nil, ErrChecksumMismatch
	}

	br := bufio.NewReader(io.NewSectionReader(f, 0, bodyLen))
	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, ErrInvalidMagic
	}

	hdrJSON, err := readBlock(br)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read header: %w", err)
	}
	var hdr snapshotHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal header: %w", err)
	}
	if hdr.Version != headerVersion {
		return nil, fmt.Errorf("snapshot: unsupported version %d", hdr.Version)
	}

	data, err := readBlock(br)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read data: %w", err)
	}
	var records []snapshotRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal records: %w", err)
	}

	n := k.restore(records)
	return &SnapshotInfo{Path: path, KeyCount: n, CreatedAt: hdr.CreatedAt, Size: stat.Size()}, nil
}

func writeBlock(w io.Writer, b []byte) error {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	if _, err := w.Write(n[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBlock(r io.Reader) ([]byte, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	b := make([]byte, binary.BigEndian.Uint32(n[:]))
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
