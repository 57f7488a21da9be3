package splice

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

const snapshotKeyPrefix = "snapshot:"

// ErrSnapshotMismatch indicates the file changed since it was patched, restoring would lose those edits.
var ErrSnapshotMismatch = errors.New("file differs from the patched version")

// Snapshot records the original content of a file before its first patch.
type Snapshot struct {
	Path string `msgpack:"p"`
	// Original is the zstd compressed pre-patch content.
	Original []byte      `msgpack:"o"`
	Before   Fingerprint `msgpack:"b"`
	// After is the fingerprint of the most recent patched content.
	After   Fingerprint `msgpack:"a"`
	Created time.Time   `msgpack:"t"`
}

// OriginalText decompresses the pre-patch content.
func (s *Snapshot) OriginalText() (string, error) {
	data, err := zstdDecompress(nil, s.Original)
	if err != nil {
		return "", fmt.Errorf("snapshot decompress failed %s: %w", s.Path, err)
	}
	return string(data), nil
}

// SnapshotStore keeps snapshots keyed by absolute file path.
type SnapshotStore struct {
	store Storage
}

// NewSnapshotStore wraps a Storage. The store is not closed by the SnapshotStore.
func NewSnapshotStore(store Storage) *SnapshotStore {
	return &SnapshotStore{store: store}
}

func snapshotKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return snapshotKeyPrefix + abs, nil
}

// Record saves original as the pre-patch content of path. If a snapshot already exists only its
// patched fingerprint is updated, so the earliest original is kept.
func (s *SnapshotStore) Record(path, original, patched string) error {
	snap, ok, err := s.Load(path)
	if err != nil {
		return err
	} else if !ok {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		snap = &Snapshot{
			Path:     abs,
			Original: zstdCompress(nil, []byte(original)),
			Before:   FingerprintOf(original),
			Created:  time.Now().UTC(),
		}
	}
	snap.After = FingerprintOf(patched)
	return s.save(snap)
}

func (s *SnapshotStore) save(snap *Snapshot) error {
	blob, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot encode failed %s: %w", snap.Path, err)
	}
	return s.store.SaveState(snapshotKeyPrefix+snap.Path, blob)
}

// Load returns the snapshot for path if one exists.
func (s *SnapshotStore) Load(path string) (*Snapshot, bool, error) {
	key, err := snapshotKey(path)
	if err != nil {
		return nil, false, err
	}
	blob, ok, err := s.store.LoadState(key)
	if err != nil || !ok {
		return nil, false, err
	}
	var snap Snapshot
	if err := msgpack.Unmarshal(blob, &snap); err != nil {
		return nil, false, fmt.Errorf("snapshot decode failed %s: %w", path, err)
	}
	return &snap, true, nil
}

// Paths returns the absolute paths of all snapshotted files, sorted.
func (s *SnapshotStore) Paths() ([]string, error) {
	keys, err := s.store.ListKeysPrefix(snapshotKeyPrefix)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(keys))
	for i, k := range keys {
		paths[i] = strings.TrimPrefix(k, snapshotKeyPrefix)
	}
	slices.Sort(paths)
	return paths, nil
}

// Restore writes the original content back to path and drops the snapshot. Unless force is set the
// current content must still match the last patched fingerprint.
func (s *SnapshotStore) Restore(path string, source SourceStore, force bool) error {
	snap, ok, err := s.Load(path)
	if err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("no snapshot recorded for %s", path)
	}

	if !force {
		current, err := source.Load(path)
		if err != nil {
			return err
		} else if fp := FingerprintOf(current); fp != snap.After {
			return fmt.Errorf("%w: %s (%s != %s)", ErrSnapshotMismatch, path, fp, snap.After)
		}
	}

	original, err := snap.OriginalText()
	if err != nil {
		return err
	} else if err := source.Store(path, original); err != nil {
		return err
	}
	return s.store.DeleteState(snapshotKeyPrefix + snap.Path)
}

func zstdCompress(dst, data []byte) []byte {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		panic(err) // only fails on invalid options
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, dst)
}

func zstdDecompress(dst, data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, dst)
}
