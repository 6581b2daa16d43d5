// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/luxfi/qnet/codec"
	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/types"
)

// Snapshot policy (spec §4.3): a full snapshot every 12h, incremental every
// 1h, keeping the last 5 full snapshots.
const (
	FullSnapshotInterval        = 12 * time.Hour
	IncrementalSnapshotInterval = 1 * time.Hour
	MaxRetainedFullSnapshots    = 5
)

// snapshottedCFs are the column families recovery actually needs;
// CFSnapshots itself is excluded to avoid snapshots of snapshots.
var snapshottedCFs = []CF{CFBlocksMicro, CFBlocksMacro, CFTxs, CFAccounts, CFRegistry, CFReputation, CFPings, CFMeta}

// Manifest describes one snapshot: its content hash, entry count, and
// whether it was taken as a full or an incremental snapshot. Full is only a
// label: an incremental snapshot holds the same complete contents as a full
// one and is not layered on a prior full snapshot.
type Manifest struct {
	CreatedAt time.Time
	Full      bool
	Entries   int
	Hash      canon.Hash256
}

// entry is one (cf, key, value) triple captured by a snapshot.
type entry struct {
	cf    CF
	key   []byte
	value []byte
}

// Dump captures every key in snapshottedCFs as a sorted, gzip-compressed
// blob plus a Manifest whose Hash commits to the uncompressed canonical
// bytes (spec §4.3: "sorted list of (key, value) with a SHA3-256
// manifest; compressed"). full only sets Manifest.Full; it does not change
// what is captured.
func (s *Store) Dump(full bool) ([]byte, Manifest, error) {
	var entries []entry
	for _, cf := range snapshottedCFs {
		it := s.db.NewIteratorWithPrefix([]byte{byte(cf)})
		for it.Next() {
			key := make([]byte, len(it.Key())-1)
			copy(key, it.Key()[1:]) // strip the CF prefix byte
			value := make([]byte, len(it.Value()))
			copy(value, it.Value())
			entries = append(entries, entry{cf: cf, key: key, value: value})
		}
		err := it.Error()
		it.Release()
		if err != nil {
			return nil, Manifest{}, types.StorageError("storage.Dump", err)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].cf != entries[j].cf {
			return entries[i].cf < entries[j].cf
		}
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})

	raw := encodeEntries(entries)
	hash := canon.Sum256(raw)

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		return nil, Manifest{}, types.StorageError("storage.Dump", err)
	}
	if err := gw.Close(); err != nil {
		return nil, Manifest{}, types.StorageError("storage.Dump", err)
	}

	return buf.Bytes(), Manifest{Entries: len(entries), Full: full, Hash: hash}, nil
}

// Apply replays a snapshot blob into the store. It is idempotent (re-Apply
// of the same blob is a harmless overwrite of identical keys) and atomic
// (staged into a single Batch, spec §4.3: "snapshot_apply(bytes) -> result
// is idempotent and atomic").
func (s *Store) Apply(blob []byte, want Manifest) error {
	gr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return types.StorageError("storage.Apply", err)
	}
	raw, err := io.ReadAll(gr)
	if err != nil {
		return types.StorageError("storage.Apply", err)
	}

	if got := canon.Sum256(raw); got != want.Hash {
		return types.StorageError("storage.Apply", fmt.Errorf("manifest hash mismatch: got %x want %x", got, want.Hash))
	}

	entries, err := decodeEntries(raw)
	if err != nil {
		return types.StorageError("storage.Apply", err)
	}

	batch := s.NewBatch()
	for _, e := range entries {
		batch.Put(e.cf, e.key, e.value)
	}
	return batch.Write()
}

// PruneFullSnapshots keeps only the most recent MaxRetainedFullSnapshots
// manifests out of manifests (ordered oldest-first), returning the ones to
// delete.
func PruneFullSnapshots(manifests []Manifest) (keep, evict []Manifest) {
	full := make([]int, 0, len(manifests))
	for i, m := range manifests {
		if m.Full {
			full = append(full, i)
		}
	}
	if len(full) <= MaxRetainedFullSnapshots {
		return manifests, nil
	}
	evictIdx := make(map[int]bool)
	for _, i := range full[:len(full)-MaxRetainedFullSnapshots] {
		evictIdx[i] = true
	}
	for i, m := range manifests {
		if evictIdx[i] {
			evict = append(evict, m)
		} else {
			keep = append(keep, m)
		}
	}
	return keep, evict
}

func encodeEntries(entries []entry) []byte {
	p := codec.NewPacker(64 * len(entries))
	p.PackU32(uint32(len(entries)))
	for _, e := range entries {
		p.PackByte(byte(e.cf))
		p.PackBytes(e.key)
		p.PackBytes(e.value)
	}
	return p.Bytes
}

func decodeEntries(raw []byte) ([]entry, error) {
	u := codec.NewUnpacker(raw)
	n := u.UnpackU32()
	entries := make([]entry, n)
	for i := range entries {
		entries[i].cf = CF(u.UnpackByte())
		entries[i].key = u.UnpackBytes()
		entries[i].value = u.UnpackBytes()
	}
	if u.Err != nil {
		return nil, fmt.Errorf("storage: decode snapshot entries: %w", u.Err)
	}
	return entries, nil
}
