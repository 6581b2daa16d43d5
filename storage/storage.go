// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage implements QNet's persistence layer (spec §4.3): an
// ordered key-value store partitioned into column families, with atomic
// multi-CF writes, sliding-window pruning, and periodic snapshots. The
// column-family-over-a-flat-KV approach — byte-prefixing each logical table
// into one underlying database.Database — follows the same shape as the
// teacher's shared-memory store (chains/atomic/memory.go), generalized from
// a single chainID-keyed map to the fixed set of CFs spec §4.3 requires.
// The underlying store is github.com/luxfi/database's Database interface,
// the same one threaded through the teacher's VM/engine boundary
// (engine/chain/block/vm.go, core/vm.go use github.com/luxfi/database/manager;
// engine/bft/util_test.go constructs one directly via
// github.com/luxfi/database/memdb.New()).
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/database"

	"github.com/luxfi/qnet/codec"
	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/internal/errutil"
	"github.com/luxfi/qnet/types"
)

// CF identifies one of the fixed column families spec §4.3 requires.
type CF byte

const (
	CFBlocksMicro CF = iota
	CFBlocksMacro
	CFTxs
	CFAccounts
	CFRegistry
	CFReputation
	CFPings
	CFSnapshots
	CFMeta
)

// metaKeyHead and metaKeySchema live in CFMeta.
var (
	metaKeyHead        = []byte("head")
	metaKeySchema      = []byte("schema_version")
	metaKeyGenesisHash = []byte("genesis_hash")
)

// SchemaVersion is bumped whenever the on-disk encoding changes
// incompatibly; ErrSchemaMismatch on startup if the persisted value differs
// (spec §6: "startup fails with SchemaMismatch if incompatible").
const SchemaVersion = 1

// Store is the node's single persistence handle. It owns the underlying
// database.Database exclusively: per spec §3 ("storage exclusively owns all
// persisted state"), no other component should open the same backing store.
type Store struct {
	db database.Database
}

// Open wraps db as a Store, checking (and on first run, writing) the schema
// version marker.
func Open(db database.Database) (*Store, error) {
	s := &Store{db: db}
	raw, err := s.db.Get(cfKey(CFMeta, metaKeySchema))
	if err == database.ErrNotFound {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], SchemaVersion)
		if err := s.db.Put(cfKey(CFMeta, metaKeySchema), buf[:]); err != nil {
			return nil, types.StorageError("storage.Open", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, types.StorageError("storage.Open", err)
	}
	if binary.LittleEndian.Uint32(raw) != SchemaVersion {
		return nil, types.SchemaMismatchError("storage.Open",
			fmt.Errorf("on-disk schema version %d, binary expects %d", binary.LittleEndian.Uint32(raw), SchemaVersion))
	}
	return s, nil
}

// cfKey namespaces key under cf by prefixing a single tag byte. A flat KV
// with a one-byte CF prefix avoids needing a separate sub-database per CF
// (github.com/luxfi/database has no exported prefixdb in the retrieval
// pack), while still giving each CF its own ordered key range for
// prefix-scans and pruning walks.
func cfKey(cf CF, key []byte) []byte {
	out := make([]byte, 0, 1+len(key))
	out = append(out, byte(cf))
	return append(out, key...)
}

func heightKey(height uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height) // big-endian so key order == height order
	return buf[:]
}

// Batch accumulates writes across multiple column families for atomic
// application (spec §4.3: "Atomic multi-CF writes"). Writes are buffered in
// the underlying database.Batch and committed together by Write.
type Batch struct {
	b    database.Batch
	errs errutil.Errs
}

// NewBatch starts a new cross-CF write batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{b: s.db.NewBatch()}
}

func (b *Batch) Put(cf CF, key, value []byte) {
	b.errs.Add(b.b.Put(cfKey(cf, key), value))
}

func (b *Batch) Delete(cf CF, key []byte) {
	b.errs.Add(b.b.Delete(cfKey(cf, key)))
}

// Write commits the batch atomically. If any individual Put/Delete failed
// to stage, the batch is not written at all: a partially staged batch must
// never reach disk (spec §4.3: "any partially applied batch must be rolled
// back").
func (b *Batch) Write() error {
	if b.errs.Errored() {
		return types.StorageError("storage.Batch.Write", b.errs.Err())
	}
	if err := b.b.Write(); err != nil {
		return types.StorageError("storage.Batch.Write", err)
	}
	return nil
}

// get/put/delete/has are the single-CF primitives the typed accessors below
// build on.
func (s *Store) get(cf CF, key []byte) ([]byte, error) {
	v, err := s.db.Get(cfKey(cf, key))
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Store) put(cf CF, key, value []byte) error {
	return s.db.Put(cfKey(cf, key), value)
}

func (s *Store) has(cf CF, key []byte) (bool, error) {
	return s.db.Has(cfKey(cf, key))
}

// --- Microblocks ---

// PutMicroBlock stages b's body and tx index atomically in batch, keyed by
// big-endian height so iteration order matches height order. Callers must
// call batch.Write (and SetHead) to commit.
func (s *Store) PutMicroBlock(batch *Batch, b *types.MicroBlock) {
	hash := b.Hash()
	batch.Put(CFBlocksMicro, heightKey(b.Height), codec.EncodeMicroBlock(b))
	batch.Put(CFBlocksMicro, append([]byte("h:"), hash[:]...), heightKey(b.Height))
	for _, tx := range b.Txs {
		batch.Put(CFTxs, tx.Hash[:], codec.EncodeTransaction(tx))
	}
}

// GetMicroBlockByHeight returns the stored microblock at height, or
// ErrBlockNotFound.
func (s *Store) GetMicroBlockByHeight(height uint64) (*types.MicroBlock, error) {
	raw, err := s.get(CFBlocksMicro, heightKey(height))
	if err == database.ErrNotFound {
		return nil, types.ErrBlockNotFound
	}
	if err != nil {
		return nil, types.StorageError("storage.GetMicroBlockByHeight", err)
	}
	b, err := codec.DecodeMicroBlock(raw)
	if err != nil {
		return nil, types.StorageError("storage.GetMicroBlockByHeight", err)
	}
	return b, nil
}

// GetMicroBlockByHash resolves hash to a height via the secondary index,
// then loads the block.
func (s *Store) GetMicroBlockByHash(hash canon.Hash256) (*types.MicroBlock, error) {
	heightRaw, err := s.get(CFBlocksMicro, append([]byte("h:"), hash[:]...))
	if err == database.ErrNotFound {
		return nil, types.ErrBlockNotFound
	}
	if err != nil {
		return nil, types.StorageError("storage.GetMicroBlockByHash", err)
	}
	return s.GetMicroBlockByHeight(binary.BigEndian.Uint64(heightRaw))
}

// HasMicroBlock reports whether a microblock at height has already been
// persisted, used by the chain manager's out-of-order buffer to avoid
// redundant re-application.
func (s *Store) HasMicroBlock(height uint64) (bool, error) {
	ok, err := s.has(CFBlocksMicro, heightKey(height))
	if err != nil {
		return false, types.StorageError("storage.HasMicroBlock", err)
	}
	return ok, nil
}

// PruneMicroBlockBody deletes a microblock's tx list and tx index entries
// while preserving its header fields needed for hash-chain continuity
// (spec I4: "preserves header+hash"). It re-writes the block record with an
// empty Txs slice rather than deleting the record outright; TxHashes is
// kept, since the block hash commits to it.
func (s *Store) PruneMicroBlockBody(height uint64) error {
	b, err := s.GetMicroBlockByHeight(height)
	if err != nil {
		return err
	}
	for _, tx := range b.Txs {
		if err := s.db.Delete(cfKey(CFTxs, tx.Hash[:])); err != nil {
			return types.StorageError("storage.PruneMicroBlockBody", err)
		}
	}
	b.Txs = nil
	if err := s.put(CFBlocksMicro, heightKey(height), codec.EncodeMicroBlock(b)); err != nil {
		return types.StorageError("storage.PruneMicroBlockBody", err)
	}
	return nil
}

// --- Macroblocks ---

func macroKey(macroHeight uint64) []byte { return heightKey(macroHeight) }

// PutMacroBlock persists a finalized macroblock. Macroblocks are never
// rolled back once written (spec I4), so this is a plain Put, not staged
// through Batch alongside mutable state.
func (s *Store) PutMacroBlock(m *types.MacroBlock) error {
	raw := encodeMacroBlock(m)
	if err := s.put(CFBlocksMacro, macroKey(m.MacroHeight), raw); err != nil {
		return types.StorageError("storage.PutMacroBlock", err)
	}
	return nil
}

func (s *Store) GetMacroBlock(macroHeight uint64) (*types.MacroBlock, error) {
	raw, err := s.get(CFBlocksMacro, macroKey(macroHeight))
	if err == database.ErrNotFound {
		return nil, types.ErrBlockNotFound
	}
	if err != nil {
		return nil, types.StorageError("storage.GetMacroBlock", err)
	}
	return decodeMacroBlock(raw)
}

// --- Accounts ---

func (s *Store) GetAccount(addr types.Address) (*types.AccountState, error) {
	raw, err := s.get(CFAccounts, addr[:])
	if err == database.ErrNotFound {
		return &types.AccountState{Address: addr}, nil // accounts spring into existence on first transfer
	}
	if err != nil {
		return nil, types.StorageError("storage.GetAccount", err)
	}
	return decodeAccount(addr, raw), nil
}

func (s *Store) PutAccount(batch *Batch, acc *types.AccountState) {
	batch.Put(CFAccounts, acc.Address[:], encodeAccount(acc))
}

func encodeAccount(a *types.AccountState) []byte {
	p := codec.NewPacker(16)
	p.PackU64(a.Balance)
	p.PackU64(a.Nonce)
	return p.Bytes
}

func decodeAccount(addr types.Address, raw []byte) *types.AccountState {
	u := codec.NewUnpacker(raw)
	return &types.AccountState{
		Address: addr,
		Balance: u.UnpackU64(),
		Nonce:   u.UnpackU64(),
	}
}

// --- Head pointer / genesis ---

// Head returns the highest applied microblock height, or 0 if the chain is
// empty (genesis not yet applied).
func (s *Store) Head() (uint64, error) {
	raw, err := s.get(CFMeta, metaKeyHead)
	if err == database.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, types.StorageError("storage.Head", err)
	}
	return binary.BigEndian.Uint64(raw), nil
}

// SetHead updates the head pointer within batch, so it commits atomically
// with the block/account/tx writes that advanced it.
func (s *Store) SetHead(batch *Batch, height uint64) {
	batch.Put(CFMeta, metaKeyHead, heightKey(height))
}

// GenesisHash returns the chain's recorded genesis hash, or the zero hash
// if genesis has not yet been observed.
func (s *Store) GenesisHash() (canon.Hash256, error) {
	raw, err := s.get(CFMeta, metaKeyGenesisHash)
	if err == database.ErrNotFound {
		return canon.Hash256{}, nil
	}
	if err != nil {
		return canon.Hash256{}, types.StorageError("storage.GenesisHash", err)
	}
	var h canon.Hash256
	copy(h[:], raw)
	return h, nil
}

// SetGenesisHash records the chain's genesis hash exactly once; a mismatch
// on a later attempt is the caller's responsibility to detect (spec §4.3:
// "All nodes must observe the same genesis hash").
func (s *Store) SetGenesisHash(h canon.Hash256) error {
	if err := s.put(CFMeta, metaKeyGenesisHash, h[:]); err != nil {
		return types.StorageError("storage.SetGenesisHash", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeMacroBlock(m *types.MacroBlock) []byte {
	p := codec.NewPacker(128)
	p.PackU64(m.MacroHeight)
	p.PackU64(m.FirstHeight)
	p.PackU64(m.LastHeight)
	p.PackFixedBytes(m.StateRoot[:])
	p.PackI64(m.FinalizedAt)
	p.PackU32(uint32(len(m.CommitSet)))
	for _, c := range m.CommitSet {
		p.PackFixedBytes(c.ValidatorAddr[:])
		p.PackFixedBytes(c.CommitHash[:])
		p.PackI64(c.Timestamp)
		p.PackBytes(c.Signature)
	}
	p.PackU32(uint32(len(m.RevealSet)))
	for _, r := range m.RevealSet {
		p.PackFixedBytes(r.ValidatorAddr[:])
		p.PackFixedBytes(r.Vote[:])
		p.PackU64(r.Nonce)
		p.PackI64(r.Timestamp)
		p.PackBytes(r.Signature)
	}
	p.PackBytes(m.Signature)
	return p.Bytes
}

func decodeMacroBlock(raw []byte) (*types.MacroBlock, error) {
	u := codec.NewUnpacker(raw)
	m := &types.MacroBlock{}
	m.MacroHeight = u.UnpackU64()
	m.FirstHeight = u.UnpackU64()
	m.LastHeight = u.UnpackU64()
	copy(m.StateRoot[:], u.UnpackFixedBytes(32))
	m.FinalizedAt = u.UnpackI64()
	nc := u.UnpackU32()
	m.CommitSet = make([]types.CommitEntry, nc)
	for i := range m.CommitSet {
		copy(m.CommitSet[i].ValidatorAddr[:], u.UnpackFixedBytes(types.AddressLen))
		copy(m.CommitSet[i].CommitHash[:], u.UnpackFixedBytes(32))
		m.CommitSet[i].Timestamp = u.UnpackI64()
		m.CommitSet[i].Signature = u.UnpackBytes()
	}
	nr := u.UnpackU32()
	m.RevealSet = make([]types.RevealEntry, nr)
	for i := range m.RevealSet {
		copy(m.RevealSet[i].ValidatorAddr[:], u.UnpackFixedBytes(types.AddressLen))
		copy(m.RevealSet[i].Vote[:], u.UnpackFixedBytes(32))
		m.RevealSet[i].Nonce = u.UnpackU64()
		m.RevealSet[i].Timestamp = u.UnpackI64()
		m.RevealSet[i].Signature = u.UnpackBytes()
	}
	m.Signature = u.UnpackBytes()
	if u.Err != nil {
		return nil, fmt.Errorf("storage: decode macroblock: %w", u.Err)
	}
	return m, nil
}
