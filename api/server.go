// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api implements the node's integrated REST interface (spec §6):
// stdlib net/http + encoding/json, since no HTTP router or framework is
// wired anywhere in the retrieval pack (see DESIGN.md). Response/Error
// envelopes follow the teacher's api/response.go idiom.
package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/types"
)

// ChainReader is the read surface server handlers need from storage.
type ChainReader interface {
	Head() (uint64, error)
	GetMicroBlockByHeight(height uint64) (*types.MicroBlock, error)
	GetMicroBlockByHash(hash canon.Hash256) (*types.MicroBlock, error)
	GetAccount(addr types.Address) (*types.AccountState, error)
}

// MempoolReader/Submitter is the surface server handlers need from the
// pending-transaction pool.
type MempoolReader interface {
	Len() int
	TotalBytes() uint64
	LowestGasPrice() (uint64, bool)
}

type TxSubmitter interface {
	Submit(tx *types.Transaction) error
}

// PeerLister reports the node's currently connected peers.
type PeerLister interface {
	Peers() []string
}

// ProducerStatus reports the round currently in progress.
type ProducerStatus interface {
	Current() (producer types.Address, round uint64, nextRotationIn time.Duration)
}

// TxLocator resolves a submitted transaction's hash to its containing
// block height, if any, for finality reporting.
type TxLocator interface {
	LocateTransaction(hash canon.Hash256) (height uint64, found bool)
}

// Server wires every dependency a handler needs and exposes the full
// /api/v1/* surface spec §6 requires.
type Server struct {
	Chain     ChainReader
	Mempool   MempoolReader
	Submitter TxSubmitter
	Peers     PeerLister
	Producer  ProducerStatus
	Locator   TxLocator
	Health    *healthRunner
}

// healthRunner avoids importing the health package's concrete Registry
// type into this file's signature so Server can be constructed with a nil
// health check set in tests; NewServer always supplies a real one.
type healthRunner struct {
	run func() (map[string]any, error)
}

// NewServer builds the HTTP mux for every endpoint spec §6 names.
func NewServer(chain ChainReader, mp MempoolReader, sub TxSubmitter, peers PeerLister, prod ProducerStatus, loc TxLocator, health func() (map[string]any, error)) *http.ServeMux {
	s := &Server{Chain: chain, Mempool: mp, Submitter: sub, Peers: peers, Producer: prod, Locator: loc, Health: &healthRunner{run: health}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/height", s.handleHeight)
	mux.HandleFunc("GET /api/v1/node/health", s.handleNodeHealth)
	mux.HandleFunc("GET /api/v1/peers", s.handlePeers)
	mux.HandleFunc("GET /api/v1/block/latest", s.handleBlockLatest)
	mux.HandleFunc("GET /api/v1/block/{height}", s.handleBlockByHeight)
	mux.HandleFunc("GET /api/v1/block/hash/{hash}", s.handleBlockByHash)
	mux.HandleFunc("POST /api/v1/transaction", s.handleSubmitTransaction)
	mux.HandleFunc("GET /api/v1/transaction/{hash}", s.handleTransactionStatus)
	mux.HandleFunc("GET /api/v1/account/{addr}/balance", s.handleAccountBalance)
	mux.HandleFunc("GET /api/v1/mempool/status", s.handleMempoolStatus)
	mux.HandleFunc("GET /api/v1/producer/status", s.handleProducerStatus)
	return mux
}

func (s *Server) handleHeight(w http.ResponseWriter, r *http.Request) {
	height, err := s.Chain.Head()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err)
		return
	}
	WriteSuccess(w, map[string]any{"height": height})
}

func (s *Server) handleNodeHealth(w http.ResponseWriter, r *http.Request) {
	height, err := s.Chain.Head()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err)
		return
	}
	var peerCount int
	if s.Peers != nil {
		peerCount = len(s.Peers.Peers())
	}
	var producer types.Address
	if s.Producer != nil {
		producer, _, _ = s.Producer.Current()
	}
	status := "healthy"
	if s.Health != nil && s.Health.run != nil {
		if _, err := s.Health.run(); err != nil {
			status = "degraded"
		}
	}
	WriteSuccess(w, map[string]any{
		"height":                    height,
		"peers":                     peerCount,
		"status":                    status,
		"producer_of_current_round": producer.String(),
	})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if s.Peers == nil {
		WriteSuccess(w, map[string]any{"peers": []string{}})
		return
	}
	WriteSuccess(w, map[string]any{"peers": s.Peers.Peers()})
}

func (s *Server) handleBlockLatest(w http.ResponseWriter, r *http.Request) {
	height, err := s.Chain.Head()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err)
		return
	}
	blk, err := s.Chain.GetMicroBlockByHeight(height)
	if err != nil {
		WriteError(w, statusFor(err), err)
		return
	}
	WriteSuccess(w, blockToJSON(blk))
}

func (s *Server) handleBlockByHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(r.PathValue("height"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest)
		return
	}
	blk, err := s.Chain.GetMicroBlockByHeight(height)
	if err != nil {
		WriteError(w, statusFor(err), err)
		return
	}
	WriteSuccess(w, blockToJSON(blk))
}

func (s *Server) handleBlockByHash(w http.ResponseWriter, r *http.Request) {
	raw, err := hex.DecodeString(r.PathValue("hash"))
	if err != nil || len(raw) != 32 {
		WriteError(w, http.StatusBadRequest, ErrBadRequest)
		return
	}
	var h canon.Hash256
	copy(h[:], raw)
	blk, err := s.Chain.GetMicroBlockByHash(h)
	if err != nil {
		WriteError(w, statusFor(err), err)
		return
	}
	WriteSuccess(w, blockToJSON(blk))
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var body TxJSON
	if err := decodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := txFromJSON(body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Submitter.Submit(tx); err != nil {
		if errors.Is(err, types.ErrNonceTooLow) {
			WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error":    "nonce_too_low",
				"expected": tx.Nonce,
			})
			return
		}
		WriteError(w, statusFor(err), err)
		return
	}
	WriteSuccess(w, map[string]any{"hash": hex.EncodeToString(tx.Hash[:])})
}

func (s *Server) handleTransactionStatus(w http.ResponseWriter, r *http.Request) {
	raw, err := hex.DecodeString(r.PathValue("hash"))
	if err != nil || len(raw) != 32 {
		WriteError(w, http.StatusBadRequest, ErrBadRequest)
		return
	}
	var h canon.Hash256
	copy(h[:], raw)

	if s.Locator == nil {
		WriteSuccess(w, Finality(0))
		return
	}
	height, found := s.Locator.LocateTransaction(h)
	if !found {
		WriteSuccess(w, Finality(0))
		return
	}
	head, err := s.Chain.Head()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err)
		return
	}
	var confirmations uint64
	if head >= height {
		confirmations = head - height + 1
	}
	WriteSuccess(w, Finality(confirmations))
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := types.ParseAddress(r.PathValue("addr"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest)
		return
	}
	acc, err := s.Chain.GetAccount(addr)
	if err != nil {
		WriteError(w, statusFor(err), err)
		return
	}
	WriteSuccess(w, map[string]any{"address": addr.String(), "balance": acc.Balance, "nonce": acc.Nonce})
}

func (s *Server) handleMempoolStatus(w http.ResponseWriter, r *http.Request) {
	lowest, ok := s.Mempool.LowestGasPrice()
	resp := map[string]any{
		"count": s.Mempool.Len(),
		"bytes": s.Mempool.TotalBytes(),
	}
	if ok {
		resp["lowest_gas_price"] = lowest
	}
	WriteSuccess(w, resp)
}

func (s *Server) handleProducerStatus(w http.ResponseWriter, r *http.Request) {
	if s.Producer == nil {
		WriteError(w, http.StatusServiceUnavailable, types.ErrNotInitialized)
		return
	}
	producer, round, next := s.Producer.Current()
	WriteSuccess(w, map[string]any{
		"producer":            producer.String(),
		"round":               round,
		"next_rotation_in_ms": next.Milliseconds(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrBlockNotFound), errors.Is(err, types.ErrTxNotFound), errors.Is(err, types.ErrAccountNotFound):
		return http.StatusNotFound
	case types.IsKind(err, types.KindValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadJSON(err)
	}
	return nil
}

func errBadJSON(err error) error {
	return errors.New("api: malformed request body: " + strings.TrimSpace(err.Error()))
}
