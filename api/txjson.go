// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"encoding/hex"
	"fmt"

	"github.com/luxfi/qnet/types"
)

// TxJSON is the hex-encoded wire form of types.Transaction used by
// POST /api/v1/transaction and every endpoint that returns a transaction.
type TxJSON struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	GasPrice  uint64 `json:"gas_price"`
	GasLimit  uint64 `json:"gas_limit"`
	Type      uint8  `json:"type"`
	Payload   string `json:"payload,omitempty"`
	Signature string `json:"signature"`
}

func txToJSON(tx *types.Transaction) TxJSON {
	return TxJSON{
		Hash:      hex.EncodeToString(tx.Hash[:]),
		From:      tx.From.String(),
		To:        tx.To.String(),
		Amount:    tx.Amount,
		Nonce:     tx.Nonce,
		GasPrice:  tx.GasPrice,
		GasLimit:  tx.GasLimit,
		Type:      uint8(tx.Type),
		Payload:   hex.EncodeToString(tx.Payload),
		Signature: hex.EncodeToString(tx.Signature),
	}
}

func txFromJSON(j TxJSON) (*types.Transaction, error) {
	from, err := types.ParseAddress(j.From)
	if err != nil {
		return nil, fmt.Errorf("api: decode from: %w", err)
	}
	to, err := types.ParseAddress(j.To)
	if err != nil {
		return nil, fmt.Errorf("api: decode to: %w", err)
	}
	payload, err := hex.DecodeString(j.Payload)
	if err != nil {
		return nil, fmt.Errorf("api: decode payload: %w", err)
	}
	sig, err := hex.DecodeString(j.Signature)
	if err != nil {
		return nil, fmt.Errorf("api: decode signature: %w", err)
	}
	tx := &types.Transaction{
		From:      from,
		To:        to,
		Amount:    j.Amount,
		Nonce:     j.Nonce,
		GasPrice:  j.GasPrice,
		GasLimit:  j.GasLimit,
		Type:      types.TxType(j.Type),
		Payload:   payload,
		Signature: sig,
	}
	tx.ComputeHash()
	return tx, nil
}

func blockToJSON(b *types.MicroBlock) map[string]any {
	txs := make([]TxJSON, len(b.Txs))
	for i, tx := range b.Txs {
		txs[i] = txToJSON(tx)
	}
	return map[string]any{
		"height":        b.Height,
		"round":         b.Round,
		"previous_hash": hex.EncodeToString(b.PrevHash[:]),
		"producer":      b.ProducerAddr.String(),
		"timestamp_us":  b.Timestamp,
		"poh_count":     b.PohCount,
		"state_root":    hex.EncodeToString(b.StateRoot[:]),
		"txs":           txs,
		"hash":          hex.EncodeToString(b.Hash()[:]),
	}
}
