// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errutil provides a concurrency-safe multi-error accumulator used
// by storage batch rollback and chain validation's multi-check pipelines,
// adapted from the teacher's utils/wrappers.Errs (the Packer half of that
// file is unneeded here since codec.Packer already covers wire encoding).
package errutil

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Errs collects zero or more errors and folds them into a single error.
type Errs struct {
	mu   sync.RWMutex
	errs []error
}

// Add appends err to the collection. A nil err is a no-op, so call sites can
// unconditionally Add the result of every step without an intervening check.
func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

// Errored reports whether any error has been added.
func (e *Errs) Errored() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.errs) > 0
}

// Len returns the number of accumulated errors.
func (e *Errs) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.errs)
}

// Err folds the collection into a single error: nil if empty, the error
// itself if exactly one, or a combined multi-line error otherwise.
func (e *Errs) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch len(e.errs) {
	case 0:
		return nil
	case 1:
		return e.errs[0]
	default:
		return errors.New(e.string())
	}
}

func (e *Errs) string() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:", len(e.errs)))
	for _, err := range e.errs {
		sb.WriteString("\n\t* ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}
