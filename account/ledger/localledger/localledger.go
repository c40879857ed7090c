// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package localledger implements an in-process ledger for development
// and testing. It accepts every batch and, by default, commits it on
// the first status poll.
package localledger

import (
	"context"
	"sync"

	"storj.io/common/uuid"

	"origin.energy/origin/account/ggo"
	"origin.energy/origin/account/ledger"
)

// Ledger is an in-process ledger.Submitter.
type Ledger struct {
	mu         sync.Mutex
	verdicts   map[string]ledger.Status
	nextStatus ledger.Status
}

// New creates a local ledger that commits every batch.
func New() *Ledger {
	return &Ledger{
		verdicts:   make(map[string]ledger.Status),
		nextStatus: ledger.StatusCommitted,
	}
}

// SetNextStatus sets the verdict assigned to batches submitted from now
// on. Used by tests to exercise the decline and pending paths.
func (l *Ledger) SetNextStatus(status ledger.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextStatus = status
}

// Resolve overrides the verdict of an already submitted batch.
func (l *Ledger) Resolve(handle string, status ledger.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verdicts[handle] = status
}

// Submit implements ledger.Submitter.
func (l *Ledger) Submit(ctx context.Context, b *ggo.Batch) (string, error) {
	handle, err := uuid.New()
	if err != nil {
		return "", ledger.Error.Wrap(err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.verdicts[handle.String()] = l.nextStatus
	return handle.String(), nil
}

// Status implements ledger.Submitter.
func (l *Ledger) Status(ctx context.Context, handle string) (ledger.Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	status, ok := l.verdicts[handle]
	if !ok {
		return "", ledger.Error.New("unknown handle %q", handle)
	}
	return status, nil
}
