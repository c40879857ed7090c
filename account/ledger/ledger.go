// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package ledger synchronizes batches with the external blockchain
// ledger: submitting pending batches and polling submitted ones until
// the ledger commits or declines them.
package ledger

import (
	"context"

	"github.com/zeebo/errs"

	"origin.energy/origin/account"
	"origin.energy/origin/account/ggo"
)

// Error is the default ledger errs class.
var Error = errs.Class("ledger")

// Status is the ledger's verdict on a submitted batch.
type Status string

const (
	// StatusPending means the ledger has not decided yet.
	StatusPending Status = "pending"
	// StatusCommitted means the ledger executed the batch.
	StatusCommitted Status = "committed"
	// StatusDeclined means the ledger rejected the batch.
	StatusDeclined Status = "declined"
)

// Submitter is the transport to the external ledger.
type Submitter interface {
	// Submit sends the batch to the ledger and returns a handle for
	// polling its status.
	Submit(ctx context.Context, b *ggo.Batch) (handle string, err error)
	// Status returns the ledger's current verdict on the handle.
	Status(ctx context.Context, handle string) (Status, error)
}

// Allocator effectuates GGOs received through a committed batch.
type Allocator interface {
	Allocate(ctx context.Context, tx account.Stores, g *ggo.Ggo) error
}
