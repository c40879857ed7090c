// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package holder describes the accounts that own meteringpoints,
// GGOs and trade agreements. A holder is identified by an opaque
// subject string issued by the identity provider.
package holder

import (
	"context"
	"time"

	"github.com/zeebo/errs"
)

// ErrNotFound is returned when no active holder with the given subject
// exists.
var ErrNotFound = errs.Class("holder not found")

// Holder is an account that can own GGOs.
type Holder struct {
	ID      int64
	Subject string
	Name    string
	Active  bool
	Created time.Time
}

// DB is the interface for storing and retrieving holders.
//
// architecture: Database
type DB interface {
	// Create inserts a new holder.
	Create(ctx context.Context, holder *Holder) error
	// Get returns the holder with the given subject, or nil when absent.
	Get(ctx context.Context, subject string) (*Holder, error)
	// GetActive returns the active holder with the given subject, or nil
	// when absent or deactivated.
	GetActive(ctx context.Context, subject string) (*Holder, error)
}
