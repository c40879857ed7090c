// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package measurement describes the metered amounts of energy that
// drive GGO issuance and retiring. Exactly one measurement exists per
// meteringpoint per begin; the amount is in Wh.
package measurement

import (
	"context"
	"time"
)

// Measurement is a single metered period of one meteringpoint.
type Measurement struct {
	ID      int64
	Created time.Time

	Gsrn   string
	Begin  time.Time
	End    time.Time
	Amount int64
}

// DB is the interface for storing and retrieving measurements.
//
// architecture: Database
type DB interface {
	// Create inserts a new measurement. (Gsrn, Begin) must be unique.
	Create(ctx context.Context, m *Measurement) error
	// GetByGsrnAndBegin returns the measurement for the GSRN at the
	// given begin, or nil when absent.
	GetByGsrnAndBegin(ctx context.Context, gsrn string, begin time.Time) (*Measurement, error)
	// Consumption returns the consumption measurement at the given
	// begin for a meteringpoint owned by subject, or nil when absent.
	Consumption(ctx context.Context, subject, gsrn string, begin time.Time) (*Measurement, error)
}
