// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package meteringpoint describes the physical metering points that
// measurements are published to. A meteringpoint is identified by its
// globally unique GSRN number and belongs to exactly one holder.
package meteringpoint

import (
	"context"
	"time"

	"storj.io/common/uuid"
)

// Type describes whether a meteringpoint produces or consumes energy.
type Type string

const (
	// Production meteringpoints measure produced energy and have GGOs
	// issued for their measurements.
	Production Type = "production"
	// Consumption meteringpoints measure consumed energy and can have
	// GGOs retired against their measurements.
	Consumption Type = "consumption"
)

// Meteringpoint is a single metering point registered to a holder.
//
// RetiringPriority orders the meteringpoints the allocation engine
// retires to; lowest number first. A nil priority means the
// meteringpoint never receives automatic retires.
type Meteringpoint struct {
	ID       int64
	PublicID uuid.UUID
	Created  time.Time

	Gsrn     string
	Type     Type
	Sector   string
	TechCode string
	FuelCode string
	Name     string
	Subject  string

	RetiringPriority *int
}

// IsProducer returns true if the meteringpoint produces energy.
func (mp *Meteringpoint) IsProducer() bool { return mp.Type == Production }

// IsConsumer returns true if the meteringpoint consumes energy.
func (mp *Meteringpoint) IsConsumer() bool { return mp.Type == Consumption }

// DB is the interface for storing and retrieving meteringpoints.
//
// architecture: Database
type DB interface {
	// Create inserts a new meteringpoint. Gsrn must be unique.
	Create(ctx context.Context, mp *Meteringpoint) error
	// GetByGsrn returns the meteringpoint with the given GSRN, or nil
	// when absent.
	GetByGsrn(ctx context.Context, gsrn string) (*Meteringpoint, error)
	// RetireReceivers returns the holder's consumption meteringpoints
	// that have a retiring priority set and are in the given sector,
	// ordered by retiring priority ascending.
	RetireReceivers(ctx context.Context, subject, sector string) ([]*Meteringpoint, error)
	// ListBySubject returns all meteringpoints owned by the holder.
	ListBySubject(ctx context.Context, subject string) ([]*Meteringpoint, error)
}
