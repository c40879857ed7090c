// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package agreement

import (
	"context"
	"time"

	"storj.io/common/uuid"
)

// DB is the interface for storing and retrieving trade agreements.
//
// architecture: Database
type DB interface {
	// Create inserts a new agreement.
	Create(ctx context.Context, a *Agreement) error
	// Update persists state, timestamps, fill-ins and priority.
	Update(ctx context.Context, a *Agreement) error
	// GetByPublicID returns the agreement, or nil when absent.
	GetByPublicID(ctx context.Context, publicID uuid.UUID) (*Agreement, error)

	// ActiveOutbound returns the holder's accepted outbound agreements
	// whose window contains the given local date, ordered by transfer
	// priority ascending.
	ActiveOutbound(ctx context.Context, subject string, date time.Time) ([]*Agreement, error)
	// MaxPriority returns the highest transfer priority among the
	// holder's accepted outbound agreements, or nil when there are
	// none.
	MaxPriority(ctx context.Context, subject string) (*int, error)

	// ClearPriorities sets the priority of all the holder's accepted
	// outbound agreements to null.
	ClearPriorities(ctx context.Context, subject string) error
	// SetPriority sets the priority of one of the holder's accepted
	// outbound agreements.
	SetPriority(ctx context.Context, subject string, publicID uuid.UUID, priority int) error
	// NormalizePriorities renumbers the holder's accepted outbound
	// agreements to a dense 0..k-1 sequence, keeping the existing
	// priority order and placing agreements without a priority last in
	// their prior order.
	NormalizePriorities(ctx context.Context, subject string) error

	// PendingProposedTo returns pending agreements awaiting a response
	// from the holder, oldest first.
	PendingProposedTo(ctx context.Context, subject string) ([]*Agreement, error)
	// PendingProposedBy returns the holder's own pending proposals,
	// oldest first.
	PendingProposedBy(ctx context.Context, subject string) ([]*Agreement, error)
	// AcceptedInbound returns accepted agreements delivering to the
	// holder, oldest first.
	AcceptedInbound(ctx context.Context, subject string) ([]*Agreement, error)
	// AcceptedOutbound returns the holder's accepted outbound
	// agreements ordered by transfer priority ascending.
	AcceptedOutbound(ctx context.Context, subject string) ([]*Agreement, error)
	// CancelledSince returns the holder's agreements cancelled at or
	// after since, most recent first.
	CancelledSince(ctx context.Context, subject string, since time.Time) ([]*Agreement, error)
	// DeclinedSince returns the holder's agreements declined at or
	// after since, most recent first.
	DeclinedSince(ctx context.Context, subject string, since time.Time) ([]*Agreement, error)
}
