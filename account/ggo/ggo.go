// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package ggo implements Guarantees of Origin: amount-bearing,
// time-bound certificates of renewable energy production, and the
// batches of ledger transactions that split and retire them.
package ggo

import (
	"context"
	"time"

	"github.com/zeebo/errs"
	"storj.io/common/uuid"

	"origin.energy/origin/account/measurement"
	"origin.energy/origin/account/meteringpoint"
)

// Error is the default ggo errs class.
var Error = errs.Class("ggo")

// Ggo is a single guarantee of origin.
//
// The three flags are mutually constrained: a GGO starts out issued
// and stored; splitting clears stored; retiring clears stored and sets
// retired. At most one of stored and retired is true at any time.
// Production-issued GGOs have no parent and link to the source
// measurement; split children link to their parent instead.
type Ggo struct {
	ID       int64
	PublicID uuid.UUID
	Created  time.Time

	ParentID      *int64
	MeasurementID *int64
	IssueGsrn     string

	Subject string

	IssueTime  time.Time
	ExpireTime time.Time
	Begin      time.Time
	End        time.Time

	Amount   int64
	Sector   string
	TechCode string
	FuelCode string

	// Emissions is an opaque JSON blob carried from issuance through
	// every split child.
	Emissions []byte

	Issued  bool
	Stored  bool
	Retired bool

	// Set when Retired is true.
	RetireGsrn          *string
	RetireMeasurementID *int64
}

// IsExpired returns true once the GGO's expire time has been reached.
func (g *Ggo) IsExpired(now time.Time) bool {
	return !now.Before(g.ExpireTime)
}

// IsTradable returns true if the GGO can be split or retired.
func (g *Ggo) IsTradable(now time.Time) bool {
	return g.Stored && !g.Retired && !g.IsExpired(now)
}

// NewFromMeasurement mints a new GGO for a production measurement.
// The GGO inherits the measurement's period and amount and the
// meteringpoint's sector and technology codes.
func NewFromMeasurement(m *measurement.Measurement, mp *meteringpoint.Meteringpoint, emissions []byte, now time.Time, expireAfter time.Duration) (*Ggo, error) {
	if m.Amount <= 0 {
		return nil, Error.New("measurement amount must be positive, got %d", m.Amount)
	}

	publicID, err := uuid.New()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	measurementID := m.ID
	return &Ggo{
		PublicID:      publicID,
		MeasurementID: &measurementID,
		IssueGsrn:     mp.Gsrn,
		Subject:       mp.Subject,
		IssueTime:     now,
		ExpireTime:    now.Add(expireAfter),
		Begin:         m.Begin,
		End:           m.End,
		Amount:        m.Amount,
		Sector:        mp.Sector,
		TechCode:      mp.TechCode,
		FuelCode:      mp.FuelCode,
		Issued:        true,
		Stored:        true,
		Retired:       false,
	}, nil
}

// CreateChild creates a new GGO carrying part of this GGO's amount,
// owned by subject. The child inherits period, expiry, sector,
// technology and emissions; its flags start cleared and are set by the
// batch lifecycle hooks.
func (g *Ggo) CreateChild(amount int64, subject string) (*Ggo, error) {
	if amount <= 0 || amount > g.Amount {
		return nil, Error.New("child amount %d out of range (0, %d]", amount, g.Amount)
	}

	publicID, err := uuid.New()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var parentID *int64
	if g.ID != 0 {
		id := g.ID
		parentID = &id
	}

	return &Ggo{
		PublicID:   publicID,
		ParentID:   parentID,
		Subject:    subject,
		IssueGsrn:  g.IssueGsrn,
		IssueTime:  g.IssueTime,
		ExpireTime: g.ExpireTime,
		Begin:      g.Begin,
		End:        g.End,
		Amount:     amount,
		Sector:     g.Sector,
		TechCode:   g.TechCode,
		FuelCode:   g.FuelCode,
		Emissions:  g.Emissions,
		Issued:     false,
		Stored:     false,
		Retired:    false,
	}, nil
}

// DB is the interface for storing and retrieving GGOs.
//
// architecture: Database
type DB interface {
	// Create inserts a new GGO and assigns its ID.
	Create(ctx context.Context, g *Ggo) error
	// Update persists the GGO's flags and retire link.
	Update(ctx context.Context, g *Ggo) error
	// Delete removes the GGO. Used only by batch rollback.
	Delete(ctx context.Context, id int64) error
	// GetByPublicID returns the holder's GGO with the given public id,
	// or nil when absent.
	GetByPublicID(ctx context.Context, subject string, publicID uuid.UUID) (*Ggo, error)

	// RetiredAmount sums the amounts the holder has retired to the
	// given measurement through the given GSRN.
	RetiredAmount(ctx context.Context, subject, gsrn string, measurementID int64) (int64, error)
	// StoredAmount sums the holder's stored GGO amounts at begin.
	StoredAmount(ctx context.Context, subject string, begin time.Time) (int64, error)
	// TransferredAmount sums the split target amounts sent by the
	// holder under the given reference at begin.
	TransferredAmount(ctx context.Context, sender, reference string, begin time.Time) (int64, error)
}
