// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package ggo

import (
	"context"
	"time"

	"github.com/zeebo/errs"

	"origin.energy/origin/account/measurement"
	"origin.energy/origin/account/meteringpoint"
)

var (
	// ErrEmpty is returned when building a batch without any transfers
	// or retires added.
	ErrEmpty = errs.Class("empty batch")
	// ErrAmountUnavailable is returned when the sum of transfers and
	// retires exceeds the parent GGO's amount.
	ErrAmountUnavailable = errs.Class("amount unavailable")
	// ErrRetireMeasurementUnavailable is returned when retiring to a
	// meteringpoint that has no published measurement at the GGO's
	// begin.
	ErrRetireMeasurementUnavailable = errs.Class("retire measurement unavailable")
	// ErrRetireMeasurementInvalid is returned when the GGO is not
	// eligible to retire to the measurement (sector or begin mismatch).
	ErrRetireMeasurementInvalid = errs.Class("retire measurement invalid")
	// ErrRetireAmountInvalid is returned when retiring more than the
	// measurement's remaining capacity.
	ErrRetireAmountInvalid = errs.Class("retire amount invalid")
)

// Recipient pairs a new child GGO with the subject that receives it.
type Recipient struct {
	Subject string
	Ggo     *Ggo
}

type stagedTransfer struct {
	subject   string
	amount    int64
	reference *string
}

type stagedRetire struct {
	measurement   *measurement.Measurement
	meteringpoint *meteringpoint.Meteringpoint
	amount        int64
}

// Composer accumulates transfer and retire intents against one parent
// GGO and compiles them into a batch. The composer stages objects and
// returns them; persisting the batch and the new child GGOs is the
// caller's responsibility, inside the caller's unit of work.
type Composer struct {
	parent       *Ggo
	ggos         DB
	measurements measurement.DB
	now          time.Time

	transfers []stagedTransfer
	retires   []stagedRetire
}

// NewComposer creates a composer for the given parent GGO. The parent
// must be tradable at now.
func NewComposer(parent *Ggo, ggos DB, measurements measurement.DB, now time.Time) (*Composer, error) {
	if !parent.IsTradable(now) {
		return nil, Error.New("ggo %s is not tradable (stored=%t retired=%t expired=%t)",
			parent.PublicID, parent.Stored, parent.Retired, parent.IsExpired(now))
	}

	return &Composer{
		parent:       parent,
		ggos:         ggos,
		measurements: measurements,
		now:          now,
	}, nil
}

// TotalAmount returns the sum of all staged transfers and retires.
func (c *Composer) TotalAmount() int64 {
	var total int64
	for _, t := range c.transfers {
		total += t.amount
	}
	for _, r := range c.retires {
		total += r.amount
	}
	return total
}

// RemainingAmount returns how much of the parent's amount is still
// unassigned.
func (c *Composer) RemainingAmount() int64 {
	return c.parent.Amount - c.TotalAmount()
}

// AddTransfer stages a transfer of amount to subject. Reference is an
// arbitrary string for future enquiry, typically an agreement public
// id.
func (c *Composer) AddTransfer(subject string, amount int64, reference *string) error {
	if amount <= 0 || amount > c.parent.Amount {
		return Error.New("transfer amount %d out of range (0, %d]", amount, c.parent.Amount)
	}

	c.transfers = append(c.transfers, stagedTransfer{
		subject:   subject,
		amount:    amount,
		reference: reference,
	})
	return nil
}

// AddRetire stages a retire of amount to the meteringpoint's
// measurement at the parent's begin. The meteringpoint must be a
// consumption point owned by the parent's holder; the measurement must
// exist, match the GGO's sector and begin, and have enough capacity
// left.
func (c *Composer) AddRetire(ctx context.Context, mp *meteringpoint.Meteringpoint, amount int64) error {
	if amount <= 0 || amount > c.parent.Amount {
		return Error.New("retire amount %d out of range (0, %d]", amount, c.parent.Amount)
	}
	if mp.Subject != c.parent.Subject {
		return Error.New("meteringpoint %s does not belong to %s", mp.Gsrn, c.parent.Subject)
	}
	if !mp.IsConsumer() {
		return Error.New("meteringpoint %s is not a consumption point", mp.Gsrn)
	}

	m, err := c.measurements.GetByGsrnAndBegin(ctx, mp.Gsrn, c.parent.Begin)
	if err != nil {
		return Error.Wrap(err)
	}
	if m == nil {
		return ErrRetireMeasurementUnavailable.New("gsrn %s at %s", mp.Gsrn, c.parent.Begin.UTC())
	}

	// The GGO may be in a different sector than the measurement.
	if c.parent.Sector != mp.Sector || !c.parent.Begin.Equal(m.Begin) {
		return ErrRetireMeasurementInvalid.New("ggo %s cannot retire to measurement %d", c.parent.PublicID, m.ID)
	}

	// The retired amount may not exceed the measured amount minus
	// what has already been retired against it, persisted or staged
	// earlier on this composer.
	retired, err := c.ggos.RetiredAmount(ctx, c.parent.Subject, mp.Gsrn, m.ID)
	if err != nil {
		return Error.Wrap(err)
	}
	for _, r := range c.retires {
		if r.measurement.ID == m.ID {
			retired += r.amount
		}
	}
	if remaining := m.Amount - retired; amount > remaining {
		return ErrRetireAmountInvalid.New("requested %d, allowed %d", amount, remaining)
	}

	c.retires = append(c.retires, stagedRetire{
		measurement:   m,
		meteringpoint: mp,
		amount:        amount,
	})
	return nil
}

// BuildBatch compiles the staged transfers and retires into a batch
// and runs its OnBegin hook. Any unassigned remainder becomes a
// transfer back to the parent's holder, so the targets always sum to
// the parent's amount exactly.
//
// A single retire covering the full amount retires the parent GGO
// directly; anything else splits the parent first and retires the
// split children.
//
// Returns the batch along with the recipients of all new child GGOs.
func (c *Composer) BuildBatch() (*Batch, []Recipient, error) {
	total := c.TotalAmount()
	if total == 0 {
		return nil, nil, ErrEmpty.New("no transfers or retires added")
	}
	if total > c.parent.Amount {
		return nil, nil, ErrAmountUnavailable.New("requested %d of %d", total, c.parent.Amount)
	}

	if remaining := c.RemainingAmount(); remaining > 0 {
		if err := c.AddTransfer(c.parent.Subject, remaining, nil); err != nil {
			return nil, nil, err
		}
	}

	shouldSplit := len(c.transfers) > 0 || len(c.transfers)+len(c.retires) > 1

	split := NewSplitTransaction(c.parent)
	var retireTxs []*Transaction
	var recipients []Recipient

	for _, t := range c.transfers {
		child, err := c.parent.CreateChild(t.amount, t.subject)
		if err != nil {
			return nil, nil, err
		}
		split.AddTarget(child, t.reference)
		recipients = append(recipients, Recipient{Subject: t.subject, Ggo: child})
	}

	for _, r := range c.retires {
		if shouldSplit {
			child, err := c.parent.CreateChild(r.amount, c.parent.Subject)
			if err != nil {
				return nil, nil, err
			}
			split.AddTarget(child, nil)
			retireTxs = append(retireTxs, NewRetireTransaction(child, r.meteringpoint, r.measurement.ID))
		} else {
			retireTxs = append(retireTxs, NewRetireTransaction(c.parent, r.meteringpoint, r.measurement.ID))
		}
	}

	batch := &Batch{Subject: c.parent.Subject}
	if shouldSplit {
		batch.Add(split)
	}
	batch.AddAll(retireTxs...)

	if err := batch.OnBegin(); err != nil {
		return nil, nil, err
	}

	return batch, recipients, nil
}
