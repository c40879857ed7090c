// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package allocation

import (
	"context"

	"origin.energy/origin/account"
	"origin.energy/origin/account/agreement"
	"origin.energy/origin/account/ggo"
	"origin.energy/origin/account/meteringpoint"
)

// consumer is one claimant on a received GGO's amount. Consumers are
// asked in strict order; each names its desired amount and receives at
// most that, clipped to what is left.
type consumer interface {
	// AffectedSubjects returns the subjects whose accounts change when
	// this consumer consumes.
	AffectedSubjects() []string
	// DesiredAmount returns how much of g the consumer wants, given how
	// much earlier consumers have claimed already.
	DesiredAmount(ctx context.Context, g *ggo.Ggo, alreadyAllocated int64) (int64, error)
	// Consume stages the assigned amount on the composer.
	Consume(ctx context.Context, composer *ggo.Composer, amount int64) error
}

// retireConsumer retires to one of the holder's own consumption
// meteringpoints, up to the unretired remainder of its measurement at
// the GGO's begin.
type retireConsumer struct {
	tx account.Stores
	mp *meteringpoint.Meteringpoint
}

func (c *retireConsumer) AffectedSubjects() []string {
	return []string{c.mp.Subject}
}

func (c *retireConsumer) DesiredAmount(ctx context.Context, g *ggo.Ggo, alreadyAllocated int64) (int64, error) {
	m, err := c.tx.Measurements().Consumption(ctx, c.mp.Subject, c.mp.Gsrn, g.Begin)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	if m == nil {
		return 0, nil
	}

	retired, err := c.tx.Ggos().RetiredAmount(ctx, c.mp.Subject, c.mp.Gsrn, m.ID)
	if err != nil {
		return 0, Error.Wrap(err)
	}

	return clip(m.Amount-retired, g.Amount), nil
}

func (c *retireConsumer) Consume(ctx context.Context, composer *ggo.Composer, amount int64) error {
	return composer.AddRetire(ctx, c.mp, amount)
}

// agreementConsumer transfers to the recipient of an outbound trade
// agreement. The percent share applies first, the fixed cap acts as a
// ceiling, and whatever was already transferred under the agreement at
// this begin counts against it.
type agreementConsumer struct {
	tx        account.Stores
	agreement *agreement.Agreement
	reference string
}

func newAgreementConsumer(tx account.Stores, a *agreement.Agreement) *agreementConsumer {
	return &agreementConsumer{
		tx:        tx,
		agreement: a,
		reference: a.PublicID.String(),
	}
}

func (c *agreementConsumer) AffectedSubjects() []string {
	return []string{c.agreement.To}
}

func (c *agreementConsumer) DesiredAmount(ctx context.Context, g *ggo.Ggo, alreadyAllocated int64) (int64, error) {
	transferred, err := c.tx.Ggos().TransferredAmount(ctx, c.agreement.From, c.reference, g.Begin)
	if err != nil {
		return 0, Error.Wrap(err)
	}

	// Agreements limited to consumption may omit the fixed amount; the
	// consumption cap applies instead.
	cap := c.agreement.MaxAmount()
	if cap == 0 {
		cap = g.Amount
	}

	var desired int64
	if percent := c.agreement.AmountPercent; percent > 0 {
		share := g.Amount * int64(percent) / 100
		if share < cap {
			cap = share
		}
		desired = cap - transferred
	} else {
		desired = cap - transferred
	}

	return clip(desired, g.Amount), nil
}

func (c *agreementConsumer) Consume(ctx context.Context, composer *ggo.Composer, amount int64) error {
	return composer.AddTransfer(c.agreement.To, amount, &c.reference)
}

// limitedConsumer is an agreementConsumer additionally capped by the
// recipient's unmet consumption at the GGO's begin: the sum of the
// shortfalls of the recipient's retire receivers, minus what the
// recipient already has stored at that begin and what this GGO has
// already handed out.
type limitedConsumer struct {
	agreementConsumer
}

func newLimitedConsumer(tx account.Stores, a *agreement.Agreement) *limitedConsumer {
	return &limitedConsumer{agreementConsumer: *newAgreementConsumer(tx, a)}
}

func (c *limitedConsumer) AffectedSubjects() []string {
	return []string{c.agreement.From, c.agreement.To}
}

func (c *limitedConsumer) DesiredAmount(ctx context.Context, g *ggo.Ggo, alreadyAllocated int64) (int64, error) {
	remaining, err := c.agreementConsumer.DesiredAmount(ctx, g, alreadyAllocated)
	if err != nil {
		return 0, err
	}
	if remaining <= 0 {
		return 0, nil
	}

	receivers, err := c.tx.Meteringpoints().RetireReceivers(ctx, c.agreement.To, g.Sector)
	if err != nil {
		return 0, Error.Wrap(err)
	}

	var desired int64
	for _, mp := range receivers {
		shortfall, err := c.facilityShortfall(ctx, mp, g)
		if err != nil {
			return 0, err
		}
		desired += shortfall
	}

	desired -= alreadyAllocated

	stored, err := c.tx.Ggos().StoredAmount(ctx, c.agreement.To, g.Begin)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	desired -= stored

	if desired > remaining {
		desired = remaining
	}
	return clip(desired, g.Amount), nil
}

// facilityShortfall returns how much of the meteringpoint's consumption
// at the GGO's begin is not yet covered by retired GGOs.
func (c *limitedConsumer) facilityShortfall(ctx context.Context, mp *meteringpoint.Meteringpoint, g *ggo.Ggo) (int64, error) {
	m, err := c.tx.Measurements().Consumption(ctx, c.agreement.To, mp.Gsrn, g.Begin)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	if m == nil {
		return 0, nil
	}

	retired, err := c.tx.Ggos().RetiredAmount(ctx, c.agreement.To, mp.Gsrn, m.ID)
	if err != nil {
		return 0, Error.Wrap(err)
	}

	if shortfall := m.Amount - retired; shortfall > 0 {
		return shortfall, nil
	}
	return 0, nil
}

// clip bounds amount to [0, max].
func clip(amount, max int64) int64 {
	if amount < 0 {
		return 0
	}
	if amount > max {
		return max
	}
	return amount
}
