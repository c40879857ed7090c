// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package allocation implements the allocation engine: whenever a
// holder receives a stored GGO, the engine hands it to the holder's
// consumers in strict order, first the retire receivers by retiring
// priority, then the accepted outbound agreements by transfer priority.
// Transfers to other holders cascade within the same unit of work.
package allocation

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"origin.energy/origin/account"
	"origin.energy/origin/account/agreement"
	"origin.energy/origin/account/ggo"
	"origin.energy/origin/account/technology"
)

var (
	mon = monkit.Package()

	// Error is the default allocation errs class.
	Error = errs.Class("allocation")
	// ErrGgoNotFound is returned when composing on a GGO the holder
	// does not have.
	ErrGgoNotFound = errs.Class("ggo not found")
)

// Service is the allocation engine.
//
// architecture: Service
type Service struct {
	log          *zap.Logger
	db           account.DB
	technologies technology.DB
	nowFn        func() time.Time
}

// NewService creates a new allocation engine. The technology store is
// taken separately so a cache can front it; the registry is read only
// from the engine's point of view.
func NewService(log *zap.Logger, db account.DB, technologies technology.DB) *Service {
	return &Service{
		log:          log,
		db:           db,
		technologies: technologies,
		nowFn:        time.Now,
	}
}

// TestSetNow makes the engine act as if the current time is whatever
// nowFn returns.
func (service *Service) TestSetNow(nowFn func() time.Time) {
	service.nowFn = nowFn
}

// AllocateOnReceive runs Allocate in its own unit of work.
func (service *Service) AllocateOnReceive(ctx context.Context, g *ggo.Ggo) (err error) {
	defer mon.Task()(&ctx)(&err)

	return service.db.WithTx(ctx, func(ctx context.Context, tx account.Stores) error {
		return service.Allocate(ctx, tx, g)
	})
}

// Allocate distributes a freshly received GGO across the holder's
// consumers. Each consumer gets the minimum of its desired amount and
// what is left; a GGO nobody wants stays stored untouched. The
// resulting batch commits immediately, and new GGOs landing with other
// holders are allocated recursively inside the same transaction.
func (service *Service) Allocate(ctx context.Context, tx account.Stores, g *ggo.Ggo) (err error) {
	defer mon.Task()(&ctx)(&err)

	now := service.nowFn()
	if !g.IsTradable(now) {
		return nil
	}

	consumers, err := service.consumers(ctx, tx, g)
	if err != nil {
		return err
	}
	if len(consumers) == 0 {
		return nil
	}

	composer, err := ggo.NewComposer(g, tx.Ggos(), tx.Measurements(), now)
	if err != nil {
		return Error.Wrap(err)
	}

	remaining := g.Amount
	for _, consumer := range consumers {
		if remaining <= 0 {
			break
		}

		desired, err := consumer.DesiredAmount(ctx, g, g.Amount-remaining)
		if err != nil {
			return err
		}

		assigned := desired
		if assigned > remaining {
			assigned = remaining
		}
		if assigned <= 0 {
			continue
		}
		remaining -= assigned

		if err := consumer.Consume(ctx, composer, assigned); err != nil {
			return Error.Wrap(err)
		}
	}

	// Nothing claimed anything; the GGO stays stored.
	if remaining == g.Amount {
		return nil
	}

	batch, recipients, err := composer.BuildBatch()
	if err != nil {
		return Error.Wrap(err)
	}

	if err := persistBatch(ctx, tx, batch); err != nil {
		return err
	}

	batch.OnCommit()
	if err := tx.Batches().Commit(ctx, batch); err != nil {
		return Error.Wrap(err)
	}

	service.log.Info("ggo allocated",
		zap.Stringer("public_id", g.PublicID),
		zap.String("subject", g.Subject),
		zap.Int64("amount", g.Amount),
		zap.Int64("unallocated", remaining))

	for _, recipient := range recipients {
		if recipient.Subject == g.Subject {
			continue
		}
		if err := service.Allocate(ctx, tx, recipient.Ggo); err != nil {
			return err
		}
	}
	return nil
}

// AffectedSubjects returns the subjects whose accounts would change if
// g were allocated now.
func (service *Service) AffectedSubjects(ctx context.Context, tx account.Stores, g *ggo.Ggo) (_ []string, err error) {
	defer mon.Task()(&ctx)(&err)

	consumers, err := service.consumers(ctx, tx, g)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{g.Subject: true}
	subjects := []string{g.Subject}
	for _, consumer := range consumers {
		for _, subject := range consumer.AffectedSubjects() {
			if !seen[subject] {
				seen[subject] = true
				subjects = append(subjects, subject)
			}
		}
	}
	return subjects, nil
}

// consumers enumerates the holder's consumers for g in allocation
// order: retire receivers by retiring priority, then eligible accepted
// outbound agreements by transfer priority.
func (service *Service) consumers(ctx context.Context, tx account.Stores, g *ggo.Ggo) (_ []consumer, err error) {
	defer mon.Task()(&ctx)(&err)

	var consumers []consumer

	receivers, err := tx.Meteringpoints().RetireReceivers(ctx, g.Subject, g.Sector)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	for _, mp := range receivers {
		consumers = append(consumers, &retireConsumer{tx: tx, mp: mp})
	}

	agreements, err := tx.Agreements().ActiveOutbound(ctx, g.Subject, agreement.LocalDate(g.Begin))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if len(agreements) == 0 {
		return consumers, nil
	}

	tech, err := service.technologies.Get(ctx, g.TechCode, g.FuelCode)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	label := technology.Label(tech)

	for _, a := range agreements {
		if !a.MatchesFacility(g.IssueGsrn) || !a.MatchesTechnology(label) {
			continue
		}
		if a.LimitToConsumption {
			consumers = append(consumers, newLimitedConsumer(tx, a))
		} else {
			consumers = append(consumers, newAgreementConsumer(tx, a))
		}
	}
	return consumers, nil
}

// persistBatch stores the new child GGOs, the spent parents' flags and
// the batch itself, in that order.
func persistBatch(ctx context.Context, tx account.Stores, batch *ggo.Batch) error {
	for _, t := range batch.Transactions {
		for _, target := range t.Targets {
			if target.Ggo.ID == 0 {
				if err := tx.Ggos().Create(ctx, target.Ggo); err != nil {
					return Error.Wrap(err)
				}
			}
			target.GgoID = target.Ggo.ID
		}
	}
	for _, t := range batch.Transactions {
		t.ParentGgoID = t.ParentGgo.ID
		if err := tx.Ggos().Update(ctx, t.ParentGgo); err != nil {
			return Error.Wrap(err)
		}
	}
	return Error.Wrap(tx.Batches().Create(ctx, batch))
}
