// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package ledger

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"storj.io/common/sync2"

	"origin.energy/origin/account"
	"origin.energy/origin/account/ggo"
)

var mon = monkit.Package()

// Config holds the ledger chore parameters.
type Config struct {
	Interval   time.Duration `help:"how often to submit and poll ledger batches" default:"10s"`
	BatchLimit int           `help:"maximum batches to process per cycle" default:"50"`
}

// Chore periodically submits pending batches to the ledger and polls
// submitted ones, persisting commit or rollback when the ledger
// decides.
//
// architecture: Chore
type Chore struct {
	log       *zap.Logger
	db        account.DB
	submitter Submitter
	allocator Allocator
	config    Config
	nowFn     func() time.Time

	Loop *sync2.Cycle
}

// NewChore creates a new ledger chore.
func NewChore(log *zap.Logger, db account.DB, submitter Submitter, allocator Allocator, config Config) *Chore {
	return &Chore{
		log:       log,
		db:        db,
		submitter: submitter,
		allocator: allocator,
		config:    config,
		nowFn:     time.Now,

		Loop: sync2.NewCycle(config.Interval),
	}
}

// TestSetNow makes the chore act as if the current time is whatever
// nowFn returns.
func (chore *Chore) TestSetNow(nowFn func() time.Time) {
	chore.nowFn = nowFn
}

// Run runs the chore until the context is canceled.
func (chore *Chore) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	return chore.Loop.Run(ctx, func(ctx context.Context) error {
		if err := chore.RunOnce(ctx); err != nil {
			chore.log.Error("ledger cycle failed", zap.Error(err))
		}
		return nil
	})
}

// RunOnce runs one submit and poll cycle.
func (chore *Chore) RunOnce(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := chore.submitPending(ctx); err != nil {
		return err
	}
	return chore.pollSubmitted(ctx)
}

// Close stops the chore.
func (chore *Chore) Close() error {
	chore.Loop.Close()
	return nil
}

func (chore *Chore) submitPending(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	batches, err := chore.db.Batches().ListByState(ctx, ggo.BatchPending, chore.config.BatchLimit)
	if err != nil {
		return Error.Wrap(err)
	}

	var errlist errs.Group
	for _, b := range batches {
		handle, err := chore.submitter.Submit(ctx, b)
		if err != nil {
			chore.log.Warn("batch submission failed",
				zap.Int64("batch_id", b.ID), zap.Error(err))
			errlist.Add(err)
			continue
		}

		b.OnSubmitted(handle, chore.nowFn())
		if err := chore.db.Batches().UpdateState(ctx, b); err != nil {
			errlist.Add(Error.Wrap(err))
		}
	}
	return errlist.Err()
}

func (chore *Chore) pollSubmitted(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	batches, err := chore.db.Batches().ListByState(ctx, ggo.BatchSubmitted, chore.config.BatchLimit)
	if err != nil {
		return Error.Wrap(err)
	}

	var errlist errs.Group
	for _, b := range batches {
		status, err := chore.submitter.Status(ctx, b.Handle)
		if err != nil {
			chore.log.Warn("batch status poll failed",
				zap.Int64("batch_id", b.ID), zap.Error(err))
			errlist.Add(err)
			continue
		}

		switch status {
		case StatusPending:
			b.PollCount++
			if err := chore.db.Batches().UpdateState(ctx, b); err != nil {
				errlist.Add(Error.Wrap(err))
			}
		case StatusCommitted:
			errlist.Add(chore.commit(ctx, b))
		case StatusDeclined:
			errlist.Add(chore.rollback(ctx, b))
		default:
			errlist.Add(Error.New("unknown ledger status %q", status))
		}
	}
	return errlist.Err()
}

// commit persists the committed batch and allocates the GGOs it handed
// to other holders, all in one transaction.
func (chore *Chore) commit(ctx context.Context, b *ggo.Batch) error {
	return chore.db.WithTx(ctx, func(ctx context.Context, tx account.Stores) error {
		b.OnCommit()
		if err := tx.Batches().Commit(ctx, b); err != nil {
			return Error.Wrap(err)
		}

		chore.log.Info("batch committed",
			zap.Int64("batch_id", b.ID), zap.String("handle", b.Handle))

		for _, t := range b.Transactions {
			for _, target := range t.Targets {
				if target.Ggo.Subject == b.Subject {
					continue
				}
				if err := chore.allocator.Allocate(ctx, tx, target.Ggo); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (chore *Chore) rollback(ctx context.Context, b *ggo.Batch) error {
	return chore.db.WithTx(ctx, func(ctx context.Context, tx account.Stores) error {
		b.OnRollback()
		if err := tx.Batches().Rollback(ctx, b); err != nil {
			return Error.Wrap(err)
		}

		chore.log.Warn("batch declined by ledger",
			zap.Int64("batch_id", b.ID), zap.String("handle", b.Handle))
		return nil
	})
}
