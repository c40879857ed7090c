// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package issuance publishes measurements and mints GGOs for
// production. A production measurement immediately yields a stored GGO
// of the same amount, which is then handed to the allocation engine.
package issuance

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"origin.energy/origin/account"
	"origin.energy/origin/account/allocation"
	"origin.energy/origin/account/ggo"
	"origin.energy/origin/account/measurement"
)

var (
	mon = monkit.Package()

	// Error is the default issuance errs class.
	Error = errs.Class("issuance")
	// ErrMeteringpointNotFound is returned when publishing a
	// measurement for an unknown GSRN.
	ErrMeteringpointNotFound = errs.Class("meteringpoint not found")
)

// Config holds issuance parameters.
type Config struct {
	GgoExpireTime time.Duration `help:"how long issued GGOs stay tradable" default:"2160h"`
}

// Service publishes measurements and issues GGOs.
//
// architecture: Service
type Service struct {
	log       *zap.Logger
	db        account.DB
	allocator *allocation.Service
	config    Config
	nowFn     func() time.Time
}

// NewService creates a new issuance service.
func NewService(log *zap.Logger, db account.DB, allocator *allocation.Service, config Config) *Service {
	return &Service{
		log:       log,
		db:        db,
		allocator: allocator,
		config:    config,
		nowFn:     time.Now,
	}
}

// TestSetNow makes the service act as if the current time is whatever
// nowFn returns.
func (service *Service) TestSetNow(nowFn func() time.Time) {
	service.nowFn = nowFn
}

// CreateMeasurement publishes a measurement for the meteringpoint with
// the given GSRN. A production measurement mints a GGO carrying the
// measured amount and the emissions blob, and runs allocation on it
// within the same transaction. Returns the issued GGO, or nil for
// consumption measurements.
func (service *Service) CreateMeasurement(ctx context.Context, gsrn string, begin, end time.Time, amount int64, emissions []byte) (issued *ggo.Ggo, err error) {
	defer mon.Task()(&ctx)(&err)

	if amount <= 0 {
		return nil, Error.New("measurement amount must be positive, got %d", amount)
	}
	if !end.After(begin) {
		return nil, Error.New("measurement period ends before it begins")
	}

	err = service.db.WithTx(ctx, func(ctx context.Context, tx account.Stores) error {
		mp, err := tx.Meteringpoints().GetByGsrn(ctx, gsrn)
		if err != nil {
			return Error.Wrap(err)
		}
		if mp == nil {
			return ErrMeteringpointNotFound.New("%s", gsrn)
		}

		m := &measurement.Measurement{
			Gsrn:   gsrn,
			Begin:  begin,
			End:    end,
			Amount: amount,
		}
		if err := tx.Measurements().Create(ctx, m); err != nil {
			return Error.Wrap(err)
		}

		if !mp.IsProducer() {
			return nil
		}

		now := service.nowFn()
		issued, err = ggo.NewFromMeasurement(m, mp, emissions, now, service.config.GgoExpireTime)
		if err != nil {
			return Error.Wrap(err)
		}
		if err := tx.Ggos().Create(ctx, issued); err != nil {
			return Error.Wrap(err)
		}

		service.log.Info("ggo issued",
			zap.Stringer("public_id", issued.PublicID),
			zap.String("gsrn", gsrn),
			zap.Int64("amount", amount))

		return service.allocator.Allocate(ctx, tx, issued)
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}
