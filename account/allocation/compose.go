// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package allocation

import (
	"context"

	"storj.io/common/uuid"

	"origin.energy/origin/account"
	"origin.energy/origin/account/ggo"
	"origin.energy/origin/account/holder"
)

// Transfer is one manual transfer intent: send amount of the GGO to
// the named subject, tagged with an optional reference.
type Transfer struct {
	Subject   string
	Amount    int64
	Reference *string
}

// Retire is one manual retire intent: retire amount of the GGO to the
// holder's own consumption meteringpoint.
type Retire struct {
	Gsrn   string
	Amount int64
}

// Compose builds a pending batch out of manual transfer and retire
// intents against one of the holder's GGOs. The batch is stored in
// state pending; the ledger chore submits it and effectuates the
// result, including allocation at the recipients. The returned
// recipients pair each new child GGO with the subject receiving it.
func (service *Service) Compose(ctx context.Context, subject string, ggoPublicID uuid.UUID, transfers []Transfer, retires []Retire) (batch *ggo.Batch, recipients []ggo.Recipient, err error) {
	defer mon.Task()(&ctx)(&err)

	err = service.db.WithTx(ctx, func(ctx context.Context, tx account.Stores) error {
		g, err := tx.Ggos().GetByPublicID(ctx, subject, ggoPublicID)
		if err != nil {
			return Error.Wrap(err)
		}
		if g == nil {
			return ErrGgoNotFound.New("%s", ggoPublicID)
		}

		composer, err := ggo.NewComposer(g, tx.Ggos(), tx.Measurements(), service.nowFn())
		if err != nil {
			return Error.Wrap(err)
		}

		for _, t := range transfers {
			recipient, err := tx.Holders().GetActive(ctx, t.Subject)
			if err != nil {
				return Error.Wrap(err)
			}
			if recipient == nil {
				return holder.ErrNotFound.New("%s", t.Subject)
			}
			if err := composer.AddTransfer(recipient.Subject, t.Amount, t.Reference); err != nil {
				return err
			}
		}

		for _, r := range retires {
			mp, err := tx.Meteringpoints().GetByGsrn(ctx, r.Gsrn)
			if err != nil {
				return Error.Wrap(err)
			}
			if mp == nil || mp.Subject != subject {
				return Error.New("holder has no meteringpoint with gsrn %s", r.Gsrn)
			}
			if err := composer.AddRetire(ctx, mp, r.Amount); err != nil {
				return err
			}
		}

		batch, recipients, err = composer.BuildBatch()
		if err != nil {
			return err
		}
		return persistBatch(ctx, tx, batch)
	})
	if err != nil {
		return nil, nil, err
	}
	return batch, recipients, nil
}
