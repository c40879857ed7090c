// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package accountdb

import (
	"context"
	"database/sql"
	"errors"

	"origin.energy/origin/account/holder"
)

// holders implements holder.DB.
//
// architecture: Database
type holders struct {
	db queryer
}

func (store *holders) Create(ctx context.Context, h *holder.Holder) (err error) {
	defer mon.Task()(&ctx)(&err)

	row := store.db.QueryRowContext(ctx, `
		INSERT INTO holders ( subject, name, active )
		VALUES ( $1, $2, $3 )
		RETURNING id, created
	`, h.Subject, h.Name, h.Active)

	return Error.Wrap(row.Scan(&h.ID, &h.Created))
}

func (store *holders) Get(ctx context.Context, subject string) (_ *holder.Holder, err error) {
	defer mon.Task()(&ctx)(&err)

	return store.scanOne(store.db.QueryRowContext(ctx, `
		SELECT id, subject, name, active, created
		FROM holders
		WHERE subject = $1
	`, subject))
}

func (store *holders) GetActive(ctx context.Context, subject string) (_ *holder.Holder, err error) {
	defer mon.Task()(&ctx)(&err)

	return store.scanOne(store.db.QueryRowContext(ctx, `
		SELECT id, subject, name, active, created
		FROM holders
		WHERE subject = $1 AND active
	`, subject))
}

func (store *holders) scanOne(row *sql.Row) (*holder.Holder, error) {
	var h holder.Holder
	err := row.Scan(&h.ID, &h.Subject, &h.Name, &h.Active, &h.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &h, nil
}
