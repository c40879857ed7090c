// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package accountdb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/zeebo/errs"

	"origin.energy/origin/account/technology"
)

// technologies implements technology.DB.
//
// architecture: Database
type technologies struct {
	db queryer
}

func (store *technologies) Create(ctx context.Context, t *technology.Technology) (err error) {
	defer mon.Task()(&ctx)(&err)

	row := store.db.QueryRowContext(ctx, `
		INSERT INTO technologies ( label, tech_code, fuel_code )
		VALUES ( $1, $2, $3 )
		RETURNING id
	`, t.Label, t.TechCode, t.FuelCode)

	return Error.Wrap(row.Scan(&t.ID))
}

func (store *technologies) Get(ctx context.Context, techCode, fuelCode string) (_ *technology.Technology, err error) {
	defer mon.Task()(&ctx)(&err)

	var t technology.Technology
	err = store.db.QueryRowContext(ctx, `
		SELECT id, label, tech_code, fuel_code
		FROM technologies
		WHERE tech_code = $1 AND fuel_code = $2
	`, techCode, fuelCode).Scan(&t.ID, &t.Label, &t.TechCode, &t.FuelCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &t, nil
}

func (store *technologies) List(ctx context.Context) (_ []*technology.Technology, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := store.db.QueryContext(ctx, `
		SELECT id, label, tech_code, fuel_code
		FROM technologies
		ORDER BY label
	`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	var list []*technology.Technology
	for rows.Next() {
		var t technology.Technology
		if err := rows.Scan(&t.ID, &t.Label, &t.TechCode, &t.FuelCode); err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, &t)
	}
	return list, Error.Wrap(rows.Err())
}
