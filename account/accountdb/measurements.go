// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package accountdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"origin.energy/origin/account/measurement"
	"origin.energy/origin/account/meteringpoint"
)

// measurements implements measurement.DB.
//
// architecture: Database
type measurements struct {
	db queryer
}

func (store *measurements) Create(ctx context.Context, m *measurement.Measurement) (err error) {
	defer mon.Task()(&ctx)(&err)

	row := store.db.QueryRowContext(ctx, `
		INSERT INTO measurements ( gsrn, begin_at, end_at, amount )
		VALUES ( $1, $2, $3, $4 )
		RETURNING id, created
	`, m.Gsrn, m.Begin, m.End, m.Amount)

	return Error.Wrap(row.Scan(&m.ID, &m.Created))
}

func (store *measurements) GetByGsrnAndBegin(ctx context.Context, gsrn string, begin time.Time) (_ *measurement.Measurement, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanMeasurement(store.db.QueryRowContext(ctx, `
		SELECT id, created, gsrn, begin_at, end_at, amount
		FROM measurements
		WHERE gsrn = $1 AND begin_at = $2
	`, gsrn, begin))
}

func (store *measurements) Consumption(ctx context.Context, subject, gsrn string, begin time.Time) (_ *measurement.Measurement, err error) {
	defer mon.Task()(&ctx)(&err)

	return scanMeasurement(store.db.QueryRowContext(ctx, `
		SELECT m.id, m.created, m.gsrn, m.begin_at, m.end_at, m.amount
		FROM measurements m
		JOIN meteringpoints mp ON mp.gsrn = m.gsrn
		WHERE mp.subject = $1 AND mp.type = $2
			AND m.gsrn = $3 AND m.begin_at = $4
	`, subject, string(meteringpoint.Consumption), gsrn, begin))
}

func scanMeasurement(row *sql.Row) (*measurement.Measurement, error) {
	var m measurement.Measurement
	err := row.Scan(&m.ID, &m.Created, &m.Gsrn, &m.Begin, &m.End, &m.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &m, nil
}
