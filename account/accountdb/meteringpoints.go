// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package accountdb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/zeebo/errs"
	"storj.io/common/uuid"

	"origin.energy/origin/account/meteringpoint"
)

// meteringpoints implements meteringpoint.DB.
//
// architecture: Database
type meteringpoints struct {
	db queryer
}

const meteringpointColumns = `id, public_id, created, gsrn, type, sector, tech_code, fuel_code, name, subject, retiring_priority`

func (store *meteringpoints) Create(ctx context.Context, mp *meteringpoint.Meteringpoint) (err error) {
	defer mon.Task()(&ctx)(&err)

	if mp.PublicID.IsZero() {
		mp.PublicID, err = uuid.New()
		if err != nil {
			return Error.Wrap(err)
		}
	}

	row := store.db.QueryRowContext(ctx, `
		INSERT INTO meteringpoints (
			public_id, gsrn, type, sector,
			tech_code, fuel_code, name, subject, retiring_priority
		)
		VALUES ( $1, $2, $3, $4, $5, $6, $7, $8, $9 )
		RETURNING id, created
	`, mp.PublicID, mp.Gsrn, string(mp.Type), mp.Sector,
		mp.TechCode, mp.FuelCode, mp.Name, mp.Subject, mp.RetiringPriority)

	return Error.Wrap(row.Scan(&mp.ID, &mp.Created))
}

func (store *meteringpoints) GetByGsrn(ctx context.Context, gsrn string) (_ *meteringpoint.Meteringpoint, err error) {
	defer mon.Task()(&ctx)(&err)

	mp, err := scanMeteringpoint(store.db.QueryRowContext(ctx, `
		SELECT `+meteringpointColumns+`
		FROM meteringpoints
		WHERE gsrn = $1
	`, gsrn))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return mp, Error.Wrap(err)
}

func (store *meteringpoints) RetireReceivers(ctx context.Context, subject, sector string) (_ []*meteringpoint.Meteringpoint, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := store.db.QueryContext(ctx, `
		SELECT `+meteringpointColumns+`
		FROM meteringpoints
		WHERE subject = $1 AND sector = $2
			AND type = $3 AND retiring_priority IS NOT NULL
		ORDER BY retiring_priority
	`, subject, sector, string(meteringpoint.Consumption))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	return scanMeteringpoints(rows)
}

func (store *meteringpoints) ListBySubject(ctx context.Context, subject string) (_ []*meteringpoint.Meteringpoint, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := store.db.QueryContext(ctx, `
		SELECT `+meteringpointColumns+`
		FROM meteringpoints
		WHERE subject = $1
		ORDER BY id
	`, subject)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	return scanMeteringpoints(rows)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMeteringpoint(row scanner) (*meteringpoint.Meteringpoint, error) {
	var mp meteringpoint.Meteringpoint
	var typ string
	var priority sql.NullInt64

	err := row.Scan(&mp.ID, &mp.PublicID, &mp.Created, &mp.Gsrn, &typ, &mp.Sector,
		&mp.TechCode, &mp.FuelCode, &mp.Name, &mp.Subject, &priority)
	if err != nil {
		return nil, err
	}

	mp.Type = meteringpoint.Type(typ)
	if priority.Valid {
		p := int(priority.Int64)
		mp.RetiringPriority = &p
	}
	return &mp, nil
}

func scanMeteringpoints(rows interface {
	scanner
	Next() bool
	Err() error
}) ([]*meteringpoint.Meteringpoint, error) {
	var list []*meteringpoint.Meteringpoint
	for rows.Next() {
		mp, err := scanMeteringpoint(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, mp)
	}
	return list, Error.Wrap(rows.Err())
}
