// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package accountdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storj.io/common/uuid"

	"origin.energy/origin/account/ggo"
)

// ggos implements ggo.DB.
//
// architecture: Database
type ggos struct {
	db queryer
}

const ggoColumns = `id, public_id, created, parent_id, measurement_id, issue_gsrn,
	subject, issue_time, expire_time, begin_at, end_at, amount,
	sector, tech_code, fuel_code, emissions,
	issued, stored, retired, retire_gsrn, retire_measurement_id`

func (store *ggos) Create(ctx context.Context, g *ggo.Ggo) (err error) {
	defer mon.Task()(&ctx)(&err)

	row := store.db.QueryRowContext(ctx, `
		INSERT INTO ggos (
			public_id, parent_id, measurement_id, issue_gsrn,
			subject, issue_time, expire_time, begin_at, end_at, amount,
			sector, tech_code, fuel_code, emissions,
			issued, stored, retired, retire_gsrn, retire_measurement_id
		)
		VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19
		)
		RETURNING id, created
	`, g.PublicID, g.ParentID, g.MeasurementID, g.IssueGsrn,
		g.Subject, g.IssueTime, g.ExpireTime, g.Begin, g.End, g.Amount,
		g.Sector, g.TechCode, g.FuelCode, emissionsValue(g.Emissions),
		g.Issued, g.Stored, g.Retired, g.RetireGsrn, g.RetireMeasurementID)

	return Error.Wrap(row.Scan(&g.ID, &g.Created))
}

func (store *ggos) Update(ctx context.Context, g *ggo.Ggo) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := store.db.ExecContext(ctx, `
		UPDATE ggos
		SET issued = $2, stored = $3, retired = $4,
			retire_gsrn = $5, retire_measurement_id = $6
		WHERE id = $1
	`, g.ID, g.Issued, g.Stored, g.Retired, g.RetireGsrn, g.RetireMeasurementID)
	if err != nil {
		return Error.Wrap(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return Error.New("ggo %d does not exist", g.ID)
	}
	return nil
}

func (store *ggos) Delete(ctx context.Context, id int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = store.db.ExecContext(ctx, `DELETE FROM ggos WHERE id = $1`, id)
	return Error.Wrap(err)
}

func (store *ggos) GetByPublicID(ctx context.Context, subject string, publicID uuid.UUID) (_ *ggo.Ggo, err error) {
	defer mon.Task()(&ctx)(&err)

	g, err := scanGgo(store.db.QueryRowContext(ctx, `
		SELECT `+ggoColumns+`
		FROM ggos
		WHERE subject = $1 AND public_id = $2
	`, subject, publicID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return g, Error.Wrap(err)
}

func (store *ggos) RetiredAmount(ctx context.Context, subject, gsrn string, measurementID int64) (total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = store.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ggos
		WHERE subject = $1 AND retired
			AND retire_gsrn = $2 AND retire_measurement_id = $3
	`, subject, gsrn, measurementID).Scan(&total)
	return total, Error.Wrap(err)
}

func (store *ggos) StoredAmount(ctx context.Context, subject string, begin time.Time) (total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = store.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ggos
		WHERE subject = $1 AND stored AND begin_at = $2
	`, subject, begin).Scan(&total)
	return total, Error.Wrap(err)
}

func (store *ggos) TransferredAmount(ctx context.Context, sender, reference string, begin time.Time) (total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = store.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(g.amount), 0)
		FROM split_targets st
		JOIN batch_transactions t ON t.id = st.transaction_id
		JOIN ggos parent ON parent.id = t.parent_ggo_id
		JOIN ggos g ON g.id = st.ggo_id
		WHERE parent.subject = $1 AND st.reference = $2 AND g.begin_at = $3
	`, sender, reference, begin).Scan(&total)
	return total, Error.Wrap(err)
}

func scanGgo(row scanner) (*ggo.Ggo, error) {
	return scanGgoAfter(row)
}

// emissionsValue avoids inserting an invalid empty jsonb value.
func emissionsValue(emissions []byte) interface{} {
	if len(emissions) == 0 {
		return nil
	}
	return emissions
}
