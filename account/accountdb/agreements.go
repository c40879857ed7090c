// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package accountdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/zeebo/errs"
	"storj.io/common/uuid"

	"origin.energy/origin/account/agreement"
)

// agreements implements agreement.DB.
//
// architecture: Database
type agreements struct {
	db queryer
}

const agreementColumns = `id, public_id, created, proposed_by, user_from, user_to,
	state, declined, cancelled, date_from, date_to,
	facility_gsrn, technologies,
	amount, unit, amount_percent, limit_to_consumption,
	transfer_priority, reference, proposal_note`

func (store *agreements) Create(ctx context.Context, a *agreement.Agreement) (err error) {
	defer mon.Task()(&ctx)(&err)

	facilities, technologies, err := encodeFilters(a)
	if err != nil {
		return err
	}

	row := store.db.QueryRowContext(ctx, `
		INSERT INTO agreements (
			public_id, proposed_by, user_from, user_to,
			state, declined, cancelled, date_from, date_to,
			facility_gsrn, technologies,
			amount, unit, amount_percent, limit_to_consumption,
			transfer_priority, reference, proposal_note
		)
		VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11,
			$12, $13, $14, $15,
			$16, $17, $18
		)
		RETURNING id, created
	`, a.PublicID, a.ProposedBy, a.From, a.To,
		string(a.State), a.Declined, a.Cancelled, agreement.LocalDate(a.DateFrom), agreement.LocalDate(a.DateTo),
		facilities, technologies,
		a.Amount, int64(a.Unit), a.AmountPercent, a.LimitToConsumption,
		a.TransferPriority, a.Reference, a.ProposalNote)

	return Error.Wrap(row.Scan(&a.ID, &a.Created))
}

func (store *agreements) Update(ctx context.Context, a *agreement.Agreement) (err error) {
	defer mon.Task()(&ctx)(&err)

	facilities, technologies, err := encodeFilters(a)
	if err != nil {
		return err
	}

	result, err := store.db.ExecContext(ctx, `
		UPDATE agreements
		SET state = $2, declined = $3, cancelled = $4,
			facility_gsrn = $5, technologies = $6,
			amount_percent = $7, transfer_priority = $8
		WHERE id = $1
	`, a.ID, string(a.State), a.Declined, a.Cancelled,
		facilities, technologies,
		a.AmountPercent, a.TransferPriority)
	if err != nil {
		return Error.Wrap(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return Error.New("agreement %d does not exist", a.ID)
	}
	return nil
}

func (store *agreements) GetByPublicID(ctx context.Context, publicID uuid.UUID) (_ *agreement.Agreement, err error) {
	defer mon.Task()(&ctx)(&err)

	a, err := scanAgreement(store.db.QueryRowContext(ctx, `
		SELECT `+agreementColumns+`
		FROM agreements
		WHERE public_id = $1
	`, publicID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, Error.Wrap(err)
}

func (store *agreements) ActiveOutbound(ctx context.Context, subject string, date time.Time) (_ []*agreement.Agreement, err error) {
	defer mon.Task()(&ctx)(&err)

	return store.query(ctx, `
		WHERE user_from = $1 AND state = $2
			AND date_from <= $3 AND date_to >= $3
		ORDER BY transfer_priority NULLS LAST, id
	`, subject, string(agreement.Accepted), date)
}

func (store *agreements) MaxPriority(ctx context.Context, subject string) (_ *int, err error) {
	defer mon.Task()(&ctx)(&err)

	var max sql.NullInt64
	err = store.db.QueryRowContext(ctx, `
		SELECT MAX(transfer_priority)
		FROM agreements
		WHERE user_from = $1 AND state = $2
	`, subject, string(agreement.Accepted)).Scan(&max)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !max.Valid {
		return nil, nil
	}
	priority := int(max.Int64)
	return &priority, nil
}

func (store *agreements) ClearPriorities(ctx context.Context, subject string) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = store.db.ExecContext(ctx, `
		UPDATE agreements
		SET transfer_priority = NULL
		WHERE user_from = $1 AND state = $2
	`, subject, string(agreement.Accepted))
	return Error.Wrap(err)
}

func (store *agreements) SetPriority(ctx context.Context, subject string, publicID uuid.UUID, priority int) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = store.db.ExecContext(ctx, `
		UPDATE agreements
		SET transfer_priority = $3
		WHERE user_from = $1 AND state = $2 AND public_id = $4
	`, subject, string(agreement.Accepted), priority, publicID)
	return Error.Wrap(err)
}

func (store *agreements) NormalizePriorities(ctx context.Context, subject string) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = store.db.ExecContext(ctx, `
		UPDATE agreements
		SET transfer_priority = ranked.rn - 1
		FROM (
			SELECT id, row_number() OVER (
				ORDER BY transfer_priority IS NULL, transfer_priority, id
			) AS rn
			FROM agreements
			WHERE user_from = $1 AND state = $2
		) ranked
		WHERE agreements.id = ranked.id
	`, subject, string(agreement.Accepted))
	return Error.Wrap(err)
}

func (store *agreements) PendingProposedTo(ctx context.Context, subject string) ([]*agreement.Agreement, error) {
	return store.query(ctx, `
		WHERE state = $2 AND proposed_by <> $1
			AND (user_from = $1 OR user_to = $1)
		ORDER BY id
	`, subject, string(agreement.Pending))
}

func (store *agreements) PendingProposedBy(ctx context.Context, subject string) ([]*agreement.Agreement, error) {
	return store.query(ctx, `
		WHERE state = $2 AND proposed_by = $1
		ORDER BY id
	`, subject, string(agreement.Pending))
}

func (store *agreements) AcceptedInbound(ctx context.Context, subject string) ([]*agreement.Agreement, error) {
	return store.query(ctx, `
		WHERE state = $2 AND user_to = $1
		ORDER BY id
	`, subject, string(agreement.Accepted))
}

func (store *agreements) AcceptedOutbound(ctx context.Context, subject string) ([]*agreement.Agreement, error) {
	return store.query(ctx, `
		WHERE state = $2 AND user_from = $1
		ORDER BY transfer_priority NULLS LAST, id
	`, subject, string(agreement.Accepted))
}

func (store *agreements) CancelledSince(ctx context.Context, subject string, since time.Time) ([]*agreement.Agreement, error) {
	return store.query(ctx, `
		WHERE state = $2 AND cancelled >= $3
			AND (user_from = $1 OR user_to = $1)
		ORDER BY cancelled DESC
	`, subject, string(agreement.Cancelled), since)
}

func (store *agreements) DeclinedSince(ctx context.Context, subject string, since time.Time) ([]*agreement.Agreement, error) {
	return store.query(ctx, `
		WHERE state = $2 AND declined >= $3
			AND (user_from = $1 OR user_to = $1)
		ORDER BY declined DESC
	`, subject, string(agreement.Declined), since)
}

func (store *agreements) query(ctx context.Context, where string, args ...interface{}) (_ []*agreement.Agreement, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := store.db.QueryContext(ctx, `
		SELECT `+agreementColumns+`
		FROM agreements
	`+where, args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	var list []*agreement.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, a)
	}
	return list, Error.Wrap(rows.Err())
}

func scanAgreement(row scanner) (*agreement.Agreement, error) {
	var a agreement.Agreement
	var state string
	var declined, cancelled sql.NullTime
	var facilities []byte
	var technologies []byte
	var unit int64
	var priority sql.NullInt64

	err := row.Scan(&a.ID, &a.PublicID, &a.Created, &a.ProposedBy, &a.From, &a.To,
		&state, &declined, &cancelled, &a.DateFrom, &a.DateTo,
		&facilities, &technologies,
		&a.Amount, &unit, &a.AmountPercent, &a.LimitToConsumption,
		&priority, &a.Reference, &a.ProposalNote)
	if err != nil {
		return nil, err
	}

	a.State = agreement.State(state)
	a.Unit = agreement.Unit(unit)
	if declined.Valid {
		a.Declined = &declined.Time
	}
	if cancelled.Valid {
		a.Cancelled = &cancelled.Time
	}
	if priority.Valid {
		p := int(priority.Int64)
		a.TransferPriority = &p
	}

	if err := json.Unmarshal(facilities, &a.FacilityGsrn); err != nil {
		return nil, err
	}
	if technologies != nil {
		if err := json.Unmarshal(technologies, &a.Technologies); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

// encodeFilters encodes the facility and technology filters for
// storage. A nil technology filter stays NULL, meaning any technology.
func encodeFilters(a *agreement.Agreement) (facilities, technologies interface{}, err error) {
	if a.FacilityGsrn == nil {
		facilities = []byte(`[]`)
	} else {
		facilities, err = json.Marshal(a.FacilityGsrn)
		if err != nil {
			return nil, nil, Error.Wrap(err)
		}
	}
	if a.Technologies != nil {
		technologies, err = json.Marshal(a.Technologies)
		if err != nil {
			return nil, nil, Error.Wrap(err)
		}
	}
	return facilities, technologies, nil
}
