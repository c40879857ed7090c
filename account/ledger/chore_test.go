// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"storj.io/common/testcontext"
	"storj.io/common/testrand"

	"origin.energy/origin/account/accounttest"
	"origin.energy/origin/account/allocation"
	"origin.energy/origin/account/ggo"
	"origin.energy/origin/account/holder"
	"origin.energy/origin/account/ledger"
	"origin.energy/origin/account/ledger/localledger"
	"origin.energy/origin/account/measurement"
	"origin.energy/origin/account/meteringpoint"
)

var (
	begin = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	end   = begin.Add(time.Hour)
)

type fixture struct {
	db        *accounttest.DB
	ledger    *localledger.Ledger
	allocator *allocation.Service
	chore     *ledger.Chore
}

func newFixture(ctx *testcontext.Context, t *testing.T) *fixture {
	db := accounttest.New()
	for _, subject := range []string{"sub-x", "sub-y"} {
		require.NoError(t, db.Holders().Create(ctx, &holder.Holder{
			Subject: subject,
			Name:    subject,
			Active:  true,
		}))
	}

	log := zaptest.NewLogger(t)
	allocator := allocation.NewService(log, db, db.Technologies())
	allocator.TestSetNow(func() time.Time { return begin })

	led := localledger.New()
	chore := ledger.NewChore(log, db, led, allocator, ledger.Config{
		Interval:   time.Minute,
		BatchLimit: 50,
	})
	chore.TestSetNow(func() time.Time { return begin })

	return &fixture{db: db, ledger: led, allocator: allocator, chore: chore}
}

func (f *fixture) createGgo(ctx *testcontext.Context, t *testing.T, subject string, amount int64) *ggo.Ggo {
	g := &ggo.Ggo{
		PublicID:   testrand.UUID(),
		Subject:    subject,
		IssueGsrn:  "571300000000000001",
		IssueTime:  begin,
		ExpireTime: begin.Add(90 * 24 * time.Hour),
		Begin:      begin,
		End:        end,
		Amount:     amount,
		Sector:     "DK1",
		Issued:     true,
		Stored:     true,
	}
	require.NoError(t, f.db.Ggos().Create(ctx, g))
	return g
}

func TestChore_SubmitPollCommit(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	f := newFixture(ctx, t)
	g := f.createGgo(ctx, t, "sub-x", 100)

	batch, recipients, err := f.allocator.Compose(ctx, "sub-x", g.PublicID,
		[]allocation.Transfer{{Subject: "sub-y", Amount: 40}}, nil)
	require.NoError(t, err)
	require.Equal(t, ggo.BatchPending, batch.State)

	require.Len(t, recipients, 2)
	require.Equal(t, "sub-y", recipients[0].Subject)
	require.EqualValues(t, 40, recipients[0].Ggo.Amount)
	require.Equal(t, "sub-x", recipients[1].Subject)
	require.EqualValues(t, 60, recipients[1].Ggo.Amount)

	// The ledger keeps the batch pending for one cycle.
	f.ledger.SetNextStatus(ledger.StatusPending)
	require.NoError(t, f.chore.RunOnce(ctx))
	require.Equal(t, ggo.BatchSubmitted, batch.State)
	require.NotEmpty(t, batch.Handle)
	require.NotNil(t, batch.Submitted)
	require.Equal(t, begin, *batch.Submitted)
	require.Equal(t, 1, batch.PollCount)

	f.ledger.Resolve(batch.Handle, ledger.StatusCommitted)
	require.NoError(t, f.chore.RunOnce(ctx))
	require.Equal(t, ggo.BatchCompleted, batch.State)

	stored, err := f.db.Ggos().StoredAmount(ctx, "sub-y", begin)
	require.NoError(t, err)
	require.EqualValues(t, 40, stored)

	remainder, err := f.db.Ggos().StoredAmount(ctx, "sub-x", begin)
	require.NoError(t, err)
	require.EqualValues(t, 60, remainder)
}

func TestChore_DeclineRollsBack(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	f := newFixture(ctx, t)
	g := f.createGgo(ctx, t, "sub-x", 100)

	batch, _, err := f.allocator.Compose(ctx, "sub-x", g.PublicID,
		[]allocation.Transfer{{Subject: "sub-y", Amount: 40}}, nil)
	require.NoError(t, err)

	f.ledger.SetNextStatus(ledger.StatusDeclined)
	require.NoError(t, f.chore.RunOnce(ctx))
	require.Equal(t, ggo.BatchDeclined, batch.State)

	// The split is undone: the parent regains stored and the children
	// are gone.
	require.True(t, g.Stored)
	require.False(t, g.Retired)

	stored, err := f.db.Ggos().StoredAmount(ctx, "sub-x", begin)
	require.NoError(t, err)
	require.EqualValues(t, 100, stored)

	recipient, err := f.db.Ggos().StoredAmount(ctx, "sub-y", begin)
	require.NoError(t, err)
	require.Zero(t, recipient)
}

func TestChore_CommitCascadesToRecipient(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	f := newFixture(ctx, t)
	g := f.createGgo(ctx, t, "sub-x", 100)

	// The recipient has unmet consumption at the same begin, so the
	// transferred GGO retires immediately once the batch commits.
	priority := 0
	require.NoError(t, f.db.Meteringpoints().Create(ctx, &meteringpoint.Meteringpoint{
		Gsrn:             "571300000000000002",
		Type:             meteringpoint.Consumption,
		Sector:           "DK1",
		Subject:          "sub-y",
		RetiringPriority: &priority,
	}))
	m := &measurement.Measurement{
		Gsrn:   "571300000000000002",
		Begin:  begin,
		End:    end,
		Amount: 100,
	}
	require.NoError(t, f.db.Measurements().Create(ctx, m))

	batch, _, err := f.allocator.Compose(ctx, "sub-x", g.PublicID,
		[]allocation.Transfer{{Subject: "sub-y", Amount: 100}}, nil)
	require.NoError(t, err)

	require.NoError(t, f.chore.RunOnce(ctx))
	require.NoError(t, f.chore.RunOnce(ctx))
	require.Equal(t, ggo.BatchCompleted, batch.State)

	retired, err := f.db.Ggos().RetiredAmount(ctx, "sub-y", "571300000000000002", m.ID)
	require.NoError(t, err)
	require.EqualValues(t, 100, retired)

	stored, err := f.db.Ggos().StoredAmount(ctx, "sub-y", begin)
	require.NoError(t, err)
	require.Zero(t, stored)
}
